package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/services"
	"github.com/medcode-academy/assignment-service/internal/utils"
)

type AssignmentHandler struct {
	BaseHandler
	serviceManager services.ServiceManager
}

func NewAssignmentHandler(serviceManager services.ServiceManager, logger utils.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		BaseHandler:    NewBaseHandler(logger),
		serviceManager: serviceManager,
	}
}

// Create handles POST /assignments (admin).
func (h *AssignmentHandler) Create(c *gin.Context) {
	h.LogRequest(c, "creating assignment")

	var req services.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	userID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return
	}

	assignment, err := h.serviceManager.Assignment().Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, assignment)
}

// Update handles PUT /assignments/:id (admin).
func (h *AssignmentHandler) Update(c *gin.Context) {
	h.LogRequest(c, "updating assignment")

	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	var req services.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	userID, _ := h.CurrentUserID(c)
	assignment, err := h.serviceManager.Assignment().Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assignment)
}

// Delete handles DELETE /assignments/:id (admin).
func (h *AssignmentHandler) Delete(c *gin.Context) {
	h.LogRequest(c, "deleting assignment")

	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	userID, _ := h.CurrentUserID(c)
	if err := h.serviceManager.Assignment().Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "assignment deleted"})
}

// DeleteSubAssignment handles DELETE /assignments/:id/sub-assignments/:sub_id (admin).
func (h *AssignmentHandler) DeleteSubAssignment(c *gin.Context) {
	h.LogRequest(c, "deleting sub-assignment")

	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}
	subID, err := parseUintParam(c, "sub_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid sub-assignment id"})
		return
	}

	userID, _ := h.CurrentUserID(c)
	if err := h.serviceManager.Assignment().DeleteSubAssignment(c.Request.Context(), id, subID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sub-assignment deleted"})
}

// Get handles GET /assignments/:id.
func (h *AssignmentHandler) Get(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	assignment, err := h.serviceManager.Assignment().GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assignment)
}

// List handles GET /assignments with filter, sort and pagination query params.
func (h *AssignmentHandler) List(c *gin.Context) {
	filters := repositories.AssignmentFilters{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}
	if createdBy := c.Query("created_by"); createdBy != "" {
		filters.CreatedBy = &createdBy
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filters.Offset = offset
	}

	assignments, total, err := h.serviceManager.Assignment().List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assignments": assignments,
		"total":       total,
		"limit":       filters.Limit,
		"offset":      filters.Offset,
	})
}

// ListCategories handles GET /assignments/categories.
func (h *AssignmentHandler) ListCategories(c *gin.Context) {
	categories, err := h.serviceManager.Assignment().ListCategories(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CountByCategory handles GET /assignments/categories/:category/count.
func (h *AssignmentHandler) CountByCategory(c *gin.Context) {
	category := c.Param("category")

	count, err := h.serviceManager.Assignment().CountByCategory(c.Request.Context(), category)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category, "count": count})
}

// GetByCategoryForStudent handles GET /assignments/categories/:category and
// decorates each assignment with the caller's submission standing.
func (h *AssignmentHandler) GetByCategoryForStudent(c *gin.Context) {
	category := c.Param("category")

	studentID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return
	}

	assignments, err := h.serviceManager.Assignment().GetByCategoryForStudent(c.Request.Context(), category, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category, "assignments": assignments})
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}
