package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/services"
	"github.com/medcode-academy/assignment-service/internal/utils"
)

type ProgressHandler struct {
	BaseHandler
	serviceManager services.ServiceManager
}

func NewProgressHandler(serviceManager services.ServiceManager, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:    NewBaseHandler(logger),
		serviceManager: serviceManager,
	}
}

// resolveStudentID returns the caller's id, or the student_id query param when
// an admin asks about someone else.
func (h *ProgressHandler) resolveStudentID(c *gin.Context) (string, bool) {
	studentID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return "", false
	}
	if target := c.Query("student_id"); target != "" && target != studentID {
		if !h.IsAdmin(c) {
			c.JSON(http.StatusForbidden, ErrorResponse{Message: "insufficient permissions"})
			return "", false
		}
		studentID = target
	}
	return studentID, true
}

// IsComplete handles GET /progress/assignments/:id/complete.
func (h *ProgressHandler) IsComplete(c *gin.Context) {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	studentID, ok := h.resolveStudentID(c)
	if !ok {
		return
	}

	complete, err := h.serviceManager.Progress().IsAssignmentComplete(c.Request.Context(), studentID, assignmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignment_id": assignmentID, "completed": complete})
}

// CategoryStats handles GET /progress/categories/:category.
func (h *ProgressHandler) CategoryStats(c *gin.Context) {
	studentID, ok := h.resolveStudentID(c)
	if !ok {
		return
	}

	stats, err := h.serviceManager.Progress().CategoryStats(c.Request.Context(), c.Param("category"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DetailedCategoryStats handles GET /progress/categories/:category/detailed,
// including the per-assignment rows.
func (h *ProgressHandler) DetailedCategoryStats(c *gin.Context) {
	studentID, ok := h.resolveStudentID(c)
	if !ok {
		return
	}

	stats, err := h.serviceManager.Progress().DetailedCategoryStats(c.Request.Context(), c.Param("category"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportCategoryStats handles GET /reports/categories/:category (admin):
// streams a spreadsheet of one student's standing in a category.
func (h *ProgressHandler) ExportCategoryStats(c *gin.Context) {
	h.LogRequest(c, "exporting category report")

	studentID := c.Query("student_id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "student_id query parameter is required"})
		return
	}

	category := c.Param("category")
	data, err := h.serviceManager.Report().ExportCategoryStats(c.Request.Context(), category, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("category-%s-report.xlsx", category)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ExportAssignmentResults handles GET /reports/assignments/:id (admin):
// streams a spreadsheet of every submission for one assignment.
func (h *ProgressHandler) ExportAssignmentResults(c *gin.Context) {
	h.LogRequest(c, "exporting assignment report")

	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	data, err := h.serviceManager.Report().ExportAssignmentResults(c.Request.Context(), assignmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("assignment-%d-results.xlsx", assignmentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
