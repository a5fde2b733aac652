package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/services"
	"github.com/medcode-academy/assignment-service/internal/utils"
)

type SubmissionHandler struct {
	BaseHandler
	serviceManager services.ServiceManager
}

func NewSubmissionHandler(serviceManager services.ServiceManager, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:    NewBaseHandler(logger),
		serviceManager: serviceManager,
	}
}

// Submit handles POST /submissions: grades the posted parts and stores the
// caller's submission for the assignment.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	h.LogRequest(c, "grading submission")

	var req services.SubmitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body", Details: err.Error()})
		return
	}

	studentID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return
	}

	result, err := h.serviceManager.Submission().Submit(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSubmission handles GET /assignments/:id/submission for the caller.
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	studentID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return
	}

	submission, err := h.serviceManager.Submission().GetSubmission(c.Request.Context(), studentID, assignmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// GetReview handles GET /assignments/:id/review: stored results side by side
// with the answer key targets. Admins may review another student via the
// student_id query param.
func (h *SubmissionHandler) GetReview(c *gin.Context) {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid assignment id"})
		return
	}

	studentID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return
	}
	if target := c.Query("student_id"); target != "" && target != studentID {
		if !h.IsAdmin(c) {
			c.JSON(http.StatusForbidden, ErrorResponse{Message: "insufficient permissions"})
			return
		}
		studentID = target
	}

	review, err := h.serviceManager.Submission().GetReview(c.Request.Context(), studentID, assignmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// GetStudentOverview handles GET /submissions: every submission of the caller
// with per-sub-assignment coverage.
func (h *SubmissionHandler) GetStudentOverview(c *gin.Context) {
	studentID, ok := h.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
		return
	}

	overview, err := h.serviceManager.Submission().GetStudentOverview(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": overview})
}

// Delete handles DELETE /submissions/:id (admin).
func (h *SubmissionHandler) Delete(c *gin.Context) {
	h.LogRequest(c, "deleting submission")

	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid submission id"})
		return
	}

	actorID, _ := h.CurrentUserID(c)
	if err := h.serviceManager.Submission().Delete(c.Request.Context(), submissionID, actorID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "submission deleted"})
}
