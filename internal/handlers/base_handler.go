package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/services"
	"github.com/medcode-academy/assignment-service/internal/utils"
	"github.com/medcode-academy/assignment-service/internal/validator"
)

// ErrorResponse is the uniform error body for the HTTP surface.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs the start of a handler with the request-scoped logger.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string) {
	utils.GetLogger(c, h.logger).Info(msg,
		"method", c.Request.Method,
		"path", c.Request.URL.Path)
}

// CurrentUserID returns the authenticated user's id from the context.
func (h *BaseHandler) CurrentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	return userID, userID != ""
}

// IsAdmin reports whether the authenticated user carries the admin role.
func (h *BaseHandler) IsAdmin(c *gin.Context) bool {
	role, exists := c.Get("user_role")
	if !exists {
		return false
	}
	userRole, ok := role.(models.UserRole)
	return ok && userRole == models.RoleAdmin
}

// handleServiceError maps domain errors onto HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var (
		validationErr    *services.ValidationError
		validationErrs   validator.ValidationErrors
		permissionErr    *services.PermissionError
		timeViolationErr *services.TimeViolationError
		duplicateErr     *services.DuplicatePartError
		malformedErr     *services.MalformedPayloadError
	)

	switch {
	case services.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: validationErr.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "validation failed", Details: validationErrs})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: duplicateErr.Error(), Details: duplicateErr.Parts})
	case errors.As(err, &malformedErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: malformedErr.Error()})
	case errors.As(err, &timeViolationErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: timeViolationErr.Error(), Details: string(timeViolationErr.Reason)})
	case errors.As(err, &permissionErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: permissionErr.Error()})
	default:
		utils.GetLogger(c, h.logger).Error("internal error", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
	}
}
