package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/config"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/services"
	"github.com/medcode-academy/assignment-service/internal/utils"
)

// HandlerManager owns the HTTP handlers and wires them onto the router.
type HandlerManager struct {
	serviceManager services.ServiceManager
	logger         utils.Logger

	auth       *CasdoorAuthMiddleware
	assignment *AssignmentHandler
	submission *SubmissionHandler
	progress   *ProgressHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		serviceManager: serviceManager,
		logger:         logger,
		auth:           NewCasdoorAuthMiddleware(casdoorConfig, userRepo, logger),
		assignment:     NewAssignmentHandler(serviceManager, logger),
		submission:     NewSubmissionHandler(serviceManager, logger),
		progress:       NewProgressHandler(serviceManager, logger),
	}
}

// SetupRoutes registers every route. Everything under /api/v1 requires a
// valid token; admin-only routes add a role check on top.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.auth.AuthMiddleware())

	adminOnly := hm.auth.RequireRoleMiddleware(models.RoleAdmin)

	assignments := v1.Group("/assignments")
	{
		assignments.GET("", hm.assignment.List)
		assignments.GET("/categories", hm.assignment.ListCategories)
		assignments.GET("/categories/:category", hm.assignment.GetByCategoryForStudent)
		assignments.GET("/categories/:category/count", hm.assignment.CountByCategory)
		assignments.GET("/:id", hm.assignment.Get)
		assignments.GET("/:id/submission", hm.submission.GetSubmission)
		assignments.GET("/:id/review", hm.submission.GetReview)

		assignments.POST("", adminOnly, hm.assignment.Create)
		assignments.PUT("/:id", adminOnly, hm.assignment.Update)
		assignments.DELETE("/:id", adminOnly, hm.assignment.Delete)
		assignments.DELETE("/:id/sub-assignments/:sub_id", adminOnly, hm.assignment.DeleteSubAssignment)
	}

	submissions := v1.Group("/submissions")
	{
		submissions.POST("", hm.submission.Submit)
		submissions.GET("", hm.submission.GetStudentOverview)
		submissions.DELETE("/:id", adminOnly, hm.submission.Delete)
	}

	progress := v1.Group("/progress")
	{
		progress.GET("/assignments/:id/complete", hm.progress.IsComplete)
		progress.GET("/categories/:category", hm.progress.CategoryStats)
		progress.GET("/categories/:category/detailed", hm.progress.DetailedCategoryStats)
	}

	reports := v1.Group("/reports", adminOnly)
	{
		reports.GET("/categories/:category", hm.progress.ExportCategoryStats)
		reports.GET("/assignments/:id", hm.progress.ExportAssignmentResults)
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "assignment-service"})
}
