package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/cache"
	"github.com/medcode-academy/assignment-service/internal/events"
	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/validator"
)

// ServiceManagerConfig holds the policy knobs threaded through the services.
type ServiceManagerConfig struct {
	ResubmissionPolicy ResubmissionPolicy
	Completion         CompletionPolicy

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager
type serviceManager struct {
	db           *gorm.DB
	repo         repositories.Repository
	logger       *slog.Logger
	validator    *validator.Validator
	publisher    events.EventPublisher
	cacheManager *cache.CacheManager
	config       ServiceManagerConfig

	assignmentService AssignmentService
	submissionService SubmissionService
	progressService   ProgressService
	reportService     ReportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	cacheManager *cache.CacheManager,
	config ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		db:           db,
		repo:         repo,
		logger:       logger,
		validator:    v,
		publisher:    publisher,
		cacheManager: cacheManager,
		config:       config,
	}
}

// NewDefaultServiceManager creates a service manager with default policies:
// resubmissions rejected, lenient completion with the legacy count fallback.
func NewDefaultServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	cacheManager *cache.CacheManager,
) ServiceManager {
	config := ServiceManagerConfig{
		ResubmissionPolicy: ResubmitReject,
		Completion: CompletionPolicy{
			RequireFullScore: false,
			CountFallback:    true,
		},
		DefaultTimeout: 30 * time.Second,
	}
	return NewServiceManager(db, repo, logger, v, publisher, cacheManager, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.progressService = NewProgressService(sm.repo, sm.db, sm.logger, sm.cacheManager, sm.config.Completion)
	sm.assignmentService = NewAssignmentService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher, sm.config.Completion)
	sm.submissionService = NewSubmissionService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher, sm.config.ResubmissionPolicy, sm.config.Completion)
	sm.reportService = NewReportService(sm.repo, sm.progressService, sm.logger)

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) Assignment() AssignmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.assignmentService
}

func (sm *serviceManager) Submission() SubmissionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.submissionService
}

func (sm *serviceManager) Progress() ProgressService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.progressService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.reportService
}

// HealthCheck verifies the manager and its backing stores are usable.
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	return sm.repo.Ping(ctx)
}

// Shutdown releases held resources. Idempotent.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	return nil
}
