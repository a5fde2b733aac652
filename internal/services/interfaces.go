package services

import (
	"context"
	"time"

	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/validator"
)

// ===== REQUEST TYPES (validated DTOs live in the validator package) =====

type SubmitAssignmentRequest = validator.SubmitAssignmentRequest
type SubmittedPartRequest = validator.SubmittedPartRequest
type SubmittedAnswerRequest = validator.SubmittedAnswerRequest
type CreateAssignmentRequest = validator.CreateAssignmentRequest
type UpdateAssignmentRequest = validator.UpdateAssignmentRequest
type CreateSubAssignmentRequest = validator.CreateSubAssignmentRequest
type AnswerKeyRequest = validator.AnswerKeyRequest
type DynamicQuestionRequest = validator.DynamicQuestionRequest

// ===== RESPONSE TYPES =====

// Skip reasons reported on SubmitResult.SkippedParts.
const (
	SkipReasonUnknownTarget    = "unknown_sub_assignment"
	SkipReasonMalformedPayload = "malformed_payload"
)

type SkippedPart struct {
	Index           int    `json:"index"`
	SubAssignmentID *uint  `json:"sub_assignment_id,omitempty"`
	Reason          string `json:"reason"`
}

type SubmitResult struct {
	Submission   *models.Submission  `json:"submission"`
	Parts        []models.PartResult `json:"parts"`
	SkippedParts []SkippedPart       `json:"skipped_parts,omitempty"`
	Completed    bool                `json:"completed"`
}

// AssignmentWithStatus decorates an assignment with one student's standing.
type AssignmentWithStatus struct {
	Assignment      *models.Assignment `json:"assignment"`
	Submitted       bool               `json:"submitted"`
	Completed       bool               `json:"completed"`
	OverallProgress int                `json:"overall_progress"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
}

// PartReview pairs a grading target's expectations with the stored result.
type PartReview struct {
	SubAssignmentID *uint                    `json:"sub_assignment_id,omitempty"`
	Name            string                   `json:"name"`
	Mode            GradingMode              `json:"mode"`
	ExpectedKey     models.StructuredKey     `json:"expected_key"`
	Questions       []models.DynamicQuestion `json:"questions,omitempty"`
	Result          *models.PartResult       `json:"result,omitempty"`
}

type SubmissionReview struct {
	AssignmentID    uint         `json:"assignment_id"`
	ModuleName      string       `json:"module_name"`
	Category        string       `json:"category"`
	StudentID       string       `json:"student_id"`
	SubmittedAt     *time.Time   `json:"submitted_at,omitempty"`
	OverallProgress int          `json:"overall_progress"`
	Completed       bool         `json:"completed"`
	Parts           []PartReview `json:"parts"`
}

// SubPartStatus is one sub-assignment's coverage inside an overview row.
type SubPartStatus struct {
	SubAssignmentID uint   `json:"sub_assignment_id"`
	SubModuleName   string `json:"sub_module_name"`
	Covered         bool   `json:"covered"`
	ProgressPercent int    `json:"progress_percent"`
}

type SubmittedAssignmentOverview struct {
	AssignmentID    uint            `json:"assignment_id"`
	ModuleName      string          `json:"module_name"`
	Category        string          `json:"category"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	OverallProgress int             `json:"overall_progress"`
	Completed       bool            `json:"completed"`
	SubParts        []SubPartStatus `json:"sub_parts,omitempty"`
}

// AssignmentStat is one per-assignment row of a category roll-up.
type AssignmentStat struct {
	AssignmentID    uint       `json:"assignment_id"`
	ModuleName      string     `json:"module_name"`
	Submitted       bool       `json:"submitted"`
	Completed       bool       `json:"completed"`
	OverallProgress int        `json:"overall_progress"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
}

type CategoryStatsResponse struct {
	Category      string           `json:"category"`
	TotalAssigned int              `json:"total_assigned"`
	Completed     int              `json:"completed"`
	Pending       int              `json:"pending"`
	AverageScore  float64          `json:"average_score"`
	Assignments   []AssignmentStat `json:"assignments,omitempty"`
}

// ===== SERVICE INTERFACES =====

// AssignmentService covers the read surface plus the admin authoring CRUD.
type AssignmentService interface {
	Create(ctx context.Context, req *CreateAssignmentRequest, creatorID string) (*models.Assignment, error)
	Update(ctx context.Context, id uint, req *UpdateAssignmentRequest, userID string) (*models.Assignment, error)
	Delete(ctx context.Context, id uint, userID string) error
	DeleteSubAssignment(ctx context.Context, assignmentID, subID uint, userID string) error

	GetByID(ctx context.Context, id uint) (*models.Assignment, error)
	List(ctx context.Context, filters repositories.AssignmentFilters) ([]*models.Assignment, int64, error)
	ListCategories(ctx context.Context) ([]string, error)
	CountByCategory(ctx context.Context, category string) (int64, error)
	GetByCategoryForStudent(ctx context.Context, category, studentID string) ([]*AssignmentWithStatus, error)
}

// SubmissionService grades and stores; one submission per (student, assignment).
type SubmissionService interface {
	Submit(ctx context.Context, studentID string, req *SubmitAssignmentRequest) (*SubmitResult, error)
	GetSubmission(ctx context.Context, studentID string, assignmentID uint) (*models.Submission, error)
	GetReview(ctx context.Context, studentID string, assignmentID uint) (*SubmissionReview, error)
	GetStudentOverview(ctx context.Context, studentID string) ([]*SubmittedAssignmentOverview, error)
	Delete(ctx context.Context, submissionID uint, actorID string) error
}

// ProgressService classifies completion and rolls category statistics.
type ProgressService interface {
	IsAssignmentComplete(ctx context.Context, studentID string, assignmentID uint) (bool, error)
	CategoryStats(ctx context.Context, category, studentID string) (*CategoryStatsResponse, error)
	DetailedCategoryStats(ctx context.Context, category, studentID string) (*CategoryStatsResponse, error)
}

// ReportService exports statistics as spreadsheets for admins.
type ReportService interface {
	ExportCategoryStats(ctx context.Context, category, studentID string) ([]byte, error)
	ExportAssignmentResults(ctx context.Context, assignmentID uint) ([]byte, error)
}

// ServiceManager aggregates all services behind one handle.
type ServiceManager interface {
	Assignment() AssignmentService
	Submission() SubmissionService
	Progress() ProgressService
	Report() ReportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
