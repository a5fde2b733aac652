package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/models"
)

type SubmissionFilters struct {
	StudentID    *string    `json:"student_id"`
	AssignmentID *uint      `json:"assignment_id"`
	DateFrom     *time.Time `json:"date_from"`
	DateTo       *time.Time `json:"date_to"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
	SortBy       string     `json:"sort_by"`
	SortOrder    string     `json:"sort_order"`
}

// SubmissionRepository handles the single-submission-per-pair records.
type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByStudentAndAssignment(ctx context.Context, tx *gorm.DB, studentID string, assignmentID uint) (*models.Submission, error)

	// GetByStudentAndAssignmentForUpdate takes a row-level lock on the pair's
	// submission row. Must run inside a transaction.
	GetByStudentAndAssignmentForUpdate(ctx context.Context, tx *gorm.DB, studentID string, assignmentID uint) (*models.Submission, error)

	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// GetLatestForAssignments returns, per assignment id, the student's most
	// recent submission by submitted_at.
	GetLatestForAssignments(ctx context.Context, tx *gorm.DB, studentID string, assignmentIDs []uint) (map[uint]*models.Submission, error)
}
