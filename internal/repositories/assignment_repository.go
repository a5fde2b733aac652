package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/models"
)

type AssignmentFilters struct {
	Category  *string    `json:"category"`
	CreatedBy *string    `json:"created_by"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "module_name", "category"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

// AssignmentRepository handles assignments and their sub-assignments. The tx
// parameter joins an outer transaction when non-nil.
type AssignmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assignment *models.Assignment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error)
	Update(ctx context.Context, tx *gorm.DB, assignment *models.Assignment) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters AssignmentFilters) ([]*models.Assignment, int64, error)
	GetByCategory(ctx context.Context, tx *gorm.DB, category string) ([]*models.Assignment, error)
	CountByCategory(ctx context.Context, tx *gorm.DB, category string) (int64, error)
	ListCategories(ctx context.Context, tx *gorm.DB) ([]string, error)

	// Sub-assignment operations
	GetSubAssignment(ctx context.Context, tx *gorm.DB, assignmentID, subID uint) (*models.SubAssignment, error)
	DeleteSubAssignment(ctx context.Context, tx *gorm.DB, assignmentID, subID uint) error
}
