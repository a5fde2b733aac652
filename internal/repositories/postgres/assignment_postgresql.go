package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/cache"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
)

type AssignmentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager

	// pending is set for transaction-scoped instances; invalidations queue
	// there and run after commit.
	pending *cache.PendingInvalidations
}

func NewAssignmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssignmentRepository {
	return &AssignmentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func newAssignmentPostgreSQLTx(tx *gorm.DB, redisClient *redis.Client, pending *cache.PendingInvalidations) repositories.AssignmentRepository {
	return &AssignmentPostgreSQL{
		db:           tx,
		cacheManager: cache.NewCacheManager(redisClient),
		pending:      pending,
	}
}

// invalidate drops the assignment's cached views, deferred to commit when
// running inside a transaction.
func (a *AssignmentPostgreSQL) invalidate(ctx context.Context, assignmentID uint, category string) {
	if a.pending != nil {
		a.pending.Add(func(ctx context.Context) {
			cache.InvalidateAssignmentCache(ctx, a.cacheManager, assignmentID, category)
		})
		return
	}
	cache.InvalidateAssignmentCache(ctx, a.cacheManager, assignmentID, category)
}

func (a *AssignmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AssignmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, assignment *models.Assignment) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(assignment).Error; err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	a.invalidate(ctx, assignment.ID, assignment.Category)
	return nil
}

func (a *AssignmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var assignment models.Assignment

	err := a.cacheManager.Assignment.CacheOrExecute(ctx, cacheKey, &assignment, cache.AssignmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssignment models.Assignment
		if err := db.WithContext(ctx).
			Preload("SubAssignments", func(db *gorm.DB) *gorm.DB {
				return db.Order("sub_assignments.\"order\" ASC, sub_assignments.id ASC")
			}).
			First(&dbAssignment, id).Error; err != nil {
			return nil, err
		}
		return &dbAssignment, nil
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (a *AssignmentPostgreSQL) Update(ctx context.Context, tx *gorm.DB, assignment *models.Assignment) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(assignment).Error; err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	a.invalidate(ctx, assignment.ID, assignment.Category)
	return nil
}

func (a *AssignmentPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := a.getDB(tx)
	var assignment models.Assignment
	if err := db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(&assignment).Error; err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	a.invalidate(ctx, id, assignment.Category)
	return nil
}

func (a *AssignmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AssignmentFilters) ([]*models.Assignment, int64, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Assignment{})

	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count assignments: %w", err)
	}

	query = applySortAndPage(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		map[string]bool{"created_at": true, "module_name": true, "category": true})

	var assignments []*models.Assignment
	if err := query.Preload("SubAssignments").Find(&assignments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, total, nil
}

func (a *AssignmentPostgreSQL) GetByCategory(ctx context.Context, tx *gorm.DB, category string) ([]*models.Assignment, error) {
	db := a.getDB(tx)
	var assignments []*models.Assignment
	if err := db.WithContext(ctx).
		Where("category = ?", category).
		Preload("SubAssignments").
		Order("created_at ASC").
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to get assignments by category: %w", err)
	}
	return assignments, nil
}

func (a *AssignmentPostgreSQL) CountByCategory(ctx context.Context, tx *gorm.DB, category string) (int64, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("category = ?", category).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments by category: %w", err)
	}
	return count, nil
}

func (a *AssignmentPostgreSQL) ListCategories(ctx context.Context, tx *gorm.DB) ([]string, error) {
	db := a.getDB(tx)
	var categories []string
	err := db.WithContext(ctx).
		Model(&models.Assignment{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (a *AssignmentPostgreSQL) GetSubAssignment(ctx context.Context, tx *gorm.DB, assignmentID, subID uint) (*models.SubAssignment, error) {
	db := a.getDB(tx)
	var sub models.SubAssignment
	if err := db.WithContext(ctx).
		Where("assignment_id = ? AND id = ?", assignmentID, subID).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (a *AssignmentPostgreSQL) DeleteSubAssignment(ctx context.Context, tx *gorm.DB, assignmentID, subID uint) error {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Where("assignment_id = ? AND id = ?", assignmentID, subID).
		Delete(&models.SubAssignment{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete sub-assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	var assignment models.Assignment
	if err := db.WithContext(ctx).Select("id", "category").First(&assignment, assignmentID).Error; err == nil {
		a.invalidate(ctx, assignmentID, assignment.Category)
	}
	return nil
}

// applySortAndPage applies whitelisted sorting plus limit/offset defaults.
func applySortAndPage(query *gorm.DB, sortBy, sortOrder string, limit, offset int, allowed map[string]bool) *gorm.DB {
	if !allowed[sortBy] {
		sortBy = "created_at"
	}
	if strings.ToLower(sortOrder) != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return query.Limit(limit).Offset(offset)
}
