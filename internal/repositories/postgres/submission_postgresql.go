package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medcode-academy/assignment-service/internal/cache"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager

	// pending is set for transaction-scoped instances; invalidations queue
	// there and run after commit.
	pending *cache.PendingInvalidations
}

func NewSubmissionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func newSubmissionPostgreSQLTx(tx *gorm.DB, redisClient *redis.Client, pending *cache.PendingInvalidations) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           tx,
		cacheManager: cache.NewCacheManager(redisClient),
		pending:      pending,
	}
}

// invalidate drops the pair's cached views, deferred to commit when running
// inside a transaction.
func (s *SubmissionPostgreSQL) invalidate(ctx context.Context, studentID string, assignmentID uint) {
	if s.pending != nil {
		s.pending.Add(func(ctx context.Context) {
			cache.InvalidateSubmissionCache(ctx, s.cacheManager, studentID, assignmentID)
		})
		return
	}
	cache.InvalidateSubmissionCache(ctx, s.cacheManager, studentID, assignmentID)
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	s.invalidate(ctx, submission.StudentID, submission.AssignmentID)
	return nil
}

func (s *SubmissionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Save(submission).Error; err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	s.invalidate(ctx, submission.StudentID, submission.AssignmentID)
	return nil
}

func (s *SubmissionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(&submission).Error; err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	s.invalidate(ctx, submission.StudentID, submission.AssignmentID)
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByStudentAndAssignment(ctx context.Context, tx *gorm.DB, studentID string, assignmentID uint) (*models.Submission, error) {
	db := s.getDB(tx)
	cacheKey := fmt.Sprintf("pair:%s:%d", studentID, assignmentID)
	var submission models.Submission

	err := s.cacheManager.Submission.CacheOrExecute(ctx, cacheKey, &submission, cache.SubmissionCacheConfig.TTL, func() (interface{}, error) {
		var dbSubmission models.Submission
		if err := db.WithContext(ctx).
			Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
			First(&dbSubmission).Error; err != nil {
			return nil, err
		}
		return &dbSubmission, nil
	})
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetByStudentAndAssignmentForUpdate locks the pair's row for the duration of
// the surrounding transaction. Never cached: the lock is the point.
func (s *SubmissionPostgreSQL) GetByStudentAndAssignmentForUpdate(ctx context.Context, tx *gorm.DB, studentID string, assignmentID uint) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	db := s.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Submission{}).Where("student_id = ?", studentID)

	if filters.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filters.AssignmentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = applySortAndPage(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		map[string]bool{"submitted_at": true, "created_at": true, "overall_progress": true})

	var submissions []*models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get submissions by student: %w", err)
	}
	return submissions, total, nil
}

func (s *SubmissionPostgreSQL) GetByAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	db := s.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Submission{}).Where("assignment_id = ?", assignmentID)

	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = applySortAndPage(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		map[string]bool{"submitted_at": true, "created_at": true, "overall_progress": true})

	var submissions []*models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get submissions by assignment: %w", err)
	}
	return submissions, total, nil
}

// GetLatestForAssignments keeps only the most recent submission per
// assignment, by submitted_at. One submission per pair is the schema's
// invariant already; this guards against legacy duplicates.
func (s *SubmissionPostgreSQL) GetLatestForAssignments(ctx context.Context, tx *gorm.DB, studentID string, assignmentIDs []uint) (map[uint]*models.Submission, error) {
	if len(assignmentIDs) == 0 {
		return map[uint]*models.Submission{}, nil
	}

	db := s.getDB(tx)
	var submissions []*models.Submission
	if err := db.WithContext(ctx).
		Where("student_id = ? AND assignment_id IN ?", studentID, assignmentIDs).
		Order("submitted_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to get latest submissions: %w", err)
	}

	latest := make(map[uint]*models.Submission, len(submissions))
	for _, sub := range submissions {
		prev, ok := latest[sub.AssignmentID]
		if !ok || sub.SubmittedAt.After(prev.SubmittedAt) {
			latest[sub.AssignmentID] = sub
		}
	}
	return latest, nil
}
