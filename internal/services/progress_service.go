package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/cache"
	"github.com/medcode-academy/assignment-service/internal/repositories"
)

type progressService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	cacheManager *cache.CacheManager
	policy       CompletionPolicy
}

func NewProgressService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, cacheManager *cache.CacheManager, policy CompletionPolicy) ProgressService {
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(nil)
	}
	return &progressService{
		repo:         repo,
		db:           db,
		logger:       logger,
		cacheManager: cacheManager,
		policy:       policy,
	}
}

func (s *progressService) IsAssignmentComplete(ctx context.Context, studentID string, assignmentID uint) (bool, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, nil, assignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAssignmentNotFound
		}
		return false, fmt.Errorf("failed to load assignment: %w", err)
	}

	submission, err := s.repo.Submission().GetByStudentAndAssignment(ctx, nil, studentID, assignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// No record means nothing submitted yet, never an error.
			return false, nil
		}
		return false, fmt.Errorf("failed to get submission: %w", err)
	}

	return IsComplete(assignment, submission, s.policy), nil
}

func (s *progressService) CategoryStats(ctx context.Context, category, studentID string) (*CategoryStatsResponse, error) {
	normalized := NormalizeCategory(category)
	cacheKey := fmt.Sprintf("category:%s:student:%s", normalized, studentID)

	var stats CategoryStatsResponse
	err := s.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		return s.computeCategoryStats(ctx, normalized, studentID, false)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// DetailedCategoryStats adds the per-assignment rows; never cached, the
// detail view is an admin/debug surface.
func (s *progressService) DetailedCategoryStats(ctx context.Context, category, studentID string) (*CategoryStatsResponse, error) {
	return s.computeCategoryStats(ctx, NormalizeCategory(category), studentID, true)
}

func (s *progressService) computeCategoryStats(ctx context.Context, category, studentID string, detailed bool) (*CategoryStatsResponse, error) {
	assignments, err := s.repo.Assignment().GetByCategory(ctx, nil, category)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments by category: %w", err)
	}

	stats := &CategoryStatsResponse{Category: category}
	if len(assignments) == 0 {
		// Empty category rolls up to a zeroed summary, not an error.
		return stats, nil
	}
	stats.TotalAssigned = len(assignments)

	assignmentIDs := make([]uint, len(assignments))
	for i, a := range assignments {
		assignmentIDs[i] = a.ID
	}

	latest, err := s.repo.Submission().GetLatestForAssignments(ctx, nil, studentID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest submissions: %w", err)
	}

	var completedScores []int
	for _, assignment := range assignments {
		submission := latest[assignment.ID]
		completed := IsComplete(assignment, submission, s.policy)
		if completed {
			stats.Completed++
			if submission != nil {
				completedScores = append(completedScores, submission.OverallProgress)
			}
		}

		if detailed {
			row := AssignmentStat{
				AssignmentID: assignment.ID,
				ModuleName:   assignment.ModuleName,
				Completed:    completed,
			}
			if submission != nil {
				row.Submitted = true
				row.OverallProgress = submission.OverallProgress
				submittedAt := submission.SubmittedAt
				row.SubmittedAt = &submittedAt
			}
			stats.Assignments = append(stats.Assignments, row)
		}
	}

	stats.Pending = stats.TotalAssigned - stats.Completed

	// Average only over completed assignments, 2 decimal places.
	if len(completedScores) > 0 {
		sum := 0
		for _, score := range completedScores {
			sum += score
		}
		stats.AverageScore = roundFloat(float64(sum)/float64(len(completedScores)), 2)
	}

	s.logger.Debug("category stats computed",
		"category", category,
		"student_id", studentID,
		"total_assigned", stats.TotalAssigned,
		"completed", stats.Completed)
	return stats, nil
}
