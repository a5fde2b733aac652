package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateAssignmentCache drops every cached view of one assignment,
// including the category roll-ups it feeds.
func InvalidateAssignmentCache(ctx context.Context, cm *CacheManager, assignmentID uint, category string) {
	SafeDelete(ctx, cm.Assignment,
		fmt.Sprintf("id:%d", assignmentID))

	SafeInvalidatePattern(ctx, cm.Assignment, "list:*")
	SafeInvalidatePattern(ctx, cm.Assignment, fmt.Sprintf("category:%s:*", category))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("category:%s:*", category))
}

// InvalidateSubmissionCache drops a student's cached submission views after a
// grade is written. Stats for the student go with it; the roll-up reads
// through submissions.
func InvalidateSubmissionCache(ctx context.Context, cm *CacheManager, studentID string, assignmentID uint) {
	SafeDelete(ctx, cm.Submission,
		fmt.Sprintf("pair:%s:%d", studentID, assignmentID))

	SafeInvalidatePattern(ctx, cm.Submission, fmt.Sprintf("student:%s:*", studentID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("category:*:student:%s", studentID))
}
