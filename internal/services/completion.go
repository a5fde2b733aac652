package services

import (
	"github.com/medcode-academy/assignment-service/internal/models"
)

// CompletionPolicy is passed explicitly into every classification call. The
// zero value is the lenient reading: any score completes, no count fallback.
type CompletionPolicy struct {
	// RequireFullScore demands progress == 100 on every covering part.
	RequireFullScore bool
	// CountFallback lets a raw part count cover for legacy submissions whose
	// parts carry no sub-assignment ids. Ignored whenever ids are present.
	CountFallback bool
}

// IsComplete classifies one submission against its assignment. Tolerant of
// half-initialized records: a nil submission, undecodable parts or missing
// fields all read as "not complete", never a panic.
func IsComplete(assignment *models.Assignment, submission *models.Submission, policy CompletionPolicy) bool {
	if assignment == nil || submission == nil {
		return false
	}
	parts, err := submission.PartResults()
	if err != nil || len(parts) == 0 {
		return false
	}

	if !assignment.HasSubAssignments() {
		// Score is irrelevant here: a stored parent-level result is enough.
		for _, p := range parts {
			if p.SubAssignmentID == nil {
				return true
			}
		}
		return false
	}

	known := make(map[uint]bool, len(assignment.SubAssignments))
	for _, sub := range assignment.SubAssignments {
		known[sub.ID] = true
	}

	covered := make(map[uint]models.PartResult, len(parts))
	anyIDs := false
	for _, p := range parts {
		if p.SubAssignmentID == nil {
			continue
		}
		anyIDs = true
		if known[*p.SubAssignmentID] {
			covered[*p.SubAssignmentID] = p
		}
	}

	if len(covered) >= len(known) {
		if policy.RequireFullScore {
			for _, p := range covered {
				if p.ProgressPercent != 100 {
					return false
				}
			}
		}
		return true
	}

	// Legacy rescue: records written before part ids were stored can still
	// complete by raw count. Ids stay authoritative once any part has one.
	if policy.CountFallback && !anyIDs && len(parts) >= len(known) {
		if policy.RequireFullScore {
			for _, p := range parts {
				if p.ProgressPercent != 100 {
					return false
				}
			}
		}
		return true
	}
	return false
}
