package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/events"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/validator"
)

// ResubmissionPolicy decides what happens when a part that is already graded
// is submitted again.
type ResubmissionPolicy string

const (
	// ResubmitReject fails the whole call and persists nothing (default).
	ResubmitReject ResubmissionPolicy = "reject"
	// ResubmitOverwrite regrades the part and replaces its stored result.
	ResubmitOverwrite ResubmissionPolicy = "overwrite"
)

type submissionService struct {
	repo             repositories.Repository
	db               *gorm.DB
	logger           *slog.Logger
	validator        *validator.Validator
	publisher        events.EventPublisher
	resubmitPolicy   ResubmissionPolicy
	completionPolicy CompletionPolicy

	now func() time.Time
}

func NewSubmissionService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	publisher events.EventPublisher,
	resubmitPolicy ResubmissionPolicy,
	completionPolicy CompletionPolicy,
) SubmissionService {
	if resubmitPolicy != ResubmitOverwrite {
		resubmitPolicy = ResubmitReject
	}
	return &submissionService{
		repo:             repo,
		db:               db,
		logger:           logger,
		validator:        v,
		publisher:        publisher,
		resubmitPolicy:   resubmitPolicy,
		completionPolicy: completionPolicy,
		now:              time.Now,
	}
}

// targetKey identifies a grading target inside one submission.
func targetKey(subAssignmentID *uint) string {
	if subAssignmentID == nil {
		return "parent"
	}
	return strconv.FormatUint(uint64(*subAssignmentID), 10)
}

// decodedPart pairs a submitted part with its resolved target.
type decodedPart struct {
	index  int
	target models.GradingTarget
	input  SubmittedPart
}

// Submit grades the submitted parts and folds them into the single submission
// record for the (student, assignment) pair.
func (s *submissionService) Submit(ctx context.Context, studentID string, req *SubmitAssignmentRequest) (*SubmitResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("", err.Error())
	}

	assignment, err := s.repo.Assignment().GetByID(ctx, nil, req.AssignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	targets, err := ResolveTargets(assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve grading targets: %w", err)
	}
	targetsByKey := make(map[string]models.GradingTarget, len(targets))
	for _, t := range targets {
		targetsByKey[targetKey(t.SubAssignmentID)] = t
	}

	decoded, skipped := s.decodeParts(ctx, studentID, req.Parts, targetsByKey)
	if len(decoded) == 0 {
		return nil, NewMalformedPayloadError("no gradable parts in payload")
	}

	var (
		submission *models.Submission
		graded     []models.PartResult
	)

	submitTx := func(txRepo repositories.Repository) error {
		now := s.now()

		existing, err := txRepo.Submission().GetByStudentAndAssignmentForUpdate(ctx, nil, studentID, req.AssignmentID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to load submission: %w", err)
		}
		if repositories.IsNotFoundError(err) {
			existing = nil
		}

		if err := checkTimeWindow(assignment, existing, now); err != nil {
			return err
		}

		var stored []models.PartResult
		if existing != nil {
			stored, err = existing.PartResults()
			if err != nil {
				return err
			}
		}

		storedByKey := make(map[string]int, len(stored))
		for i, p := range stored {
			storedByKey[targetKey(p.SubAssignmentID)] = i
		}

		if s.resubmitPolicy == ResubmitReject {
			var duplicates []string
			for _, d := range decoded {
				key := targetKey(d.target.SubAssignmentID)
				if _, ok := storedByKey[key]; ok {
					duplicates = append(duplicates, d.target.Name)
				}
			}
			if len(duplicates) > 0 {
				return NewDuplicatePartError(duplicates)
			}
		}

		graded = graded[:0]
		for _, d := range decoded {
			result := GradePart(d.target, d.input, now)
			graded = append(graded, result)

			key := targetKey(d.target.SubAssignmentID)
			if idx, ok := storedByKey[key]; ok {
				stored[idx] = result
			} else {
				storedByKey[key] = len(stored)
				stored = append(stored, result)
			}
		}

		if existing == nil {
			existing = &models.Submission{
				StudentID:    studentID,
				AssignmentID: req.AssignmentID,
				StartedAt:    &now,
			}
			if assignment.TimeLimitMinutes != nil {
				deadline := now.Add(time.Duration(*assignment.TimeLimitMinutes) * time.Minute)
				existing.MustSubmitBy = &deadline
			}
		}

		existing.SubmittedAt = now
		if err := existing.SetPartResults(stored); err != nil {
			return err
		}

		if existing.ID == 0 {
			if err := txRepo.Submission().Create(ctx, nil, existing); err != nil {
				return err
			}
		} else if err := txRepo.Submission().Update(ctx, nil, existing); err != nil {
			return err
		}

		submission = existing
		return nil
	}

	txErr := s.repo.WithTransaction(ctx, submitTx)
	if repositories.IsDuplicateKeyError(txErr) {
		// FOR UPDATE cannot lock a row that does not exist yet, so two
		// concurrent first attempts can both reach the insert. The unique
		// index on the pair fails the loser; the winner's row is readable
		// now, so one retry merges into it under the lock.
		s.logger.WarnContext(ctx, "lost first-submission insert race, retrying",
			"student_id", studentID,
			"assignment_id", req.AssignmentID)
		txErr = s.repo.WithTransaction(ctx, submitTx)
	}
	if txErr != nil {
		return nil, txErr
	}

	completed := IsComplete(assignment, submission, s.completionPolicy)

	s.logger.Info("submission graded",
		"student_id", studentID,
		"assignment_id", req.AssignmentID,
		"graded_parts", len(graded),
		"skipped_parts", len(skipped),
		"overall_progress", submission.OverallProgress,
		"completed", completed)

	s.publishGraded(ctx, assignment, submission, graded, completed)

	return &SubmitResult{
		Submission:   submission,
		Parts:        graded,
		SkippedParts: skipped,
		Completed:    completed,
	}, nil
}

// decodeParts decodes each raw part on its own so a single malformed entry is
// skipped with a warning instead of voiding the whole request. Parts that
// resolve to no known target are skipped the same way.
func (s *submissionService) decodeParts(
	ctx context.Context,
	studentID string,
	raw []json.RawMessage,
	targetsByKey map[string]models.GradingTarget,
) ([]decodedPart, []SkippedPart) {
	var decoded []decodedPart
	var skipped []SkippedPart

	for i, rawPart := range raw {
		var part SubmittedPartRequest
		if err := json.Unmarshal(rawPart, &part); err != nil {
			s.logger.WarnContext(ctx, "skipping malformed submission part",
				"student_id", studentID,
				"part_index", i,
				"error", err)
			skipped = append(skipped, SkippedPart{Index: i, Reason: SkipReasonMalformedPayload})
			continue
		}

		// A sub id with no matching target is skipped, not rescored against
		// another target; the sub may have been deleted mid-attempt.
		target, ok := targetsByKey[targetKey(part.SubAssignmentID)]
		if !ok {
			s.logger.WarnContext(ctx, "skipping part with unknown target",
				"student_id", studentID,
				"part_index", i,
				"sub_assignment_id", part.SubAssignmentID)
			skipped = append(skipped, SkippedPart{
				Index:           i,
				SubAssignmentID: part.SubAssignmentID,
				Reason:          SkipReasonUnknownTarget,
			})
			continue
		}

		answers := make([]SubmittedAnswer, 0, len(part.DynamicAnswers))
		for _, a := range part.DynamicAnswers {
			answers = append(answers, SubmittedAnswer{QuestionText: a.QuestionText, Answer: a.Answer})
		}

		decoded = append(decoded, decodedPart{
			index:  i,
			target: target,
			input: SubmittedPart{
				SubAssignmentID: target.SubAssignmentID,
				Values:          part.StructuredKey,
				Answers:         answers,
			},
		})
	}
	return decoded, skipped
}

// checkTimeWindow enforces the availability window and, once a deadline is
// stamped, the per-attempt time limit. Runs before any grading.
func checkTimeWindow(assignment *models.Assignment, submission *models.Submission, now time.Time) error {
	if assignment.WindowStart != nil && now.Before(*assignment.WindowStart) {
		return NewTimeViolationError(TimeWindowNotOpen, *assignment.WindowStart)
	}
	if assignment.WindowEnd != nil && now.After(*assignment.WindowEnd) {
		return NewTimeViolationError(TimeWindowClosed, *assignment.WindowEnd)
	}
	if submission != nil && submission.MustSubmitBy != nil && now.After(*submission.MustSubmitBy) {
		return NewTimeViolationError(TimeLimitExceeded, *submission.MustSubmitBy)
	}
	return nil
}

func (s *submissionService) publishGraded(ctx context.Context, assignment *models.Assignment, submission *models.Submission, graded []models.PartResult, completed bool) {
	if s.publisher == nil {
		return
	}

	gradedNames := make([]string, len(graded))
	for i, p := range graded {
		gradedNames[i] = p.SubModuleName
	}

	event := events.NewEvent(events.TypeSubmissionGraded, events.SubmissionGradedEvent{
		SubmissionID:    submission.ID,
		StudentID:       submission.StudentID,
		AssignmentID:    submission.AssignmentID,
		Category:        assignment.Category,
		GradedParts:     gradedNames,
		TotalCorrect:    submission.TotalCorrect,
		TotalWrong:      submission.TotalWrong,
		OverallProgress: submission.OverallProgress,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish submission graded event", "error", err)
	}

	if !completed {
		return
	}
	event = events.NewEvent(events.TypeAssignmentCompleted, events.AssignmentCompletedEvent{
		StudentID:       submission.StudentID,
		AssignmentID:    submission.AssignmentID,
		Category:        assignment.Category,
		OverallProgress: submission.OverallProgress,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish assignment completed event", "error", err)
	}
}

func (s *submissionService) GetSubmission(ctx context.Context, studentID string, assignmentID uint) (*models.Submission, error) {
	submission, err := s.repo.Submission().GetByStudentAndAssignment(ctx, nil, studentID, assignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return submission, nil
}

// GetReview lays the stored results next to the answer definitions for every
// grading target, including targets the student has not covered yet.
func (s *submissionService) GetReview(ctx context.Context, studentID string, assignmentID uint) (*SubmissionReview, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, nil, assignmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	targets, err := ResolveTargets(assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve grading targets: %w", err)
	}

	review := &SubmissionReview{
		AssignmentID: assignment.ID,
		ModuleName:   assignment.ModuleName,
		Category:     assignment.Category,
		StudentID:    studentID,
	}

	var parts []models.PartResult
	submission, err := s.repo.Submission().GetByStudentAndAssignment(ctx, nil, studentID, assignmentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if err == nil {
		parts, err = submission.PartResults()
		if err != nil {
			return nil, err
		}
		review.SubmittedAt = &submission.SubmittedAt
		review.OverallProgress = submission.OverallProgress
		review.Completed = IsComplete(assignment, submission, s.completionPolicy)
	}

	resultsByKey := make(map[string]models.PartResult, len(parts))
	for _, p := range parts {
		resultsByKey[targetKey(p.SubAssignmentID)] = p
	}

	for _, t := range targets {
		pr := PartReview{
			SubAssignmentID: t.SubAssignmentID,
			Name:            t.Name,
			Mode:            ResolveMode(t.Definition),
			ExpectedKey:     t.Definition.Key,
			Questions:       GradableQuestions(t.Definition.Questions),
		}
		if result, ok := resultsByKey[targetKey(t.SubAssignmentID)]; ok {
			r := result
			pr.Result = &r
		}
		review.Parts = append(review.Parts, pr)
	}
	return review, nil
}

// GetStudentOverview lists every assignment the student has submitted to,
// with per-sub coverage flags.
func (s *submissionService) GetStudentOverview(ctx context.Context, studentID string) ([]*SubmittedAssignmentOverview, error) {
	submissions, _, err := s.repo.Submission().GetByStudent(ctx, nil, studentID, repositories.SubmissionFilters{
		Limit:     100,
		SortBy:    "submitted_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	overviews := make([]*SubmittedAssignmentOverview, 0, len(submissions))
	for _, submission := range submissions {
		assignment, err := s.repo.Assignment().GetByID(ctx, nil, submission.AssignmentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				// Assignment deleted after submission; skip the orphan row.
				continue
			}
			return nil, fmt.Errorf("failed to load assignment: %w", err)
		}

		parts, err := submission.PartResults()
		if err != nil {
			return nil, err
		}
		resultsByKey := make(map[string]models.PartResult, len(parts))
		for _, p := range parts {
			resultsByKey[targetKey(p.SubAssignmentID)] = p
		}

		overview := &SubmittedAssignmentOverview{
			AssignmentID:    assignment.ID,
			ModuleName:      assignment.ModuleName,
			Category:        assignment.Category,
			SubmittedAt:     submission.SubmittedAt,
			OverallProgress: submission.OverallProgress,
			Completed:       IsComplete(assignment, submission, s.completionPolicy),
		}
		for _, sub := range assignment.SubAssignments {
			id := sub.ID
			status := SubPartStatus{SubAssignmentID: id, SubModuleName: sub.SubModuleName}
			if result, ok := resultsByKey[targetKey(&id)]; ok {
				status.Covered = true
				status.ProgressPercent = result.ProgressPercent
			}
			overview.SubParts = append(overview.SubParts, status)
		}
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

// Delete removes a submission record. Destructive and admin-only; reads
// tolerate the gap by treating the missing record as "nothing submitted yet".
func (s *submissionService) Delete(ctx context.Context, submissionID uint, actorID string) error {
	submission, err := s.repo.Submission().GetByID(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("failed to get submission: %w", err)
	}

	if err := s.repo.Submission().Delete(ctx, nil, submissionID); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	s.logger.Info("submission deleted",
		"submission_id", submissionID,
		"student_id", submission.StudentID,
		"assignment_id", submission.AssignmentID,
		"actor_id", actorID)
	return nil
}
