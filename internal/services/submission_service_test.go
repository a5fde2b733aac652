package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/medcode-academy/assignment-service/internal/events"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/validator"
)

func newTestSubmissionService(t *testing.T, repo *mockRepository, policy ResubmissionPolicy, now time.Time) (*submissionService, *events.MockEventPublisher) {
	t.Helper()
	publisher := events.NewMockEventPublisher(testLogger())
	svc := NewSubmissionService(repo, nil, testLogger(), validator.New(), publisher, policy, CompletionPolicy{CountFallback: true})
	concrete := svc.(*submissionService)
	concrete.now = func() time.Time { return now }
	return concrete, publisher
}

func rawPart(t *testing.T, part map[string]interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(part)
	if err != nil {
		t.Fatalf("failed to marshal part: %v", err)
	}
	return data
}

func seedSubAssignmentFixture(repo *mockRepository) *models.Assignment {
	assignment := &models.Assignment{
		ID:       1,
		Category: "CODING101",
		SubAssignments: []models.SubAssignment{
			{ID: 10, AssignmentID: 1, SubModuleName: "Chart A",
				AnswerKey: []byte(`{"icd_codes":["I10"],"drg_value":"470"}`)},
			{ID: 11, AssignmentID: 1, SubModuleName: "Chart B",
				AnswerKey: []byte(`{"cpt_codes":["99213"]}`)},
		},
	}
	assignment.ModuleName = "Inpatient Cases"
	repo.assignment.put(assignment)
	return assignment
}

func TestSubmitGradesAndStores(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, publisher := newTestSubmissionService(t, repo, ResubmitReject, now)

	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			rawPart(t, map[string]interface{}{
				"sub_assignment_id": 10,
				"icd_codes":         []string{"i10"},
				"drg_value":         "471",
			}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Parts) != 1 {
		t.Fatalf("expected 1 graded part, got %d", len(result.Parts))
	}
	part := result.Parts[0]
	if part.CorrectCount != 1 || part.WrongCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", part.CorrectCount, part.WrongCount)
	}
	if result.Submission.OverallProgress != 50 {
		t.Errorf("overall progress = %d, want 50", result.Submission.OverallProgress)
	}
	if result.Completed {
		t.Error("one of two subs covered should not complete")
	}
	if result.Submission.StartedAt == nil || !result.Submission.StartedAt.Equal(now) {
		t.Error("first submit should stamp StartedAt")
	}

	stored, err := repo.submission.GetByStudentAndAssignment(context.Background(), nil, "student-1", 1)
	if err != nil {
		t.Fatalf("submission not stored: %v", err)
	}
	if stored.TotalCorrect != 1 || stored.TotalWrong != 1 {
		t.Errorf("stored totals = %d/%d, want 1/1", stored.TotalCorrect, stored.TotalWrong)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	if published[0].Type != events.TypeSubmissionGraded {
		t.Errorf("event type = %q, want %q", published[0].Type, events.TypeSubmissionGraded)
	}
}

func TestSubmitCoveringAllSubsCompletes(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, publisher := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}, "drg_value": "470"}),
			rawPart(t, map[string]interface{}{"sub_assignment_id": 11, "cpt_codes": []string{"99213"}}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Completed {
		t.Error("covering every sub should complete the assignment")
	}
	if result.Submission.OverallProgress != 100 {
		t.Errorf("overall progress = %d, want 100", result.Submission.OverallProgress)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 2 {
		t.Fatalf("expected graded + completed events, got %d", len(published))
	}
	if published[1].Type != events.TypeAssignmentCompleted {
		t.Errorf("second event type = %q, want %q", published[1].Type, events.TypeAssignmentCompleted)
	}
}

func TestSubmitAssignmentNotFound(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 999,
		Parts:        []json.RawMessage{rawPart(t, map[string]interface{}{"drg_value": "470"})},
	})
	if !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestSubmitRejectsDuplicatePart(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, publisher := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	first := rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}})
	if _, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1, Parts: []json.RawMessage{first},
	}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	publisher.ClearEvents()

	_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"E11.9"}}),
		},
	})

	var dup *DuplicatePartError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicatePartError, got %v", err)
	}
	if len(dup.Parts) != 1 || dup.Parts[0] != "Chart A" {
		t.Errorf("duplicate parts = %v, want [Chart A]", dup.Parts)
	}
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Error("rejected resubmission must not publish events")
	}

	// The stored result must be untouched.
	stored, err := repo.submission.GetByStudentAndAssignment(context.Background(), nil, "student-1", 1)
	if err != nil {
		t.Fatalf("submission lookup failed: %v", err)
	}
	parts, _ := stored.PartResults()
	if len(parts) != 1 || parts[0].CorrectCount != 1 {
		t.Errorf("stored parts changed after rejected resubmit: %+v", parts)
	}
}

func TestSubmitOverwritePolicyRegrades(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, _ := newTestSubmissionService(t, repo, ResubmitOverwrite, time.Now())

	wrong := rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"WRONG"}, "drg_value": "999"})
	if _, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1, Parts: []json.RawMessage{wrong},
	}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	right := rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}, "drg_value": "470"})
	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1, Parts: []json.RawMessage{right},
	})
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}

	parts, _ := result.Submission.PartResults()
	if len(parts) != 1 {
		t.Fatalf("expected the part to be replaced, got %d parts", len(parts))
	}
	if parts[0].CorrectCount != 2 || parts[0].WrongCount != 0 {
		t.Errorf("replaced part counts = %d/%d, want 2/0", parts[0].CorrectCount, parts[0].WrongCount)
	}
	if result.Submission.OverallProgress != 100 {
		t.Errorf("totals not recomputed: progress = %d", result.Submission.OverallProgress)
	}
}

func TestSubmitSkipsUnknownTarget(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			rawPart(t, map[string]interface{}{"sub_assignment_id": 999, "drg_value": "470"}),
			rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}, "drg_value": "470"}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Parts) != 1 {
		t.Fatalf("expected 1 graded part, got %d", len(result.Parts))
	}
	if len(result.SkippedParts) != 1 {
		t.Fatalf("expected 1 skipped part, got %d", len(result.SkippedParts))
	}
	skipped := result.SkippedParts[0]
	if skipped.Reason != SkipReasonUnknownTarget || skipped.Index != 0 {
		t.Errorf("unexpected skip record %+v", skipped)
	}
}

func TestSubmitSkipsMalformedPart(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			json.RawMessage(`{"sub_assignment_id": "not a number"}`),
			rawPart(t, map[string]interface{}{"sub_assignment_id": 11, "cpt_codes": []string{"99213"}}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Parts) != 1 {
		t.Fatalf("expected surviving part to grade, got %d parts", len(result.Parts))
	}
	if len(result.SkippedParts) != 1 || result.SkippedParts[0].Reason != SkipReasonMalformedPayload {
		t.Errorf("unexpected skips %+v", result.SkippedParts)
	}
}

func TestSubmitAllPartsMalformed(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, publisher := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			json.RawMessage(`{"sub_assignment_id": "bad"}`),
			rawPart(t, map[string]interface{}{"sub_assignment_id": 999}),
		},
	})

	var malformed *MalformedPayloadError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Error("a fully rejected payload must not publish events")
	}
	if _, err := repo.submission.GetByStudentAndAssignment(context.Background(), nil, "student-1", 1); err == nil {
		t.Error("nothing should be persisted when no part is gradable")
	}
}

func TestSubmitFlatAssignmentSkipsStraySubID(t *testing.T) {
	flatAssignment := func(repo *mockRepository) {
		repo.assignment.put(&models.Assignment{
			ID:         2,
			ModuleName: "Outpatient Quiz",
			Category:   "CODING102",
			AnswerKey:  []byte(`{"drg_value":"470"}`),
		})
	}

	t.Run("stray id is skipped, not rescored", func(t *testing.T) {
		repo := newMockRepository()
		flatAssignment(repo)
		svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

		result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 2,
			Parts: []json.RawMessage{
				rawPart(t, map[string]interface{}{"sub_assignment_id": 7, "drg_value": "470"}),
				rawPart(t, map[string]interface{}{"drg_value": "470"}),
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Parts) != 1 || result.Parts[0].SubAssignmentID != nil {
			t.Fatalf("only the parent-level part should grade, got %+v", result.Parts)
		}
		if len(result.SkippedParts) != 1 {
			t.Fatalf("expected 1 skipped part, got %d", len(result.SkippedParts))
		}
		skipped := result.SkippedParts[0]
		if skipped.Reason != SkipReasonUnknownTarget || skipped.Index != 0 {
			t.Errorf("unexpected skip record %+v", skipped)
		}
		if skipped.SubAssignmentID == nil || *skipped.SubAssignmentID != 7 {
			t.Errorf("skip record must name the unresolved id, got %+v", skipped.SubAssignmentID)
		}
		if !result.Completed {
			t.Error("the graded parent-level part should complete a flat assignment")
		}
	})

	t.Run("only a stray part grades nothing", func(t *testing.T) {
		repo := newMockRepository()
		flatAssignment(repo)
		svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

		_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 2,
			Parts: []json.RawMessage{
				rawPart(t, map[string]interface{}{"sub_assignment_id": 7, "drg_value": "470"}),
			},
		})
		var malformed *MalformedPayloadError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedPayloadError, got %v", err)
		}
		if _, err := repo.submission.GetByStudentAndAssignment(context.Background(), nil, "student-1", 2); err == nil {
			t.Error("nothing should be persisted when every part is skipped")
		}
	})
}

func TestSubmitFirstAttemptInsertRace(t *testing.T) {
	t.Run("overwrite merges into the winner's row", func(t *testing.T) {
		repo := newMockRepository()
		seedSubAssignmentFixture(repo)
		svc, _ := newTestSubmissionService(t, repo, ResubmitOverwrite, time.Now())

		if _, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 1,
			Parts: []json.RawMessage{
				rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}, "drg_value": "470"}),
			},
		}); err != nil {
			t.Fatalf("competing submit failed: %v", err)
		}

		// The locked read misses the competitor's row, so the insert loses
		// to the unique index and the call must retry instead of erroring.
		repo.submission.missForUpdate = true

		result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 1,
			Parts: []json.RawMessage{
				rawPart(t, map[string]interface{}{"sub_assignment_id": 11, "cpt_codes": []string{"99213"}}),
			},
		})
		if err != nil {
			t.Fatalf("retry should absorb the lost insert race, got %v", err)
		}

		stored, err := repo.submission.GetByStudentAndAssignment(context.Background(), nil, "student-1", 1)
		if err != nil {
			t.Fatalf("submission lookup failed: %v", err)
		}
		parts, _ := stored.PartResults()
		if len(parts) != 2 {
			t.Fatalf("both parts must survive the merge, got %+v", parts)
		}
		if !result.Completed {
			t.Error("merged coverage of every sub should complete the assignment")
		}
	})

	t.Run("reject reports the duplicate after the retry", func(t *testing.T) {
		repo := newMockRepository()
		seedSubAssignmentFixture(repo)
		svc, publisher := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

		if _, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 1,
			Parts: []json.RawMessage{
				rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}}),
			},
		}); err != nil {
			t.Fatalf("competing submit failed: %v", err)
		}
		publisher.ClearEvents()
		repo.submission.missForUpdate = true

		_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 1,
			Parts: []json.RawMessage{
				rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"E11.9"}}),
			},
		})
		var dup *DuplicatePartError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicatePartError after the retry, got %v", err)
		}
		if len(publisher.GetPublishedEvents()) != 0 {
			t.Error("the losing submit must not publish events")
		}
	})
}

func TestSubmitTimeWindowViolations(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	t.Run("window not open", func(t *testing.T) {
		repo := newMockRepository()
		repo.assignment.put(&models.Assignment{
			ID: 3, ModuleName: "M", Category: "C",
			AnswerKey:   []byte(`{"drg_value":"470"}`),
			WindowStart: &after,
		})
		svc, publisher := newTestSubmissionService(t, repo, ResubmitReject, now)

		_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 3,
			Parts:        []json.RawMessage{rawPart(t, map[string]interface{}{"drg_value": "470"})},
		})

		var violation *TimeViolationError
		if !errors.As(err, &violation) || violation.Reason != TimeWindowNotOpen {
			t.Fatalf("expected window-not-open violation, got %v", err)
		}
		if len(publisher.GetPublishedEvents()) != 0 {
			t.Error("violations must not publish events")
		}
	})

	t.Run("window closed", func(t *testing.T) {
		repo := newMockRepository()
		repo.assignment.put(&models.Assignment{
			ID: 3, ModuleName: "M", Category: "C",
			AnswerKey: []byte(`{"drg_value":"470"}`),
			WindowEnd: &before,
		})
		svc, _ := newTestSubmissionService(t, repo, ResubmitReject, now)

		_, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
			AssignmentID: 3,
			Parts:        []json.RawMessage{rawPart(t, map[string]interface{}{"drg_value": "470"})},
		})

		var violation *TimeViolationError
		if !errors.As(err, &violation) || violation.Reason != TimeWindowClosed {
			t.Fatalf("expected window-closed violation, got %v", err)
		}
		if _, err := repo.submission.GetByStudentAndAssignment(context.Background(), nil, "student-1", 3); err == nil {
			t.Error("nothing may persist after a fatal time violation")
		}
	})
}

func TestSubmitTimeLimit(t *testing.T) {
	repo := newMockRepository()
	limit := 30
	repo.assignment.put(&models.Assignment{
		ID: 4, ModuleName: "Timed", Category: "C",
		AnswerKey:        []byte(`{"drg_value":"470"}`),
		TimeLimitMinutes: &limit,
	})

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestSubmissionService(t, repo, ResubmitOverwrite, start)

	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 4,
		Parts:        []json.RawMessage{rawPart(t, map[string]interface{}{"drg_value": "470"})},
	})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	wantDeadline := start.Add(30 * time.Minute)
	if result.Submission.MustSubmitBy == nil || !result.Submission.MustSubmitBy.Equal(wantDeadline) {
		t.Fatalf("MustSubmitBy = %v, want %v", result.Submission.MustSubmitBy, wantDeadline)
	}

	// A resubmit past the stamped deadline is rejected.
	svc.now = func() time.Time { return start.Add(45 * time.Minute) }
	_, err = svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 4,
		Parts:        []json.RawMessage{rawPart(t, map[string]interface{}{"drg_value": "470"})},
	})

	var violation *TimeViolationError
	if !errors.As(err, &violation) || violation.Reason != TimeLimitExceeded {
		t.Fatalf("expected time-limit violation, got %v", err)
	}
}

func TestGetReviewIncludesUncoveredTargets(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	if _, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}, "drg_value": "470"}),
		},
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	review, err := svc.GetReview(context.Background(), "student-1", 1)
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if len(review.Parts) != 2 {
		t.Fatalf("review should list every target, got %d", len(review.Parts))
	}
	if review.Parts[0].Result == nil {
		t.Error("covered target should carry its stored result")
	}
	if review.Parts[1].Result != nil {
		t.Error("uncovered target should carry no result")
	}
	if review.Completed {
		t.Error("partial coverage must read incomplete in the review")
	}
}

func TestDeleteSubmission(t *testing.T) {
	repo := newMockRepository()
	seedSubAssignmentFixture(repo)
	svc, _ := newTestSubmissionService(t, repo, ResubmitReject, time.Now())

	result, err := svc.Submit(context.Background(), "student-1", &SubmitAssignmentRequest{
		AssignmentID: 1,
		Parts: []json.RawMessage{
			rawPart(t, map[string]interface{}{"sub_assignment_id": 10, "icd_codes": []string{"I10"}}),
		},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := svc.Delete(context.Background(), result.Submission.ID, "admin-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetSubmission(context.Background(), "student-1", 1); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound after delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), result.Submission.ID, "admin-1"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("double delete should report not found, got %v", err)
	}
}
