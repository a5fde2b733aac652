package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/events"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/validator"
)

type assignmentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	policy    CompletionPolicy
}

func NewAssignmentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, policy CompletionPolicy) AssignmentService {
	return &assignmentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		publisher: publisher,
		policy:    policy,
	}
}

func (s *assignmentService) Create(ctx context.Context, req *CreateAssignmentRequest, creatorID string) (*models.Assignment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("", err.Error())
	}
	if req.WindowStart != nil && req.WindowEnd != nil && req.WindowEnd.Before(*req.WindowStart) {
		return nil, NewValidationError("window_end", "must not be before window_start")
	}

	answerKey, questions, err := buildAnswerContent(req.AnswerKey, req.DynamicQuestions)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ModuleName:       strings.TrimSpace(req.ModuleName),
		Category:         NormalizeCategory(req.Category),
		AttachmentURL:    req.AttachmentURL,
		TimeLimitMinutes: req.TimeLimitMinutes,
		WindowStart:      req.WindowStart,
		WindowEnd:        req.WindowEnd,
		AnswerKey:        answerKey,
		DynamicQuestions: questions,
		CreatedBy:        creatorID,
	}

	for i, subReq := range req.SubAssignments {
		subKey, subQuestions, err := buildAnswerContent(subReq.AnswerKey, subReq.DynamicQuestions)
		if err != nil {
			return nil, err
		}
		order := subReq.Order
		if order == 0 {
			order = i + 1
		}
		assignment.SubAssignments = append(assignment.SubAssignments, models.SubAssignment{
			SubModuleName:    strings.TrimSpace(subReq.SubModuleName),
			AttachmentURL:    subReq.AttachmentURL,
			Order:            order,
			AnswerKey:        subKey,
			DynamicQuestions: subQuestions,
		})
	}

	if err := s.repo.Assignment().Create(ctx, nil, assignment); err != nil {
		return nil, err
	}

	s.logger.Info("assignment created",
		"assignment_id", assignment.ID,
		"category", assignment.Category,
		"sub_assignments", len(assignment.SubAssignments),
		"created_by", creatorID)

	s.publishChanged(ctx, events.TypeAssignmentCreated, assignment, creatorID)
	return assignment, nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, req *UpdateAssignmentRequest, userID string) (*models.Assignment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, NewValidationError("", err.Error())
	}

	assignment, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.ModuleName != nil {
		assignment.ModuleName = strings.TrimSpace(*req.ModuleName)
	}
	if req.Category != nil {
		assignment.Category = NormalizeCategory(*req.Category)
	}
	if req.AttachmentURL != nil {
		assignment.AttachmentURL = req.AttachmentURL
	}
	if req.TimeLimitMinutes != nil {
		assignment.TimeLimitMinutes = req.TimeLimitMinutes
	}
	if req.WindowStart != nil {
		assignment.WindowStart = req.WindowStart
	}
	if req.WindowEnd != nil {
		assignment.WindowEnd = req.WindowEnd
	}
	if assignment.WindowStart != nil && assignment.WindowEnd != nil && assignment.WindowEnd.Before(*assignment.WindowStart) {
		return nil, NewValidationError("window_end", "must not be before window_start")
	}
	if req.AnswerKey != nil || req.DynamicQuestions != nil {
		answerKey, questions, err := buildAnswerContent(req.AnswerKey, req.DynamicQuestions)
		if err != nil {
			return nil, err
		}
		if req.AnswerKey != nil {
			assignment.AnswerKey = answerKey
		}
		if req.DynamicQuestions != nil {
			assignment.DynamicQuestions = questions
		}
	}

	if err := s.repo.Assignment().Update(ctx, nil, assignment); err != nil {
		return nil, err
	}

	s.logger.Info("assignment updated", "assignment_id", id, "user_id", userID)
	return assignment, nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint, userID string) error {
	assignment, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Assignment().Delete(ctx, nil, id); err != nil {
		return err
	}

	s.logger.Info("assignment deleted", "assignment_id", id, "user_id", userID)
	s.publishChanged(ctx, events.TypeAssignmentDeleted, assignment, userID)
	return nil
}

func (s *assignmentService) DeleteSubAssignment(ctx context.Context, assignmentID, subID uint, userID string) error {
	if _, err := s.getOwned(ctx, assignmentID, userID); err != nil {
		return err
	}

	if err := s.repo.Assignment().DeleteSubAssignment(ctx, nil, assignmentID, subID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info("sub-assignment deleted",
		"assignment_id", assignmentID,
		"sub_assignment_id", subID,
		"user_id", userID)
	return nil
}

// getOwned loads the assignment and verifies the caller may modify it:
// the creator always can, admins can always.
func (s *assignmentService) getOwned(ctx context.Context, id uint, userID string) (*models.Assignment, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	if assignment.CreatedBy == userID {
		return assignment, nil
	}
	isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to check user role: %w", err)
	}
	if !isAdmin {
		return nil, NewPermissionError("only the creator or an admin can modify this assignment")
	}
	return assignment, nil
}

func (s *assignmentService) GetByID(ctx context.Context, id uint) (*models.Assignment, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	return assignment, nil
}

func (s *assignmentService) List(ctx context.Context, filters repositories.AssignmentFilters) ([]*models.Assignment, int64, error) {
	if filters.Category != nil {
		normalized := NormalizeCategory(*filters.Category)
		filters.Category = &normalized
	}
	return s.repo.Assignment().List(ctx, nil, filters)
}

func (s *assignmentService) ListCategories(ctx context.Context) ([]string, error) {
	return s.repo.Assignment().ListCategories(ctx, nil)
}

func (s *assignmentService) CountByCategory(ctx context.Context, category string) (int64, error) {
	count, err := s.repo.Assignment().CountByCategory(ctx, nil, NormalizeCategory(category))
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetByCategoryForStudent lists a category's assignments decorated with the
// student's latest submission standing.
func (s *assignmentService) GetByCategoryForStudent(ctx context.Context, category, studentID string) ([]*AssignmentWithStatus, error) {
	normalized := NormalizeCategory(category)
	assignments, err := s.repo.Assignment().GetByCategory(ctx, nil, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments by category: %w", err)
	}
	if len(assignments) == 0 {
		return []*AssignmentWithStatus{}, nil
	}

	assignmentIDs := make([]uint, len(assignments))
	for i, a := range assignments {
		assignmentIDs[i] = a.ID
	}
	latest, err := s.repo.Submission().GetLatestForAssignments(ctx, nil, studentID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest submissions: %w", err)
	}

	out := make([]*AssignmentWithStatus, 0, len(assignments))
	for _, assignment := range assignments {
		status := &AssignmentWithStatus{Assignment: assignment}
		if submission, ok := latest[assignment.ID]; ok {
			status.Submitted = true
			status.OverallProgress = submission.OverallProgress
			submittedAt := submission.SubmittedAt
			status.SubmittedAt = &submittedAt
			status.Completed = IsComplete(assignment, submission, s.policy)
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *assignmentService) publishChanged(ctx context.Context, eventType string, assignment *models.Assignment, actorID string) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(eventType, events.AssignmentChangedEvent{
		AssignmentID: assignment.ID,
		ModuleName:   assignment.ModuleName,
		Category:     assignment.Category,
		ActorID:      actorID,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish assignment event", "error", err, "event_type", eventType)
	}
}

// ===== ANSWER CONTENT HELPERS =====

// ParseCodeList splits comma-separated entries into clean code values:
// "I10, E11.9" becomes ["I10", "E11.9"]. Already-split lists pass through.
func ParseCodeList(values []string) models.StringList {
	var out models.StringList
	for _, value := range values {
		for _, piece := range strings.Split(value, ",") {
			piece = strings.TrimSpace(piece)
			if piece != "" {
				out = append(out, piece)
			}
		}
	}
	return out
}

func buildAnswerContent(keyReq *AnswerKeyRequest, questionReqs []DynamicQuestionRequest) (datatypes.JSON, datatypes.JSON, error) {
	var answerKey datatypes.JSON
	if keyReq != nil {
		key := models.StructuredKey{
			PatientName: keyReq.PatientName,
			AgeOrDob:    keyReq.AgeOrDob,
			ICDCodes:    ParseCodeList(keyReq.ICDCodes),
			CPTCodes:    ParseCodeList(keyReq.CPTCodes),
			PCSCodes:    ParseCodeList(keyReq.PCSCodes),
			HCPCSCodes:  ParseCodeList(keyReq.HCPCSCodes),
			DRGValue:    keyReq.DRGValue,
			Modifiers:   ParseCodeList(keyReq.Modifiers),
			Notes:       keyReq.Notes,
			Adx:         keyReq.Adx,
		}
		data, err := json.Marshal(key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode answer key: %w", err)
		}
		answerKey = data
	}

	var questions datatypes.JSON
	if len(questionReqs) > 0 {
		list := make([]models.DynamicQuestion, 0, len(questionReqs))
		for _, q := range questionReqs {
			qType := models.DynamicQuestionType(q.Type)
			if qType == "" {
				qType = models.QuestionText
			}
			list = append(list, models.DynamicQuestion{
				QuestionText: q.QuestionText,
				Type:         qType,
				Options:      q.Options,
				Answer:       q.Answer,
			})
		}
		data, err := json.Marshal(list)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode dynamic questions: %w", err)
		}
		questions = data
	}

	return answerKey, questions, nil
}
