package services

import (
	"time"

	"github.com/medcode-academy/assignment-service/internal/models"
)

type GradingMode string

const (
	ModeDynamic    GradingMode = "dynamic"
	ModeStructured GradingMode = "structured"
	ModeNone       GradingMode = "none"
)

// SubmittedAnswer is one student answer to a dynamic question. Answers join to
// questions by question text, never by position.
type SubmittedAnswer struct {
	QuestionText string
	Answer       string
}

// SubmittedPart is the decoded input for one grading target.
type SubmittedPart struct {
	SubAssignmentID *uint
	Values          models.StructuredKey
	Answers         []SubmittedAnswer
}

// ResolveMode decides how a definition grades. Dynamic questions win whenever
// at least one is gradable; the structured key is only consulted after that.
func ResolveMode(def models.AnswerDefinition) GradingMode {
	if len(GradableQuestions(def.Questions)) > 0 {
		return ModeDynamic
	}
	if len(gradableKeyFields(def.Key)) > 0 {
		return ModeStructured
	}
	return ModeNone
}

// GradableQuestions filters to questions with non-blank text and a non-blank
// expected answer, preserving authored order.
func GradableQuestions(questions []models.DynamicQuestion) []models.DynamicQuestion {
	var out []models.DynamicQuestion
	for _, q := range questions {
		if NormalizeText(q.QuestionText) != "" && NormalizeText(q.Answer) != "" {
			out = append(out, q)
		}
	}
	return out
}

// ResolveTargets expands an assignment into its grading targets: one per
// sub-assignment when any exist, otherwise the parent-level definition.
func ResolveTargets(assignment *models.Assignment) ([]models.GradingTarget, error) {
	if assignment.HasSubAssignments() {
		targets := make([]models.GradingTarget, 0, len(assignment.SubAssignments))
		for i := range assignment.SubAssignments {
			sub := &assignment.SubAssignments[i]
			def, err := sub.AnswerDefinition()
			if err != nil {
				return nil, err
			}
			id := sub.ID
			targets = append(targets, models.GradingTarget{
				SubAssignmentID: &id,
				Name:            sub.SubModuleName,
				Definition:      def,
			})
		}
		return targets, nil
	}

	def, err := assignment.AnswerDefinition()
	if err != nil {
		return nil, err
	}
	return []models.GradingTarget{{Name: assignment.ModuleName, Definition: def}}, nil
}

// GradePart grades one submitted part against its target's definition.
// Pure: inputs are never mutated and the same inputs always grade the same.
func GradePart(target models.GradingTarget, part SubmittedPart, now time.Time) models.PartResult {
	result := models.PartResult{
		SubAssignmentID: target.SubAssignmentID,
		SubModuleName:   target.Name,
		Submitted:       part.Values,
		GradedAt:        now,
	}

	switch ResolveMode(target.Definition) {
	case ModeDynamic:
		result.DynamicAnswers = gradeDynamic(GradableQuestions(target.Definition.Questions), part.Answers)
		for _, ga := range result.DynamicAnswers {
			if ga.IsCorrect {
				result.CorrectCount++
			} else {
				result.WrongCount++
			}
		}
	case ModeStructured:
		result.CorrectCount, result.WrongCount = gradeStructured(target.Definition.Key, part.Values)
	}

	result.ProgressPercent = models.ProgressPercent(result.CorrectCount, result.WrongCount)
	return result
}

func gradeDynamic(questions []models.DynamicQuestion, answers []SubmittedAnswer) []models.GradedQuestion {
	graded := make([]models.GradedQuestion, 0, len(questions))
	for _, q := range questions {
		submitted := ""
		for _, a := range answers {
			if TextEquals(q.QuestionText, a.QuestionText) {
				submitted = a.Answer
				break
			}
		}
		graded = append(graded, models.GradedQuestion{
			QuestionText:    q.QuestionText,
			Type:            q.Type,
			Options:         q.Options,
			CorrectAnswer:   q.Answer,
			SubmittedAnswer: submitted,
			IsCorrect:       TextEquals(q.Answer, submitted),
		})
	}
	return graded
}

func gradeStructured(key, submitted models.StructuredKey) (correct, wrong int) {
	expected := structuredKeyFields(key)
	actual := structuredKeyFields(submitted)
	for i, f := range expected {
		if !f.gradable() {
			continue
		}
		var ok bool
		if f.isList {
			ok = SetEquals(f.list, actual[i].list)
		} else {
			ok = TextEquals(f.scalar, actual[i].scalar)
		}
		if ok {
			correct++
		} else {
			wrong++
		}
	}
	return correct, wrong
}
