package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Submission is the single grading record for a (student, assignment) pair.
// The unique index on the pair is what the submit path's row lock keys on.
type Submission struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	StudentID    string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_submissions_student_assignment"`
	AssignmentID uint   `json:"assignment_id" gorm:"not null;uniqueIndex:idx_submissions_student_assignment"`

	// Parts holds []PartResult as JSONB: one entry per graded target.
	Parts datatypes.JSON `json:"parts" gorm:"type:jsonb"`

	// Totals, always recomputed from Parts on every write.
	TotalCorrect    int `json:"total_correct"`
	TotalWrong      int `json:"total_wrong"`
	OverallProgress int `json:"overall_progress"`

	// Timing
	SubmittedAt  time.Time  `json:"submitted_at"`
	StartedAt    *time.Time `json:"started_at"`
	MustSubmitBy *time.Time `json:"must_submit_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assignment Assignment `json:"-" gorm:"foreignKey:AssignmentID"`
	Student    User       `json:"-" gorm:"foreignKey:StudentID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// PartResults decodes the stored parts. A nil or missing column reads as an
// empty slice so half-initialized legacy rows never break callers.
func (s *Submission) PartResults() ([]PartResult, error) {
	if len(s.Parts) == 0 || string(s.Parts) == "null" {
		return []PartResult{}, nil
	}
	var parts []PartResult
	if err := json.Unmarshal(s.Parts, &parts); err != nil {
		return nil, fmt.Errorf("failed to decode submission parts: %w", err)
	}
	if parts == nil {
		parts = []PartResult{}
	}
	return parts, nil
}

// SetPartResults replaces the stored parts and recomputes the totals.
func (s *Submission) SetPartResults(parts []PartResult) error {
	data, err := json.Marshal(parts)
	if err != nil {
		return fmt.Errorf("failed to encode submission parts: %w", err)
	}
	s.Parts = data

	correct, wrong := 0, 0
	for _, p := range parts {
		correct += p.CorrectCount
		wrong += p.WrongCount
	}
	s.TotalCorrect = correct
	s.TotalWrong = wrong
	s.OverallProgress = ProgressPercent(correct, wrong)
	return nil
}

// ProgressPercent is the rounded correct-ratio percentage, 0 when nothing was
// gradable. Shared by part grading and submission totals.
func ProgressPercent(correct, wrong int) int {
	total := correct + wrong
	if total == 0 {
		return 0
	}
	return int(float64(correct)/float64(total)*100 + 0.5)
}

// PartResult is the graded outcome for one target. Raw submitted values are
// preserved verbatim next to the counts so reviews can replay the grading.
type PartResult struct {
	SubAssignmentID *uint  `json:"sub_assignment_id"`
	SubModuleName   string `json:"sub_module_name,omitempty"`

	// Raw submitted values, StructuredKey-shaped.
	Submitted StructuredKey `json:"submitted"`

	// Per-question breakdown when the target graded in dynamic mode.
	DynamicAnswers []GradedQuestion `json:"dynamic_answers,omitempty"`

	CorrectCount    int       `json:"correct_count"`
	WrongCount      int       `json:"wrong_count"`
	ProgressPercent int       `json:"progress_percent"`
	GradedAt        time.Time `json:"graded_at"`
}

// GradedQuestion records one dynamic question's grading outcome.
type GradedQuestion struct {
	QuestionText    string              `json:"question_text"`
	Type            DynamicQuestionType `json:"type"`
	Options         []string            `json:"options,omitempty"`
	CorrectAnswer   string              `json:"correct_answer"`
	SubmittedAnswer string              `json:"submitted_answer"`
	IsCorrect       bool                `json:"is_correct"`
}
