package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Assignment struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ModuleName string `json:"module_name" gorm:"not null;size:255" validate:"required"`
	Category   string `json:"category" gorm:"not null;index;size:100" validate:"required"`

	// Attachment is an opaque reference to an externally stored file (e.g. the
	// PDF chart the student codes from). The service never dereferences it.
	AttachmentURL *string `json:"attachment_url" gorm:"size:500"`

	// Timing. TimeLimitMinutes caps a single attempt from its first start;
	// WindowStart/WindowEnd bound when submissions are accepted at all.
	TimeLimitMinutes *int       `json:"time_limit_minutes"`
	WindowStart      *time.Time `json:"window_start"`
	WindowEnd        *time.Time `json:"window_end"`

	// Answer content stored as JSONB. AnswerKey holds a StructuredKey,
	// DynamicQuestions a []DynamicQuestion. Either, both, or neither may be
	// present; resolution order is decided by the grading mode, not storage.
	AnswerKey        datatypes.JSON `json:"answer_key" gorm:"type:jsonb"`
	DynamicQuestions datatypes.JSON `json:"dynamic_questions" gorm:"type:jsonb"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	SubAssignments []SubAssignment `json:"sub_assignments" gorm:"foreignKey:AssignmentID"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// HasSubAssignments reports whether grading targets the sub-assignments
// instead of the parent-level answer definition.
func (a *Assignment) HasSubAssignments() bool {
	return len(a.SubAssignments) > 0
}

type SubAssignment struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	AssignmentID  uint    `json:"assignment_id" gorm:"not null;index"`
	SubModuleName string  `json:"sub_module_name" gorm:"not null;size:255" validate:"required"`
	AttachmentURL *string `json:"attachment_url" gorm:"size:500"`
	Order         int     `json:"order" gorm:"default:0"`

	AnswerKey        datatypes.JSON `json:"answer_key" gorm:"type:jsonb"`
	DynamicQuestions datatypes.JSON `json:"dynamic_questions" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assignment Assignment `json:"-" gorm:"foreignKey:AssignmentID"`
}

func (SubAssignment) TableName() string {
	return "sub_assignments"
}

// ===== ANSWER CONTENT SCHEMAS =====

// StructuredKey is the flat medical-coding answer sheet. Scalar fields compare
// case- and whitespace-insensitively; code lists compare as order-insensitive
// multisets. An empty field is not gradable and contributes nothing.
type StructuredKey struct {
	PatientName string     `json:"patient_name"`
	AgeOrDob    string     `json:"age_or_dob"`
	ICDCodes    StringList `json:"icd_codes"`
	CPTCodes    StringList `json:"cpt_codes"`
	PCSCodes    StringList `json:"pcs_codes"`
	HCPCSCodes  StringList `json:"hcpcs_codes"`
	DRGValue    string     `json:"drg_value"`
	Modifiers   StringList `json:"modifiers"`
	Notes       string     `json:"notes"`
	Adx         string     `json:"adx"`
}

type DynamicQuestionType string

const (
	QuestionText DynamicQuestionType = "text"
	QuestionMCQ  DynamicQuestionType = "mcq"
)

// DynamicQuestion is an authored free-form question. A question is gradable
// only when both its text and expected answer are non-blank.
type DynamicQuestion struct {
	QuestionText string              `json:"question_text"`
	Type         DynamicQuestionType `json:"type"`
	Options      []string            `json:"options,omitempty"`
	Answer       string              `json:"answer"`
}

// AnswerDefinition is the decoded answer content of one grading target
// (a parent assignment or a single sub-assignment).
type AnswerDefinition struct {
	Key       StructuredKey     `json:"key"`
	Questions []DynamicQuestion `json:"questions"`
}

// GradingTarget pairs a resolved answer definition with the identity of the
// part it grades. SubAssignmentID is nil for the parent-level target.
type GradingTarget struct {
	SubAssignmentID *uint
	Name            string
	Definition      AnswerDefinition
}

func decodeAnswerContent(key, questions datatypes.JSON) (AnswerDefinition, error) {
	var def AnswerDefinition
	if len(key) > 0 && string(key) != "null" {
		if err := json.Unmarshal(key, &def.Key); err != nil {
			return AnswerDefinition{}, fmt.Errorf("failed to decode answer key: %w", err)
		}
	}
	if len(questions) > 0 && string(questions) != "null" {
		if err := json.Unmarshal(questions, &def.Questions); err != nil {
			return AnswerDefinition{}, fmt.Errorf("failed to decode dynamic questions: %w", err)
		}
	}
	return def, nil
}

// AnswerDefinition decodes the stored answer content. Missing columns read as
// an empty definition, never an error.
func (a *Assignment) AnswerDefinition() (AnswerDefinition, error) {
	return decodeAnswerContent(a.AnswerKey, a.DynamicQuestions)
}

func (s *SubAssignment) AnswerDefinition() (AnswerDefinition, error) {
	return decodeAnswerContent(s.AnswerKey, s.DynamicQuestions)
}
