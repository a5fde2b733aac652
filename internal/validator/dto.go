package validator

import (
	"encoding/json"
	"time"

	"github.com/medcode-academy/assignment-service/internal/models"
)

// SubmitAssignmentRequest carries one grading call. Parts stay raw here: each
// part is decoded individually so one malformed entry doesn't void the rest.
type SubmitAssignmentRequest struct {
	AssignmentID uint              `json:"assignment_id" validate:"required"`
	Parts        []json.RawMessage `json:"parts" validate:"required,min=1"`
}

// SubmittedPartRequest is the decoded shape of one part. The embedded
// StructuredKey flattens the coding-sheet fields onto the part itself.
type SubmittedPartRequest struct {
	SubAssignmentID *uint `json:"sub_assignment_id"`
	models.StructuredKey
	DynamicAnswers []SubmittedAnswerRequest `json:"dynamic_answers"`
}

type SubmittedAnswerRequest struct {
	QuestionText string `json:"question_text" validate:"required"`
	Answer       string `json:"answer"`
}

// ===== AUTHORING =====

type AnswerKeyRequest struct {
	PatientName string            `json:"patient_name"`
	AgeOrDob    string            `json:"age_or_dob"`
	ICDCodes    models.StringList `json:"icd_codes"`
	CPTCodes    models.StringList `json:"cpt_codes"`
	PCSCodes    models.StringList `json:"pcs_codes"`
	HCPCSCodes  models.StringList `json:"hcpcs_codes"`
	DRGValue    string            `json:"drg_value"`
	Modifiers   models.StringList `json:"modifiers"`
	Notes       string            `json:"notes"`
	Adx         string            `json:"adx"`
}

type DynamicQuestionRequest struct {
	QuestionText string   `json:"question_text" validate:"required"`
	Type         string   `json:"type" validate:"omitempty,oneof=text mcq"`
	Options      []string `json:"options" validate:"max=10"`
	Answer       string   `json:"answer" validate:"required"`
}

type CreateSubAssignmentRequest struct {
	SubModuleName    string                   `json:"sub_module_name" validate:"required,module_title"`
	AttachmentURL    *string                  `json:"attachment_url" validate:"omitempty,url"`
	Order            int                      `json:"order"`
	AnswerKey        *AnswerKeyRequest        `json:"answer_key"`
	DynamicQuestions []DynamicQuestionRequest `json:"dynamic_questions" validate:"dive"`
}

type CreateAssignmentRequest struct {
	ModuleName       string                       `json:"module_name" validate:"required,module_title"`
	Category         string                       `json:"category" validate:"required,category_format"`
	AttachmentURL    *string                      `json:"attachment_url" validate:"omitempty,url"`
	TimeLimitMinutes *int                         `json:"time_limit_minutes" validate:"omitempty,time_limit"`
	WindowStart      *time.Time                   `json:"window_start"`
	WindowEnd        *time.Time                   `json:"window_end"`
	AnswerKey        *AnswerKeyRequest            `json:"answer_key"`
	DynamicQuestions []DynamicQuestionRequest     `json:"dynamic_questions" validate:"dive"`
	SubAssignments   []CreateSubAssignmentRequest `json:"sub_assignments" validate:"dive"`
}

type UpdateAssignmentRequest struct {
	ModuleName       *string                  `json:"module_name" validate:"omitempty,module_title"`
	Category         *string                  `json:"category" validate:"omitempty,category_format"`
	AttachmentURL    *string                  `json:"attachment_url" validate:"omitempty,url"`
	TimeLimitMinutes *int                     `json:"time_limit_minutes" validate:"omitempty,time_limit"`
	WindowStart      *time.Time               `json:"window_start"`
	WindowEnd        *time.Time               `json:"window_end"`
	AnswerKey        *AnswerKeyRequest        `json:"answer_key"`
	DynamicQuestions []DynamicQuestionRequest `json:"dynamic_questions" validate:"dive"`
}
