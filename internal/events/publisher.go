package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventSource identifies this service on every published event.
const EventSource = "assignment-service"

// Event types
const (
	TypeSubmissionGraded    = "submission.graded"
	TypeAssignmentCompleted = "assignment.completed"
	TypeAssignmentCreated   = "assignment.created"
	TypeAssignmentDeleted   = "assignment.deleted"
)

// Event is the envelope shared by all published events.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope with a fresh id and UTC timestamp.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

type SubmissionGradedEvent struct {
	SubmissionID    uint     `json:"submission_id"`
	StudentID       string   `json:"student_id"`
	AssignmentID    uint     `json:"assignment_id"`
	Category        string   `json:"category"`
	GradedParts     []string `json:"graded_parts"`
	TotalCorrect    int      `json:"total_correct"`
	TotalWrong      int      `json:"total_wrong"`
	OverallProgress int      `json:"overall_progress"`
}

type AssignmentCompletedEvent struct {
	StudentID       string `json:"student_id"`
	AssignmentID    uint   `json:"assignment_id"`
	Category        string `json:"category"`
	OverallProgress int    `json:"overall_progress"`
}

type AssignmentChangedEvent struct {
	AssignmentID uint   `json:"assignment_id"`
	ModuleName   string `json:"module_name"`
	Category     string `json:"category"`
	ActorID      string `json:"actor_id"`
}
