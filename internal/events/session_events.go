package events

import (
	"time"

	"github.com/irt-tools/cat-service/internal/sessionstatus"
)

// EventType represents the session lifecycle events other services consume.
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventSessionPaused    EventType = "session.paused"
	EventSessionResumed   EventType = "session.resumed"
	EventSessionCompleted EventType = "session.completed"
	EventSessionExhausted EventType = "session.exhausted"
	EventSessionAbandoned EventType = "session.abandoned"
)

// SessionEvent is the envelope for all published session events.
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SessionStartedEvent is published when a respondent begins a test.
type SessionStartedEvent struct {
	SessionID    string    `json:"session_id"`
	StudyID      uint      `json:"study_id"`
	RespondentID string    `json:"respondent_id"`
	StartedAt    time.Time `json:"started_at"`
}

// SessionFinishedEvent is published on any terminal transition; Status
// distinguishes completed, exhausted and abandoned.
type SessionFinishedEvent struct {
	SessionID    string               `json:"session_id"`
	StudyID      uint                 `json:"study_id"`
	RespondentID string               `json:"respondent_id"`
	Status       sessionstatus.SessionStatus `json:"status"`
	Theta        float64              `json:"theta"`
	SE           float64              `json:"se"`
	ItemsGiven   int                  `json:"items_given"`
	FinishedAt   time.Time            `json:"finished_at"`
}

// TerminalEventType maps a terminal session status to its event type.
func TerminalEventType(status sessionstatus.SessionStatus) EventType {
	switch status {
	case sessionstatus.SessionExhausted:
		return EventSessionExhausted
	case sessionstatus.SessionAbandoned:
		return EventSessionAbandoned
	default:
		return EventSessionCompleted
	}
}
