package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/irt-tools/cat-service/internal/sessionstatus"
)

// SessionStatus aliases the shared status type; the definition lives in
// internal/sessionstatus so internal/events can use it without importing
// models (which would close an import cycle through config).
type SessionStatus = sessionstatus.SessionStatus

const (
	SessionActive    = sessionstatus.SessionActive
	SessionPaused    = sessionstatus.SessionPaused
	SessionCompleted = sessionstatus.SessionCompleted
	SessionExhausted = sessionstatus.SessionExhausted
	SessionAbandoned = sessionstatus.SessionAbandoned
)

// ResponseRecord is one administered item with the observed response and the
// ability estimate after scoring it.
type ResponseRecord struct {
	ItemID         string    `json:"item_id"`
	Score          int       `json:"score"`
	Theta          float64   `json:"theta"`
	SE             float64   `json:"se"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// Session is the per-respondent mutable record of one adaptive test run.
type Session struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	StudyID      uint   `json:"study_id" gorm:"not null;index"`
	RespondentID string `json:"respondent_id" gorm:"not null;size:100;index" validate:"required,min=1,max=100"`

	Status SessionStatus `json:"status" gorm:"not null;size:16;index;default:active"`

	Responses    datatypes.JSONSlice[ResponseRecord]   `json:"responses"`
	Demographics datatypes.JSONType[map[string]string] `json:"demographics"`

	Theta float64 `json:"theta"`
	SE    float64 `json:"se"`

	// CurrentItemID is the item presented and awaiting a response, empty
	// once the session is terminal.
	CurrentItemID string `json:"current_item_id" gorm:"size:100"`

	// SelectionSeed makes randomized selection reproducible across resume.
	SelectionSeed int64 `json:"selection_seed"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Study *Study `json:"-" gorm:"foreignKey:StudyID"`
}

func (Session) TableName() string {
	return "sessions"
}

// AdministeredIDs returns the external ids of all items already given,
// including the one currently on screen.
func (s *Session) AdministeredIDs() []string {
	ids := make([]string, 0, len(s.Responses)+1)
	for _, r := range s.Responses {
		ids = append(ids, r.ItemID)
	}
	if s.CurrentItemID != "" {
		ids = append(ids, s.CurrentItemID)
	}
	return ids
}

// ItemCount is the number of scored responses.
func (s *Session) ItemCount() int {
	return len(s.Responses)
}
