package models

import "time"

// ResultRow is one respondent's flattened result for tabular export:
// demographics, per-item responses, and the final scores.
type ResultRow struct {
	SessionID    string            `json:"session_id"`
	RespondentID string            `json:"respondent_id"`
	Status       SessionStatus     `json:"status"`
	Demographics map[string]string `json:"demographics"`

	// ItemScores maps item external id to the observed score; ItemOrder
	// preserves administration order for the wide columns.
	ItemOrder  []string       `json:"item_order"`
	ItemScores map[string]int `json:"item_scores"`

	Theta         float64    `json:"theta"`
	SE            float64    `json:"se"`
	ItemsGiven    int        `json:"items_given"`
	TotalTimeMs   int64      `json:"total_time_ms"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}
