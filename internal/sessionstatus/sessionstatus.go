// Package sessionstatus defines the session lifecycle status shared by
// models and events without creating an import cycle between them.
package sessionstatus

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionExhausted SessionStatus = "exhausted"
	SessionAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionExhausted, SessionAbandoned:
		return true
	}
	return false
}
