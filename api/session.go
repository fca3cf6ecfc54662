package api

import "time"

// Session status values. The set is open-ended: statuses outside this list
// are carried through untouched so deployments can extend it.
const (
	StatusActive     = "active"
	StatusIdle       = "idle"
	StatusTerminated = "terminated"
)

// DefaultTask is the task label assigned to a freshly registered session.
const DefaultTask = "initializing"

// SessionInfo is the record for one tracked work session. It is the unit
// exchanged on the wire and checkpointed to storage.
//
// SessionID and UserID are immutable after registration. Progress is
// semantically in [0,1] but out-of-range values are accepted rather than
// rejected. LastActivity is refreshed on every successful mutation and is
// consumed only by the idle sweeper.
type SessionInfo struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	Status        string         `json:"status"`
	CurrentTask   string         `json:"current_task"`
	Progress      float64        `json:"progress"`
	CreatedAt     time.Time      `json:"created_at"`
	LastActivity  time.Time      `json:"last_activity"`
	ResourcesUsed map[string]any `json:"resources_used"`
}

// Clone returns a copy whose resource map is independent of the receiver's.
// Nested values inside the map are shared; callers treat them as read-only.
func (s *SessionInfo) Clone() SessionInfo {
	cp := *s
	if s.ResourcesUsed != nil {
		cp.ResourcesUsed = make(map[string]any, len(s.ResourcesUsed))
		for k, v := range s.ResourcesUsed {
			cp.ResourcesUsed[k] = v
		}
	}
	return cp
}
