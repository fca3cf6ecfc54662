package api

import "time"

// Command names accepted by the server.
const (
	CmdRegisterSession = "register_session"
	CmdUpdateSession   = "update_session"
	CmdGetSessions     = "get_sessions"
	CmdGetStatus       = "get_status"
)

// Server document types.
const (
	TypeRegistrationResponse = "registration_response"
	TypeUpdateResponse       = "update_response"
	TypeSessionsData         = "sessions_data"
	TypeStatusData           = "status_data"
	TypeError                = "error"
	TypeSessionsCleaned      = "sessions_cleaned"
)

// Command is the top-level client-to-server document. Command discriminates;
// the remaining fields are populated per command. The wire shape is flat.
type Command struct {
	Command   string         `json:"command"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Updates   map[string]any `json:"updates,omitempty"`

	// Merge applies updates to resources_used as an RFC 7386 merge patch
	// instead of replacing the map wholesale.
	Merge bool `json:"merge,omitempty"`

	// Filter is an optional boolean expression restricting get_sessions
	// results (see registry.CompileFilter for the variable set).
	Filter string `json:"filter,omitempty"`
}

// RegistrationResponse is the reply to a register_session command.
type RegistrationResponse struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// UpdateResponse is the reply to an update_session command.
type UpdateResponse struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// SessionsData is the reply to a get_sessions command. It goes only to the
// requester, never out as a broadcast.
type SessionsData struct {
	Type     string        `json:"type"`
	Sessions []SessionInfo `json:"sessions"`
}

// StatusData is the reply to a get_status command.
type StatusData struct {
	Type          string  `json:"type"`
	ServerID      string  `json:"server_id"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	SessionCount  int     `json:"session_count"`
	ClientCount   int     `json:"client_count"`
}

// SweepEvent announces a completed idle sweep. It is broadcast best-effort
// to every connected client. Evicted carries the eviction count; the minimum
// contract is "a sweep happened at Timestamp".
type SweepEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Evicted   int       `json:"evicted"`
}

// Envelope mirrors every server document shape in one struct. Clients decode
// into an Envelope and switch on Type; servers never encode one.
type Envelope struct {
	Type string `json:"type"`

	// registration_response / update_response
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`

	// sessions_data
	Sessions []SessionInfo `json:"sessions"`

	// error
	Code    string `json:"code"`
	Message string `json:"message"`

	// sessions_cleaned
	Timestamp time.Time `json:"timestamp"`
	Evicted   int       `json:"evicted"`

	// status_data
	ServerID      string  `json:"server_id"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	SessionCount  int     `json:"session_count"`
	ClientCount   int     `json:"client_count"`
}

// NewRegistrationResponse creates a reply for a register_session command.
func NewRegistrationResponse(success bool, sessionID string) *RegistrationResponse {
	return &RegistrationResponse{
		Type:      TypeRegistrationResponse,
		Success:   success,
		SessionID: sessionID,
	}
}

// NewUpdateResponse creates a reply for an update_session command.
func NewUpdateResponse(success bool, sessionID string) *UpdateResponse {
	return &UpdateResponse{
		Type:      TypeUpdateResponse,
		Success:   success,
		SessionID: sessionID,
	}
}

// NewSessionsData creates a reply for a get_sessions command. The sessions
// field is always a JSON array, never null.
func NewSessionsData(sessions []SessionInfo) *SessionsData {
	if sessions == nil {
		sessions = []SessionInfo{}
	}
	return &SessionsData{
		Type:     TypeSessionsData,
		Sessions: sessions,
	}
}

// NewSweepEvent creates a sweep-completion broadcast event.
func NewSweepEvent(at time.Time, evicted int) *SweepEvent {
	return &SweepEvent{
		Type:      TypeSessionsCleaned,
		Timestamp: at,
		Evicted:   evicted,
	}
}
