package daemon

import (
	"time"

	"github.com/ihavespoons/attn/internal/session"
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
}

// SessionResponse is the API shape of one session.
type SessionResponse struct {
	ID             string    `json:"id"`
	Tool           string    `json:"tool"`
	ProjectName    string    `json:"project_name"`
	PID            int       `json:"pid"`
	State          string    `json:"state"`
	StateDisplay   string    `json:"state_display"`
	Details        string    `json:"details"`
	StartTime      time.Time `json:"start_time"`
	LastUpdateTime time.Time `json:"last_update_time"`
	NeedsAttention bool      `json:"needs_attention"`
}

func sessionResponse(s session.Session) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		Tool:           s.Tool,
		ProjectName:    s.ProjectName,
		PID:            s.PID,
		State:          string(s.State),
		StateDisplay:   s.State.DisplayName(),
		Details:        s.Details,
		StartTime:      s.StartTime,
		LastUpdateTime: s.LastUpdateTime,
		NeedsAttention: s.State.NeedsAttention(),
	}
}

// SummaryResponse aggregates what the menu bar needs in one request.
type SummaryResponse struct {
	Overall            string     `json:"overall"`
	Listening          bool       `json:"listening"`
	Paused             bool       `json:"paused"`
	AttentionNeeded    bool       `json:"attention_needed"`
	ActiveSessions     int        `json:"active_sessions"`
	RecentlyCompleted  int        `json:"recently_completed"`
	LastError          string     `json:"last_error,omitempty"`
	LastSuccessfulSend *time.Time `json:"last_successful_send,omitempty"`
	ConnectionHealthy  bool       `json:"connection_healthy"`
	SubscribeURL       string     `json:"subscribe_url"`
}

// LogResponse is the API shape of one notification attempt.
type LogResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  int       `json:"priority"`
	Tags      string    `json:"tags"`
	SentAt    time.Time `json:"sent_at"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// PauseRequest toggles the global pause flag.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// SSEEvent is one event pushed to a subscribed presentation client.
type SSEEvent struct {
	Type string
	Data any
}

// SSE event types.
const (
	SSESessions  = "sessions"
	SSEHeartbeat = "heartbeat"
)

// SessionsEvent is the payload of an SSESessions event.
type SessionsEvent struct {
	Sessions []SessionResponse `json:"sessions"`
	Summary  SummaryResponse   `json:"summary"`
}
