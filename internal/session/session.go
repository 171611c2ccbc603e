package session

import "time"

// staleThreshold is how long a session may go without updates before the
// cleanup sweep removes it.
const staleThreshold = 24 * time.Hour

// Session is one monitored CLI invocation.
type Session struct {
	ID             string    `json:"id"`
	Tool           string    `json:"tool"`
	ProjectName    string    `json:"project_name"`
	PID            int       `json:"pid"`
	State          State     `json:"state"`
	Details        string    `json:"details"`
	StartTime      time.Time `json:"start_time"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// New creates a session in the Working state.
func New(id, tool, projectName string, pid int, now time.Time) *Session {
	return &Session{
		ID:             id,
		Tool:           tool,
		ProjectName:    projectName,
		PID:            pid,
		State:          StateWorking,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update applies a state transition and bumps the update timestamp.
func (s *Session) Update(state State, details string, now time.Time) {
	s.State = state
	s.Details = details
	s.LastUpdateTime = now
}

// Duration returns how long the session has existed.
func (s *Session) Duration(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// Stale reports whether the session has gone without updates for longer
// than the stale threshold.
func (s *Session) Stale(now time.Time) bool {
	return now.Sub(s.LastUpdateTime) > staleThreshold
}
