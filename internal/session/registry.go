package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/logger"
)

const cleanupInterval = 60 * time.Second

// Notifier receives state transitions that may warrant a notification.
// The registry reports every End transition and every StateChange whose
// state actually changed; the notifier owns the policy beyond that.
type Notifier interface {
	SessionTransition(s Session, previous State, workingDurationSecs *int)
}

// Registry holds all known sessions and applies the lifecycle state
// machine. Socket events arrive pre-serialized from the server's dispatch
// goroutine; the mutex exists for the status API readers.
type Registry struct {
	mu        sync.Mutex
	sessions  []*Session
	cfg       *config.Manager
	notifier  Notifier
	connected bool
	revision  uint64

	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg *config.Manager, notifier Notifier) *Registry {
	return &Registry{
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// OnStart handles a Start event. Events from tools disabled in the
// configuration are dropped entirely; an existing session with the same
// id is replaced, not merged.
func (r *Registry) OnStart(id, tool, projectName string, pid int) {
	if !r.cfg.Settings().ToolEnabled(tool) {
		logger.Debug().Str("tool", tool).Str("session", id).Msg("Tool disabled, dropping session start")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(id)
	r.sessions = append([]*Session{New(id, tool, projectName, pid, r.now())}, r.sessions...)
	r.revision++

	logger.Info().
		Str("session", id).
		Str("tool", tool).
		Str("project", projectName).
		Int("pid", pid).
		Msg("Session started")
}

// OnStateChange handles a StateChange event. Unknown session ids are
// silently dropped: the session may have been cleaned up already, or its
// tool is disabled.
func (r *Registry) OnStateChange(id string, state State, details string, workingDurationSecs *int) {
	r.mu.Lock()

	s := r.findLocked(id)
	if s == nil {
		r.mu.Unlock()
		logger.Debug().Str("session", id).Msg("State change for unknown session, dropping")
		return
	}

	previous := s.State
	s.Update(state, details, r.now())
	r.revision++
	snapshot := *s
	r.mu.Unlock()

	logger.Debug().
		Str("session", id).
		Str("from", string(previous)).
		Str("to", string(state)).
		Msg("Session state changed")

	if state != previous {
		r.notifier.SessionTransition(snapshot, previous, workingDurationSecs)
	}
}

// OnEnd handles an End event. Exit code 0 maps to Completed, anything
// else to Error. Unlike state changes, an end is always reported to the
// notifier: process exit is a meaningful boundary even when the terminal
// state is unchanged.
func (r *Registry) OnEnd(id string, exitCode int) {
	r.mu.Lock()

	s := r.findLocked(id)
	if s == nil {
		r.mu.Unlock()
		logger.Debug().Str("session", id).Msg("End for unknown session, dropping")
		return
	}

	state := StateCompleted
	if exitCode != 0 {
		state = StateError
	}

	previous := s.State
	s.Update(state, fmt.Sprintf("Exit code: %d", exitCode), r.now())
	r.revision++
	snapshot := *s
	r.mu.Unlock()

	logger.Info().
		Str("session", id).
		Int("exit_code", exitCode).
		Msg("Session ended")

	r.notifier.SessionTransition(snapshot, previous, nil)
}

// SetConnected records the socket server's listening state.
func (r *Registry) SetConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = connected
	r.revision++
}

// Connected reports whether the socket server is listening.
func (r *Registry) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Sessions returns a snapshot of all sessions, most recent first.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// ActiveSessions returns sessions still worth watching.
func (r *Registry) ActiveSessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Session
	for _, s := range r.sessions {
		switch s.State {
		case StateWorking, StateAwaitingApproval, StateIdle:
			out = append(out, *s)
		}
	}
	return out
}

// RecentlyCompleted returns terminal sessions updated within the last hour.
func (r *Registry) RecentlyCompleted() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	hourAgo := r.now().Add(-time.Hour)
	var out []Session
	for _, s := range r.sessions {
		if s.State.Terminal() && s.LastUpdateTime.After(hourAgo) {
			out = append(out, *s)
		}
	}
	return out
}

// HasAttentionNeeded reports whether any session needs the user.
func (r *Registry) HasAttentionNeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.State.NeedsAttention() {
			return true
		}
	}
	return false
}

// Overall derives the summary state shown by the presentation layer.
// Precedence is strict: disconnected > paused > attention > working > idle.
func (r *Registry) Overall() OverallState {
	paused := r.cfg.Settings().Paused

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return OverallDisconnected
	}
	if paused {
		return OverallPaused
	}

	for _, s := range r.sessions {
		if s.State == StateAwaitingApproval {
			return OverallAttention
		}
	}
	for _, s := range r.sessions {
		if s.State == StateWorking {
			return OverallWorking
		}
	}
	return OverallIdle
}

// ClearCompleted removes every terminal session and reports how many
// were dropped.
func (r *Registry) ClearCompleted() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if !s.State.Terminal() {
			kept = append(kept, s)
		}
	}
	removed := len(r.sessions) - len(kept)
	r.sessions = kept
	r.revision++
	return removed
}

// Remove deletes one session by id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.removeLocked(id)
	if removed {
		r.revision++
	}
	return removed
}

// Revision returns a counter that increments on every mutation. The SSE
// broadcaster polls it to detect changes.
func (r *Registry) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// StartCleanup sweeps stale sessions on a fixed interval until the
// context is cancelled. Abandoned emitters would otherwise grow the
// session list without bound.
func (r *Registry) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweepStale()
			}
		}
	}()
}

func (r *Registry) sweepStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	kept := r.sessions[:0]
	removed := 0
	for _, s := range r.sessions {
		if s.Stale(now) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.sessions = kept

	if removed > 0 {
		r.revision++
		logger.Debug().Int("removed", removed).Msg("Swept stale sessions")
	}
}

func (r *Registry) findLocked(id string) *Session {
	for _, s := range r.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Registry) removeLocked(id string) bool {
	for i, s := range r.sessions {
		if s.ID == id {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return true
		}
	}
	return false
}
