package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/logger"
)

type transition struct {
	session  Session
	previous State
	duration *int
}

type recordingNotifier struct {
	transitions []transition
}

func (n *recordingNotifier) SessionTransition(s Session, previous State, workingDurationSecs *int) {
	n.transitions = append(n.transitions, transition{s, previous, workingDurationSecs})
}

func newTestRegistry(t *testing.T) (*Registry, *recordingNotifier, *config.Manager) {
	t.Helper()
	logger.InitQuiet()

	cfg, err := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("config.NewManager: %v", err)
	}

	notifier := &recordingNotifier{}
	return NewRegistry(cfg, notifier), notifier, cfg
}

func TestOnStartCreatesWorkingSession(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "demo", 100)

	sessions := r.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.ID != "s1" || s.Tool != "claude" || s.ProjectName != "demo" || s.PID != 100 {
		t.Errorf("unexpected session fields: %#v", s)
	}
	if s.State != StateWorking {
		t.Errorf("State = %q, want %q", s.State, StateWorking)
	}
	if s.LastUpdateTime.Before(s.StartTime) {
		t.Error("LastUpdateTime precedes StartTime")
	}
}

func TestOnStartOrdersMostRecentFirst(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "one", 1)
	r.OnStart("s2", "claude", "two", 2)

	sessions := r.Sessions()
	if len(sessions) != 2 || sessions[0].ID != "s2" || sessions[1].ID != "s1" {
		t.Errorf("unexpected ordering: %#v", sessions)
	}
}

func TestOnStartReplacesExistingSession(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "old", 1)
	r.OnStateChange("s1", StateAwaitingApproval, "confirm?", nil)
	r.OnStart("s1", "claude", "new", 2)

	sessions := r.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.ProjectName != "new" || s.PID != 2 || s.State != StateWorking {
		t.Errorf("replacement did not reset session: %#v", s)
	}
}

func TestOnStartDisabledToolDropped(t *testing.T) {
	r, _, cfg := newTestRegistry(t)
	if err := cfg.Update(func(s *config.Settings) {
		s.Tools["codex"] = false
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	r.OnStart("s1", "codex", "demo", 1)

	if got := len(r.Sessions()); got != 0 {
		t.Errorf("got %d sessions, want 0", got)
	}

	// The event is dropped entirely: later events for the id are no-ops.
	r.OnStateChange("s1", StateAwaitingApproval, "", nil)
	if got := len(r.Sessions()); got != 0 {
		t.Errorf("state change resurrected dropped session")
	}
}

func TestOnStateChangeUnknownSession(t *testing.T) {
	r, notifier, _ := newTestRegistry(t)

	r.OnStateChange("ghost", StateError, "boom", nil)

	if len(r.Sessions()) != 0 {
		t.Error("unknown-session state change created a session")
	}
	if len(notifier.transitions) != 0 {
		t.Error("unknown-session state change reached the notifier")
	}
}

func TestOnStateChangeNotifiesOnlyOnChange(t *testing.T) {
	r, notifier, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "demo", 1)
	r.OnStateChange("s1", StateWorking, "still going", nil)

	if len(notifier.transitions) != 0 {
		t.Fatal("same-state change reached the notifier")
	}

	duration := 45
	r.OnStateChange("s1", StateAwaitingApproval, "confirm?", &duration)

	if len(notifier.transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(notifier.transitions))
	}
	tr := notifier.transitions[0]
	if tr.session.State != StateAwaitingApproval || tr.previous != StateWorking {
		t.Errorf("unexpected transition: %#v", tr)
	}
	if tr.duration == nil || *tr.duration != 45 {
		t.Error("working duration not forwarded")
	}

	// Details update even on a same-state change.
	if got := r.Sessions()[0].Details; got != "confirm?" {
		t.Errorf("Details = %q, want %q", got, "confirm?")
	}
}

func TestOnEndMapsExitCode(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     State
	}{
		{"zero completes", 0, StateCompleted},
		{"nonzero errors", 3, StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, notifier, _ := newTestRegistry(t)
			r.OnStart("s1", "claude", "demo", 1)
			r.OnEnd("s1", tt.exitCode)

			s := r.Sessions()[0]
			if s.State != tt.want {
				t.Errorf("State = %q, want %q", s.State, tt.want)
			}
			if len(notifier.transitions) != 1 {
				t.Fatalf("got %d transitions, want 1", len(notifier.transitions))
			}
		})
	}
}

func TestOnEndAlwaysNotifies(t *testing.T) {
	r, notifier, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "demo", 1)
	r.OnStateChange("s1", StateError, "boom", nil)
	r.OnEnd("s1", 1)

	// One from the state change, one from the end even though the
	// terminal state is unchanged.
	if len(notifier.transitions) != 2 {
		t.Fatalf("got %d transitions, want 2", len(notifier.transitions))
	}
	last := notifier.transitions[1]
	if last.session.State != StateError || last.previous != StateError {
		t.Errorf("unexpected end transition: %#v", last)
	}
}

func TestOnEndUnknownSession(t *testing.T) {
	r, notifier, _ := newTestRegistry(t)

	r.OnEnd("ghost", 1)

	if len(r.Sessions()) != 0 {
		t.Error("unknown-session end created a session")
	}
	if len(notifier.transitions) != 0 {
		t.Error("unknown-session end reached the notifier")
	}
}

func TestQueries(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("working", "claude", "a", 1)
	r.OnStart("approval", "claude", "b", 2)
	r.OnStateChange("approval", StateAwaitingApproval, "", nil)
	r.OnStart("idle", "claude", "c", 3)
	r.OnStateChange("idle", StateIdle, "", nil)
	r.OnStart("done", "claude", "d", 4)
	r.OnEnd("done", 0)
	r.OnStart("failed", "claude", "e", 5)
	r.OnEnd("failed", 1)

	active := r.ActiveSessions()
	if len(active) != 3 {
		t.Errorf("ActiveSessions returned %d, want 3 (working, approval, idle)", len(active))
	}

	recent := r.RecentlyCompleted()
	if len(recent) != 3 {
		t.Errorf("RecentlyCompleted returned %d, want 3 (idle, done, failed)", len(recent))
	}

	if !r.HasAttentionNeeded() {
		t.Error("HasAttentionNeeded = false with approval/completed/error sessions present")
	}
}

func TestRecentlyCompletedExcludesOldSessions(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "demo", 1)
	r.OnEnd("s1", 0)

	r.mu.Lock()
	r.sessions[0].LastUpdateTime = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()

	if got := len(r.RecentlyCompleted()); got != 0 {
		t.Errorf("RecentlyCompleted returned %d, want 0", got)
	}
}

func TestOverallPrecedence(t *testing.T) {
	r, _, cfg := newTestRegistry(t)

	if got := r.Overall(); got != OverallDisconnected {
		t.Errorf("Overall = %q, want disconnected before the server is up", got)
	}

	r.SetConnected(true)
	if got := r.Overall(); got != OverallIdle {
		t.Errorf("Overall = %q, want idle with no sessions", got)
	}

	r.OnStart("s1", "claude", "demo", 1)
	if got := r.Overall(); got != OverallWorking {
		t.Errorf("Overall = %q, want working", got)
	}

	r.OnStateChange("s1", StateAwaitingApproval, "", nil)
	if got := r.Overall(); got != OverallAttention {
		t.Errorf("Overall = %q, want attention", got)
	}

	if err := cfg.SetPaused(true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if got := r.Overall(); got != OverallPaused {
		t.Errorf("Overall = %q, want paused to outrank attention", got)
	}

	r.SetConnected(false)
	if got := r.Overall(); got != OverallDisconnected {
		t.Errorf("Overall = %q, want disconnected to outrank everything", got)
	}
}

func TestClearCompleted(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("working", "claude", "a", 1)
	r.OnStart("idle", "claude", "b", 2)
	r.OnStateChange("idle", StateIdle, "", nil)
	r.OnStart("done", "claude", "c", 3)
	r.OnEnd("done", 0)
	r.OnStart("failed", "claude", "d", 4)
	r.OnEnd("failed", 1)

	if removed := r.ClearCompleted(); removed != 3 {
		t.Errorf("ClearCompleted removed %d, want 3", removed)
	}

	sessions := r.Sessions()
	if len(sessions) != 1 || sessions[0].ID != "working" {
		t.Errorf("ClearCompleted kept %#v, want only the working session", sessions)
	}
}

func TestRemove(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("s1", "claude", "a", 1)
	r.OnStart("s2", "claude", "b", 2)

	if !r.Remove("s1") {
		t.Error("Remove(s1) = false, want true")
	}

	sessions := r.Sessions()
	if len(sessions) != 1 || sessions[0].ID != "s2" {
		t.Errorf("Remove left %#v", sessions)
	}

	// Removing an unknown id is a no-op.
	if r.Remove("ghost") {
		t.Error("Remove(ghost) = true, want false")
	}
	if got := len(r.Sessions()); got != 1 {
		t.Errorf("Remove(ghost) changed session count to %d", got)
	}
}

func TestSweepStale(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	r.OnStart("fresh", "claude", "a", 1)
	r.OnStart("old", "claude", "b", 2)

	r.mu.Lock()
	for _, s := range r.sessions {
		switch s.ID {
		case "fresh":
			s.LastUpdateTime = time.Now().Add(-23 * time.Hour)
		case "old":
			s.LastUpdateTime = time.Now().Add(-25 * time.Hour)
		}
	}
	r.mu.Unlock()

	r.sweepStale()

	sessions := r.Sessions()
	if len(sessions) != 1 || sessions[0].ID != "fresh" {
		t.Errorf("sweep kept %#v, want only the 23h-old session", sessions)
	}
}

func TestRevisionAdvancesOnMutation(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	before := r.Revision()
	r.OnStart("s1", "claude", "demo", 1)
	if r.Revision() == before {
		t.Error("Revision did not advance after OnStart")
	}

	before = r.Revision()
	r.OnStateChange("s1", StateIdle, "", nil)
	if r.Revision() == before {
		t.Error("Revision did not advance after OnStateChange")
	}
}
