package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ihavespoons/attn/internal/audit"
	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/logger"
	"github.com/ihavespoons/attn/internal/session"
)

const (
	// debounceInterval suppresses repeat notifications for one session.
	debounceInterval = 30 * time.Second

	// minWorkingDuration is the least time a session must have worked
	// before an idle transition is treated as a completion signal.
	minWorkingDuration = 30

	healthCheckInterval = 60 * time.Second
	sendTimeout         = 10 * time.Second
	healthCheckTimeout  = 5 * time.Second
)

// Category names used for audit records and per-category settings.
const (
	CategoryApproval  = "approval"
	CategoryCompleted = "completed"
	CategoryError     = "error"
	CategoryTest      = "test"
)

// Dispatcher decides whether a state transition warrants a push
// notification and performs the best-effort ntfy send. Sends are
// fire-and-forget: a failure is recorded for the status API but never
// retried, since a later transition may succeed on its own.
type Dispatcher struct {
	cfg   *config.Manager
	dnd   DNDChecker
	store *audit.Store

	client       *http.Client
	healthClient *http.Client

	mu                 sync.Mutex
	debounce           map[string]time.Time
	lastError          string
	lastSuccessfulSend time.Time
	healthy            bool

	wg  sync.WaitGroup
	now func() time.Time
}

// NewDispatcher creates a dispatcher. The audit store may be nil; sends
// then simply go unrecorded.
func NewDispatcher(cfg *config.Manager, store *audit.Store) *Dispatcher {
	return &Dispatcher{
		cfg:          cfg,
		dnd:          newSystemDNDChecker(),
		store:        store,
		client:       &http.Client{Timeout: sendTimeout},
		healthClient: &http.Client{Timeout: healthCheckTimeout},
		debounce:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// SessionTransition implements session.Notifier.
func (d *Dispatcher) SessionTransition(s session.Session, previous session.State, workingDurationSecs *int) {
	settings := d.cfg.Settings()
	if settings.Paused {
		return
	}

	switch s.State {
	case session.StateAwaitingApproval:
		if !settings.Notifications.Approval.Enabled {
			return
		}
		d.send(CategoryApproval, s.ProjectName,
			fmt.Sprintf("%s is waiting for approval", titleCase(s.Tool)),
			settings.Notifications.Approval.Priority, []string{"warning"}, s.ID)

	case session.StateCompleted:
		if !settings.Notifications.Completed.Enabled {
			return
		}
		// The user already acted on an approval prompt; telling them the
		// same task finished would be a duplicate.
		if previous == session.StateAwaitingApproval {
			return
		}
		d.send(CategoryCompleted, s.ProjectName,
			fmt.Sprintf("%s finished", titleCase(s.Tool)),
			settings.Notifications.Completed.Priority, []string{"white_check_mark"}, s.ID)

	case session.StateError:
		if !settings.Notifications.Error.Enabled {
			return
		}
		d.send(CategoryError, s.ProjectName,
			fmt.Sprintf("%s encountered an error", titleCase(s.Tool)),
			settings.Notifications.Error.Priority, []string{"x"}, s.ID)

	case session.StateIdle:
		// Idle is a soft completion signal, but only when it follows
		// genuine work rather than a short burst or an approval prompt.
		if !settings.Notifications.Completed.Enabled {
			return
		}
		if previous != session.StateWorking {
			return
		}
		if workingDurationSecs != nil && *workingDurationSecs < minWorkingDuration {
			return
		}
		d.send(CategoryCompleted, s.ProjectName,
			fmt.Sprintf("%s finished", titleCase(s.Tool)),
			settings.Notifications.Completed.Priority, []string{"white_check_mark"}, s.ID)

	case session.StateWorking:
		// Never notify for working.
	}
}

// send applies the suppression gates and posts asynchronously when they
// all pass. Gate order: debounce, quiet hours, DND.
func (d *Dispatcher) send(category, title, message string, priority config.Priority, tags []string, sessionID string) {
	settings := d.cfg.Settings()
	now := d.now()

	d.mu.Lock()
	if lastSent, ok := d.debounce[sessionID]; ok && now.Sub(lastSent) < debounceInterval {
		d.mu.Unlock()
		logger.Debug().Str("session", sessionID).Msg("Debouncing notification")
		return
	}

	if settings.QuietHours.ActiveAt(now) {
		d.mu.Unlock()
		logger.Debug().Msg("Quiet hours active, skipping notification")
		return
	}

	if settings.RespectDND && d.dnd.Enabled() {
		d.mu.Unlock()
		logger.Debug().Msg("Do Not Disturb enabled, skipping notification")
		return
	}

	// Record the debounce timestamp before the network call so rapid
	// duplicate transitions cannot race past the gate.
	d.debounce[sessionID] = now
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.post(category, sessionID, title, message, priority.NtfyValue(), strings.Join(tags, ","))
	}()
}

// SendTest bypasses every suppression gate but uses the same transport
// and health tracking. It exists to validate configuration.
func (d *Dispatcher) SendTest() error {
	d.mu.Lock()
	d.lastError = ""
	d.mu.Unlock()

	ok := d.post(CategoryTest, "", "attn test",
		"If you see this, notifications are working!",
		config.PriorityDefault.NtfyValue(), "tada")
	if !ok {
		return fmt.Errorf("test notification failed: %s", d.LastError())
	}
	return nil
}

// post performs the HTTP send and records the outcome.
func (d *Dispatcher) post(category, sessionID, title, message string, priority int, tags string) bool {
	ntfy := d.cfg.Settings().Ntfy
	url := ntfy.Server + "/" + ntfy.Topic

	success := false
	sendErr := ""

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		sendErr = fmt.Sprintf("invalid ntfy URL: %v", err)
	} else {
		req.Header.Set("Title", title)
		req.Header.Set("Priority", strconv.Itoa(priority))
		req.Header.Set("Tags", tags)

		resp, err := d.client.Do(req)
		switch {
		case err != nil:
			sendErr = err.Error()
		case resp.StatusCode == http.StatusOK:
			success = true
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		default:
			sendErr = fmt.Sprintf("HTTP %d", resp.StatusCode)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}

	d.mu.Lock()
	if success {
		d.lastError = ""
		d.lastSuccessfulSend = d.now()
		d.healthy = true
	} else {
		d.lastError = sendErr
	}
	d.mu.Unlock()

	if success {
		logger.Debug().Str("category", category).Str("title", title).Msg("Notification sent")
	} else {
		logger.Warn().Str("category", category).Str("error", sendErr).Msg("Notification send failed")
	}

	if d.store != nil {
		rec := &audit.Record{
			SessionID: sessionID,
			Category:  category,
			Title:     title,
			Body:      message,
			Priority:  priority,
			Tags:      tags,
			SentAt:    d.now(),
			Success:   success,
			Error:     sendErr,
		}
		if err := d.store.Add(rec); err != nil {
			logger.Debug().Err(err).Msg("Failed to record notification")
		}
	}

	return success
}

// CheckHealth probes the ntfy server with a lightweight HEAD request,
// independent of actual notification sends.
func (d *Dispatcher) CheckHealth() {
	server := d.cfg.Settings().Ntfy.Server

	healthy := false
	req, err := http.NewRequest(http.MethodHead, server, nil)
	if err == nil {
		resp, err := d.healthClient.Do(req)
		if err == nil {
			healthy = resp.StatusCode == http.StatusOK
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}

	d.mu.Lock()
	d.healthy = healthy
	d.mu.Unlock()
}

// StartHealthChecks probes immediately and then on a fixed interval
// until the context is cancelled.
func (d *Dispatcher) StartHealthChecks(ctx context.Context) {
	go func() {
		d.CheckHealth()

		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.CheckHealth()
			}
		}
	}()
}

// LastError returns the most recent send failure, empty when the last
// send succeeded.
func (d *Dispatcher) LastError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastError
}

// LastSuccessfulSend returns when a notification last went through;
// zero when none has.
func (d *Dispatcher) LastSuccessfulSend() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSuccessfulSend
}

// Healthy reports whether the ntfy server looked reachable at the last
// probe or send.
func (d *Dispatcher) Healthy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.healthy
}

// ClearDebounce drops the debounce entry for one session.
func (d *Dispatcher) ClearDebounce(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.debounce, sessionID)
}

// ClearAllDebounce drops every debounce entry.
func (d *Dispatcher) ClearAllDebounce() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debounce = make(map[string]time.Time)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
