package daemon

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ihavespoons/attn/internal/audit"
	"github.com/ihavespoons/attn/internal/config"
	"github.com/ihavespoons/attn/internal/notify"
	"github.com/ihavespoons/attn/internal/session"
)

// Handlers contains the HTTP handlers for the daemon API.
type Handlers struct {
	registry   *session.Registry
	dispatcher *notify.Dispatcher
	cfg        *config.Manager
	store      *audit.Store
	startedAt  time.Time
	version    string
}

// NewHandlers creates a new handlers instance. store may be nil when the
// notification log is disabled.
func NewHandlers(registry *session.Registry, dispatcher *notify.Dispatcher, cfg *config.Manager, store *audit.Store, version string) *Handlers {
	return &Handlers{
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		store:      store,
		startedAt:  time.Now(),
		version:    version,
	}
}

// Health handles the health check endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt: h.startedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sessions handles the sessions list endpoint.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.Sessions()
	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Summary handles the aggregate status endpoint.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.summary())
}

func (h *Handlers) summary() SummaryResponse {
	settings := h.cfg.Settings()

	resp := SummaryResponse{
		Overall:           string(h.registry.Overall()),
		Listening:         h.registry.Connected(),
		Paused:            settings.Paused,
		AttentionNeeded:   h.registry.HasAttentionNeeded(),
		ActiveSessions:    len(h.registry.ActiveSessions()),
		RecentlyCompleted: len(h.registry.RecentlyCompleted()),
		LastError:         h.dispatcher.LastError(),
		ConnectionHealthy: h.dispatcher.Healthy(),
		SubscribeURL:      settings.Ntfy.SubscribeURL(),
	}
	if last := h.dispatcher.LastSuccessfulSend(); !last.IsZero() {
		resp.LastSuccessfulSend = &last
	}
	return resp
}

// NotifyTest handles the test notification endpoint. The send bypasses
// the policy gates so it works even while paused.
func (h *Handlers) NotifyTest(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.SendTest(); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Pause handles the global pause toggle endpoint.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.cfg.SetPaused(req.Paused); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

// ClearCompleted handles the endpoint that removes terminal sessions.
func (h *Handlers) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed := h.registry.ClearCompleted()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// RemoveSession handles deleting a single session from the registry.
func (h *Handlers) RemoveSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	if !h.registry.Remove(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

// Log handles the notification log endpoint.
func (h *Handlers) Log(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []LogResponse{})
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	records, err := h.store.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]LogResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, LogResponse{
			ID:        rec.ID,
			SessionID: rec.SessionID,
			Category:  rec.Category,
			Title:     rec.Title,
			Body:      rec.Body,
			Priority:  rec.Priority,
			Tags:      rec.Tags,
			SentAt:    rec.SentAt,
			Success:   rec.Success,
			Error:     rec.Error,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
