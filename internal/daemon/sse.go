package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ihavespoons/attn/internal/logger"
)

// SSEBroadcaster manages SSE connections and pushes session snapshots to
// subscribed presentation clients. It polls the registry revision rather
// than hooking into the event path, so a burst of socket events collapses
// into at most one push per poll interval.
type SSEBroadcaster struct {
	clients      map[chan SSEEvent]bool
	mu           sync.RWMutex
	handlers     *Handlers
	lastRevision uint64
	pollInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewSSEBroadcaster creates a new SSE broadcaster.
func NewSSEBroadcaster(handlers *Handlers) *SSEBroadcaster {
	return &SSEBroadcaster{
		clients:      make(map[chan SSEEvent]bool),
		handlers:     handlers,
		pollInterval: 500 * time.Millisecond,
		stopCh:       make(chan struct{}),
	}
}

// Start begins polling for registry changes.
func (b *SSEBroadcaster) Start(ctx context.Context) {
	b.wg.Add(2)

	go func() {
		defer b.wg.Done()
		b.pollForChanges(ctx)
	}()

	go func() {
		defer b.wg.Done()
		b.sendHeartbeats(ctx)
	}()
}

// Stop stops the broadcaster and closes all client channels.
func (b *SSEBroadcaster) Stop() {
	close(b.stopCh)
	b.wg.Wait()

	b.mu.Lock()
	for ch := range b.clients {
		close(ch)
		delete(b.clients, ch)
	}
	b.mu.Unlock()
}

// Subscribe adds a new client to receive events.
func (b *SSEBroadcaster) Subscribe() chan SSEEvent {
	ch := make(chan SSEEvent, 100)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client.
func (b *SSEBroadcaster) Unsubscribe(ch chan SSEEvent) {
	b.mu.Lock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Broadcast sends an event to all connected clients.
func (b *SSEBroadcaster) Broadcast(event SSEEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.clients {
		select {
		case ch <- event:
		default:
			// Channel is full, skip this client
			logger.Debug().Msg("SSE client channel full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *SSEBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroadcaster) pollForChanges(ctx context.Context) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.checkForChanges()
		}
	}
}

func (b *SSEBroadcaster) checkForChanges() {
	rev := b.handlers.registry.Revision()
	if rev == b.lastRevision {
		return
	}
	b.lastRevision = rev

	b.Broadcast(SSEEvent{
		Type: SSESessions,
		Data: b.snapshot(),
	})
}

func (b *SSEBroadcaster) snapshot() SessionsEvent {
	sessions := b.handlers.registry.Sessions()
	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse(s))
	}
	return SessionsEvent{
		Sessions: resp,
		Summary:  b.handlers.summary(),
	}
}

func (b *SSEBroadcaster) sendHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.Broadcast(SSEEvent{
				Type: SSEHeartbeat,
				Data: map[string]any{
					"time":    time.Now().UTC(),
					"clients": b.ClientCount(),
				},
			})
		}
	}
}

// ServeHTTP handles SSE connections.
func (b *SSEBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// New clients get the current snapshot immediately instead of
	// waiting for the next change.
	writeSSEEvent(w, SSEEvent{
		Type: SSESessions,
		Data: b.snapshot(),
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event SSEEvent) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\n", event.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
