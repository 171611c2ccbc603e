package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ihavespoons/attn/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger.InitQuiet()

	store, err := NewStore(filepath.Join(t.TempDir(), "notifications.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAddAssignsID(t *testing.T) {
	store := newTestStore(t)

	rec := &Record{
		SessionID: "s1",
		Category:  "approval",
		Title:     "demo",
		Body:      "Claude is waiting for approval",
		Priority:  5,
		Tags:      "warning",
		Success:   true,
	}
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if rec.ID == "" {
		t.Error("Add did not assign an ID")
	}
	if rec.SentAt.IsZero() {
		t.Error("Add did not assign a timestamp")
	}
}

func TestRecentOrdering(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	for i, category := range []string{"approval", "completed", "error"} {
		rec := &Record{
			SessionID: "s1",
			Category:  category,
			SentAt:    now.Add(time.Duration(i) * time.Minute),
			Success:   true,
		}
		if err := store.Add(rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Recent returned %d records, want 3", len(records))
	}
	if records[0].Category != "error" || records[2].Category != "approval" {
		t.Errorf("unexpected ordering: %q then %q", records[0].Category, records[2].Category)
	}

	limited, err := store.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(limited) != 1 || limited[0].Category != "error" {
		t.Errorf("limit 1 returned %#v", limited)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	store := newTestStore(t)

	in := &Record{
		SessionID: "s1",
		Category:  "error",
		Title:     "demo",
		Body:      "Claude encountered an error",
		Priority:  4,
		Tags:      "x",
		Success:   false,
		Error:     "HTTP 502",
	}
	if err := store.Add(in); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, err := store.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	got := records[0]
	if got.SessionID != in.SessionID || got.Category != in.Category || got.Priority != in.Priority {
		t.Errorf("round trip mismatch: %#v", got)
	}
	if got.Success {
		t.Error("failure flag lost")
	}
	if got.Error != "HTTP 502" {
		t.Errorf("Error = %q, want HTTP 502", got.Error)
	}
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)

	old := &Record{Category: "completed", SentAt: time.Now().Add(-48 * time.Hour), Success: true}
	fresh := &Record{Category: "completed", SentAt: time.Now(), Success: true}
	for _, rec := range []*Record{old, fresh} {
		if err := store.Add(rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	deleted, err := store.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune deleted %d, want 1", deleted)
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 || records[0].ID != fresh.ID {
		t.Errorf("Prune kept %#v, want only the fresh record", records)
	}
}
