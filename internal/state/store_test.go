package state

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chris/mochi/internal/care"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	return s, path
}

// --- Open ---

func TestOpenCreatesDefaultDocument(t *testing.T) {
	s, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file to exist: %v", err)
	}
	snap := s.Snapshot()
	if snap.LastFeed != nil || snap.LastDrink != nil || snap.LastSleep != nil {
		t.Error("fresh document should have no recorded actions")
	}
	if len(snap.Reminders) != 0 {
		t.Errorf("fresh document should have no reminders, got %d", len(snap.Reminders))
	}
}

func TestOpenMalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `this is not json`},
		{"bad run_at", `{"reminders":[{"id":"x","run_at":"not-a-time"}]}`},
		{"bad last_feed", `{"last_feed":"yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.doc), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Open(path); err == nil {
				t.Fatal("expected decode error for malformed document")
			}
		})
	}
}

// --- RecordAction ---

func TestRecordActionPersists(t *testing.T) {
	s, path := openTestStore(t)

	at := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	if err := s.RecordAction(care.Feed, "chan1", "user1", at); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}

	snap := s.Snapshot()
	if snap.LastFeed == nil || !snap.LastFeed.Equal(at) {
		t.Errorf("LastFeed = %v, want %v", snap.LastFeed, at)
	}
	if snap.HomeChat != "chan1" {
		t.Errorf("HomeChat = %q, want %q", snap.HomeChat, "chan1")
	}
	if u, ok := snap.Users["user1"]; !ok || u.ChatID != "chan1" {
		t.Errorf("users[user1] = %+v, want chat chan1", snap.Users["user1"])
	}

	// Survives reload.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	snap2 := s2.Snapshot()
	if snap2.LastFeed == nil || !snap2.LastFeed.Equal(at) {
		t.Errorf("after reload LastFeed = %v, want %v", snap2.LastFeed, at)
	}
}

func TestRecordActionUnknownKind(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.RecordAction(care.Kind("bathe"), "c", "u", time.Now()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

// --- Reminders ---

func TestCreateReminderUniqueIDs(t *testing.T) {
	s, _ := openTestStore(t)

	runAt := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		r, err := s.CreateReminder(runAt, "chan1", "water the plants")
		if err != nil {
			t.Fatalf("CreateReminder: %v", err)
		}
		if seen[r.ID] {
			t.Fatalf("duplicate reminder id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Status != StatusPending {
			t.Errorf("new reminder status = %q, want pending", r.Status)
		}
	}
}

func TestCreateReminderIDsUniqueAcrossReload(t *testing.T) {
	s, path := openTestStore(t)

	runAt := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	r1, _ := s.CreateReminder(runAt, "c", "one")

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	r2, _ := s2.CreateReminder(runAt, "c", "two")
	if r1.ID == r2.ID {
		t.Errorf("ids collide across reload: %q", r1.ID)
	}
}

func TestUpdateReminderStatusGuarded(t *testing.T) {
	s, _ := openTestStore(t)

	r, _ := s.CreateReminder(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), "c", "x")

	if err := s.UpdateReminderStatus(r.ID, StatusFired); err != nil {
		t.Fatalf("pending -> fired: %v", err)
	}

	// Second transition loses.
	err := s.UpdateReminderStatus(r.ID, StatusCancelled)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("fired -> cancelled: got %v, want ErrInvalidState", err)
	}
	got, _ := s.Reminder(r.ID)
	if got.Status != StatusFired {
		t.Errorf("status = %q, want fired after losing transition", got.Status)
	}
}

func TestUpdateReminderStatusNotFound(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.UpdateReminderStatus("remind_99_0", StatusFired)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestPendingReminders(t *testing.T) {
	s, _ := openTestStore(t)

	runAt := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	r1, _ := s.CreateReminder(runAt, "c", "first")
	r2, _ := s.CreateReminder(runAt.Add(time.Hour), "c", "second")
	s.UpdateReminderStatus(r1.ID, StatusFired)

	pending := s.PendingReminders()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}
	if pending[0].ID != r2.ID {
		t.Errorf("pending[0].ID = %q, want %q", pending[0].ID, r2.ID)
	}
}

// --- Persistence round-trip ---

func TestRoundTrip(t *testing.T) {
	s, path := openTestStore(t)

	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s.RecordAction(care.Feed, "chan1", "user1", at)
	s.RecordAction(care.Drink, "chan2", "user2", at.Add(time.Hour))
	s.CreateReminder(at.Add(24*time.Hour), "chan1", "vet appointment")
	r, _ := s.CreateReminder(at.Add(25*time.Hour), "chan2", "buy litter")
	s.UpdateReminderStatus(r.ID, StatusCancelled)

	want := s.Snapshot()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	got := s2.Snapshot()

	if !reflect.DeepEqual(got, want) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestUnknownFieldsPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	doc := `{"last_feed":null,"last_drink":null,"last_sleep":null,"users":{},"reminders":[],"schema_version":3,"nickname":"fluffy"}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.RecordAction(care.Sleep, "c", "u", time.Now()); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if v := gjson.GetBytes(raw, "schema_version").Int(); v != 3 {
		t.Errorf("schema_version = %d, want 3 preserved on rewrite", v)
	}
	if v := gjson.GetBytes(raw, "nickname").String(); v != "fluffy" {
		t.Errorf("nickname = %q, want %q preserved on rewrite", v, "fluffy")
	}
}

func TestLegacyReminderWithoutStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	doc := `{"reminders":[{"id":"remind_1_1748800000","run_at":"2025-06-01T09:00:00Z","chat_id":"123","content":"old"}]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r, err := s.Reminder("remind_1_1748800000")
	if err != nil {
		t.Fatalf("Reminder: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("legacy status = %q, want pending", r.Status)
	}
}
