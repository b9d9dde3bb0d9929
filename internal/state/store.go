package state

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/chris/mochi/internal/care"
)

var (
	ErrNotFound     = errors.New("reminder not found")
	ErrInvalidState = errors.New("reminder already terminal")
)

const defaultDoc = `{"last_feed":null,"last_drink":null,"last_sleep":null,"home_chat":"","users":{},"reminders":[]}`

// Store guards the document with one mutex across mutate+persist, so the file
// on disk always reflects a complete mutation. The raw persisted bytes are
// kept alongside the decoded state; known fields are spliced into them on
// every write, which leaves unknown top-level fields intact.
type Store struct {
	path string

	mu  sync.Mutex
	raw []byte
	st  PetState
	seq int // reminders ever created in this document
}

// Open loads the document at path, creating a default empty one if absent.
// A document that exists but does not decode is an error, not something to
// repair silently.
func Open(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		raw = []byte(defaultDoc)
		if err := os.WriteFile(path, raw, 0644); err != nil {
			return nil, fmt.Errorf("writing initial state: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("decoding %s: not valid JSON", path)
	}
	st, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &Store{path: path, raw: raw, st: st, seq: len(st.Reminders)}, nil
}

// RecordAction sets the last-action timestamp for kind and persists. The
// issuing chat becomes the home chat for care notifications, and the user's
// record is refreshed.
func (s *Store) RecordAction(kind care.Kind, chatID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.st
	ts := at.UTC().Truncate(time.Second)

	switch kind {
	case care.Feed:
		s.st.LastFeed = &ts
	case care.Drink:
		s.st.LastDrink = &ts
	case care.Sleep:
		s.st.LastSleep = &ts
	default:
		return fmt.Errorf("unknown action kind %q", kind)
	}
	if chatID != "" {
		s.st.HomeChat = chatID
	}
	if userID != "" {
		users := maps.Clone(s.st.Users)
		if users == nil {
			users = make(map[string]User)
		}
		users[userID] = User{ChatID: chatID, LastSeen: ts}
		s.st.Users = users
	}

	if err := s.persistLocked(); err != nil {
		s.st = prev
		return err
	}
	return nil
}

// Snapshot returns a read-only copy of the current state.
func (s *Store) Snapshot() PetState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st
	snap.LastFeed = cloneTime(s.st.LastFeed)
	snap.LastDrink = cloneTime(s.st.LastDrink)
	snap.LastSleep = cloneTime(s.st.LastSleep)
	snap.Users = maps.Clone(s.st.Users)
	snap.Reminders = slices.Clone(s.st.Reminders)
	return snap
}

// persistLocked splices the typed fields into the raw document and overwrites
// the file. Callers hold s.mu and roll back their in-memory change on error.
func (s *Store) persistLocked() error {
	raw := s.raw
	var err error

	for _, f := range []struct {
		key string
		t   *time.Time
	}{
		{"last_feed", s.st.LastFeed},
		{"last_drink", s.st.LastDrink},
		{"last_sleep", s.st.LastSleep},
	} {
		if f.t == nil {
			raw, err = sjson.SetBytes(raw, f.key, nil)
		} else {
			raw, err = sjson.SetBytes(raw, f.key, f.t.UTC().Format(time.RFC3339))
		}
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.key, err)
		}
	}
	if raw, err = sjson.SetBytes(raw, "home_chat", s.st.HomeChat); err != nil {
		return fmt.Errorf("encoding home_chat: %w", err)
	}
	users := s.st.Users
	if users == nil {
		users = make(map[string]User)
	}
	if raw, err = sjson.SetBytes(raw, "users", users); err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}
	reminders := s.st.Reminders
	if reminders == nil {
		reminders = []Reminder{}
	}
	if raw, err = sjson.SetBytes(raw, "reminders", reminders); err != nil {
		return fmt.Errorf("encoding reminders: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	s.raw = raw
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
