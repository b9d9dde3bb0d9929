// Package state owns the persisted pet document: last-action timestamps, the
// reminder registry, and per-user records. Every mutation rewrites the whole
// document on disk before it is considered complete.
package state

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chris/mochi/internal/care"
)

// Status is a reminder's lifecycle state. fired and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFired     Status = "fired"
	StatusCancelled Status = "cancelled"
)

type Reminder struct {
	ID      string    `json:"id"`
	RunAt   time.Time `json:"run_at"`
	ChatID  string    `json:"chat_id"`
	Content string    `json:"content"`
	Status  Status    `json:"status"`
}

// User is an opaque per-user record, kept for future per-user thresholds.
type User struct {
	ChatID   string    `json:"chat_id"`
	LastSeen time.Time `json:"last_seen"`
}

type PetState struct {
	LastFeed  *time.Time
	LastDrink *time.Time
	LastSleep *time.Time
	HomeChat  string
	Users     map[string]User
	Reminders []Reminder
}

// LastAction returns the recorded timestamp for a care kind, nil if it has
// never happened.
func (p PetState) LastAction(kind care.Kind) *time.Time {
	switch kind {
	case care.Feed:
		return p.LastFeed
	case care.Drink:
		return p.LastDrink
	case care.Sleep:
		return p.LastSleep
	}
	return nil
}

func decode(raw []byte) (PetState, error) {
	doc := gjson.ParseBytes(raw)
	var st PetState
	var err error

	if st.LastFeed, err = parseTime(doc.Get("last_feed")); err != nil {
		return PetState{}, fmt.Errorf("last_feed: %w", err)
	}
	if st.LastDrink, err = parseTime(doc.Get("last_drink")); err != nil {
		return PetState{}, fmt.Errorf("last_drink: %w", err)
	}
	if st.LastSleep, err = parseTime(doc.Get("last_sleep")); err != nil {
		return PetState{}, fmt.Errorf("last_sleep: %w", err)
	}
	st.HomeChat = doc.Get("home_chat").String()

	st.Users = make(map[string]User)
	for id, u := range doc.Get("users").Map() {
		usr := User{ChatID: u.Get("chat_id").String()}
		seen, err := parseTime(u.Get("last_seen"))
		if err != nil {
			return PetState{}, fmt.Errorf("users.%s.last_seen: %w", id, err)
		}
		if seen != nil {
			usr.LastSeen = *seen
		}
		st.Users[id] = usr
	}

	for _, r := range doc.Get("reminders").Array() {
		runAt, err := parseTime(r.Get("run_at"))
		if err != nil || runAt == nil {
			return PetState{}, fmt.Errorf("reminder %s: bad run_at %q", r.Get("id").String(), r.Get("run_at").String())
		}
		status := Status(r.Get("status").String())
		if status == "" {
			// Documents written before status tracking: treat as pending.
			status = StatusPending
		}
		st.Reminders = append(st.Reminders, Reminder{
			ID:      r.Get("id").String(),
			RunAt:   *runAt,
			ChatID:  r.Get("chat_id").String(),
			Content: r.Get("content").String(),
			Status:  status,
		})
	}

	return st, nil
}

func parseTime(v gjson.Result) (*time.Time, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
