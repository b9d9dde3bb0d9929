package state

import (
	"fmt"
	"time"
)

// CreateReminder appends a pending reminder and persists. The id combines a
// monotonically increasing sequence number with the scheduled epoch time, so
// ids stay unique for the document's lifetime even across restarts.
func (s *Store) CreateReminder(runAt time.Time, chatID, content string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	r := Reminder{
		ID:      fmt.Sprintf("remind_%d_%d", s.seq, runAt.Unix()),
		RunAt:   runAt.UTC().Truncate(time.Second),
		ChatID:  chatID,
		Content: content,
		Status:  StatusPending,
	}
	s.st.Reminders = append(s.st.Reminders, r)

	if err := s.persistLocked(); err != nil {
		s.st.Reminders = s.st.Reminders[:len(s.st.Reminders)-1]
		s.seq--
		return Reminder{}, err
	}
	return r, nil
}

// UpdateReminderStatus moves a reminder out of pending. The transition is
// guarded: whichever of fire/cancel commits first wins, the other gets
// ErrInvalidState instead of silently double-processing.
func (s *Store) UpdateReminderStatus(id string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.st.Reminders {
		r := &s.st.Reminders[i]
		if r.ID != id {
			continue
		}
		if r.Status != StatusPending {
			return fmt.Errorf("reminder %s is %s: %w", id, r.Status, ErrInvalidState)
		}
		prev := r.Status
		r.Status = to
		if err := s.persistLocked(); err != nil {
			r.Status = prev
			return err
		}
		return nil
	}
	return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
}

// Reminder returns the record with the given id.
func (s *Store) Reminder(id string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.st.Reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return Reminder{}, fmt.Errorf("reminder %s: %w", id, ErrNotFound)
}

// PendingReminders returns all reminders still pending, in creation order.
func (s *Store) PendingReminders() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reminder
	for _, r := range s.st.Reminders {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out
}
