// Package scheduler owns the timer set: one-shot reminders armed per record
// and the recurring care check. It consults the state store on every fire and
// emits notification events through an injected send func; how messages reach
// the user is the transport's business.
package scheduler

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chris/mochi/internal/care"
	"github.com/chris/mochi/internal/state"
)

// ErrBadTime rejects reminder requests whose time spec is not HH:MM.
var ErrBadTime = errors.New("invalid time, want HH:MM (24-hour)")

// Notify delivers one outbound message to a chat. Delivery failures are
// logged, never retried here.
type Notify func(chatID, text string) error

type Options struct {
	Thresholds    care.Thresholds
	CheckInterval time.Duration
	// NotifyCooldown suppresses repeat care notifications for the same
	// overdue kind within the window. Zero re-notifies on every check.
	NotifyCooldown time.Duration
}

type Scheduler struct {
	store  *state.Store
	opts   Options
	notify Notify
	cron   *cron.Cron

	mu           sync.Mutex
	timers       map[string]*time.Timer // reminder id -> armed timer
	lastNotified map[care.Kind]time.Time
}

func New(store *state.Store, opts Options, notify Notify) *Scheduler {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 30 * time.Minute
	}
	return &Scheduler{
		store:        store,
		opts:         opts,
		notify:       notify,
		cron:         cron.New(),
		timers:       make(map[string]*time.Timer),
		lastNotified: make(map[care.Kind]time.Time),
	}
}

// Start re-arms pending reminders from the store, registers the recurring
// care check, and starts the cron. Reminders already past due fire
// immediately; the guarded status transition keeps them single-shot.
func (s *Scheduler) Start() {
	restored := s.restorePending()

	spec := fmt.Sprintf("@every %s", s.opts.CheckInterval)
	if _, err := s.cron.AddFunc(spec, func() {
		s.CheckCare(time.Now().UTC())
	}); err != nil {
		log.Printf("scheduler: registering care check: %v", err)
	}
	s.cron.Start()

	log.Printf("scheduler started: %d reminder(s) re-armed, care check %s", restored, spec)
}

func (s *Scheduler) Stop() {
	s.cron.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) restorePending() int {
	pending := s.store.PendingReminders()
	now := time.Now().UTC()
	for _, r := range pending {
		s.arm(r, now)
	}
	return len(pending)
}

// ParseClock parses a strict 24-hour "HH:MM" spec.
func ParseClock(clock string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q: %w", clock, ErrBadTime)
	}
	hour, herr := strconv.Atoi(hh)
	minute, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q: %w", clock, ErrBadTime)
	}
	return hour, minute, nil
}

// ScheduleOneShot creates and arms a reminder for the next occurrence of
// clock (UTC). If that time of day has already passed, it rolls forward one
// day. Validation happens before any state mutation.
func (s *Scheduler) ScheduleOneShot(clock, content, chatID string, now time.Time) (state.Reminder, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return state.Reminder{}, err
	}

	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}

	r, err := s.store.CreateReminder(candidate, chatID, content)
	if err != nil {
		return state.Reminder{}, err
	}
	s.arm(r, now)
	return r, nil
}

// arm sets the one-shot timer for a reminder. At most one timer exists per
// reminder id.
func (s *Scheduler) arm(r state.Reminder, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[r.ID]; ok {
		return
	}
	d := r.RunAt.Sub(now)
	if d < 0 {
		d = 0
	}
	id := r.ID
	s.timers[id] = time.AfterFunc(d, func() { s.fire(id) })
}

// fire handles a timer callback. Whatever goes wrong in here is logged and
// isolated; one failing reminder never takes down the scheduler.
func (s *Scheduler) fire(id string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("reminder[%s]: panic: %v", id, r)
		}
	}()

	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	r, err := s.store.Reminder(id)
	if err != nil {
		log.Printf("reminder[%s]: %v", id, err)
		return
	}

	if err := s.store.UpdateReminderStatus(id, state.StatusFired); err != nil {
		if errors.Is(err, state.ErrInvalidState) {
			// Cancelled (or already fired) underneath us: no-op.
			return
		}
		log.Printf("reminder[%s]: marking fired: %v", id, err)
		return
	}

	if err := s.notify(r.ChatID, "🔔 Reminder: "+r.Content); err != nil {
		log.Printf("reminder[%s]: delivering: %v", id, err)
	}
}

// Cancel withdraws a pending reminder. The store arbitrates the race against
// an in-flight fire; only the winning transition disarms the timer.
func (s *Scheduler) Cancel(id string) error {
	if err := s.store.UpdateReminderStatus(id, state.StatusCancelled); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	return nil
}

// CheckCare evaluates every care kind against its threshold and notifies the
// home chat for each overdue one. It re-evaluates from persisted state each
// tick; repeat notifications are governed only by the cooldown policy.
func (s *Scheduler) CheckCare(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("care check: panic: %v", r)
		}
	}()

	snap := s.store.Snapshot()
	for _, kind := range care.Kinds() {
		last := snap.LastAction(kind)
		if !care.IsDue(last, s.opts.Thresholds.For(kind), now) {
			// Back under threshold: the next overdue window notifies again.
			s.mu.Lock()
			delete(s.lastNotified, kind)
			s.mu.Unlock()
			continue
		}

		if s.onCooldown(kind, now) {
			continue
		}
		if snap.HomeChat == "" {
			log.Printf("care check: %s overdue but no home chat recorded yet", kind)
			continue
		}
		if err := s.notify(snap.HomeChat, overdueMessage(kind, last, now)); err != nil {
			log.Printf("care check: notifying %s overdue: %v", kind, err)
			continue
		}

		s.mu.Lock()
		s.lastNotified[kind] = now
		s.mu.Unlock()
	}
}

func (s *Scheduler) onCooldown(kind care.Kind, now time.Time) bool {
	if s.opts.NotifyCooldown <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastNotified[kind]
	return ok && now.Sub(t) < s.opts.NotifyCooldown
}

func overdueMessage(kind care.Kind, last *time.Time, now time.Time) string {
	if last == nil {
		return fmt.Sprintf("⚠️ There is no %s on record yet. Time for /%s!", kind, kind)
	}
	return fmt.Sprintf("⚠️ It has been %.1f hours since the last %s. Time for /%s!", now.Sub(*last).Hours(), kind, kind)
}
