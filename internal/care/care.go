// Package care decides when the pet is overdue for attention. It is pure
// policy evaluation with no side effects and no storage access.
package care

import "time"

// Kind is a tracked care action.
type Kind string

const (
	Feed  Kind = "feed"
	Drink Kind = "drink"
	Sleep Kind = "sleep"
)

// Kinds returns all tracked kinds in a stable order.
func Kinds() []Kind {
	return []Kind{Feed, Drink, Sleep}
}

// Thresholds is the maximum allowed elapsed hours since each action kind.
type Thresholds struct {
	Feed  float64
	Drink float64
	Sleep float64
}

var DefaultThresholds = Thresholds{Feed: 6, Drink: 4, Sleep: 18}

func (t Thresholds) For(kind Kind) float64 {
	switch kind {
	case Feed:
		return t.Feed
	case Drink:
		return t.Drink
	case Sleep:
		return t.Sleep
	}
	return 0
}

// IsDue reports whether a care action is overdue. A nil last means the action
// has never happened and is treated as infinitely overdue. Elapsed time is
// wall-clock hours; exactly hitting the threshold counts as due. Both
// timestamps are expected in UTC.
func IsDue(last *time.Time, thresholdHours float64, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last).Hours() >= thresholdHours
}
