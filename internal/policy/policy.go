package policy

import (
	"fmt"
	"time"
)

// DefaultMaxWindow is the longest a patron may keep a copy.
const DefaultMaxWindow = 7 * 24 * time.Hour

// Reason explains why a due date was rejected.
type Reason string

const (
	ReasonPastDate         Reason = "PAST_DATE"
	ReasonExceedsMaxWindow Reason = "EXCEEDS_MAX_WINDOW"
)

// RejectedError is returned by ValidateDueDate when the requested due date
// falls outside [now, now+window].
type RejectedError struct {
	Reason    Reason
	Requested time.Time
	Latest    time.Time
}

func (e *RejectedError) Error() string {
	switch e.Reason {
	case ReasonPastDate:
		return fmt.Sprintf("due date %s is in the past", e.Requested.Format(time.RFC3339))
	case ReasonExceedsMaxWindow:
		return fmt.Sprintf("due date %s is after the latest allowed %s", e.Requested.Format(time.RFC3339), e.Latest.Format(time.RFC3339))
	default:
		return fmt.Sprintf("due date rejected: %s", e.Reason)
	}
}

// Policy holds the borrowing-window rules. The zero value uses DefaultMaxWindow.
type Policy struct {
	MaxWindow time.Duration
}

// New returns a Policy with the given window, falling back to the default
// for non-positive values.
func New(maxWindow time.Duration) Policy {
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	return Policy{MaxWindow: maxWindow}
}

// FromDays is New for a whole number of days.
func FromDays(days int) Policy {
	return New(time.Duration(days) * 24 * time.Hour)
}

func (p Policy) window() time.Duration {
	if p.MaxWindow <= 0 {
		return DefaultMaxWindow
	}
	return p.MaxWindow
}

// LatestDueDate is the last instant a loan taken at now may be due.
func (p Policy) LatestDueDate(now time.Time) time.Time {
	return now.Add(p.window())
}

// ValidateDueDate accepts requested iff now <= requested <= now+window.
func (p Policy) ValidateDueDate(requested, now time.Time) error {
	latest := p.LatestDueDate(now)
	if requested.Before(now) {
		return &RejectedError{Reason: ReasonPastDate, Requested: requested, Latest: latest}
	}
	if requested.After(latest) {
		return &RejectedError{Reason: ReasonExceedsMaxWindow, Requested: requested, Latest: latest}
	}
	return nil
}

// IsOverdue reports whether dueDate has passed. Only meaningful for loans
// that still hold a copy.
func IsOverdue(dueDate, now time.Time) bool {
	return dueDate.Before(now)
}

// OnDay moves now onto the calendar day of day (UTC), keeping now's time of
// day. A date-only due date of "today" therefore resolves to now and
// "today + window days" to exactly now+window.
func OnDay(day, now time.Time) time.Time {
	now = now.UTC()
	y, m, d := day.Date()
	return time.Date(y, m, d, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
}
