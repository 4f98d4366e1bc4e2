package interval

import (
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes the two interval sources on a worker's calendar.
type Kind string

const (
	KindPersonalTask Kind = "personal_task"
	KindBooking      Kind = "booking"
)

var (
	ErrEndBeforeStart = errors.New("interval end precedes start")
	ErrInvalidWeekday = errors.New("recurring weekday outside 1..7")
	ErrNoWeekdays     = errors.New("recurring interval has no weekdays")
)

// Interval is the unified calendar record: either a self-declared personal
// task or a committed task booking. Dates are whole days (midnight UTC),
// inclusive at both ends. For recurring personal tasks Start/End bound the
// validity window of the weekly pattern rather than a single busy range.
type Interval struct {
	ID            string
	OwnerID       string
	Kind          Kind
	Start         time.Time
	End           time.Time
	IsRecurring   bool
	RecurringDays []int // ISO weekdays, 1=Monday .. 7=Sunday
	CanSupport    bool  // personal tasks only; declared availability, never set on bookings
	IsFullDay     bool  // informational; overlap logic is whole-day regardless
	Title         string
	Description   string
	Status        string
}

// Validate rejects malformed intervals before they enter the scheduler.
// Inverted ranges and out-of-range weekdays are construction-time errors,
// never coerced.
func (iv Interval) Validate() error {
	if iv.End.Before(iv.Start) {
		return fmt.Errorf("%w: start=%s end=%s", ErrEndBeforeStart, iv.Start.Format(DateLayout), iv.End.Format(DateLayout))
	}
	if iv.IsRecurring {
		if len(iv.RecurringDays) == 0 {
			return ErrNoWeekdays
		}
		for _, d := range iv.RecurringDays {
			if d < 1 || d > 7 {
				return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
			}
		}
	}
	return nil
}

// Occurrence is a concrete single- or multi-day materialization of an
// Interval within a display window. Source keeps the unclipped record so
// editing gestures can mutate the true dates, not the clipped ones.
type Occurrence struct {
	Source Interval
	Start  time.Time
	End    time.Time
}

// ExpandOccurrences materializes iv inside [windowStart, windowEnd].
//
// Non-recurring intervals yield at most one occurrence, clipped to the
// window intersection. Recurring intervals yield a one-day occurrence for
// every day in the window that matches the weekly pattern and falls inside
// the pattern's validity range. Pure and total: invalid or non-intersecting
// input yields an empty result, never an error.
func ExpandOccurrences(iv Interval, windowStart, windowEnd time.Time) []Occurrence {
	windowStart = DayOf(windowStart)
	windowEnd = DayOf(windowEnd)
	if windowEnd.Before(windowStart) {
		return nil
	}

	if !iv.IsRecurring {
		start := maxDay(DayOf(iv.Start), windowStart)
		end := minDay(DayOf(iv.End), windowEnd)
		if end.Before(start) {
			return nil
		}
		return []Occurrence{{Source: iv, Start: start, End: end}}
	}

	days := map[int]bool{}
	for _, d := range iv.RecurringDays {
		days[d] = true
	}

	from := maxDay(DayOf(iv.Start), windowStart)
	to := minDay(DayOf(iv.End), windowEnd)

	var out []Occurrence
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if days[ISOWeekday(d)] {
			out = append(out, Occurrence{Source: iv, Start: d, End: d})
		}
	}
	return out
}

// Overlaps reports whether two occurrences share at least one calendar day.
// Closed-interval test: [1,5] and [5,10] overlap, [1,5] and [6,10] do not.
func Overlaps(a, b Occurrence) bool {
	return RangesOverlap(a.Start, a.End, b.Start, b.End)
}

// RangesOverlap is the canonical closed-interval overlap predicate used
// everywhere pairwise overlap is tested.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

const DateLayout = "2006-01-02"

// DayOf truncates t to its calendar day at midnight UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a whole-day timestamp.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole-day distance from a to b (negative when b
// precedes a).
func DaysBetween(a, b time.Time) int {
	return int(DayOf(b).Sub(DayOf(a)) / (24 * time.Hour))
}

// ISOWeekday maps time.Weekday to the Monday-first 1..7 numbering
// (Sunday becomes 7).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func maxDay(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDay(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
