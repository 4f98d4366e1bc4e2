package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
)

var (
	ErrInvalidWindow = errors.New("window length must be at least one day")
	ErrInvalidRange  = errors.New("query end precedes start")
)

// FetchError wraps a storage read failure so callers can distinguish it
// from validation problems. The resolver never retries.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Store is the persistence surface the resolver reads from. Both calls
// return raw interval records for one worker; expansion and merging happen
// here, not in storage.
type Store interface {
	PersonalTasksForWorker(ctx context.Context, workerID string) ([]interval.Interval, error)
	BookingsForWorker(ctx context.Context, workerID string) ([]interval.Interval, error)
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Timeline fetches a worker's personal tasks and bookings, expands every
// record into concrete occurrences inside [windowStart, windowStart+days),
// and returns them ordered by start. The two sources are merged without
// deduplication: a personal task and a booking on the same dates both
// appear, and flagging that is the conflict layer's job.
func (r *Resolver) Timeline(ctx context.Context, workerID string, windowStart time.Time, windowDays int) ([]interval.Occurrence, error) {
	if windowDays < 1 {
		return nil, ErrInvalidWindow
	}
	windowStart = interval.DayOf(windowStart)
	windowEnd := windowStart.AddDate(0, 0, windowDays-1)

	personal, err := r.store.PersonalTasksForWorker(ctx, workerID)
	if err != nil {
		return nil, &FetchError{Source: "personal tasks", Err: err}
	}
	bookings, err := r.store.BookingsForWorker(ctx, workerID)
	if err != nil {
		return nil, &FetchError{Source: "bookings", Err: err}
	}

	var occs []interval.Occurrence
	for _, iv := range personal {
		occs = append(occs, interval.ExpandOccurrences(iv, windowStart, windowEnd)...)
	}
	for _, iv := range bookings {
		occs = append(occs, interval.ExpandOccurrences(iv, windowStart, windowEnd)...)
	}

	sort.SliceStable(occs, func(i, j int) bool {
		return occs[i].Start.Before(occs[j].Start)
	})
	return occs, nil
}

// CanSupportNow reports whether a worker is free to take on support work in
// [qStart, qEnd]. A worker is blocked by any live booking overlapping the
// range and by any non-recurring personal task with CanSupport=false
// overlapping it. Cancelled bookings release their dates and never block.
// Recurring personal tasks never block (a weekly pattern is treated as
// informational, not a hard commitment), and CanSupport=true tasks are
// declared availability, so they never block either.
func (r *Resolver) CanSupportNow(ctx context.Context, workerID string, qStart, qEnd time.Time) (bool, error) {
	qStart = interval.DayOf(qStart)
	qEnd = interval.DayOf(qEnd)
	if qEnd.Before(qStart) {
		return false, ErrInvalidRange
	}

	bookings, err := r.store.BookingsForWorker(ctx, workerID)
	if err != nil {
		return false, &FetchError{Source: "bookings", Err: err}
	}
	for _, b := range bookings {
		if b.Status == "cancelled" {
			continue
		}
		if interval.RangesOverlap(interval.DayOf(b.Start), interval.DayOf(b.End), qStart, qEnd) {
			return false, nil
		}
	}

	personal, err := r.store.PersonalTasksForWorker(ctx, workerID)
	if err != nil {
		return false, &FetchError{Source: "personal tasks", Err: err}
	}
	for _, p := range personal {
		if p.IsRecurring || p.CanSupport {
			continue
		}
		if interval.RangesOverlap(interval.DayOf(p.Start), interval.DayOf(p.End), qStart, qEnd) {
			return false, nil
		}
	}
	return true, nil
}
