package dragsession

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
)

// GestureType selects which endpoints a pointer drag moves.
type GestureType string

const (
	GestureMove        GestureType = "move"
	GestureResizeStart GestureType = "resize-start"
	GestureResizeEnd   GestureType = "resize-end"
)

// State is the session's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateDragging   State = "dragging"
	StateCommitting State = "committing"
)

var (
	ErrGestureActive  = errors.New("another gesture is active")
	ErrNotDraggable   = errors.New("occurrence is not draggable")
	ErrCommitPending  = errors.New("occurrence has a commit in flight")
	ErrNoGesture      = errors.New("no gesture in progress")
	ErrBadGestureType = errors.New("unknown gesture type")
)

// CommitError wraps a failed persistence write at gesture end. The session
// discards the optimistic preview; the stored dates stay authoritative.
type CommitError struct {
	OccurrenceID string
	Err          error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit occurrence %s: %v", e.OccurrenceID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Committer persists the final date range of a finished gesture.
type Committer interface {
	UpdateDates(ctx context.Context, occurrenceID string, start, end time.Time) error
}

// Session tracks one timeline's interactive move/resize editing. At most
// one gesture is active at a time across the whole timeline; an occurrence
// whose commit is still in flight refuses new gestures until it settles.
type Session struct {
	committer Committer

	mu           sync.Mutex
	state        State
	gesture      GestureType
	occurrence   interval.Occurrence
	initialX     float64
	pixelsPerDay float64
	initialStart time.Time
	initialEnd   time.Time
	currentStart time.Time
	currentEnd   time.Time
	pending      map[string]bool
}

func New(committer Committer) *Session {
	return &Session{
		committer: committer,
		state:     StateIdle,
		pending:   map[string]bool{},
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Preview returns the live candidate dates while a gesture is active, for
// rendering the dragged bar.
func (s *Session) Preview() (start, end time.Time, dragging bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStart, s.currentEnd, s.state == StateDragging
}

// PointerDown starts a gesture on occ. Booking-sourced and recurring
// occurrences are read-only on the timeline, and only the owner may drag
// their own personal tasks.
func (s *Session) PointerDown(occ interval.Occurrence, gesture GestureType, userID string, pointerX, pixelsPerDay float64) error {
	switch gesture {
	case GestureMove, GestureResizeStart, GestureResizeEnd:
	default:
		return fmt.Errorf("%w: %q", ErrBadGestureType, gesture)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrGestureActive
	}
	if occ.Source.Kind != interval.KindPersonalTask || occ.Source.IsRecurring || occ.Source.OwnerID != userID {
		return ErrNotDraggable
	}
	if s.pending[occ.Source.ID] {
		return ErrCommitPending
	}
	if pixelsPerDay <= 0 {
		pixelsPerDay = 1
	}

	s.state = StateDragging
	s.gesture = gesture
	s.occurrence = occ
	s.initialX = pointerX
	s.pixelsPerDay = pixelsPerDay
	s.initialStart = interval.DayOf(occ.Source.Start)
	s.initialEnd = interval.DayOf(occ.Source.End)
	s.currentStart = s.initialStart
	s.currentEnd = s.initialEnd
	return nil
}

// PointerMove recomputes the candidate range from the pointer offset. A
// resize that would push start past end (or end before start) is rejected:
// the prior candidate stays in place and the move is silently ignored.
func (s *Session) PointerMove(pointerX float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDragging {
		return ErrNoGesture
	}

	daysOffset := int(math.Round((pointerX - s.initialX) / s.pixelsPerDay))
	switch s.gesture {
	case GestureMove:
		s.currentStart = s.initialStart.AddDate(0, 0, daysOffset)
		s.currentEnd = s.initialEnd.AddDate(0, 0, daysOffset)
	case GestureResizeStart:
		candidate := s.initialStart.AddDate(0, 0, daysOffset)
		if !candidate.After(s.initialEnd) {
			s.currentStart = candidate
		}
	case GestureResizeEnd:
		candidate := s.initialEnd.AddDate(0, 0, daysOffset)
		if !candidate.Before(s.initialStart) {
			s.currentEnd = candidate
		}
	}
	return nil
}

// PointerUp ends the gesture and commits the candidate range. If the
// normalized dates equal the original committed dates nothing is written
// and the session returns straight to Idle. A failed write surfaces as
// CommitError; either way the session is Idle afterwards and the occurrence
// is released for new gestures once the write has settled.
func (s *Session) PointerUp(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDragging {
		s.mu.Unlock()
		return ErrNoGesture
	}

	occID := s.occurrence.Source.ID
	start := interval.DayOf(s.currentStart)
	end := interval.DayOf(s.currentEnd)
	if end.Before(start) {
		end = start
	}

	if start.Equal(s.initialStart) && end.Equal(s.initialEnd) {
		s.reset()
		s.mu.Unlock()
		return nil
	}

	s.state = StateCommitting
	s.pending[occID] = true
	s.mu.Unlock()

	err := s.committer.UpdateDates(ctx, occID, start, end)

	s.mu.Lock()
	delete(s.pending, occID)
	s.reset()
	s.mu.Unlock()

	if err != nil {
		return &CommitError{OccurrenceID: occID, Err: err}
	}
	return nil
}

// Cancel abandons an active gesture without committing; the candidate
// dates are discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDragging {
		s.reset()
	}
}

func (s *Session) reset() {
	s.state = StateIdle
	s.gesture = ""
	s.occurrence = interval.Occurrence{}
	s.initialX = 0
	s.pixelsPerDay = 0
	s.currentStart = time.Time{}
	s.currentEnd = time.Time{}
	s.initialStart = time.Time{}
	s.initialEnd = time.Time{}
}

// Commit applies a finished gesture's range directly, for callers that
// resolve the pointer math themselves and only need the commit discipline:
// same draggability rules as PointerDown, same normalization and no-op
// skip as PointerUp.
func Commit(ctx context.Context, committer Committer, occ interval.Occurrence, userID string, newStart, newEnd time.Time) error {
	if occ.Source.Kind != interval.KindPersonalTask || occ.Source.IsRecurring || occ.Source.OwnerID != userID {
		return ErrNotDraggable
	}

	start := interval.DayOf(newStart)
	end := interval.DayOf(newEnd)
	if end.Before(start) {
		end = start
	}
	if start.Equal(interval.DayOf(occ.Source.Start)) && end.Equal(interval.DayOf(occ.Source.End)) {
		return nil
	}
	if err := committer.UpdateDates(ctx, occ.Source.ID, start, end); err != nil {
		return &CommitError{OccurrenceID: occ.Source.ID, Err: err}
	}
	return nil
}
