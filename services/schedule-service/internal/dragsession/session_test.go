package dragsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
)

type recordingCommitter struct {
	calls   int
	lastID  string
	start   time.Time
	end     time.Time
	err     error
	entered chan struct{}
	release chan struct{}
}

func (c *recordingCommitter) UpdateDates(ctx context.Context, id string, start, end time.Time) error {
	c.calls++
	c.lastID = id
	c.start = start
	c.end = end
	if c.entered != nil {
		close(c.entered)
		<-c.release
	}
	return c.err
}

func ownedOcc(id string, start, end time.Time) interval.Occurrence {
	return interval.Occurrence{
		Source: interval.Interval{
			ID:      id,
			OwnerID: "w1",
			Kind:    interval.KindPersonalTask,
			Start:   start,
			End:     end,
		},
		Start: start,
		End:   end,
	}
}

func TestMoveGestureShiftsBothEndpoints(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureMove, "w1", 100, 40); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	// 3 days right at 40 px/day.
	if err := s.PointerMove(220); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	start, end, dragging := s.Preview()
	if !dragging {
		t.Fatalf("expected active drag preview")
	}
	if !start.Equal(interval.Date(2024, 3, 6)) || !end.Equal(interval.Date(2024, 3, 8)) {
		t.Fatalf("bad preview: %s..%s", start, end)
	}
	if err := s.PointerUp(context.Background()); err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	if c.calls != 1 || c.lastID != "p1" {
		t.Fatalf("expected one commit for p1, got %d for %q", c.calls, c.lastID)
	}
	if !c.start.Equal(interval.Date(2024, 3, 6)) || !c.end.Equal(interval.Date(2024, 3, 8)) {
		t.Fatalf("committed wrong range: %s..%s", c.start, c.end)
	}
	if s.State() != StateIdle {
		t.Fatalf("session should be idle after commit, got %s", s.State())
	}
}

func TestResizeStartCannotCrossEnd(t *testing.T) {
	s := New(&recordingCommitter{})
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureResizeStart, "w1", 0, 10); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	// 1 day right: valid, start moves to 03-04.
	if err := s.PointerMove(10); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	// 10 days right would push start past end: rejected, last valid kept.
	if err := s.PointerMove(100); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	start, end, _ := s.Preview()
	if !start.Equal(interval.Date(2024, 3, 4)) {
		t.Fatalf("start should stay at last valid value, got %s", start)
	}
	if start.After(end) {
		t.Fatalf("start crossed end: %s > %s", start, end)
	}
}

func TestResizeEndCannotCrossStart(t *testing.T) {
	s := New(&recordingCommitter{})
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureResizeEnd, "w1", 0, 10); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	if err := s.PointerMove(-100); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	start, end, _ := s.Preview()
	if end.Before(start) {
		t.Fatalf("end crossed start: %s < %s", end, start)
	}
	if !end.Equal(interval.Date(2024, 3, 5)) {
		t.Fatalf("rejected move should keep prior end, got %s", end)
	}
}

func TestNoOpDragSkipsCommit(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureMove, "w1", 100, 40); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	// Pointer wiggles less than half a day: rounds to zero offset.
	if err := s.PointerMove(110); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	if err := s.PointerUp(context.Background()); err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	if c.calls != 0 {
		t.Fatalf("unchanged dates must not be committed, got %d calls", c.calls)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestCommitFailureReturnsToIdle(t *testing.T) {
	c := &recordingCommitter{err: errors.New("update failed")}
	s := New(c)
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureMove, "w1", 0, 10); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	if err := s.PointerMove(20); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	err := s.PointerUp(context.Background())
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if ce.OccurrenceID != "p1" {
		t.Fatalf("wrong occurrence in error: %s", ce.OccurrenceID)
	}
	if s.State() != StateIdle {
		t.Fatalf("failed commit must still land in idle, got %s", s.State())
	}
	// The occurrence is usable again after the failure settled.
	if err := s.PointerDown(occ, GestureMove, "w1", 0, 10); err != nil {
		t.Fatalf("occurrence should be draggable after settled commit: %v", err)
	}
}

func TestBookingsAndRecurringAreReadOnly(t *testing.T) {
	s := New(&recordingCommitter{})

	booking := ownedOcc("b1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))
	booking.Source.Kind = interval.KindBooking
	if err := s.PointerDown(booking, GestureMove, "w1", 0, 10); !errors.Is(err, ErrNotDraggable) {
		t.Fatalf("booking drag should fail with ErrNotDraggable, got %v", err)
	}

	rec := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))
	rec.Source.IsRecurring = true
	if err := s.PointerDown(rec, GestureMove, "w1", 0, 10); !errors.Is(err, ErrNotDraggable) {
		t.Fatalf("recurring drag should fail with ErrNotDraggable, got %v", err)
	}

	other := ownedOcc("p2", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))
	if err := s.PointerDown(other, GestureMove, "w2", 0, 10); !errors.Is(err, ErrNotDraggable) {
		t.Fatalf("foreign occurrence drag should fail with ErrNotDraggable, got %v", err)
	}
}

func TestSingleActiveGesture(t *testing.T) {
	s := New(&recordingCommitter{})
	a := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))
	b := ownedOcc("p2", interval.Date(2024, 3, 8), interval.Date(2024, 3, 9))

	if err := s.PointerDown(a, GestureMove, "w1", 0, 10); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	if err := s.PointerDown(b, GestureMove, "w1", 0, 10); !errors.Is(err, ErrGestureActive) {
		t.Fatalf("second gesture should fail with ErrGestureActive, got %v", err)
	}
}

func TestNoGestureWhileCommitInFlight(t *testing.T) {
	c := &recordingCommitter{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(c)
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureMove, "w1", 0, 10); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	if err := s.PointerMove(20); err != nil {
		t.Fatalf("pointer move: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.PointerUp(context.Background()) }()
	<-c.entered

	if err := s.PointerDown(occ, GestureMove, "w1", 0, 10); err == nil {
		t.Fatalf("gesture during in-flight commit must be rejected")
	}

	close(c.release)
	if err := <-done; err != nil {
		t.Fatalf("pointer up: %v", err)
	}
}

func TestCancelDiscardsCandidate(t *testing.T) {
	c := &recordingCommitter{}
	s := New(c)
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	if err := s.PointerDown(occ, GestureMove, "w1", 0, 10); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	if err := s.PointerMove(50); err != nil {
		t.Fatalf("pointer move: %v", err)
	}
	s.Cancel()
	if s.State() != StateIdle {
		t.Fatalf("cancel must return to idle, got %s", s.State())
	}
	if c.calls != 0 {
		t.Fatalf("cancel must not commit")
	}
	if err := s.PointerUp(context.Background()); !errors.Is(err, ErrNoGesture) {
		t.Fatalf("pointer up after cancel should fail with ErrNoGesture, got %v", err)
	}
}

func TestPointerMoveWithoutGesture(t *testing.T) {
	s := New(&recordingCommitter{})
	if err := s.PointerMove(10); !errors.Is(err, ErrNoGesture) {
		t.Fatalf("expected ErrNoGesture, got %v", err)
	}
}

func TestUnknownGestureRejected(t *testing.T) {
	s := New(&recordingCommitter{})
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))
	if err := s.PointerDown(occ, GestureType("rotate"), "w1", 0, 10); !errors.Is(err, ErrBadGestureType) {
		t.Fatalf("expected ErrBadGestureType, got %v", err)
	}
}

func TestCommitHelperNormalizesAndSkipsNoOp(t *testing.T) {
	c := &recordingCommitter{}
	occ := ownedOcc("p1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))

	// Unchanged range: nothing written.
	if err := Commit(context.Background(), c, occ, "w1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.calls != 0 {
		t.Fatalf("no-op commit must not write")
	}

	// Inverted range clamps end to start.
	if err := Commit(context.Background(), c, occ, "w1", interval.Date(2024, 3, 8), interval.Date(2024, 3, 6)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("expected one write, got %d", c.calls)
	}
	if !c.start.Equal(interval.Date(2024, 3, 8)) || !c.end.Equal(interval.Date(2024, 3, 8)) {
		t.Fatalf("inverted range should clamp to single day, got %s..%s", c.start, c.end)
	}
}

func TestCommitHelperEnforcesDraggability(t *testing.T) {
	c := &recordingCommitter{}
	occ := ownedOcc("b1", interval.Date(2024, 3, 3), interval.Date(2024, 3, 5))
	occ.Source.Kind = interval.KindBooking
	err := Commit(context.Background(), c, occ, "w1", interval.Date(2024, 3, 4), interval.Date(2024, 3, 6))
	if !errors.Is(err, ErrNotDraggable) {
		t.Fatalf("expected ErrNotDraggable, got %v", err)
	}
	if c.calls != 0 {
		t.Fatalf("rejected commit must not write")
	}
}
