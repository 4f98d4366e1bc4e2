package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/timeline"
)

type fakeStore struct {
	personal    []interval.Interval
	bookings    []interval.Interval
	personalErr error
	bookingsErr error
}

func (f *fakeStore) PersonalTasksForWorker(ctx context.Context, workerID string) ([]interval.Interval, error) {
	return f.personal, f.personalErr
}

func (f *fakeStore) BookingsForWorker(ctx context.Context, workerID string) ([]interval.Interval, error) {
	return f.bookings, f.bookingsErr
}

func day(y int, m time.Month, d int) time.Time { return interval.Date(y, m, d) }

func TestTimelineMergesBothSourcesOrdered(t *testing.T) {
	store := &fakeStore{
		personal: []interval.Interval{{
			ID: "p1", Kind: interval.KindPersonalTask,
			Start: day(2024, 3, 3), End: day(2024, 3, 5),
		}},
		bookings: []interval.Interval{{
			ID: "b1", Kind: interval.KindBooking,
			Start: day(2024, 3, 1), End: day(2024, 3, 2),
		}},
	}
	occs, err := NewResolver(store).Timeline(context.Background(), "w1", day(2024, 3, 1), 14)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occs))
	}
	if occs[0].Source.ID != "b1" || occs[1].Source.ID != "p1" {
		t.Fatalf("occurrences not ordered by start: %s, %s", occs[0].Source.ID, occs[1].Source.ID)
	}
}

func TestTimelineNoDeduplication(t *testing.T) {
	store := &fakeStore{
		personal: []interval.Interval{{ID: "p1", Start: day(2024, 3, 3), End: day(2024, 3, 5)}},
		bookings: []interval.Interval{{ID: "b1", Start: day(2024, 3, 3), End: day(2024, 3, 5)}},
	}
	occs, err := NewResolver(store).Timeline(context.Background(), "w1", day(2024, 3, 1), 14)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("same-dated task and booking must both surface, got %d", len(occs))
	}
}

func TestTimelineExpandsRecurring(t *testing.T) {
	// 2024-03-04 is a Monday.
	store := &fakeStore{
		personal: []interval.Interval{{
			ID: "rec", IsRecurring: true, RecurringDays: []int{1, 3},
			Start: day(2024, 1, 1), End: day(2024, 12, 31),
		}},
	}
	occs, err := NewResolver(store).Timeline(context.Background(), "w1", day(2024, 3, 4), 14)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(occs) != 4 {
		t.Fatalf("expected 4 expanded occurrences, got %d", len(occs))
	}
}

func TestTimelineRejectsBadWindow(t *testing.T) {
	_, err := NewResolver(&fakeStore{}).Timeline(context.Background(), "w1", day(2024, 3, 1), 0)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestTimelinePropagatesFetchError(t *testing.T) {
	boom := errors.New("connection refused")
	store := &fakeStore{bookingsErr: boom}
	_, err := NewResolver(store).Timeline(context.Background(), "w1", day(2024, 3, 1), 14)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("FetchError must wrap the cause")
	}
}

func TestTimelineThroughLayoutFlagsConflict(t *testing.T) {
	store := &fakeStore{
		personal: []interval.Interval{{
			ID: "p1", Kind: interval.KindPersonalTask, Title: "Study leave",
			Start: day(2024, 3, 3), End: day(2024, 3, 6),
		}},
		bookings: []interval.Interval{{
			ID: "b1", Kind: interval.KindBooking, Title: "Inventory count",
			Start: day(2024, 3, 4), End: day(2024, 3, 5),
		}},
	}
	occs, err := NewResolver(store).Timeline(context.Background(), "w1", day(2024, 3, 1), 14)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}

	layout := timeline.Arrange(occs, day(2024, 3, 1), 14)
	if layout.TrackCount != 2 {
		t.Fatalf("overlapping task and booking need 2 tracks, got %d", layout.TrackCount)
	}
	if layout.Items[0].Track == layout.Items[1].Track {
		t.Fatalf("overlapping items landed on the same track %d", layout.Items[0].Track)
	}
	for _, it := range layout.Items {
		if !it.HasOverlap {
			t.Fatalf("item %s missing its conflict badge", it.Occurrence.Source.ID)
		}
		if len(it.OverlapTitles) != 1 {
			t.Fatalf("item %s: expected 1 overlap title, got %v", it.Occurrence.Source.ID, it.OverlapTitles)
		}
	}
}

func TestCanSupportNowBlockedByBooking(t *testing.T) {
	store := &fakeStore{
		bookings: []interval.Interval{{ID: "b1", Start: day(2024, 3, 1), End: day(2024, 3, 10)}},
	}
	r := NewResolver(store)

	ok, err := r.CanSupportNow(context.Background(), "w1", day(2024, 3, 5), day(2024, 3, 6))
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if ok {
		t.Fatalf("worker booked 03-01..03-10 must not support 03-05..03-06")
	}

	ok, err = r.CanSupportNow(context.Background(), "w1", day(2024, 3, 11), day(2024, 3, 15))
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !ok {
		t.Fatalf("worker must be free 03-11..03-15")
	}
}

func TestCanSupportNowIgnoresCancelledBooking(t *testing.T) {
	store := &fakeStore{
		bookings: []interval.Interval{{
			ID: "b1", Status: "cancelled",
			Start: day(2024, 3, 1), End: day(2024, 3, 10),
		}},
	}

	ok, err := NewResolver(store).CanSupportNow(context.Background(), "w1", day(2024, 3, 5), day(2024, 3, 6))
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !ok {
		t.Fatalf("cancelled booking must not block 03-05..03-06")
	}
}

func TestCanSupportNowBlockedByBusyPersonalTask(t *testing.T) {
	store := &fakeStore{
		personal: []interval.Interval{{
			ID: "p1", CanSupport: false,
			Start: day(2024, 3, 5), End: day(2024, 3, 7),
		}},
	}
	ok, err := NewResolver(store).CanSupportNow(context.Background(), "w1", day(2024, 3, 6), day(2024, 3, 8))
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if ok {
		t.Fatalf("busy personal task must block eligibility")
	}
}

func TestCanSupportNowIgnoresSupportTasks(t *testing.T) {
	store := &fakeStore{
		personal: []interval.Interval{{
			ID: "p1", CanSupport: true,
			Start: day(2024, 3, 1), End: day(2024, 3, 31),
		}},
	}
	ok, err := NewResolver(store).CanSupportNow(context.Background(), "w1", day(2024, 3, 5), day(2024, 3, 6))
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !ok {
		t.Fatalf("declared-availability task must never block")
	}
}

func TestCanSupportNowIgnoresRecurringTasks(t *testing.T) {
	store := &fakeStore{
		personal: []interval.Interval{{
			ID: "p1", IsRecurring: true, RecurringDays: []int{1, 2, 3, 4, 5, 6, 7},
			Start: day(2024, 1, 1), End: day(2024, 12, 31),
		}},
	}
	ok, err := NewResolver(store).CanSupportNow(context.Background(), "w1", day(2024, 3, 5), day(2024, 3, 6))
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !ok {
		t.Fatalf("recurring pattern must not hard-block eligibility")
	}
}

func TestCanSupportNowRejectsInvertedRange(t *testing.T) {
	_, err := NewResolver(&fakeStore{}).CanSupportNow(context.Background(), "w1", day(2024, 3, 6), day(2024, 3, 5))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}
