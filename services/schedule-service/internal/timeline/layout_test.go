package timeline

import (
	"testing"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
)

func occ(id string, start, end time.Time) interval.Occurrence {
	return interval.Occurrence{
		Source: interval.Interval{ID: id, Title: "task " + id, Start: start, End: end},
		Start:  start,
		End:    end,
	}
}

func itemByID(t *testing.T, l Layout, id string) Item {
	t.Helper()
	for _, it := range l.Items {
		if it.Occurrence.Source.ID == id {
			return it
		}
	}
	t.Fatalf("item %q not in layout", id)
	return Item{}
}

func TestArrangeDisjointShareOneTrack(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 3)),
		occ("b", interval.Date(2026, 3, 10), interval.Date(2026, 3, 12)),
	}, win, 14)
	if l.TrackCount != 1 {
		t.Fatalf("disjoint items should share one track, got %d", l.TrackCount)
	}
}

func TestArrangeAdjacentShareOneTrack(t *testing.T) {
	// [1,5] and [6,10] touch but share no day: one track.
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 5)),
		occ("b", interval.Date(2026, 3, 6), interval.Date(2026, 3, 10)),
	}, win, 14)
	if l.TrackCount != 1 {
		t.Fatalf("adjacent items should share a track, got %d", l.TrackCount)
	}
	for _, it := range l.Items {
		if it.HasOverlap {
			t.Fatalf("adjacent items must not be flagged as overlapping")
		}
	}
}

func TestArrangeOverlappingSplitTracks(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 5)),
		occ("b", interval.Date(2026, 3, 4), interval.Date(2026, 3, 8)),
	}, win, 14)
	if l.TrackCount != 2 {
		t.Fatalf("overlapping items need 2 tracks, got %d", l.TrackCount)
	}
	if itemByID(t, l, "a").Track == itemByID(t, l, "b").Track {
		t.Fatalf("overlapping items landed on the same track")
	}
}

func TestArrangeSharedEndpointSplitsTracks(t *testing.T) {
	// [1,5] and [5,10] share the 5th: separate tracks, both flagged.
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 5)),
		occ("b", interval.Date(2026, 3, 5), interval.Date(2026, 3, 10)),
	}, win, 14)
	if l.TrackCount != 2 {
		t.Fatalf("items sharing a day need 2 tracks, got %d", l.TrackCount)
	}
}

func TestArrangeIdenticalRangesAllDistinctTracks(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	var occs []interval.Occurrence
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		occs = append(occs, occ(id, interval.Date(2026, 3, 3), interval.Date(2026, 3, 6)))
	}
	l := Arrange(occs, win, 14)
	if l.TrackCount != len(ids) {
		t.Fatalf("identical ranges need one track each, got %d for %d items", l.TrackCount, len(ids))
	}
	seen := map[int]bool{}
	for _, it := range l.Items {
		if seen[it.Track] {
			t.Fatalf("track %d assigned twice", it.Track)
		}
		seen[it.Track] = true
	}
}

func TestArrangeStaircaseUsesTwoTracks(t *testing.T) {
	// Chain where each item overlaps only its neighbours: 2 tracks suffice.
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 4)),
		occ("b", interval.Date(2026, 3, 4), interval.Date(2026, 3, 7)),
		occ("c", interval.Date(2026, 3, 7), interval.Date(2026, 3, 10)),
		occ("d", interval.Date(2026, 3, 10), interval.Date(2026, 3, 13)),
	}, win, 14)
	if l.TrackCount != 2 {
		t.Fatalf("staircase chain should use exactly 2 tracks, got %d", l.TrackCount)
	}
}

func TestArrangeLongerFirstOnEqualStart(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("short", interval.Date(2026, 3, 2), interval.Date(2026, 3, 3)),
		occ("long", interval.Date(2026, 3, 2), interval.Date(2026, 3, 9)),
	}, win, 14)
	if got := itemByID(t, l, "long").Track; got != 0 {
		t.Fatalf("longer item should claim track 0, got %d", got)
	}
	if got := itemByID(t, l, "short").Track; got != 1 {
		t.Fatalf("shorter item should spill to track 1, got %d", got)
	}
}

func TestArrangeOverlapBadges(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 3), interval.Date(2026, 3, 5)),
		occ("b", interval.Date(2026, 3, 4), interval.Date(2026, 3, 6)),
		occ("c", interval.Date(2026, 3, 10), interval.Date(2026, 3, 11)),
	}, win, 14)

	a := itemByID(t, l, "a")
	if !a.HasOverlap || len(a.OverlapIDs) != 1 || a.OverlapIDs[0] != "b" {
		t.Fatalf("item a should overlap exactly b, got %v", a.OverlapIDs)
	}
	if len(a.OverlapTitles) != 1 || a.OverlapTitles[0] != "task b" {
		t.Fatalf("overlap titles wrong: %v", a.OverlapTitles)
	}
	b := itemByID(t, l, "b")
	if !b.HasOverlap || len(b.OverlapIDs) != 1 || b.OverlapIDs[0] != "a" {
		t.Fatalf("overlap relation must be symmetric, got %v", b.OverlapIDs)
	}
	if c := itemByID(t, l, "c"); c.HasOverlap {
		t.Fatalf("item c overlaps nothing")
	}
}

func TestArrangeDeterministic(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	occs := []interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 4)),
		occ("b", interval.Date(2026, 3, 3), interval.Date(2026, 3, 6)),
		occ("c", interval.Date(2026, 3, 5), interval.Date(2026, 3, 9)),
		occ("d", interval.Date(2026, 3, 11), interval.Date(2026, 3, 12)),
	}
	first := Arrange(occs, win, 14)
	for i := 0; i < 10; i++ {
		again := Arrange(occs, win, 14)
		if again.TrackCount != first.TrackCount {
			t.Fatalf("track count changed between runs")
		}
		for _, it := range first.Items {
			if itemByID(t, again, it.Occurrence.Source.ID).Track != it.Track {
				t.Fatalf("track assignment for %q changed between runs", it.Occurrence.Source.ID)
			}
		}
	}
}

func TestArrangePositions(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 1), interval.Date(2026, 3, 7)),
	}, win, 14)
	it := itemByID(t, l, "a")
	if it.LeftPct != 0 {
		t.Fatalf("expected left 0, got %f", it.LeftPct)
	}
	if it.WidthPct != 50 {
		t.Fatalf("expected width 50, got %f", it.WidthPct)
	}
}

func TestArrangeClampsToWindow(t *testing.T) {
	win := interval.Date(2026, 3, 1)
	l := Arrange([]interval.Occurrence{
		occ("a", interval.Date(2026, 3, 10), interval.Date(2026, 3, 20)),
	}, win, 14)
	it := itemByID(t, l, "a")
	if it.LeftPct+it.WidthPct > 100.0001 {
		t.Fatalf("item extends past window: left=%f width=%f", it.LeftPct, it.WidthPct)
	}
}

func TestArrangeEmpty(t *testing.T) {
	l := Arrange(nil, interval.Date(2026, 3, 1), 14)
	if l.TrackCount != 0 || len(l.Items) != 0 {
		t.Fatalf("empty input should produce empty layout")
	}
}
