package timeline

import (
	"sort"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
)

// Item is one laid-out occurrence: which horizontal track it landed on, its
// position inside the display window in percent, and the conflict badge
// data (which other occurrences it overlaps, independent of track).
type Item struct {
	Occurrence    interval.Occurrence
	Track         int
	LeftPct       float64
	WidthPct      float64
	HasOverlap    bool
	OverlapIDs    []string
	OverlapTitles []string
}

// Layout is the packed arrangement of a window's occurrences. TrackCount
// determines the rendered canvas height.
type Layout struct {
	Items       []Item
	TrackCount  int
	WindowStart time.Time
	WindowDays  int
}

// Arrange packs occurrences into horizontal tracks greedily: sort by start
// ascending, longer first on equal starts, then drop each occurrence onto
// the first track none of whose occupants it overlaps. Overlap here is the
// closed-interval test, phrased with a one-day grace bound so adjacent
// items like [1,5] and [6,10] still share a track. Greedy first-fit on
// start-sorted intervals is optimal: the track count equals the maximum
// number of simultaneously overlapping occurrences.
//
// Separately from track assignment, every item carries the full set of
// other occurrences it overlaps, for conflict badges.
func Arrange(occs []interval.Occurrence, windowStart time.Time, windowDays int) Layout {
	sorted := make([]interval.Occurrence, len(occs))
	copy(sorted, occs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return duration(sorted[i]) > duration(sorted[j])
	})

	windowStart = interval.DayOf(windowStart)
	if windowDays < 1 {
		windowDays = 1
	}

	var tracks [][]interval.Occurrence
	items := make([]Item, 0, len(sorted))
	for _, occ := range sorted {
		track := -1
		for ti := range tracks {
			if trackAccepts(tracks[ti], occ) {
				track = ti
				break
			}
		}
		if track == -1 {
			tracks = append(tracks, nil)
			track = len(tracks) - 1
		}
		tracks[track] = append(tracks[track], occ)
		items = append(items, positioned(occ, track, windowStart, windowDays))
	}

	annotateOverlaps(items)

	return Layout{
		Items:       items,
		TrackCount:  len(tracks),
		WindowStart: windowStart,
		WindowDays:  windowDays,
	}
}

func trackAccepts(track []interval.Occurrence, occ interval.Occurrence) bool {
	for _, other := range track {
		if overlapsWithGrace(occ, other) {
			return false
		}
	}
	return true
}

// overlapsWithGrace is the closed-interval overlap test written with the
// upper bound opened by one day on each side. For whole-day ranges it is
// exactly interval.Overlaps; keeping this phrasing avoids an off-by-one if
// the granularity ever drops below a day.
func overlapsWithGrace(a, b interval.Occurrence) bool {
	return a.Start.Before(b.End.AddDate(0, 0, 1)) && a.End.AddDate(0, 0, 1).After(b.Start)
}

// annotateOverlaps fills HasOverlap/OverlapIDs/OverlapTitles from the full
// pairwise overlap relation, regardless of track assignment.
func annotateOverlaps(items []Item) {
	for i := range items {
		for j := range items {
			if i == j {
				continue
			}
			if overlapsWithGrace(items[i].Occurrence, items[j].Occurrence) {
				items[i].OverlapIDs = append(items[i].OverlapIDs, items[j].Occurrence.Source.ID)
				items[i].OverlapTitles = append(items[i].OverlapTitles, items[j].Occurrence.Source.Title)
			}
		}
		items[i].HasOverlap = len(items[i].OverlapIDs) > 0
	}
}

func positioned(occ interval.Occurrence, track int, windowStart time.Time, windowDays int) Item {
	startOffset := interval.DaysBetween(windowStart, occ.Start)
	spanDays := interval.DaysBetween(occ.Start, occ.End) + 1

	left := float64(startOffset) / float64(windowDays) * 100
	width := float64(spanDays) / float64(windowDays) * 100
	if left < 0 {
		width += left
		left = 0
	}
	if left+width > 100 {
		width = 100 - left
	}
	if width < 0 {
		width = 0
	}

	return Item{Occurrence: occ, Track: track, LeftPct: left, WidthPct: width}
}

func duration(o interval.Occurrence) int {
	return interval.DaysBetween(o.Start, o.End)
}
