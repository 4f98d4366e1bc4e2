package interval

import (
	"errors"
	"testing"
	"time"
)

func TestValidateRejectsInvertedRange(t *testing.T) {
	iv := Interval{Start: Date(2026, 3, 10), End: Date(2026, 3, 9)}
	if err := iv.Validate(); !errors.Is(err, ErrEndBeforeStart) {
		t.Fatalf("expected ErrEndBeforeStart, got %v", err)
	}
}

func TestValidateRejectsBadWeekday(t *testing.T) {
	iv := Interval{
		Start:         Date(2026, 3, 1),
		End:           Date(2026, 3, 31),
		IsRecurring:   true,
		RecurringDays: []int{1, 8},
	}
	if err := iv.Validate(); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}
	iv.RecurringDays = []int{0}
	if err := iv.Validate(); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday for 0, got %v", err)
	}
}

func TestValidateAcceptsSingleDay(t *testing.T) {
	iv := Interval{Start: Date(2026, 3, 10), End: Date(2026, 3, 10)}
	if err := iv.Validate(); err != nil {
		t.Fatalf("single-day interval should validate: %v", err)
	}
}

func TestExpandNonRecurringClipsToWindow(t *testing.T) {
	iv := Interval{ID: "a", Start: Date(2026, 3, 1), End: Date(2026, 3, 20)}
	occs := ExpandOccurrences(iv, Date(2026, 3, 5), Date(2026, 3, 10))
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if !occs[0].Start.Equal(Date(2026, 3, 5)) || !occs[0].End.Equal(Date(2026, 3, 10)) {
		t.Fatalf("bad clip: %s..%s", occs[0].Start, occs[0].End)
	}
	if occs[0].Source.ID != "a" || !occs[0].Source.End.Equal(Date(2026, 3, 20)) {
		t.Fatalf("source record must keep original dates")
	}
}

func TestExpandNonRecurringOutsideWindow(t *testing.T) {
	iv := Interval{Start: Date(2026, 3, 1), End: Date(2026, 3, 4)}
	if occs := ExpandOccurrences(iv, Date(2026, 3, 5), Date(2026, 3, 10)); len(occs) != 0 {
		t.Fatalf("expected no occurrences, got %d", len(occs))
	}
}

func TestExpandRecurringCountOverTwoWeeks(t *testing.T) {
	// 2026-03-02 is a Monday. Pattern {Mon, Wed} over a 14-day window must
	// produce exactly 4 one-day occurrences.
	winStart := Date(2026, 3, 2)
	winEnd := winStart.AddDate(0, 0, 13)
	iv := Interval{
		ID:            "rec",
		Start:         Date(2026, 1, 1),
		End:           Date(2026, 12, 31),
		IsRecurring:   true,
		RecurringDays: []int{1, 3},
	}
	occs := ExpandOccurrences(iv, winStart, winEnd)
	if len(occs) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(occs))
	}
	for _, o := range occs {
		if !o.Start.Equal(o.End) {
			t.Fatalf("recurring occurrence must be one day: %s..%s", o.Start, o.End)
		}
		wd := ISOWeekday(o.Start)
		if wd != 1 && wd != 3 {
			t.Fatalf("occurrence on unexpected weekday %d", wd)
		}
	}
}

func TestExpandRecurringRespectsValidityRange(t *testing.T) {
	winStart := Date(2026, 3, 2)
	winEnd := winStart.AddDate(0, 0, 13)
	iv := Interval{
		Start:         Date(2026, 3, 9), // second Monday of the window
		End:           Date(2026, 12, 31),
		IsRecurring:   true,
		RecurringDays: []int{1},
	}
	occs := ExpandOccurrences(iv, winStart, winEnd)
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if !occs[0].Start.Equal(Date(2026, 3, 9)) {
		t.Fatalf("occurrence before pattern validity: %s", occs[0].Start)
	}
}

func TestExpandEmptyWindow(t *testing.T) {
	iv := Interval{Start: Date(2026, 3, 1), End: Date(2026, 3, 31)}
	if occs := ExpandOccurrences(iv, Date(2026, 3, 10), Date(2026, 3, 9)); occs != nil {
		t.Fatalf("inverted window must expand to nothing")
	}
}

func TestOverlapsClosedEndpoints(t *testing.T) {
	occ := func(s, e time.Time) Occurrence { return Occurrence{Start: s, End: e} }
	a := occ(Date(2026, 3, 1), Date(2026, 3, 5))
	b := occ(Date(2026, 3, 5), Date(2026, 3, 10))
	c := occ(Date(2026, 3, 6), Date(2026, 3, 10))
	if !Overlaps(a, b) {
		t.Fatalf("[1,5] and [5,10] must overlap (closed endpoints)")
	}
	if Overlaps(a, c) {
		t.Fatalf("[1,5] and [6,10] must not overlap")
	}
	if !Overlaps(a, a) {
		t.Fatalf("interval must overlap itself")
	}
}

func TestISOWeekday(t *testing.T) {
	// 2026-03-02 Monday .. 2026-03-08 Sunday.
	for i := 0; i < 7; i++ {
		got := ISOWeekday(Date(2026, 3, 2+i))
		if got != i+1 {
			t.Fatalf("day offset %d: expected %d, got %d", i, i+1, got)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	if d := DaysBetween(Date(2026, 3, 1), Date(2026, 3, 8)); d != 7 {
		t.Fatalf("expected 7, got %d", d)
	}
	if d := DaysBetween(Date(2026, 3, 8), Date(2026, 3, 1)); d != -7 {
		t.Fatalf("expected -7, got %d", d)
	}
}
