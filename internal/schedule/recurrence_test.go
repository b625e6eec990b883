package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func instance(pattern string, start time.Time, mutate func(*model.ClassInstance)) *model.ClassInstance {
	inst := &model.ClassInstance{
		ID:        1,
		StartDate: start,
		StartTime: "09:00",
		EndTime:   "10:00",
		Rule:      model.RecurrenceRule{Pattern: pattern, Interval: 1},
	}
	if mutate != nil {
		mutate(inst)
	}
	return inst
}

func intPtr(n int) *int              { return &n }
func timePtr(t time.Time) *time.Time { return &t }

func TestExpandDailyEndCount(t *testing.T) {
	inst := instance(model.PatternDaily, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(3)
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	want := date(2025, time.June, 2).Add(9 * time.Hour)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("first slot start = %v, want %v", slots[0].Start, want)
	}
	if !slots[2].Start.Equal(want.AddDate(0, 0, 2)) {
		t.Fatalf("third slot start = %v", slots[2].Start)
	}
	if !slots[0].End.Equal(slots[0].Start.Add(time.Hour)) {
		t.Fatalf("slot end = %v, want one hour after start", slots[0].End)
	}
}

func TestExpandDailyEndDateInclusive(t *testing.T) {
	inst := instance(model.PatternDaily, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndDate = timePtr(date(2025, time.June, 4))
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots up to and including the end date, got %d", len(slots))
	}
}

func TestExpandEarliestBoundWins(t *testing.T) {
	// Date bound stops first.
	inst := instance(model.PatternDaily, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(10)
		i.Rule.EndDate = timePtr(date(2025, time.June, 4))
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("date bound should win: expected 3 slots, got %d", len(slots))
	}
	// Count bound stops first.
	inst = instance(model.PatternDaily, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(2)
		i.Rule.EndDate = timePtr(date(2025, time.June, 30))
	})
	slots, err = Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("count bound should win: expected 2 slots, got %d", len(slots))
	}
}

func TestExpandBlackoutSkippedWithoutCounting(t *testing.T) {
	inst := instance(model.PatternDaily, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(3)
		i.BlackoutDates = []time.Time{date(2025, time.June, 3)}
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("blackout must not count toward end count: expected 3 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Day() == 3 {
			t.Fatalf("blackout date was emitted: %v", s.Start)
		}
	}
	if slots[2].Start.Day() != 5 {
		t.Fatalf("expected expansion to extend past the blackout, last day = %d", slots[2].Start.Day())
	}
}

func TestExpandWeeklyDaysOfWeek(t *testing.T) {
	inst := instance(model.PatternWeekly, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.DaysOfWeek = []time.Weekday{time.Monday, time.Wednesday}
		i.Rule.EndCount = intPtr(5)
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	wantDays := []int{2, 4, 9, 11, 16}
	if len(slots) != len(wantDays) {
		t.Fatalf("expected %d slots, got %d", len(wantDays), len(slots))
	}
	for i, s := range slots {
		if s.Start.Day() != wantDays[i] {
			t.Fatalf("slot %d on day %d, want %d", i, s.Start.Day(), wantDays[i])
		}
	}
}

func TestExpandBiweeklyDoublesStep(t *testing.T) {
	inst := instance(model.PatternBiweekly, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(3)
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	wantDays := []int{2, 16, 30}
	if len(slots) != len(wantDays) {
		t.Fatalf("expected %d slots, got %d", len(wantDays), len(slots))
	}
	for i, s := range slots {
		if s.Start.Day() != wantDays[i] {
			t.Fatalf("slot %d on day %d, want %d", i, s.Start.Day(), wantDays[i])
		}
	}
}

func TestExpandMonthlyClampsShortMonths(t *testing.T) {
	inst := instance(model.PatternMonthly, date(2025, time.January, 31), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(3)
	})
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[1].Start.Month() != time.February || slots[1].Start.Day() != 28 {
		t.Fatalf("February slot should clamp to the 28th, got %v", slots[1].Start)
	}
	if slots[2].Start.Month() != time.March || slots[2].Start.Day() != 31 {
		t.Fatalf("March slot should return to the 31st, got %v", slots[2].Start)
	}
}

func TestExpandIdempotentAgainstExisting(t *testing.T) {
	inst := instance(model.PatternWeekly, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(4)
	})
	first, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	existing := make([]time.Time, 0, len(first))
	for _, s := range first {
		existing = append(existing, s.Start)
	}
	again, err := Expand(inst, existing)
	if err != nil {
		t.Fatalf("re-expand failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("re-running expansion must not re-create existing slots, got %d", len(again))
	}
	// Partial overlap: only the missing tail comes back.
	partial, err := Expand(inst, existing[:2])
	if err != nil {
		t.Fatalf("partial re-expand failed: %v", err)
	}
	if len(partial) != 2 {
		t.Fatalf("expected 2 new slots, got %d", len(partial))
	}
	for _, s := range partial {
		for _, e := range existing[:2] {
			if s.Start.Equal(e) {
				t.Fatalf("duplicate start emitted: %v", s.Start)
			}
		}
	}
}

func TestExpandPatternNone(t *testing.T) {
	inst := instance(model.PatternNone, date(2025, time.June, 2), nil)
	slots, err := Expand(inst, nil)
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("pattern none should emit a single slot, got %d", len(slots))
	}
}

func TestExpandValidation(t *testing.T) {
	inst := instance(model.PatternDaily, date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(1)
		i.EndTime = "08:00"
	})
	if _, err := Expand(inst, nil); !errors.Is(err, ErrBadTimeWindow) {
		t.Fatalf("expected ErrBadTimeWindow, got %v", err)
	}
	inst = instance(model.PatternDaily, date(2025, time.June, 2), nil)
	if _, err := Expand(inst, nil); !errors.Is(err, ErrUnbounded) {
		t.Fatalf("expected ErrUnbounded, got %v", err)
	}
	inst = instance("fortnightly", date(2025, time.June, 2), func(i *model.ClassInstance) {
		i.Rule.EndCount = intPtr(1)
	})
	if _, err := Expand(inst, nil); !errors.Is(err, ErrUnknownPattern) {
		t.Fatalf("expected ErrUnknownPattern, got %v", err)
	}
}
