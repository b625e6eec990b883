// Package schedule contains the pure scheduling math: expanding a
// recurrence definition into concrete time slots and detecting
// instructor/location collisions between occurrences.  Nothing in this
// package touches the database; persistence happens in the repository
// layer after the caller has validated the result.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// Slot is one candidate occurrence produced by expansion.  Times are
// UTC and form a half-open interval [Start, End).
type Slot struct {
	Start time.Time
	End   time.Time
}

// Validation errors returned by Expand.  Handlers translate these into
// 400 responses before anything is persisted.
var (
	ErrUnknownPattern = errors.New("unknown recurrence pattern")
	ErrBadTimeWindow  = errors.New("end time must be after start time")
	ErrUnbounded      = errors.New("recurrence requires an end date or an end count")
)

// maxExpansion caps a single expansion run.  A weekly class bounded
// only by an end date three years out stays well under this.
const maxExpansion = 1000

// Expand turns a ClassInstance into an ordered, deduplicated sequence
// of slots.  existingStarts holds the start times of occurrences
// already materialized for this instance; candidates matching one are
// counted against the end-count bound but not re-emitted, which makes
// Expand idempotent with respect to (instance_id, start_time).
//
// Blackout dates are skipped entirely and do not count toward the
// end-count bound.  When both an end date and an end count are
// supplied, whichever bound is reached first terminates expansion.
// Monthly recurrence on a day-of-month missing from a short month is
// clamped to that month's last day.
func Expand(inst *model.ClassInstance, existingStarts []time.Time) ([]Slot, error) {
	startClock, err := parseClock(inst.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	endClock, err := parseClock(inst.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	if endClock <= startClock {
		return nil, ErrBadTimeWindow
	}

	rule := inst.Rule
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}
	pattern := rule.Pattern
	if pattern == model.PatternBiweekly {
		// Biweekly is weekly with a doubled step.
		pattern = model.PatternWeekly
		interval *= 2
	}
	if pattern != model.PatternNone && rule.EndDate == nil && rule.EndCount == nil {
		return nil, ErrUnbounded
	}

	blackout := make(map[string]struct{}, len(inst.BlackoutDates))
	for _, d := range inst.BlackoutDates {
		blackout[dateKey(d)] = struct{}{}
	}
	existing := make(map[time.Time]struct{}, len(existingStarts))
	for _, t := range existingStarts {
		existing[t.UTC()] = struct{}{}
	}

	// Generators overshoot the end count by the number of blackout
	// dates so that skipped days still leave enough candidates to
	// satisfy the count; the emit loop below enforces the real bound.
	genRule := rule
	if rule.EndCount != nil {
		padded := *rule.EndCount + len(inst.BlackoutDates)
		genRule.EndCount = &padded
	}

	startDate := dateOnly(inst.StartDate)
	var candidates []time.Time
	switch pattern {
	case model.PatternNone:
		candidates = []time.Time{startDate}
	case model.PatternDaily:
		candidates = expandDaily(startDate, interval, genRule)
	case model.PatternWeekly:
		candidates = expandWeekly(startDate, interval, genRule)
	case model.PatternMonthly:
		candidates = expandMonthly(startDate, interval, genRule)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, rule.Pattern)
	}

	slots := make([]Slot, 0, len(candidates))
	emitted := 0
	seen := make(map[time.Time]struct{}, len(candidates))
	for _, day := range candidates {
		if rule.EndCount != nil && emitted >= *rule.EndCount {
			break
		}
		if _, skip := blackout[dateKey(day)]; skip {
			continue // blackouts do not count toward the end count
		}
		start := day.Add(startClock)
		if _, dup := seen[start]; dup {
			continue
		}
		seen[start] = struct{}{}
		emitted++
		if _, have := existing[start]; have {
			continue // already materialized; counts, not re-emitted
		}
		slots = append(slots, Slot{Start: start, End: day.Add(endClock)})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

// expandDaily steps forward interval days at a time.
func expandDaily(start time.Time, interval int, rule model.RecurrenceRule) []time.Time {
	var out []time.Time
	for d := start; withinBounds(d, rule, len(out)); d = d.AddDate(0, 0, interval) {
		out = append(out, d)
	}
	return out
}

// expandWeekly emits one candidate per matching weekday inside each
// active week, stepping the week anchor by interval weeks.  When no
// weekdays are specified the instance's start weekday is used.
func expandWeekly(start time.Time, interval int, rule model.RecurrenceRule) []time.Time {
	days := rule.DaysOfWeek
	if len(days) == 0 {
		days = []time.Weekday{start.Weekday()}
	}
	match := make(map[time.Weekday]bool, len(days))
	for _, wd := range days {
		match[wd] = true
	}
	// Anchor each active week on its Monday so the interval step is
	// stable regardless of which weekday the series starts on.
	anchor := start.AddDate(0, 0, -mondayOffset(start.Weekday()))
	var out []time.Time
	for len(out) < maxExpansion {
		for i := 0; i < 7; i++ {
			d := anchor.AddDate(0, 0, i)
			if d.Before(start) || !match[d.Weekday()] {
				continue
			}
			if !withinBounds(d, rule, len(out)) {
				continue
			}
			out = append(out, d)
		}
		if rule.EndCount != nil && len(out) >= *rule.EndCount {
			break
		}
		anchor = anchor.AddDate(0, 0, 7*interval)
		if rule.EndDate != nil && anchor.After(dateOnly(*rule.EndDate)) {
			break
		}
	}
	return out
}

// expandMonthly advances by interval months keeping the start date's
// day-of-month, clamped to the last day of months too short for it.
func expandMonthly(start time.Time, interval int, rule model.RecurrenceRule) []time.Time {
	day := start.Day()
	year, month := start.Year(), start.Month()
	var out []time.Time
	for len(out) < maxExpansion {
		d := clampedDate(year, month, day)
		if !d.Before(start) {
			if !withinBounds(d, rule, len(out)) {
				break
			}
			out = append(out, d)
		}
		month += time.Month(interval)
		for month > 12 {
			month -= 12
			year++
		}
	}
	return out
}

// withinBounds reports whether a candidate date is still inside the
// rule's end-date and end-count bounds.  The end date is inclusive.
func withinBounds(d time.Time, rule model.RecurrenceRule, emitted int) bool {
	if emitted >= maxExpansion {
		return false
	}
	if rule.EndDate != nil && d.After(dateOnly(*rule.EndDate)) {
		return false
	}
	if rule.EndCount != nil && emitted >= *rule.EndCount {
		return false
	}
	return true
}

// clampedDate builds a UTC date for year/month/day, pulling the day
// back to the month's last day when it would overflow (e.g. Feb 31).
func clampedDate(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// mondayOffset returns how many days wd lies after Monday.
func mondayOffset(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

// parseClock converts a "15:04" wall-clock string into an offset from
// midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// dateOnly strips the clock portion, keeping the UTC calendar date.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateKey is a comparable calendar-date key for blackout lookups.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
