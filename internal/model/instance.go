package model

import "time"

// Recurrence pattern names accepted on a ClassInstance.  "biweekly" is
// shorthand for a weekly pattern with a two-week interval and is
// normalized by the expander.
const (
	PatternNone     = "none"
	PatternDaily    = "daily"
	PatternWeekly   = "weekly"
	PatternBiweekly = "biweekly"
	PatternMonthly  = "monthly"
)

// RecurrenceRule describes how a ClassInstance repeats.  Exactly one of
// EndDate/EndCount may be set, or both; when both are supplied the
// bound reached first terminates expansion.
//
// Fields:
//  Pattern    – one of the Pattern* constants above.
//  Interval   – step between repetitions (days, weeks or months
//               depending on Pattern).  Values below 1 are treated as 1.
//  DaysOfWeek – weekdays a weekly/biweekly class runs on.  Ignored for
//               other patterns.
//  EndDate    – last calendar date (inclusive) an occurrence may fall on.
//  EndCount   – maximum number of occurrences to materialize.
type RecurrenceRule struct {
	Pattern    string
	Interval   int
	DaysOfWeek []time.Weekday
	EndDate    *time.Time
	EndCount   *int
}

// ClassInstance is a recurrence definition owned by the studio.  It
// references a ClassTemplate and generates zero or more
// ClassOccurrence rows when expanded.  Occurrences never move between
// instances.
//
// Fields:
//  ID            – primary key identifier.
//  TemplateID    – template providing the style metadata.
//  InstructorID  – instructor teaching every generated occurrence.
//  LocationID    – room or studio space the class runs in.
//  StartDate     – first candidate date of the series.
//  StartTime     – time of day the class begins ("15:04" wall clock, UTC).
//  EndTime       – time of day the class ends.
//  Rule          – recurrence rule controlling expansion.
//  BlackoutDates – dates skipped during expansion (holidays, closures).
//                  Skipped dates do not count toward Rule.EndCount.
//  PriceCents    – per-occurrence price; falls back to the template
//                  default when zero.
//  Capacity      – per-occurrence capacity; falls back to the template
//                  default when zero.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type ClassInstance struct {
	ID            uint64
	TemplateID    uint64
	InstructorID  uint64
	LocationID    uint64
	StartDate     time.Time
	StartTime     string
	EndTime       string
	Rule          RecurrenceRule
	BlackoutDates []time.Time
	PriceCents    int64
	Capacity      uint32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Edit scopes accepted when modifying a recurring series.
const (
	EditScopeThisOccurrence    = "this_occurrence"
	EditScopeFutureOccurrences = "future_occurrences"
	EditScopeAllOccurrences    = "all_occurrences"
)

// RecurringEditOptions carries a series edit request.  Scope selects
// which occurrences the change applies to; zero-valued change fields
// leave the corresponding column untouched.
type RecurringEditOptions struct {
	Scope           string     // one of the EditScope* constants
	OccurrenceID    uint64     // anchor occurrence for this/future scopes
	NewInstructorID uint64     // 0 = keep current instructor
	NewLocationID   uint64     // 0 = keep current location
	NewStartTime    *time.Time // nil = keep current start
	NewEndTime      *time.Time // nil = keep current end
	NewPriceCents   *int64     // nil = keep current price
	NewCapacity     *uint32    // nil = keep current capacity
}
