package model

import "time"

// Occurrence statuses.  Transitions are one-way: an occurrence leaves
// SCHEDULED for exactly one of the terminal states and never returns.
const (
	OccurrenceScheduled = "SCHEDULED"
	OccurrenceCancelled = "CANCELLED"
	OccurrenceCompleted = "COMPLETED"
	OccurrenceMoved     = "MOVED"
)

// ClassOccurrence is a single materialized, bookable event generated
// from a ClassInstance.  Counters are mutated in place as bookings,
// cancellations and waitlist promotions happen; the database enforces
// booked_count <= capacity through a guarded UPDATE so concurrent
// bookings for the last seat cannot both succeed.
//
// Fields:
//  ID            – primary key identifier.
//  TemplateID    – template providing style metadata.
//  InstanceID    – recurrence definition that generated this occurrence.
//  InstructorID  – instructor teaching this occurrence.
//  LocationID    – room the occurrence runs in.
//  StartTime     – when the class begins (UTC).  (InstanceID, StartTime)
//                  is unique; expansion relies on this for idempotency.
//  EndTime       – when the class ends; always after StartTime.
//  PriceCents    – price in cents for one seat.
//  Capacity      – maximum confirmed registrations.
//  BookedCount   – current confirmed registrations.
//  WaitlistCount – current waiting (non-terminal) waitlist entries.
//  Status        – one of the Occurrence* constants.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type ClassOccurrence struct {
	ID            uint64    // class_occurrences.id
	TemplateID    uint64    // class_occurrences.template_id
	InstanceID    uint64    // class_occurrences.instance_id
	InstructorID  uint64    // class_occurrences.instructor_id
	LocationID    uint64    // class_occurrences.location_id
	StartTime     time.Time // class_occurrences.start_time
	EndTime       time.Time // class_occurrences.end_time
	PriceCents    int64     // class_occurrences.price_cents
	Capacity      uint32    // class_occurrences.capacity
	BookedCount   uint32    // class_occurrences.booked_count
	WaitlistCount uint32    // class_occurrences.waitlist_count
	Status        string    // class_occurrences.status
	CreatedAt     time.Time // class_occurrences.created_at
	UpdatedAt     time.Time // class_occurrences.updated_at
}
