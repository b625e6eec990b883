package model

import "time"

// ClassTemplate holds the style metadata for a class offered by the
// studio.  Templates are edited independently of the schedule and are
// never booked directly; bookable events are materialized as
// occurrences from a ClassInstance that references a template.
//
// Fields:
//  ID                – primary key identifier.
//  Name              – display name of the class (e.g. "Vinyasa Flow").
//  Category          – broad grouping such as yoga, pilates, barre.
//  Level             – difficulty level (beginner, intermediate, advanced, all).
//  DurationMinutes   – default length of a single occurrence.
//  DefaultPriceCents – default drop-in price in cents.
//  DefaultCapacity   – default number of bookable seats.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type ClassTemplate struct {
	ID                uint64    // class_templates.id
	Name              string    // class_templates.name
	Category          string    // class_templates.category
	Level             string    // class_templates.level
	DurationMinutes   uint32    // class_templates.duration_minutes
	DefaultPriceCents int64     // class_templates.default_price_cents
	DefaultCapacity   uint32    // class_templates.default_capacity
	CreatedAt         time.Time // class_templates.created_at
	UpdatedAt         time.Time // class_templates.updated_at
}
