package model

import "time"

// Registration statuses.
const (
	RegistrationPending    = "PENDING"
	RegistrationConfirmed  = "CONFIRMED"
	RegistrationWaitlisted = "WAITLISTED"
	RegistrationCancelled  = "CANCELLED"
	RegistrationAttended   = "ATTENDED"
	RegistrationNoShow     = "NO_SHOW"
)

// Payment statuses tracked on a registration.
const (
	PaymentUnpaid   = "UNPAID"
	PaymentPaid     = "PAID"
	PaymentRefunded = "REFUNDED"
	PaymentCredited = "CREDITED"
)

// Registration links one customer to one occurrence.  At most one
// registration exists per (occurrence, customer) pair.  A CONFIRMED
// registration holds a seat against the occurrence's capacity; a
// WAITLISTED registration is backed by a WaitlistEntry instead.
//
// Fields:
//  ID            – primary key identifier.
//  OccurrenceID  – occurrence being booked.
//  CustomerID    – booking customer.
//  Status        – one of the Registration* constants.
//  PaymentStatus – one of the Payment* constants.
//  AmountCents   – amount paid (or owed) for this seat in cents.
//  PaymentRef    – external payment reference used for refunds.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Registration struct {
	ID            uint64    // registrations.id
	OccurrenceID  uint64    // registrations.occurrence_id
	CustomerID    uint64    // registrations.customer_id
	Status        string    // registrations.status
	PaymentStatus string    // registrations.payment_status
	AmountCents   int64     // registrations.amount_cents
	PaymentRef    *string   // registrations.payment_ref (nullable)
	CreatedAt     time.Time // registrations.created_at
	UpdatedAt     time.Time // registrations.updated_at
}
