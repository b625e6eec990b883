package model

import "time"

// Waitlist entry statuses.  WAITING entries count toward the
// occurrence's waitlist_count; PROMOTED and EXPIRED are terminal and
// decrement the counter exactly once on transition.
const (
	WaitlistWaiting  = "WAITING"
	WaitlistPromoted = "PROMOTED"
	WaitlistExpired  = "EXPIRED"
)

// Payment capture modes for a promoted entry.
const (
	CaptureImmediate = "IMMEDIATE" // charge stored payment method on promotion
	CaptureWindow    = "WINDOW"    // customer must confirm within the payment window
)

// WaitlistEntry queues a customer for a full occurrence.  Entries are
// promoted strictly in JoinedAt order (ties broken by ID).  An entry
// promoted without AutoPromote must be confirmed before its payment
// window closes; otherwise it expires and the next WAITING entry is
// promoted in its place.
//
// Fields:
//  ID                 – primary key; also the FIFO tie-breaker.
//  OccurrenceID       – occurrence the customer is waiting for.
//  CustomerID         – waiting customer.
//  JoinedAt           – FIFO ordering key.
//  AutoPromote        – convert straight to a confirmed registration
//                       when a seat frees up.
//  PaymentCaptureMode – one of the Capture* constants.
//  PaymentWindowHours – hours a promoted customer has to confirm.
//  PromotedAt         – when the entry was promoted (null while waiting).
//  WindowExpiresAt    – promotion deadline (null while waiting or when
//                       AutoPromote is set).
//  Status             – one of the Waitlist* constants.
//  CreatedAt          – creation timestamp.
type WaitlistEntry struct {
	ID                 uint64     // waitlist_entries.id
	OccurrenceID       uint64     // waitlist_entries.occurrence_id
	CustomerID         uint64     // waitlist_entries.customer_id
	JoinedAt           time.Time  // waitlist_entries.joined_at
	AutoPromote        bool       // waitlist_entries.auto_promote
	PaymentCaptureMode string     // waitlist_entries.payment_capture_mode
	PaymentWindowHours uint32     // waitlist_entries.payment_window_hours
	PromotedAt         *time.Time // waitlist_entries.promoted_at (nullable)
	WindowExpiresAt    *time.Time // waitlist_entries.window_expires_at (nullable)
	Status             string     // waitlist_entries.status
	CreatedAt          time.Time  // waitlist_entries.created_at
}
