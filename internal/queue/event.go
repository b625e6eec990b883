// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into a notification log.
package queue

// Queue names. Each event type gets its own durable queue on the default
// exchange so consumers can subscribe selectively.
const (
	SeatBookedQueue     = "class.seat.booked"
	WaitlistJoinedQueue = "class.waitlist.joined"
	SeatPromotedQueue   = "class.seat.promoted"
	NotificationQueue   = "class.notifications"
)

// SeatBookedEvent is published after a registration is confirmed. It carries
// enough context for downstream consumers to notify or log without querying
// the primary database.
type SeatBookedEvent struct {
	RegistrationID uint64 `json:"registration_id"`
	OccurrenceID   uint64 `json:"occurrence_id"`
	CustomerID     uint64 `json:"customer_id"`
	BookedAt       string `json:"booked_at"`
}

// WaitlistJoinedEvent is published when a full occurrence queues a customer.
type WaitlistJoinedEvent struct {
	OccurrenceID uint64 `json:"occurrence_id"`
	CustomerID   uint64 `json:"customer_id"`
	Position     int    `json:"position"`
	JoinedAt     string `json:"joined_at"`
}

// SeatPromotedEvent is published when a freed seat goes to the head of the
// waitlist. WindowExpiresAt is empty for auto-promoted entries.
type SeatPromotedEvent struct {
	OccurrenceID    uint64 `json:"occurrence_id"`
	CustomerID      uint64 `json:"customer_id"`
	WindowExpiresAt string `json:"window_expires_at,omitempty"`
	PromotedAt      string `json:"promoted_at"`
}

// NotificationEvent is a generic templated notification, used by the refund
// pipeline to tell customers about processed cancellations.
type NotificationEvent struct {
	Audience string            `json:"audience"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars"`
	SentAt   string            `json:"sent_at"`
}
