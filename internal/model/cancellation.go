package model

import "time"

// Cancellation initiators.  Every non-customer initiator entitles the
// customer to a full refund regardless of timing.
const (
	InitiatorCustomer   = "CUSTOMER"
	InitiatorInstructor = "INSTRUCTOR"
	InitiatorStudio     = "STUDIO"
	InitiatorWeather    = "WEATHER"
	InitiatorEmergency  = "EMERGENCY"
)

// Cancellation request statuses.  These double as the persisted
// positions of the refund orchestrator's state machine so a crash
// mid-sequence can be resumed instead of re-executed from scratch.
//
// PENDING    – submitted, awaiting approval.
// APPROVED   – approved, no money moved yet.
// REFUNDING  – payment-gateway refund in flight or retryable-failed.
// CREDITING  – refund confirmed, wallet credit in flight.
// NOTIFYING  – money movements done, notifications in flight.
// PROCESSED  – terminal success.
// REJECTED   – terminal, no money moved.
// NEEDS_RECONCILIATION – refund succeeded but the wallet credit
//   failed; flagged for manual follow-up, never auto-reversed.
const (
	RequestPending             = "PENDING"
	RequestApproved            = "APPROVED"
	RequestRefunding           = "REFUNDING"
	RequestCrediting           = "CREDITING"
	RequestNotifying           = "NOTIFYING"
	RequestProcessed           = "PROCESSED"
	RequestRejected            = "REJECTED"
	RequestNeedsReconciliation = "NEEDS_RECONCILIATION"
)

// RefundDetails is the computed money split for a cancellation.
//
// Fields:
//  OriginalAmountCents – what the customer originally paid.
//  RefundAmountCents   – returned to the payment method.
//  CreditAmountCents   – issued as wallet credit.
//  ProcessingFeeCents  – fee retained by the studio.
//  Method              – "gateway", "wallet", "mixed" or "none".
//  TransactionIDs      – gateway/wallet transaction references, in
//                        execution order.
type RefundDetails struct {
	OriginalAmountCents int64    `json:"original_amount_cents"`
	RefundAmountCents   int64    `json:"refund_amount_cents"`
	CreditAmountCents   int64    `json:"credit_amount_cents"`
	ProcessingFeeCents  int64    `json:"processing_fee_cents"`
	Method              string   `json:"method"`
	TransactionIDs      []string `json:"transaction_ids"`
}

// CancellationRequest tracks one cancellation through the refund
// orchestrator.  RegistrationID is null for occurrence-wide
// cancellations fanned out by the studio.
//
// Fields:
//  ID             – UUID primary key.
//  OccurrenceID   – occurrence being cancelled (or cancelled against).
//  RegistrationID – registration being refunded, when applicable.
//  Initiator      – one of the Initiator* constants.
//  Reason         – free-text reason supplied by the initiator.
//  Status         – one of the Request* constants.
//  Details        – computed refund split, set at approval time.
//  LastError      – most recent step failure, kept for retries and
//                   manual reconciliation.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last state-machine transition.
type CancellationRequest struct {
	ID             string        // cancellation_requests.id (uuid)
	OccurrenceID   uint64        // cancellation_requests.occurrence_id
	RegistrationID *uint64       // cancellation_requests.registration_id (nullable)
	Initiator      string        // cancellation_requests.initiator
	Reason         string        // cancellation_requests.reason
	Status         string        // cancellation_requests.status
	Details        RefundDetails // cancellation_requests.details (JSON column)
	LastError      *string       // cancellation_requests.last_error (nullable)
	CreatedAt      time.Time     // cancellation_requests.created_at
	UpdatedAt      time.Time     // cancellation_requests.updated_at
}
