package model

import "time"

// CancellationRule is a single tier in a cancellation policy.  A rule
// with HoursBefore=24 and RefundPct=100 reads: "cancel at least 24
// hours in advance for a full refund".  RefundPct and CreditPct need
// not sum to 100; any remainder is forfeited to the studio.
//
// Fields:
//  HoursBefore         – advance-notice threshold in hours.  The zero
//                        threshold is the at-start tier and applies
//                        only once the class has begun.
//  RefundPct           – percentage of the original amount returned to
//                        the payment method.
//  CreditPct           – percentage of the original amount issued as
//                        studio wallet credit.
//  ProcessingFeeCents  – flat fee in cents, charged once.  Deducted
//                        from the refund first; any remainder comes out
//                        of the credit.
type CancellationRule struct {
	HoursBefore        int   // cancellation_rules.hours_before
	RefundPct          int   // cancellation_rules.refund_pct
	CreditPct          int   // cancellation_rules.credit_pct
	ProcessingFeeCents int64 // cancellation_rules.processing_fee_cents
}

// CancellationPolicy is an ordered list of rules scoped by
// applicability.  Rules are evaluated from the largest HoursBefore
// threshold down; see the refund package for selection semantics.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name of the policy.
//  ClassCategory  – category the policy applies to ("" = all).
//  MembershipType – membership tier the policy applies to ("" = all).
//  Rules          – tier list; stored sorted descending by HoursBefore.
//  CreatedAt      – creation timestamp.
type CancellationPolicy struct {
	ID             uint64             // cancellation_policies.id
	Name           string             // cancellation_policies.name
	ClassCategory  string             // cancellation_policies.class_category
	MembershipType string             // cancellation_policies.membership_type
	Rules          []CancellationRule // cancellation_rules rows, ordered
	CreatedAt      time.Time          // cancellation_policies.created_at
}
