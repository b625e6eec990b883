// Package refund computes cancellation refund splits and executes them
// through the refund orchestrator's state machine.  The policy math in
// this file is pure; money moves only in orchestrator.go.
package refund

import (
	"sort"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// Refund methods recorded on RefundDetails.
const (
	MethodGateway = "gateway"
	MethodWallet  = "wallet"
	MethodMixed   = "mixed"
	MethodNone    = "none"
)

// HoursBefore returns how many hours remain between now and the class
// start.  Negative values mean the class has already begun.
func HoursBefore(start, now time.Time) float64 {
	return start.Sub(now).Hours()
}

// CalculateRefund maps a cancellation onto a refund/credit/fee split.
//
// Non-customer initiators (instructor, studio, weather, emergency)
// always receive the full amount back: the customer is never penalized
// for studio-caused disruption.
//
// Customer cancellations walk the policy tiers from the largest
// advance-notice threshold down and apply the first tier the actual
// notice still satisfies.  The zero-hour tier is reserved for
// cancellations at or after the class start; when no advance tier is
// satisfied before start, the tier with the smallest positive
// threshold (the same-day tier) applies.
//
// The processing fee is charged once: it is deducted from the refund
// first, and any part the refund cannot absorb comes out of the
// credit.  Both amounts are clamped at zero, so the result always
// satisfies 0 <= refund <= original.
func CalculateRefund(originalCents int64, hoursBefore float64, policy model.CancellationPolicy, initiator string) model.RefundDetails {
	if initiator != model.InitiatorCustomer {
		return model.RefundDetails{
			OriginalAmountCents: originalCents,
			RefundAmountCents:   originalCents,
			Method:              MethodGateway,
		}
	}

	rule := selectRule(policy.Rules, hoursBefore)
	refund := originalCents * int64(rule.RefundPct) / 100
	credit := originalCents * int64(rule.CreditPct) / 100
	fee := rule.ProcessingFeeCents

	charged := fee
	if charged > refund+credit {
		charged = refund + credit
	}
	refund -= fee
	if refund < 0 {
		credit += refund // pass the unabsorbed remainder to the credit
		refund = 0
	}
	if credit < 0 {
		credit = 0
	}
	if refund > originalCents {
		refund = originalCents
	}

	return model.RefundDetails{
		OriginalAmountCents: originalCents,
		RefundAmountCents:   refund,
		CreditAmountCents:   credit,
		ProcessingFeeCents:  charged,
		Method:              method(refund, credit),
	}
}

// selectRule picks the applicable tier.  Rules are evaluated in
// descending threshold order regardless of stored order.  A zero
// result is returned for an empty rule list (no refund, no credit).
func selectRule(rules []model.CancellationRule, hoursBefore float64) model.CancellationRule {
	if len(rules) == 0 {
		return model.CancellationRule{}
	}
	sorted := make([]model.CancellationRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HoursBefore > sorted[j].HoursBefore })

	if hoursBefore <= 0 {
		// At or after start: the zero-threshold tier when present,
		// otherwise the smallest tier there is.
		return sorted[len(sorted)-1]
	}
	var smallestPositive *model.CancellationRule
	for i := range sorted {
		r := sorted[i]
		if r.HoursBefore <= 0 {
			continue
		}
		smallestPositive = &sorted[i]
		if hoursBefore >= float64(r.HoursBefore) {
			return r
		}
	}
	if smallestPositive != nil {
		return *smallestPositive
	}
	return sorted[len(sorted)-1]
}

func method(refund, credit int64) string {
	switch {
	case refund > 0 && credit > 0:
		return MethodMixed
	case refund > 0:
		return MethodGateway
	case credit > 0:
		return MethodWallet
	default:
		return MethodNone
	}
}
