package refund

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// Sentinel errors surfaced by the orchestrator.  Handlers map these to
// HTTP statuses; workers use them to decide whether a retry is safe.
var (
	// ErrGatewayFailed wraps a payment-gateway failure.  The request
	// stays in REFUNDING and may be retried; no credit has been issued.
	ErrGatewayFailed = errors.New("payment gateway refund failed")
	// ErrPartialProcessing means the gateway refund succeeded but the
	// wallet credit did not.  The request is parked in
	// NEEDS_RECONCILIATION for manual follow-up; the refund is never
	// reversed automatically.
	ErrPartialProcessing = errors.New("refund succeeded but credit failed")
	// ErrInvalidTransition is returned when a request is not in a
	// state the attempted operation accepts.
	ErrInvalidTransition = errors.New("invalid cancellation request transition")
)

// PaymentGateway refunds money to the original payment method.  The
// gateway is assumed idempotent per requestID, so retrying a failed
// call cannot double-refund.
type PaymentGateway interface {
	Refund(ctx context.Context, paymentRef string, amountCents int64, requestID string) (txnID string, err error)
}

// WalletService issues studio credit.  The underlying ledger is
// append-only.
type WalletService interface {
	Credit(ctx context.Context, walletID uint64, amountCents int64, reason, reference string) (txnID string, err error)
}

// Notifier delivers best-effort notifications.  Failures are logged
// and never block a request from reaching PROCESSED.
type Notifier interface {
	Notify(ctx context.Context, audience, template string, vars map[string]string) error
}

// Store persists cancellation requests and the records the
// orchestrator touches around them.  Transition must be a
// compare-and-swap on the status column: it fails with
// ErrInvalidTransition when the row is no longer in the expected
// state, which is what makes concurrent or repeated processing safe.
type Store interface {
	Request(ctx context.Context, id string) (*model.CancellationRequest, error)
	Registration(ctx context.Context, id uint64) (*model.Registration, error)
	WalletIDForCustomer(ctx context.Context, customerID uint64) (uint64, error)
	Transition(ctx context.Context, id, from, to string) error
	SaveDetails(ctx context.Context, id string, det model.RefundDetails) error
	RecordError(ctx context.Context, id, msg string) error
	MarkRegistrationRefunded(ctx context.Context, registrationID uint64, paymentStatus string) error
}

// SeatReleaser frees the cancelled seat and runs the waitlist
// promotion cascade.  Implemented by the booking service; the release
// and promotion happen inside one short database transaction there.
type SeatReleaser interface {
	ReleaseSeat(ctx context.Context, registrationID uint64) error
}

// Orchestrator drives a cancellation request through
//
//	PENDING → APPROVED → REFUNDING → CREDITING → NOTIFYING → PROCESSED
//
// or PENDING → REJECTED.  Every step's outcome is persisted before the
// next begins, so a crash resumes from the recorded state instead of
// re-executing money movements.  External calls (gateway, wallet,
// notifications) run outside any database transaction.
type Orchestrator struct {
	Store    Store
	Gateway  PaymentGateway
	Wallet   WalletService
	Notifier Notifier
	Releaser SeatReleaser
}

// NewOrchestrator wires an Orchestrator.  Notifier may be nil, in
// which case notifications are skipped.
func NewOrchestrator(store Store, gw PaymentGateway, wallet WalletService, notifier Notifier, releaser SeatReleaser) *Orchestrator {
	if store == nil || gw == nil || wallet == nil || releaser == nil {
		panic("nil dependency passed to NewOrchestrator")
	}
	return &Orchestrator{Store: store, Gateway: gw, Wallet: wallet, Notifier: notifier, Releaser: releaser}
}

// Approve computes the refund split for a pending request and moves it
// to APPROVED.  The split is derived from the registration amount, the
// class start time and the applicable policy at the moment of
// approval, so later processing uses the amounts the customer was
// quoted.
func (o *Orchestrator) Approve(ctx context.Context, requestID string, policy model.CancellationPolicy, hoursBefore float64) (model.RefundDetails, error) {
	req, err := o.Store.Request(ctx, requestID)
	if err != nil {
		return model.RefundDetails{}, err
	}
	if req.Status != model.RequestPending {
		return model.RefundDetails{}, fmt.Errorf("%w: approve from %s", ErrInvalidTransition, req.Status)
	}
	var amount int64
	if req.RegistrationID != nil {
		reg, err := o.Store.Registration(ctx, *req.RegistrationID)
		if err != nil {
			return model.RefundDetails{}, err
		}
		amount = reg.AmountCents
	}
	det := CalculateRefund(amount, hoursBefore, policy, req.Initiator)
	if err := o.Store.SaveDetails(ctx, requestID, det); err != nil {
		return model.RefundDetails{}, err
	}
	if err := o.Store.Transition(ctx, requestID, model.RequestPending, model.RequestApproved); err != nil {
		return model.RefundDetails{}, err
	}
	return det, nil
}

// Reject terminates a pending request without moving any money.
func (o *Orchestrator) Reject(ctx context.Context, requestID, reason string) error {
	if err := o.Store.Transition(ctx, requestID, model.RequestPending, model.RequestRejected); err != nil {
		return err
	}
	if reason != "" {
		return o.Store.RecordError(ctx, requestID, reason)
	}
	return nil
}

// Process executes an approved request to completion.  It is
// idempotent: a request already in a terminal state is a no-op, and a
// request stuck mid-sequence resumes at its persisted step.
func (o *Orchestrator) Process(ctx context.Context, requestID string) error {
	req, err := o.Store.Request(ctx, requestID)
	if err != nil {
		return err
	}
	switch req.Status {
	case model.RequestProcessed, model.RequestRejected:
		return nil // already terminal, never a duplicate refund
	case model.RequestNeedsReconciliation:
		return ErrPartialProcessing
	case model.RequestPending:
		return fmt.Errorf("%w: process before approval", ErrInvalidTransition)
	case model.RequestApproved:
		if err := o.Store.Transition(ctx, requestID, model.RequestApproved, model.RequestRefunding); err != nil {
			return err
		}
		req.Status = model.RequestRefunding
	}

	if req.Status == model.RequestRefunding {
		if err := o.refundStep(ctx, req); err != nil {
			return err
		}
		if err := o.Store.Transition(ctx, requestID, model.RequestRefunding, model.RequestCrediting); err != nil {
			return err
		}
		req.Status = model.RequestCrediting
	}

	if req.Status == model.RequestCrediting {
		if err := o.creditStep(ctx, req); err != nil {
			return err
		}
		if err := o.Store.Transition(ctx, requestID, model.RequestCrediting, model.RequestNotifying); err != nil {
			return err
		}
		req.Status = model.RequestNotifying
	}

	// Notifications are best-effort and must never block completion.
	if o.Notifier != nil {
		vars := map[string]string{
			"request_id":    req.ID,
			"refund_cents":  fmt.Sprint(req.Details.RefundAmountCents),
			"credit_cents":  fmt.Sprint(req.Details.CreditAmountCents),
			"initiator":     req.Initiator,
			"occurrence_id": fmt.Sprint(req.OccurrenceID),
		}
		if err := o.Notifier.Notify(ctx, "customers", "cancellation.processed", vars); err != nil {
			log.Printf("refund: notify failed for request %s: %v", req.ID, err)
		}
	}

	// Free the seat and cascade waitlist promotion before closing out.
	if req.RegistrationID != nil {
		if err := o.Releaser.ReleaseSeat(ctx, *req.RegistrationID); err != nil {
			_ = o.Store.RecordError(ctx, req.ID, "seat release: "+err.Error())
			return err
		}
	}
	return o.Store.Transition(ctx, requestID, model.RequestNotifying, model.RequestProcessed)
}

// refundStep moves the gateway portion.  A failure keeps the request
// in REFUNDING so it can be retried; nothing has been credited yet.
func (o *Orchestrator) refundStep(ctx context.Context, req *model.CancellationRequest) error {
	if req.Details.RefundAmountCents <= 0 || req.RegistrationID == nil {
		return nil
	}
	reg, err := o.Store.Registration(ctx, *req.RegistrationID)
	if err != nil {
		return err
	}
	paymentRef := ""
	if reg.PaymentRef != nil {
		paymentRef = *reg.PaymentRef
	}
	txn, err := o.Gateway.Refund(ctx, paymentRef, req.Details.RefundAmountCents, req.ID)
	if err != nil {
		_ = o.Store.RecordError(ctx, req.ID, "gateway: "+err.Error())
		return fmt.Errorf("%w: %v", ErrGatewayFailed, err)
	}
	req.Details.TransactionIDs = append(req.Details.TransactionIDs, txn)
	if err := o.Store.SaveDetails(ctx, req.ID, req.Details); err != nil {
		return err
	}
	return o.Store.MarkRegistrationRefunded(ctx, *req.RegistrationID, model.PaymentRefunded)
}

// creditStep issues the wallet portion.  A failure here leaves a
// confirmed refund in place, so the request is parked for manual
// reconciliation instead of being retried or reversed.
func (o *Orchestrator) creditStep(ctx context.Context, req *model.CancellationRequest) error {
	if req.Details.CreditAmountCents <= 0 || req.RegistrationID == nil {
		return nil
	}
	reg, err := o.Store.Registration(ctx, *req.RegistrationID)
	if err != nil {
		return err
	}
	walletID, err := o.Store.WalletIDForCustomer(ctx, reg.CustomerID)
	if err != nil {
		return err
	}
	txn, err := o.Wallet.Credit(ctx, walletID, req.Details.CreditAmountCents, "class cancellation credit", req.ID)
	if err != nil {
		_ = o.Store.RecordError(ctx, req.ID, "wallet: "+err.Error())
		if terr := o.Store.Transition(ctx, req.ID, model.RequestCrediting, model.RequestNeedsReconciliation); terr != nil {
			log.Printf("refund: failed to park request %s for reconciliation: %v", req.ID, terr)
		}
		return fmt.Errorf("%w: %v", ErrPartialProcessing, err)
	}
	req.Details.TransactionIDs = append(req.Details.TransactionIDs, txn)
	if err := o.Store.SaveDetails(ctx, req.ID, req.Details); err != nil {
		return err
	}
	if req.Details.RefundAmountCents <= 0 {
		return o.Store.MarkRegistrationRefunded(ctx, *req.RegistrationID, model.PaymentCredited)
	}
	return nil
}
