package repository

import (
	"context"
	"errors"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/refund"
)

// RefundStore adapts the cancellation, registration and user
// repositories to the persistence surface the refund orchestrator
// works against.
type RefundStore struct {
	Cancellations *CancellationRepo
	Registrations *RegistrationRepo
	Users         *UserRepo
}

// NewRefundStore wires the three repositories together.
func NewRefundStore(c *CancellationRepo, reg *RegistrationRepo, u *UserRepo) *RefundStore {
	return &RefundStore{Cancellations: c, Registrations: reg, Users: u}
}

var _ refund.Store = (*RefundStore)(nil)

func (s *RefundStore) Request(ctx context.Context, id string) (*model.CancellationRequest, error) {
	return s.Cancellations.GetByID(ctx, id)
}

func (s *RefundStore) Registration(ctx context.Context, id uint64) (*model.Registration, error) {
	return s.Registrations.GetByID(ctx, id)
}

func (s *RefundStore) WalletIDForCustomer(ctx context.Context, customerID uint64) (uint64, error) {
	return s.Users.WalletID(ctx, customerID)
}

// Transition maps the repository's stale-row sentinel to the
// orchestrator's, so callers of either package match on their own
// error.
func (s *RefundStore) Transition(ctx context.Context, id, from, to string) error {
	err := s.Cancellations.Transition(ctx, id, from, to)
	if errors.Is(err, ErrStaleTransition) {
		return refund.ErrInvalidTransition
	}
	return err
}

func (s *RefundStore) SaveDetails(ctx context.Context, id string, det model.RefundDetails) error {
	return s.Cancellations.SaveDetails(ctx, id, det)
}

func (s *RefundStore) RecordError(ctx context.Context, id, msg string) error {
	return s.Cancellations.RecordError(ctx, id, msg)
}

func (s *RefundStore) MarkRegistrationRefunded(ctx context.Context, registrationID uint64, paymentStatus string) error {
	return s.Registrations.SetPaymentStatus(ctx, registrationID, paymentStatus)
}
