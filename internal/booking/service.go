// Package booking holds the seat lifecycle for class occurrences:
// claiming a seat, joining the waitlist when full, releasing a seat and
// cascading the freed seat to the waitlist head.  Every mutation runs
// inside one short database transaction so the capacity counters and
// the registration rows can never disagree.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// ErrOccurrenceNotBookable indicates that the occurrence is cancelled,
// completed or otherwise closed to new registrations.
var ErrOccurrenceNotBookable = errors.New("occurrence is not open for booking")

// ErrPromotionWindowClosed indicates that a promoted waitlist entry was
// confirmed after its payment window expired.
var ErrPromotionWindowClosed = errors.New("promotion payment window has closed")

// EventPublisher pushes booking lifecycle events to the message broker.
// Publishing is best-effort; a broker outage never fails a booking.
type EventPublisher interface {
	SeatBooked(ctx context.Context, occurrenceID, customerID, registrationID uint64)
	WaitlistJoined(ctx context.Context, occurrenceID, customerID uint64, position int)
	SeatPromoted(ctx context.Context, occurrenceID, customerID uint64, windowExpiresAt *time.Time)
}

// WaitlistOptions controls what happens when a booking hits a full
// occurrence.
type WaitlistOptions struct {
	Join               bool   // queue instead of failing with ErrCapacityExceeded
	AutoPromote        bool   // convert straight to CONFIRMED when a seat frees up
	PaymentCaptureMode string // one of the model.Capture* constants
	PaymentWindowHours uint32 // confirmation window for promoted entries
}

// Result reports the outcome of a booking attempt.
type Result struct {
	RegistrationID   uint64
	Waitlisted       bool
	WaitlistPosition int // 1-based, set when Waitlisted
}

// Service owns seat booking, release and the waitlist promotion
// cascade.  It is the single writer of the occurrence capacity
// counters outside of schedule materialization.
type Service struct {
	db            *sql.DB
	occurrences   *repository.OccurrenceRepo
	registrations *repository.RegistrationRepo
	waitlist      *repository.WaitlistRepo
	events        EventPublisher // nil disables publishing
}

// NewService constructs the booking service.  events may be nil.
func NewService(db *sql.DB, occ *repository.OccurrenceRepo, reg *repository.RegistrationRepo, wl *repository.WaitlistRepo, events EventPublisher) *Service {
	return &Service{db: db, occurrences: occ, registrations: reg, waitlist: wl, events: events}
}

// BookSeat claims one seat on an occurrence for a customer.  When the
// occurrence is full the customer is queued if opts.Join is set,
// otherwise the call fails with repository.ErrCapacityExceeded.  The
// capacity check and the increment are a single guarded UPDATE, so two
// customers racing for the last seat cannot both confirm.
func (s *Service) BookSeat(ctx context.Context, occurrenceID, customerID uint64, paymentRef *string, opts WaitlistOptions) (*Result, error) {
	occ, err := s.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status != model.OccurrenceScheduled {
		return nil, ErrOccurrenceNotBookable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	got, err := s.occurrences.TryBookSeatTx(ctx, tx, occurrenceID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if got {
		paymentStatus := model.PaymentUnpaid
		if paymentRef != nil {
			paymentStatus = model.PaymentPaid
		}
		res.RegistrationID, err = s.registrations.CreateTx(ctx, tx, &model.Registration{
			OccurrenceID:  occurrenceID,
			CustomerID:    customerID,
			Status:        model.RegistrationConfirmed,
			PaymentStatus: paymentStatus,
			AmountCents:   occ.PriceCents,
			PaymentRef:    paymentRef,
		})
		if err != nil {
			return nil, err
		}
	} else {
		if !opts.Join {
			return nil, repository.ErrCapacityExceeded
		}
		res.Waitlisted = true
		res.RegistrationID, err = s.registrations.CreateTx(ctx, tx, &model.Registration{
			OccurrenceID:  occurrenceID,
			CustomerID:    customerID,
			Status:        model.RegistrationWaitlisted,
			PaymentStatus: model.PaymentUnpaid,
			AmountCents:   occ.PriceCents,
			PaymentRef:    paymentRef,
		})
		if err != nil {
			return nil, err
		}
		entry := &model.WaitlistEntry{
			OccurrenceID:       occurrenceID,
			CustomerID:         customerID,
			JoinedAt:           time.Now().UTC(),
			AutoPromote:        opts.AutoPromote,
			PaymentCaptureMode: opts.PaymentCaptureMode,
			PaymentWindowHours: opts.PaymentWindowHours,
		}
		if entry.ID, err = s.waitlist.CreateTx(ctx, tx, entry); err != nil {
			return nil, err
		}
		if err := s.occurrences.IncrementWaitlistTx(ctx, tx, occurrenceID); err != nil {
			return nil, err
		}
		if res.WaitlistPosition, err = s.waitlist.PositionTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if s.events != nil {
		if res.Waitlisted {
			s.events.WaitlistJoined(ctx, occurrenceID, customerID, res.WaitlistPosition)
		} else {
			s.events.SeatBooked(ctx, occurrenceID, customerID, res.RegistrationID)
		}
	}
	return res, nil
}

// ReleaseSeat cancels a CONFIRMED registration, frees its seat and
// hands the seat to the waitlist head, all in one transaction.  The
// refund orchestrator calls this after the money movements succeed.
func (s *Service) ReleaseSeat(ctx context.Context, registrationID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	reg, err := s.registrations.GetByIDTx(ctx, tx, registrationID)
	if err != nil {
		return err
	}
	var promo *promotion
	switch reg.Status {
	case model.RegistrationConfirmed:
		if err := s.registrations.TransitionStatusTx(ctx, tx, reg.ID, model.RegistrationConfirmed, model.RegistrationCancelled); err != nil {
			return err
		}
		if err := s.occurrences.ReleaseSeatTx(ctx, tx, reg.OccurrenceID); err != nil {
			return err
		}
		if promo, err = s.promoteNextTx(ctx, tx, reg.OccurrenceID, time.Now().UTC()); err != nil {
			return err
		}
	case model.RegistrationCancelled:
		// Already released; releasing twice is a no-op.
	default:
		return repository.ErrStaleTransition
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	s.publishPromotions(ctx, []*promotion{promo})
	return nil
}

// ConfirmPromotion completes a window-capture promotion: the customer
// confirmed (and paid) before the deadline, so their WAITLISTED
// registration becomes CONFIRMED.  The seat was already held for them
// at promotion time.
func (s *Service) ConfirmPromotion(ctx context.Context, entryID, customerID uint64, paymentRef *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	entry, err := s.waitlist.GetByIDTx(ctx, tx, entryID)
	if err != nil {
		return err
	}
	if entry.CustomerID != customerID {
		return repository.ErrForbidden
	}
	if entry.Status != model.WaitlistPromoted {
		return repository.ErrStaleTransition
	}
	if entry.WindowExpiresAt != nil && time.Now().UTC().After(*entry.WindowExpiresAt) {
		return ErrPromotionWindowClosed
	}

	reg, err := s.registrations.GetByOccurrenceAndCustomerTx(ctx, tx, entry.OccurrenceID, customerID)
	if err != nil {
		return err
	}
	if err := s.registrations.TransitionStatusTx(ctx, tx, reg.ID, model.RegistrationWaitlisted, model.RegistrationConfirmed); err != nil {
		return err
	}
	if paymentRef != nil {
		if err := s.registrations.SetPaymentStatusTx(ctx, tx, reg.ID, model.PaymentPaid, paymentRef); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ExpirePromotions sweeps promoted entries whose payment window lapsed:
// each one is expired, its held seat freed and handed to the next
// WAITING entry.  Runs from a background ticker; also safe to call
// inline.  Returns the number of entries expired.
func (s *Service) ExpirePromotions(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expired, err := s.waitlist.ExpiredPromotionsTx(ctx, tx, now)
	if err != nil {
		return 0, err
	}
	var promos []*promotion
	for _, e := range expired {
		if err := s.waitlist.MarkExpiredTx(ctx, tx, e.ID); err != nil {
			return 0, err
		}
		reg, err := s.registrations.GetByOccurrenceAndCustomerTx(ctx, tx, e.OccurrenceID, e.CustomerID)
		if err == nil {
			if err := s.registrations.TransitionStatusTx(ctx, tx, reg.ID, model.RegistrationWaitlisted, model.RegistrationCancelled); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
				return 0, err
			}
		} else if !errors.Is(err, repository.ErrRegistrationNotFound) {
			return 0, err
		}
		if err := s.occurrences.ReleaseSeatTx(ctx, tx, e.OccurrenceID); err != nil {
			return 0, err
		}
		promo, err := s.promoteNextTx(ctx, tx, e.OccurrenceID, now)
		if err != nil {
			return 0, err
		}
		promos = append(promos, promo)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	s.publishPromotions(ctx, promos)
	return len(expired), nil
}

// promotion records one completed waitlist promotion for post-commit
// event publishing.
type promotion struct {
	occurrenceID    uint64
	customerID      uint64
	windowExpiresAt *time.Time
}

// promoteNextTx hands one freed seat to the waitlist head.  The head is
// locked before the seat is claimed, so two releases cannot promote the
// same entry.  Auto-promote entries become CONFIRMED immediately;
// window entries hold the seat until their confirmation deadline.
// Returns nil when nobody was promoted.
func (s *Service) promoteNextTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, now time.Time) (*promotion, error) {
	entry, err := s.waitlist.NextWaitingTx(ctx, tx, occurrenceID)
	if errors.Is(err, repository.ErrWaitlistEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	got, err := s.occurrences.TryBookSeatTx(ctx, tx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if !got {
		// Seat vanished between release and promotion; the entry
		// keeps its place for the next freed seat.
		return nil, nil
	}
	if err := s.occurrences.DecrementWaitlistTx(ctx, tx, occurrenceID); err != nil {
		return nil, err
	}

	var windowExpiresAt *time.Time
	if !entry.AutoPromote {
		deadline := now.Add(time.Duration(entry.PaymentWindowHours) * time.Hour)
		windowExpiresAt = &deadline
	}
	if err := s.waitlist.MarkPromotedTx(ctx, tx, entry.ID, now, windowExpiresAt); err != nil {
		return nil, err
	}
	if entry.AutoPromote {
		reg, err := s.registrations.GetByOccurrenceAndCustomerTx(ctx, tx, occurrenceID, entry.CustomerID)
		if err != nil {
			return nil, err
		}
		if err := s.registrations.TransitionStatusTx(ctx, tx, reg.ID, model.RegistrationWaitlisted, model.RegistrationConfirmed); err != nil {
			return nil, err
		}
	}
	return &promotion{occurrenceID: occurrenceID, customerID: entry.CustomerID, windowExpiresAt: windowExpiresAt}, nil
}

// publishPromotions emits SeatPromoted events after the transaction
// that performed them committed.
func (s *Service) publishPromotions(ctx context.Context, promos []*promotion) {
	for _, p := range promos {
		if p == nil {
			continue
		}
		if s.events != nil {
			s.events.SeatPromoted(ctx, p.occurrenceID, p.customerID, p.windowExpiresAt)
		} else {
			log.Printf("booking: promoted customer %d on occurrence %d", p.customerID, p.occurrenceID)
		}
	}
}
