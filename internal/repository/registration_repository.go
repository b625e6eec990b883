package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrRegistrationNotFound indicates that no registration matched the
// lookup.
var ErrRegistrationNotFound = errors.New("registration not found")

// ErrAlreadyRegistered indicates that the customer already has a live
// registration for the occurrence.
var ErrAlreadyRegistered = errors.New("customer already registered for this occurrence")

const registrationColumns = `id, occurrence_id, customer_id, status, payment_status, amount_cents, payment_ref, created_at, updated_at`

// RegistrationRepo manages persistence for registrations.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo constructs a RegistrationRepo with the given DB handle.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// CreateTx inserts a registration inside the booking transaction.
// A live registration is any row not in CANCELLED; the existence check
// runs under the same transaction as the seat counter update, so a
// double submit cannot create two live rows.
func (r *RegistrationRepo) CreateTx(ctx context.Context, tx *sql.Tx, reg *model.Registration) (uint64, error) {
	var existing uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM registrations WHERE occurrence_id = ? AND customer_id = ? AND status != ? FOR UPDATE`,
		reg.OccurrenceID, reg.CustomerID, model.RegistrationCancelled).Scan(&existing)
	if err == nil {
		return 0, ErrAlreadyRegistered
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO registrations (occurrence_id, customer_id, status, payment_status, amount_cents, payment_ref)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reg.OccurrenceID, reg.CustomerID, reg.Status, reg.PaymentStatus, reg.AmountCents, reg.PaymentRef)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns a registration or ErrRegistrationNotFound.
func (r *RegistrationRepo) GetByID(ctx context.Context, id uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ?`
	return scanRegistration(r.db.QueryRowContext(ctx, q, id))
}

// GetByOccurrenceAndCustomerTx returns the customer's live
// registration for an occurrence, locked.  Waitlist promotion uses it
// to flip the WAITLISTED row to CONFIRMED.
func (r *RegistrationRepo) GetByOccurrenceAndCustomerTx(ctx context.Context, tx *sql.Tx, occurrenceID, customerID uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations
	           WHERE occurrence_id = ? AND customer_id = ? AND status != ? LIMIT 1 FOR UPDATE`
	return scanRegistration(tx.QueryRowContext(ctx, q, occurrenceID, customerID, model.RegistrationCancelled))
}

// GetByIDTx is GetByID inside a transaction with a row lock.
func (r *RegistrationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ? FOR UPDATE`
	return scanRegistration(tx.QueryRowContext(ctx, q, id))
}

// ListByCustomer returns a customer's registrations, newest first.
func (r *RegistrationRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

// ListConfirmedByOccurrenceTx returns the CONFIRMED registrations of an
// occurrence, locked.  Occurrence-wide cancellation iterates this set
// to open one refund request per seat.
func (r *RegistrationRepo) ListConfirmedByOccurrenceTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) ([]model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations
	           WHERE occurrence_id = ? AND status = ? ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, occurrenceID, model.RegistrationConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

// TransitionStatusTx moves a registration between statuses with a
// compare-and-swap guard.
func (r *RegistrationRepo) TransitionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE registrations SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// SetPaymentStatusTx records a payment state change, e.g. PAID after
// gateway capture or REFUNDED/CREDITED after refund processing.
func (r *RegistrationRepo) SetPaymentStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, paymentRef *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE registrations SET payment_status = ?, payment_ref = COALESCE(?, payment_ref) WHERE id = ?`,
		status, paymentRef, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// SetPaymentStatus is SetPaymentStatusTx outside a transaction, used by
// the refund orchestrator after its external calls complete.
func (r *RegistrationRepo) SetPaymentStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET payment_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func scanRegistration(row *sql.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(&reg.ID, &reg.OccurrenceID, &reg.CustomerID, &reg.Status,
		&reg.PaymentStatus, &reg.AmountCents, &reg.PaymentRef, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func collectRegistrations(rows *sql.Rows) ([]model.Registration, error) {
	out := make([]model.Registration, 0)
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.OccurrenceID, &reg.CustomerID, &reg.Status,
			&reg.PaymentStatus, &reg.AmountCents, &reg.PaymentRef, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}
