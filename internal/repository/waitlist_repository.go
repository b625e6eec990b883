package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrWaitlistEntryNotFound indicates that no waitlist entry matched the
// lookup.
var ErrWaitlistEntryNotFound = errors.New("waitlist entry not found")

const waitlistColumns = `id, occurrence_id, customer_id, joined_at, auto_promote, payment_capture_mode,
       payment_window_hours, promoted_at, window_expires_at, status, created_at`

// WaitlistRepo manages persistence for waitlist entries.  Promotion
// order is strictly joined_at, ties broken by id; every promotion path
// selects the head with NextWaitingTx under a row lock so two freed
// seats cannot promote the same entry.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo constructs a WaitlistRepo with the given DB handle.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// CreateTx appends a customer to the waitlist inside the booking
// transaction, right after the seat claim came back full.
func (r *WaitlistRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.WaitlistEntry) (uint64, error) {
	const q = `INSERT INTO waitlist_entries
	           (occurrence_id, customer_id, joined_at, auto_promote, payment_capture_mode, payment_window_hours, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		e.OccurrenceID, e.CustomerID, e.JoinedAt.UTC().Format("2006-01-02 15:04:05"),
		e.AutoPromote, e.PaymentCaptureMode, e.PaymentWindowHours, model.WaitlistWaiting)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// NextWaitingTx locks and returns the head of the queue for an
// occurrence, or ErrWaitlistEntryNotFound when nobody is waiting.
func (r *WaitlistRepo) NextWaitingTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE occurrence_id = ? AND status = ?
	           ORDER BY joined_at, id LIMIT 1 FOR UPDATE`
	e, err := scanWaitlistEntry(tx.QueryRowContext(ctx, q, occurrenceID, model.WaitlistWaiting))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWaitlistEntryNotFound
	}
	return e, err
}

// MarkPromotedTx transitions a WAITING entry to PROMOTED, stamping the
// promotion time and, for window-capture entries, the confirmation
// deadline.
func (r *WaitlistRepo) MarkPromotedTx(ctx context.Context, tx *sql.Tx, id uint64, promotedAt time.Time, windowExpiresAt *time.Time) error {
	var deadline interface{}
	if windowExpiresAt != nil {
		deadline = windowExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = ?, promoted_at = ?, window_expires_at = ?
		 WHERE id = ? AND status = ?`,
		model.WaitlistPromoted, promotedAt.UTC().Format("2006-01-02 15:04:05"), deadline,
		id, model.WaitlistWaiting)
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

// MarkExpiredTx transitions a PROMOTED entry to EXPIRED after its
// payment window lapsed without confirmation.
func (r *WaitlistRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = ? WHERE id = ? AND status = ?`,
		model.WaitlistExpired, id, model.WaitlistPromoted)
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

// ExpiredPromotionsTx locks and returns PROMOTED window-capture entries
// whose confirmation deadline has passed.  The sweep expires each one
// and hands its seat to the next WAITING entry in the same transaction.
func (r *WaitlistRepo) ExpiredPromotionsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE status = ? AND window_expires_at IS NOT NULL AND window_expires_at <= ?
	           ORDER BY window_expires_at, id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, model.WaitlistPromoted, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		var (
			e               model.WaitlistEntry
			promotedAt      sql.NullTime
			windowExpiresAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.OccurrenceID, &e.CustomerID, &e.JoinedAt,
			&e.AutoPromote, &e.PaymentCaptureMode, &e.PaymentWindowHours,
			&promotedAt, &windowExpiresAt, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		if promotedAt.Valid {
			t := promotedAt.Time.UTC()
			e.PromotedAt = &t
		}
		if windowExpiresAt.Valid {
			t := windowExpiresAt.Time.UTC()
			e.WindowExpiresAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByIDTx returns an entry inside a transaction with a row lock.
func (r *WaitlistRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = ? FOR UPDATE`
	e, err := scanWaitlistEntry(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWaitlistEntryNotFound
	}
	return e, err
}

// PositionTx returns the 1-based queue position of a WAITING entry.
func (r *WaitlistRepo) PositionTx(ctx context.Context, tx *sql.Tx, e *model.WaitlistEntry) (int, error) {
	const q = `SELECT COUNT(*) FROM waitlist_entries
	           WHERE occurrence_id = ? AND status = ?
	             AND (joined_at < ? OR (joined_at = ? AND id <= ?))`
	joined := e.JoinedAt.UTC().Format("2006-01-02 15:04:05")
	var pos int
	err := tx.QueryRowContext(ctx, q, e.OccurrenceID, model.WaitlistWaiting, joined, joined, e.ID).Scan(&pos)
	return pos, err
}

func scanWaitlistEntry(row *sql.Row) (*model.WaitlistEntry, error) {
	var (
		e               model.WaitlistEntry
		promotedAt      sql.NullTime
		windowExpiresAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.OccurrenceID, &e.CustomerID, &e.JoinedAt,
		&e.AutoPromote, &e.PaymentCaptureMode, &e.PaymentWindowHours,
		&promotedAt, &windowExpiresAt, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.JoinedAt = e.JoinedAt.UTC()
	if promotedAt.Valid {
		t := promotedAt.Time.UTC()
		e.PromotedAt = &t
	}
	if windowExpiresAt.Valid {
		t := windowExpiresAt.Time.UTC()
		e.WindowExpiresAt = &t
	}
	return &e, nil
}
