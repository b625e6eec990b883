package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrCancellationNotFound indicates that no cancellation request
// matched the lookup.
var ErrCancellationNotFound = errors.New("cancellation request not found")

const cancellationColumns = `id, occurrence_id, registration_id, initiator, reason, status, details, last_error, created_at, updated_at`

// CancellationRepo manages persistence for cancellation requests.  The
// status column holds the refund orchestrator's state machine and is
// only ever moved by the compare-and-swap in Transition; the computed
// refund split is a JSON document alongside it.
type CancellationRepo struct {
	db *sql.DB
}

// NewCancellationRepo constructs a CancellationRepo with the given DB handle.
func NewCancellationRepo(db *sql.DB) *CancellationRepo { return &CancellationRepo{db: db} }

// Create inserts a new PENDING request and returns its generated UUID.
func (r *CancellationRepo) Create(ctx context.Context, req *model.CancellationRequest) (string, error) {
	return r.create(ctx, r.db.ExecContext, req)
}

// CreateTx is Create inside an existing transaction, used by the
// occurrence-wide fan-out so all per-seat requests commit together.
func (r *CancellationRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.CancellationRequest) (string, error) {
	return r.create(ctx, tx.ExecContext, req)
}

type execFunc func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

func (r *CancellationRepo) create(ctx context.Context, exec execFunc, req *model.CancellationRequest) (string, error) {
	id := uuid.NewString()
	details, err := json.Marshal(req.Details)
	if err != nil {
		return "", err
	}
	const q = `INSERT INTO cancellation_requests
	           (id, occurrence_id, registration_id, initiator, reason, status, details)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := exec(ctx, q, id, req.OccurrenceID, req.RegistrationID,
		req.Initiator, req.Reason, model.RequestPending, details); err != nil {
		return "", err
	}
	req.ID = id
	req.Status = model.RequestPending
	return id, nil
}

// GetByID returns a request or ErrCancellationNotFound.
func (r *CancellationRepo) GetByID(ctx context.Context, id string) (*model.CancellationRequest, error) {
	const q = `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = ?`
	return scanCancellation(r.db.QueryRowContext(ctx, q, id))
}

// ListByStatus returns requests in a given state, oldest first.  The
// reconciliation view and the retry sweep both read this.
func (r *CancellationRepo) ListByStatus(ctx context.Context, status string) ([]model.CancellationRequest, error) {
	const q = `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE status = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CancellationRequest, 0)
	for rows.Next() {
		req, err := scanCancellationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// ListByOccurrence returns every request opened against an occurrence.
func (r *CancellationRepo) ListByOccurrence(ctx context.Context, occurrenceID uint64) ([]model.CancellationRequest, error) {
	const q = `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE occurrence_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CancellationRequest, 0)
	for rows.Next() {
		req, err := scanCancellationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// Transition moves a request between states with a compare-and-swap on
// the status column.  ErrStaleTransition means the row already left
// the expected state; the orchestrator treats that as "someone else is
// (or was) processing this".
func (r *CancellationRepo) Transition(ctx context.Context, id, from, to string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cancellation_requests SET status = ? WHERE id = ? AND status = ?`, to, id, from)
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

// SaveDetails persists the computed refund split.  Called at approval
// time and again after each transaction id is appended.
func (r *CancellationRepo) SaveDetails(ctx context.Context, id string, det model.RefundDetails) error {
	raw, err := json.Marshal(det)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE cancellation_requests SET details = ? WHERE id = ?`, raw, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCancellationNotFound
	}
	return nil
}

// RecordError stores the most recent step failure without touching the
// status column.
func (r *CancellationRepo) RecordError(ctx context.Context, id, msg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cancellation_requests SET last_error = ? WHERE id = ?`, msg, id)
	return err
}

func scanCancellation(row *sql.Row) (*model.CancellationRequest, error) {
	var (
		req     model.CancellationRequest
		details []byte
	)
	err := row.Scan(&req.ID, &req.OccurrenceID, &req.RegistrationID, &req.Initiator,
		&req.Reason, &req.Status, &details, &req.LastError, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCancellationNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.Details); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func scanCancellationRows(rows *sql.Rows) (*model.CancellationRequest, error) {
	var (
		req     model.CancellationRequest
		details []byte
	)
	err := rows.Scan(&req.ID, &req.OccurrenceID, &req.RegistrationID, &req.Initiator,
		&req.Reason, &req.Status, &details, &req.LastError, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.Details); err != nil {
			return nil, err
		}
	}
	return &req, nil
}
