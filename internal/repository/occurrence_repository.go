package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrOccurrenceNotFound indicates that an occurrence was not located
// in the DB.
var ErrOccurrenceNotFound = errors.New("occurrence not found")

// occurrenceColumns is the canonical select list for scanning a full
// occurrence row.
const occurrenceColumns = `id, template_id, instance_id, instructor_id, location_id,
       start_time, end_time, price_cents, capacity, booked_count, waitlist_count,
       status, created_at, updated_at`

// OccurrenceRepo manages persistence for class occurrences and owns
// every mutation of their capacity counters.  All counter updates are
// guarded UPDATE statements so that the no-overbooking invariant is
// enforced by the database, not by application-side reads.
type OccurrenceRepo struct {
	db *sql.DB
}

// NewOccurrenceRepo constructs an OccurrenceRepo with the given DB handle.
func NewOccurrenceRepo(db *sql.DB) *OccurrenceRepo { return &OccurrenceRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *OccurrenceRepo) DB() *sql.DB { return r.db }

// CreateBatchTx inserts materialized occurrences in a single statement
// within the provided transaction.  IDs are not populated on the input
// records; batch creation happens before anything references them.
// Passing an empty slice has no effect and returns nil.
func (r *OccurrenceRepo) CreateBatchTx(ctx context.Context, tx *sql.Tx, occs []model.ClassOccurrence) error {
	if len(occs) == 0 {
		return nil
	}
	query := `INSERT INTO class_occurrences
	          (template_id, instance_id, instructor_id, location_id, start_time, end_time, price_cents, capacity, status) VALUES `
	args := make([]interface{}, 0, len(occs)*9)
	for i, o := range occs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			o.TemplateID, o.InstanceID, o.InstructorID, o.LocationID,
			o.StartTime.UTC().Format("2006-01-02 15:04:05"),
			o.EndTime.UTC().Format("2006-01-02 15:04:05"),
			o.PriceCents, o.Capacity, model.OccurrenceScheduled,
		)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID returns a single occurrence or ErrOccurrenceNotFound.
func (r *OccurrenceRepo) GetByID(ctx context.Context, id uint64) (*model.ClassOccurrence, error) {
	const q = `SELECT ` + occurrenceColumns + ` FROM class_occurrences WHERE id = ?`
	occ, err := scanOccurrence(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOccurrenceNotFound
	}
	return occ, err
}

// GetByIDTx is GetByID inside an existing transaction with a row lock,
// used when a counter change must observe a stable row.
func (r *OccurrenceRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ClassOccurrence, error) {
	const q = `SELECT ` + occurrenceColumns + ` FROM class_occurrences WHERE id = ? FOR UPDATE`
	occ, err := scanOccurrence(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOccurrenceNotFound
	}
	return occ, err
}

// ExistingStartTimes returns the start times of every occurrence
// already materialized for an instance.  Expansion feeds these back
// into the expander to stay idempotent.
func (r *OccurrenceRepo) ExistingStartTimes(ctx context.Context, instanceID uint64) ([]time.Time, error) {
	const q = `SELECT start_time FROM class_occurrences WHERE instance_id = ?`
	rows, err := r.db.QueryContext(ctx, q, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

// ListScheduledBetween returns all SCHEDULED occurrences overlapping
// the window.  The conflict detector indexes this set before a batch
// is committed.
func (r *OccurrenceRepo) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]model.ClassOccurrence, error) {
	const q = `SELECT ` + occurrenceColumns + `
	           FROM class_occurrences
	           WHERE status = ? AND start_time < ? AND end_time > ?
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, model.OccurrenceScheduled,
		to.UTC().Format("2006-01-02 15:04:05"), from.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// ListByInstance returns every occurrence of an instance ordered by
// start time.
func (r *OccurrenceRepo) ListByInstance(ctx context.Context, instanceID uint64) ([]model.ClassOccurrence, error) {
	const q = `SELECT ` + occurrenceColumns + ` FROM class_occurrences WHERE instance_id = ? ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// ListUpcomingByTemplate returns SCHEDULED occurrences of a template
// starting after now, for the public schedule browse.
func (r *OccurrenceRepo) ListUpcomingByTemplate(ctx context.Context, templateID uint64, now time.Time) ([]model.ClassOccurrence, error) {
	const q = `SELECT ` + occurrenceColumns + `
	           FROM class_occurrences
	           WHERE template_id = ? AND status = ? AND start_time > ?
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, templateID, model.OccurrenceScheduled, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// TryBookSeatTx atomically claims one seat.  The guard on
// booked_count < capacity makes the check-and-increment a single
// statement: of N concurrent attempts for the last seat, exactly one
// sees RowsAffected = 1.  It returns false when the occurrence is full
// or not bookable.
func (r *OccurrenceRepo) TryBookSeatTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	const q = `UPDATE class_occurrences
	           SET booked_count = booked_count + 1
	           WHERE id = ? AND status = ? AND booked_count < capacity`
	res, err := tx.ExecContext(ctx, q, id, model.OccurrenceScheduled)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseSeatTx returns one booked seat.  The guard on
// booked_count > 0 keeps the counter from going negative if a release
// races a repair job.
func (r *OccurrenceRepo) ReleaseSeatTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE class_occurrences
	           SET booked_count = booked_count - 1
	           WHERE id = ? AND booked_count > 0`
	res, err := tx.ExecContext(ctx, q, id)
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

// IncrementWaitlistTx and DecrementWaitlistTx maintain the
// waitlist_count counter alongside entry status changes.  The
// decrement is guarded the same way as seat release.
func (r *OccurrenceRepo) IncrementWaitlistTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE class_occurrences SET waitlist_count = waitlist_count + 1 WHERE id = ?`, id)
	return err
}

func (r *OccurrenceRepo) DecrementWaitlistTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE class_occurrences SET waitlist_count = waitlist_count - 1 WHERE id = ? AND waitlist_count > 0`, id)
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

// TransitionStatusTx moves an occurrence from one status to another.
// Status changes are one-way; the compare-and-swap guard returns
// ErrStaleTransition when the row already left the expected state.
func (r *OccurrenceRepo) TransitionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	const q = `UPDATE class_occurrences SET status = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, to, id, from)
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

// OccurrenceChanges carries the mutable fields a series edit may
// touch.  Nil/zero fields leave the column unchanged.
type OccurrenceChanges struct {
	InstructorID uint64
	LocationID   uint64
	StartTime    *time.Time
	EndTime      *time.Time
	PriceCents   *int64
	Capacity     *uint32
}

// ApplyChangesTx updates the selected occurrences of an instance.
// Scope is expressed through fromStart: nil updates the whole series,
// otherwise only occurrences starting at or after the given time.
// Only SCHEDULED occurrences are touched; terminal ones keep their
// history.  It returns the IDs of the updated rows so callers can
// re-run conflict checks against them.
func (r *OccurrenceRepo) ApplyChangesTx(ctx context.Context, tx *sql.Tx, instanceID uint64, fromStart *time.Time, ch OccurrenceChanges) ([]uint64, error) {
	var sets []string
	var args []interface{}
	if ch.InstructorID != 0 {
		sets = append(sets, "instructor_id = ?")
		args = append(args, ch.InstructorID)
	}
	if ch.LocationID != 0 {
		sets = append(sets, "location_id = ?")
		args = append(args, ch.LocationID)
	}
	if ch.PriceCents != nil {
		sets = append(sets, "price_cents = ?")
		args = append(args, *ch.PriceCents)
	}
	if ch.Capacity != nil {
		sets = append(sets, "capacity = ?")
		args = append(args, *ch.Capacity)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	where := `instance_id = ? AND status = ?`
	whereArgs := []interface{}{instanceID, model.OccurrenceScheduled}
	if fromStart != nil {
		where += ` AND start_time >= ?`
		whereArgs = append(whereArgs, fromStart.UTC().Format("2006-01-02 15:04:05"))
	}

	// Collect affected IDs first so the caller can re-validate them.
	rows, err := tx.QueryContext(ctx, `SELECT id FROM class_occurrences WHERE `+where, whereArgs...)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE class_occurrences SET `+strings.Join(sets, ", ")+` WHERE `+where,
		append(args, whereArgs...)...)
	return ids, err
}

// UpdateOneTx applies changes to a single occurrence (scope
// this_occurrence), including a moved time window.
func (r *OccurrenceRepo) UpdateOneTx(ctx context.Context, tx *sql.Tx, id uint64, ch OccurrenceChanges) error {
	var sets []string
	var args []interface{}
	if ch.InstructorID != 0 {
		sets = append(sets, "instructor_id = ?")
		args = append(args, ch.InstructorID)
	}
	if ch.LocationID != 0 {
		sets = append(sets, "location_id = ?")
		args = append(args, ch.LocationID)
	}
	if ch.StartTime != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, ch.StartTime.UTC().Format("2006-01-02 15:04:05"))
	}
	if ch.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, ch.EndTime.UTC().Format("2006-01-02 15:04:05"))
	}
	if ch.PriceCents != nil {
		sets = append(sets, "price_cents = ?")
		args = append(args, *ch.PriceCents)
	}
	if ch.Capacity != nil {
		sets = append(sets, "capacity = ?")
		args = append(args, *ch.Capacity)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id, model.OccurrenceScheduled)
	res, err := tx.ExecContext(ctx,
		`UPDATE class_occurrences SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOccurrenceNotFound
	}
	return nil
}

// scanOccurrence reads one occurrence row from a QueryRow result.
func scanOccurrence(row *sql.Row) (*model.ClassOccurrence, error) {
	var o model.ClassOccurrence
	err := row.Scan(
		&o.ID, &o.TemplateID, &o.InstanceID, &o.InstructorID, &o.LocationID,
		&o.StartTime, &o.EndTime, &o.PriceCents, &o.Capacity, &o.BookedCount,
		&o.WaitlistCount, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.StartTime = o.StartTime.UTC()
	o.EndTime = o.EndTime.UTC()
	return &o, nil
}

// collectOccurrences drains a multi-row result set.
func collectOccurrences(rows *sql.Rows) ([]model.ClassOccurrence, error) {
	out := make([]model.ClassOccurrence, 0)
	for rows.Next() {
		var o model.ClassOccurrence
		if err := rows.Scan(
			&o.ID, &o.TemplateID, &o.InstanceID, &o.InstructorID, &o.LocationID,
			&o.StartTime, &o.EndTime, &o.PriceCents, &o.Capacity, &o.BookedCount,
			&o.WaitlistCount, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		o.StartTime = o.StartTime.UTC()
		o.EndTime = o.EndTime.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}
