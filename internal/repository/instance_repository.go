package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrInstanceNotFound indicates that no class instance exists with the
// requested id.
var ErrInstanceNotFound = errors.New("class instance not found")

// InstanceRepo manages persistence for recurrence definitions.  The
// recurrence rule is flattened into scalar columns: weekdays are a CSV
// of integers (0 = Sunday), blackout dates a JSON array of
// "2006-01-02" strings.
type InstanceRepo struct {
	db *sql.DB
}

// NewInstanceRepo constructs an InstanceRepo with the given DB handle.
func NewInstanceRepo(db *sql.DB) *InstanceRepo { return &InstanceRepo{db: db} }

const instanceColumns = `id, template_id, instructor_id, location_id, start_date, start_time, end_time,
       pattern, recur_interval, days_of_week, end_date, end_count, blackout_dates,
       price_cents, capacity, created_at, updated_at`

// CreateTx inserts an instance inside the wizard's transaction so the
// definition and its first batch of occurrences commit together.
func (r *InstanceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inst *model.ClassInstance) (uint64, error) {
	blackouts, err := encodeBlackouts(inst.BlackoutDates)
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO class_instances
	           (template_id, instructor_id, location_id, start_date, start_time, end_time,
	            pattern, recur_interval, days_of_week, end_date, end_count, blackout_dates, price_cents, capacity)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		inst.TemplateID, inst.InstructorID, inst.LocationID,
		inst.StartDate.UTC().Format("2006-01-02"), inst.StartTime, inst.EndTime,
		inst.Rule.Pattern, inst.Rule.Interval, encodeDays(inst.Rule.DaysOfWeek),
		nullableDate(inst.Rule.EndDate), inst.Rule.EndCount, blackouts,
		inst.PriceCents, inst.Capacity)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns an instance or ErrInstanceNotFound.
func (r *InstanceRepo) GetByID(ctx context.Context, id uint64) (*model.ClassInstance, error) {
	const q = `SELECT ` + instanceColumns + ` FROM class_instances WHERE id = ?`
	inst, err := scanInstance(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInstanceNotFound
	}
	return inst, err
}

// ListByTemplate returns every instance of a template.
func (r *InstanceRepo) ListByTemplate(ctx context.Context, templateID uint64) ([]model.ClassInstance, error) {
	const q = `SELECT ` + instanceColumns + ` FROM class_instances WHERE template_id = ? ORDER BY start_date`
	rows, err := r.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassInstance, 0)
	for rows.Next() {
		inst, err := scanInstanceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

// UpdateAssignmentsTx updates the instructor and location on the
// definition itself when a series-wide edit is applied, so future
// re-expansion materializes with the new assignments.
func (r *InstanceRepo) UpdateAssignmentsTx(ctx context.Context, tx *sql.Tx, id, instructorID, locationID uint64) error {
	var sets []string
	var args []interface{}
	if instructorID != 0 {
		sets = append(sets, "instructor_id = ?")
		args = append(args, instructorID)
	}
	if locationID != 0 {
		sets = append(sets, "location_id = ?")
		args = append(args, locationID)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx,
		`UPDATE class_instances SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func scanInstance(row *sql.Row) (*model.ClassInstance, error) {
	var (
		inst      model.ClassInstance
		startDate string
		daysCSV   sql.NullString
		endDate   sql.NullString
		endCount  sql.NullInt64
		blackouts sql.NullString
	)
	err := row.Scan(
		&inst.ID, &inst.TemplateID, &inst.InstructorID, &inst.LocationID,
		&startDate, &inst.StartTime, &inst.EndTime,
		&inst.Rule.Pattern, &inst.Rule.Interval, &daysCSV, &endDate, &endCount, &blackouts,
		&inst.PriceCents, &inst.Capacity, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return hydrateInstance(&inst, startDate, daysCSV, endDate, endCount, blackouts)
}

func scanInstanceRows(rows *sql.Rows) (*model.ClassInstance, error) {
	var (
		inst      model.ClassInstance
		startDate string
		daysCSV   sql.NullString
		endDate   sql.NullString
		endCount  sql.NullInt64
		blackouts sql.NullString
	)
	err := rows.Scan(
		&inst.ID, &inst.TemplateID, &inst.InstructorID, &inst.LocationID,
		&startDate, &inst.StartTime, &inst.EndTime,
		&inst.Rule.Pattern, &inst.Rule.Interval, &daysCSV, &endDate, &endCount, &blackouts,
		&inst.PriceCents, &inst.Capacity, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return hydrateInstance(&inst, startDate, daysCSV, endDate, endCount, blackouts)
}

// hydrateInstance converts the flattened rule columns back into a
// RecurrenceRule.
func hydrateInstance(inst *model.ClassInstance, startDate string, daysCSV, endDate sql.NullString, endCount sql.NullInt64, blackouts sql.NullString) (*model.ClassInstance, error) {
	var err error
	inst.StartDate, err = time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		return nil, err
	}
	if daysCSV.Valid && daysCSV.String != "" {
		inst.Rule.DaysOfWeek, err = decodeDays(daysCSV.String)
		if err != nil {
			return nil, err
		}
	}
	if endDate.Valid {
		t, err := time.ParseInLocation("2006-01-02", endDate.String, time.UTC)
		if err != nil {
			return nil, err
		}
		inst.Rule.EndDate = &t
	}
	if endCount.Valid {
		n := int(endCount.Int64)
		inst.Rule.EndCount = &n
	}
	if blackouts.Valid && blackouts.String != "" {
		inst.BlackoutDates, err = decodeBlackouts(blackouts.String)
		if err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func encodeDays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeDays(csv string) ([]time.Weekday, error) {
	parts := strings.Split(csv, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func encodeBlackouts(dates []time.Time) (string, error) {
	strs := make([]string, len(dates))
	for i, d := range dates {
		strs[i] = d.UTC().Format("2006-01-02")
	}
	b, err := json.Marshal(strs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeBlackouts(raw string) ([]time.Time, error) {
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(strs))
	for _, s := range strs {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func nullableDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}
