package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrTemplateNotFound indicates that no class template exists with the
// requested id.
var ErrTemplateNotFound = errors.New("class template not found")

// TemplateRepo manages persistence for class templates.
type TemplateRepo struct {
	db *sql.DB
}

// NewTemplateRepo constructs a TemplateRepo with the given DB handle.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

// Create inserts a new template and returns its id.
func (r *TemplateRepo) Create(ctx context.Context, t *model.ClassTemplate) (uint64, error) {
	const q = `INSERT INTO class_templates
	           (name, category, level, duration_minutes, default_price_cents, default_capacity)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		t.Name, t.Category, t.Level, t.DurationMinutes, t.DefaultPriceCents, t.DefaultCapacity)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns a template or ErrTemplateNotFound.
func (r *TemplateRepo) GetByID(ctx context.Context, id uint64) (*model.ClassTemplate, error) {
	const q = `SELECT id, name, category, level, duration_minutes, default_price_cents, default_capacity, created_at, updated_at
	           FROM class_templates WHERE id = ?`
	var t model.ClassTemplate
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.Name, &t.Category, &t.Level, &t.DurationMinutes,
		&t.DefaultPriceCents, &t.DefaultCapacity, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns every template ordered by name, for the studio catalog.
func (r *TemplateRepo) List(ctx context.Context) ([]model.ClassTemplate, error) {
	const q = `SELECT id, name, category, level, duration_minutes, default_price_cents, default_capacity, created_at, updated_at
	           FROM class_templates ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassTemplate, 0)
	for rows.Next() {
		var t model.ClassTemplate
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Category, &t.Level, &t.DurationMinutes,
			&t.DefaultPriceCents, &t.DefaultCapacity, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update rewrites the mutable columns of a template.  Existing
// occurrences keep the price and capacity they were materialized with.
func (r *TemplateRepo) Update(ctx context.Context, t *model.ClassTemplate) error {
	const q = `UPDATE class_templates
	           SET name = ?, category = ?, level = ?, duration_minutes = ?, default_price_cents = ?, default_capacity = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		t.Name, t.Category, t.Level, t.DurationMinutes, t.DefaultPriceCents, t.DefaultCapacity, t.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Delete removes a template.  The foreign key from class_instances is
// RESTRICT, so templates with live instances fail with a DB error the
// handler maps to a conflict response.
func (r *TemplateRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
