package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrPolicyNotFound indicates that no cancellation policy matched the
// lookup.
var ErrPolicyNotFound = errors.New("cancellation policy not found")

// PolicyRepo manages persistence for cancellation policies and their
// rule tiers.  Tiers live in a child table and are always loaded with
// the policy, sorted descending by hours_before so the refund
// calculator can scan them in order.
type PolicyRepo struct {
	db *sql.DB
}

// NewPolicyRepo constructs a PolicyRepo with the given DB handle.
func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

// Create inserts a policy and its rules in one transaction.
func (r *PolicyRepo) Create(ctx context.Context, p *model.CancellationPolicy) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO cancellation_policies (name, class_category, membership_type) VALUES (?, ?, ?)`,
		p.Name, p.ClassCategory, p.MembershipType)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, rule := range p.Rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cancellation_rules (policy_id, hours_before, refund_pct, credit_pct, processing_fee_cents)
			 VALUES (?, ?, ?, ?, ?)`,
			id, rule.HoursBefore, rule.RefundPct, rule.CreditPct, rule.ProcessingFeeCents); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// GetByID returns a policy with its full tier list.
func (r *PolicyRepo) GetByID(ctx context.Context, id uint64) (*model.CancellationPolicy, error) {
	var p model.CancellationPolicy
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, class_category, membership_type, created_at FROM cancellation_policies WHERE id = ?`,
		id).Scan(&p.ID, &p.Name, &p.ClassCategory, &p.MembershipType, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Rules, err = r.loadRules(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// Resolve picks the policy applying to a class category and membership
// type.  Scoped policies win over catch-alls; a category match beats a
// membership match.  Falls back to the unscoped default policy, and
// returns ErrPolicyNotFound only when no policy exists at all.
func (r *PolicyRepo) Resolve(ctx context.Context, classCategory, membershipType string) (*model.CancellationPolicy, error) {
	const q = `SELECT id, name, class_category, membership_type, created_at
	           FROM cancellation_policies
	           WHERE (class_category = ? OR class_category = '')
	             AND (membership_type = ? OR membership_type = '')
	           ORDER BY (class_category != '') DESC, (membership_type != '') DESC
	           LIMIT 1`
	var p model.CancellationPolicy
	err := r.db.QueryRowContext(ctx, q, classCategory, membershipType).
		Scan(&p.ID, &p.Name, &p.ClassCategory, &p.MembershipType, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Rules, err = r.loadRules(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every policy with its rules, for the studio admin view.
func (r *PolicyRepo) List(ctx context.Context) ([]model.CancellationPolicy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, class_category, membership_type, created_at FROM cancellation_policies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CancellationPolicy, 0)
	for rows.Next() {
		var p model.CancellationPolicy
		if err := rows.Scan(&p.ID, &p.Name, &p.ClassCategory, &p.MembershipType, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Rules, err = r.loadRules(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PolicyRepo) loadRules(ctx context.Context, policyID uint64) ([]model.CancellationRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT hours_before, refund_pct, credit_pct, processing_fee_cents
		 FROM cancellation_rules WHERE policy_id = ? ORDER BY hours_before DESC`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules := make([]model.CancellationRule, 0)
	for rows.Next() {
		var rule model.CancellationRule
		if err := rows.Scan(&rule.HoursBefore, &rule.RefundPct, &rule.CreditPct, &rule.ProcessingFeeCents); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
