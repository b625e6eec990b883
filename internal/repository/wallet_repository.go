package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// ErrInsufficientBalance indicates that a debit would take the wallet
// balance below zero.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// WalletRepo manages the append-only wallet ledger.  There is no
// balance column; the balance of a wallet is always computed from its
// transactions, so a credit can never be lost to a racing update.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo constructs a WalletRepo with the given DB handle.
func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// Credit appends a CREDIT entry and returns its ledger id as the
// transaction reference.  Reference is the id of the object that
// caused the credit; crediting the same reference twice returns the
// existing entry instead of inserting another, so a retried
// cancellation cannot double-credit.
func (r *WalletRepo) Credit(ctx context.Context, walletID uint64, amountCents int64, reason, reference string) (string, error) {
	var existing uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM wallet_transactions
		 WHERE wallet_id = ? AND type = ? AND reference_type = 'cancellation' AND reference_id = ?`,
		walletID, model.WalletCredit, reference).Scan(&existing)
	if err == nil {
		return fmt.Sprintf("wtx_%d", existing), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	const q = `INSERT INTO wallet_transactions (wallet_id, type, amount_cents, reason, reference_type, reference_id)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, walletID, model.WalletCredit, amountCents, reason, "cancellation", reference)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("wtx_%d", id), nil
}

// DebitTx appends a DEBIT entry inside a transaction, after checking
// the computed balance under a lock on the wallet's rows.
func (r *WalletRepo) DebitTx(ctx context.Context, tx *sql.Tx, walletID uint64, amountCents int64, reason, refType, refID string) (string, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE -amount_cents END), 0)
		 FROM wallet_transactions WHERE wallet_id = ? FOR UPDATE`,
		model.WalletCredit, walletID).Scan(&balance)
	if err != nil {
		return "", err
	}
	if balance < amountCents {
		return "", ErrInsufficientBalance
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (wallet_id, type, amount_cents, reason, reference_type, reference_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		walletID, model.WalletDebit, amountCents, reason, refType, refID)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("wtx_%d", id), nil
}

// Balance computes the wallet balance from the ledger.
func (r *WalletRepo) Balance(ctx context.Context, walletID uint64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE -amount_cents END), 0)
		 FROM wallet_transactions WHERE wallet_id = ?`,
		model.WalletCredit, walletID).Scan(&balance)
	return balance, err
}

// History returns a wallet's ledger, newest first.
func (r *WalletRepo) History(ctx context.Context, walletID uint64) ([]model.WalletTransaction, error) {
	const q = `SELECT id, wallet_id, type, amount_cents, reason, reference_type, reference_id, created_at
	           FROM wallet_transactions WHERE wallet_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WalletTransaction, 0)
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.AmountCents, &t.Reason,
			&t.ReferenceType, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
