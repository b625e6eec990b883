package model

import "time"

// Wallet transaction types.
const (
	WalletDebit  = "DEBIT"
	WalletCredit = "CREDIT"
)

// WalletTransaction is one entry in a customer wallet's append-only
// ledger.  Rows are never mutated after creation; a balance is the sum
// of credits minus debits.  ReferenceType/ReferenceID tie the entry
// back to the object that caused it (e.g. a cancellation request).
type WalletTransaction struct {
	ID            uint64    // wallet_transactions.id
	WalletID      uint64    // wallet_transactions.wallet_id
	Type          string    // wallet_transactions.type (DEBIT|CREDIT)
	AmountCents   int64     // wallet_transactions.amount_cents
	Reason        string    // wallet_transactions.reason
	ReferenceType string    // wallet_transactions.reference_type
	ReferenceID   string    // wallet_transactions.reference_id
	CreatedAt     time.Time // wallet_transactions.created_at
}
