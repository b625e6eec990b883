package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

func TestCreditInsertsNewEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWalletRepo(db)

	mock.ExpectQuery("SELECT id FROM wallet_transactions").
		WithArgs(uint64(7), model.WalletCredit, "cr_abc").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(uint64(7), model.WalletCredit, int64(2500), "cancellation credit", "cancellation", "cr_abc").
		WillReturnResult(sqlmock.NewResult(41, 1))

	txn, err := repo.Credit(context.Background(), 7, 2500, "cancellation credit", "cr_abc")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if txn != "wtx_41" {
		t.Fatalf("txn = %q, want wtx_41", txn)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreditIsIdempotentPerReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWalletRepo(db)

	mock.ExpectQuery("SELECT id FROM wallet_transactions").
		WithArgs(uint64(7), model.WalletCredit, "cr_abc").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(41)))

	txn, err := repo.Credit(context.Background(), 7, 2500, "cancellation credit", "cr_abc")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if txn != "wtx_41" {
		t.Fatalf("txn = %q, want the original wtx_41", txn)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDebitTxRejectsOverdraft(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewWalletRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(model.WalletCredit, uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(1000)))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if _, err := repo.DebitTx(context.Background(), tx, 7, 2500, "class booking", "registration", "9"); err != ErrInsufficientBalance {
		t.Fatalf("DebitTx err = %v, want ErrInsufficientBalance", err)
	}
}
