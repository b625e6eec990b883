package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTryBookSeatTxWinnerAndLoser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewOccurrenceRepo(db)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	ok, err := repo.TryBookSeatTx(context.Background(), tx, 5)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !ok {
		t.Fatal("first claim should win a seat")
	}
	ok, err = repo.TryBookSeatTx(context.Background(), tx, 5)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("claim against a full occurrence should report no seat")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// One seat left, many concurrent claims: the guarded UPDATE admits
// exactly one.  Expectations are unordered because goroutine scheduling
// decides who reaches the driver first.
func TestTryBookSeatTxLastSeatSingleWinner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	const claimants = 8
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(3), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 0; i < claimants-1; i++ {
		mock.ExpectExec("UPDATE class_occurrences").
			WithArgs(uint64(3), "SCHEDULED").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for i := 0; i < claimants; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	repo := NewOccurrenceRepo(db)
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := db.Begin()
			if err != nil {
				t.Errorf("begin: %v", err)
				return
			}
			defer tx.Rollback()
			ok, err := repo.TryBookSeatTx(context.Background(), tx, 3)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
}

func TestReleaseSeatTxGuardsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewOccurrenceRepo(db)
	tx, _ := db.Begin()
	defer tx.Rollback()

	err = repo.ReleaseSeatTx(context.Background(), tx, 9)
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("release on empty occurrence: want ErrStaleTransition, got %v", err)
	}
}

func TestTransitionStatusTxStaleRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs("CANCELLED", uint64(4), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs("CANCELLED", uint64(4), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewOccurrenceRepo(db)
	tx, _ := db.Begin()

	if err := repo.TransitionStatusTx(context.Background(), tx, 4, "SCHEDULED", "CANCELLED"); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	err = repo.TransitionStatusTx(context.Background(), tx, 4, "SCHEDULED", "CANCELLED")
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("repeated transition: want ErrStaleTransition, got %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestCreateBatchTxEmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := NewOccurrenceRepo(db)
	tx, _ := db.Begin()
	if err := repo.CreateBatchTx(context.Background(), tx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
