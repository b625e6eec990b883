package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

var occurrenceCols = []string{
	"id", "template_id", "instance_id", "instructor_id", "location_id",
	"start_time", "end_time", "price_cents", "capacity", "booked_count",
	"waitlist_count", "status", "created_at", "updated_at",
}

var registrationCols = []string{
	"id", "occurrence_id", "customer_id", "status", "payment_status",
	"amount_cents", "payment_ref", "created_at", "updated_at",
}

var waitlistCols = []string{
	"id", "occurrence_id", "customer_id", "joined_at", "auto_promote",
	"payment_capture_mode", "payment_window_hours", "promoted_at",
	"window_expires_at", "status", "created_at",
}

func newService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	svc := NewService(db,
		repository.NewOccurrenceRepo(db),
		repository.NewRegistrationRepo(db),
		repository.NewWaitlistRepo(db),
		nil)
	return svc, mock, func() { db.Close() }
}

func occurrenceRow(id uint64, price int64, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(occurrenceCols).AddRow(
		id, 1, 1, 10, 20, now.Add(24*time.Hour), now.Add(25*time.Hour),
		price, 12, 12, 0, status, now, now)
}

func TestBookSeatConfirmed(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM class_occurrences WHERE id").
		WithArgs(uint64(5)).
		WillReturnRows(occurrenceRow(5, 2800, "SCHEDULED"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM registrations").
		WithArgs(uint64(5), uint64(9), "CANCELLED").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectCommit()

	ref := "pay_abc"
	res, err := svc.BookSeat(context.Background(), 5, 9, &ref, WaitlistOptions{})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if res.Waitlisted {
		t.Fatal("booking with a free seat should not waitlist")
	}
	if res.RegistrationID != 77 {
		t.Fatalf("registration id = %d, want 77", res.RegistrationID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookSeatFullWithoutWaitlist(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM class_occurrences WHERE id").
		WithArgs(uint64(5)).
		WillReturnRows(occurrenceRow(5, 2800, "SCHEDULED"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.BookSeat(context.Background(), 5, 9, nil, WaitlistOptions{})
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}
}

func TestBookSeatFullJoinsWaitlist(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM class_occurrences WHERE id").
		WithArgs(uint64(5)).
		WillReturnRows(occurrenceRow(5, 2800, "SCHEDULED"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM registrations").
		WithArgs(uint64(5), uint64(9), "CANCELLED").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(78, 1))
	mock.ExpectExec("INSERT INTO waitlist_entries").
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectExec("UPDATE class_occurrences SET waitlist_count = waitlist_count \\+ 1").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM waitlist_entries").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectCommit()

	res, err := svc.BookSeat(context.Background(), 5, 9, nil, WaitlistOptions{Join: true, PaymentWindowHours: 12})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if !res.Waitlisted {
		t.Fatal("full occurrence should waitlist the customer")
	}
	if res.WaitlistPosition != 3 {
		t.Fatalf("waitlist position = %d, want 3", res.WaitlistPosition)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookSeatCancelledOccurrence(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM class_occurrences WHERE id").
		WithArgs(uint64(5)).
		WillReturnRows(occurrenceRow(5, 2800, "CANCELLED"))

	_, err := svc.BookSeat(context.Background(), 5, 9, nil, WaitlistOptions{})
	if !errors.Is(err, ErrOccurrenceNotBookable) {
		t.Fatalf("want ErrOccurrenceNotBookable, got %v", err)
	}
}

func TestReleaseSeatPromotesAutoEntry(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM registrations WHERE id").
		WithArgs(uint64(77)).
		WillReturnRows(sqlmock.NewRows(registrationCols).
			AddRow(77, 5, 9, "CONFIRMED", "PAID", 2800, "pay_abc", now, now))
	mock.ExpectExec("UPDATE registrations SET status").
		WithArgs("CANCELLED", uint64(77), "CONFIRMED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Waitlist head: auto-promote entry for customer 14.
	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries").
		WithArgs(uint64(5), "WAITING").
		WillReturnRows(sqlmock.NewRows(waitlistCols).
			AddRow(31, 5, 14, now.Add(-time.Hour), true, "IMMEDIATE", 0, nil, nil, "WAITING", now))
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5), "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE class_occurrences SET waitlist_count = waitlist_count - 1").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE waitlist_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM registrations WHERE occurrence_id").
		WithArgs(uint64(5), uint64(14), "CANCELLED").
		WillReturnRows(sqlmock.NewRows(registrationCols).
			AddRow(78, 5, 14, "WAITLISTED", "UNPAID", 2800, nil, now, now))
	mock.ExpectExec("UPDATE registrations SET status").
		WithArgs("CONFIRMED", uint64(78), "WAITLISTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.ReleaseSeat(context.Background(), 77); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseSeatAlreadyCancelledIsNoop(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM registrations WHERE id").
		WithArgs(uint64(77)).
		WillReturnRows(sqlmock.NewRows(registrationCols).
			AddRow(77, 5, 9, "CANCELLED", "REFUNDED", 2800, "pay_abc", now, now))
	mock.ExpectCommit()

	if err := svc.ReleaseSeat(context.Background(), 77); err != nil {
		t.Fatalf("repeat release should be a no-op, got %v", err)
	}
}

func TestConfirmPromotionAfterDeadline(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	now := time.Now().UTC()
	promoted := now.Add(-13 * time.Hour)
	deadline := now.Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries WHERE id").
		WithArgs(uint64(31)).
		WillReturnRows(sqlmock.NewRows(waitlistCols).
			AddRow(31, 5, 14, promoted.Add(-time.Hour), false, "WINDOW", 12, promoted, deadline, "PROMOTED", now))
	mock.ExpectRollback()

	err := svc.ConfirmPromotion(context.Background(), 31, 14, nil)
	if !errors.Is(err, ErrPromotionWindowClosed) {
		t.Fatalf("want ErrPromotionWindowClosed, got %v", err)
	}
}

func TestConfirmPromotionWrongCustomer(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	now := time.Now().UTC()
	deadline := now.Add(time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries WHERE id").
		WithArgs(uint64(31)).
		WillReturnRows(sqlmock.NewRows(waitlistCols).
			AddRow(31, 5, 14, now.Add(-time.Hour), false, "WINDOW", 12, now, deadline, "PROMOTED", now))
	mock.ExpectRollback()

	err := svc.ConfirmPromotion(context.Background(), 31, 99, nil)
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestExpirePromotionsCascades(t *testing.T) {
	svc, mock, done := newService(t)
	defer done()

	now := time.Now().UTC()
	lapsed := now.Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries").
		WithArgs("PROMOTED", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(waitlistCols).
			AddRow(31, 5, 14, lapsed.Add(-24*time.Hour), false, "WINDOW", 12, lapsed.Add(-12*time.Hour), lapsed, "PROMOTED", now))
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs("EXPIRED", uint64(31), "PROMOTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM registrations WHERE occurrence_id").
		WithArgs(uint64(5), uint64(14), "CANCELLED").
		WillReturnRows(sqlmock.NewRows(registrationCols).
			AddRow(78, 5, 14, "WAITLISTED", "UNPAID", 2800, nil, now, now))
	mock.ExpectExec("UPDATE registrations SET status").
		WithArgs("CANCELLED", uint64(78), "WAITLISTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE class_occurrences").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Nobody else waiting; the freed seat stays free.
	mock.ExpectQuery("SELECT (.+) FROM waitlist_entries").
		WithArgs(uint64(5), "WAITING").
		WillReturnRows(sqlmock.NewRows(waitlistCols))
	mock.ExpectCommit()

	n, err := svc.ExpirePromotions(context.Background(), now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
