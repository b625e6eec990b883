package refund

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// memStore is an in-memory Store with CAS transitions, mirroring the
// guarded UPDATE the SQL implementation performs.
type memStore struct {
	mu       sync.Mutex
	requests map[string]*model.CancellationRequest
	regs     map[uint64]*model.Registration
	wallets  map[uint64]uint64
	history  []string
}

func newMemStore() *memStore {
	return &memStore{
		requests: map[string]*model.CancellationRequest{},
		regs:     map[uint64]*model.Registration{},
		wallets:  map[uint64]uint64{},
	}
}

func (s *memStore) Request(_ context.Context, id string) (*model.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, errors.New("request not found")
	}
	cp := *req
	return &cp, nil
}

func (s *memStore) Registration(_ context.Context, id uint64) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return nil, errors.New("registration not found")
	}
	cp := *reg
	return &cp, nil
}

func (s *memStore) WalletIDForCustomer(_ context.Context, customerID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[customerID]
	if !ok {
		return 0, errors.New("wallet not found")
	}
	return w, nil
}

func (s *memStore) Transition(_ context.Context, id, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != from {
		return ErrInvalidTransition
	}
	req.Status = to
	s.history = append(s.history, to)
	return nil
}

func (s *memStore) SaveDetails(_ context.Context, id string, det model.RefundDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[id].Details = det
	return nil
}

func (s *memStore) RecordError(_ context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[id].LastError = &msg
	return nil
}

func (s *memStore) MarkRegistrationRefunded(_ context.Context, id uint64, paymentStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[id].PaymentStatus = paymentStatus
	return nil
}

type fakeGateway struct {
	mu    sync.Mutex
	fail  bool
	calls []string // request IDs, to assert idempotent usage
}

func (g *fakeGateway) Refund(_ context.Context, _ string, _ int64, requestID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, requestID)
	if g.fail {
		return "", errors.New("gateway unavailable")
	}
	return fmt.Sprintf("gw-%d", len(g.calls)), nil
}

type fakeWallet struct {
	fail  bool
	calls int
}

func (w *fakeWallet) Credit(_ context.Context, _ uint64, _ int64, _, _ string) (string, error) {
	w.calls++
	if w.fail {
		return "", errors.New("wallet service down")
	}
	return fmt.Sprintf("wl-%d", w.calls), nil
}

type fakeNotifier struct {
	fail  bool
	calls int
}

func (n *fakeNotifier) Notify(_ context.Context, _, _ string, _ map[string]string) error {
	n.calls++
	if n.fail {
		return errors.New("smtp exploded")
	}
	return nil
}

type fakeReleaser struct{ calls int }

func (r *fakeReleaser) ReleaseSeat(_ context.Context, _ uint64) error {
	r.calls++
	return nil
}

func fixture() (*memStore, *model.CancellationRequest) {
	store := newMemStore()
	regID := uint64(7)
	ref := "pay_abc"
	store.regs[regID] = &model.Registration{
		ID: regID, OccurrenceID: 3, CustomerID: 9,
		Status: model.RegistrationConfirmed, PaymentStatus: model.PaymentPaid,
		AmountCents: 2800, PaymentRef: &ref,
	}
	store.wallets[9] = 42
	req := &model.CancellationRequest{
		ID:           "req-1",
		OccurrenceID: 3,
		Initiator:    model.InitiatorCustomer,
		Status:       model.RequestPending,
	}
	req.RegistrationID = &regID
	store.requests[req.ID] = req
	return store, req
}

func TestProcessHappyPathMixedRefund(t *testing.T) {
	store, req := fixture()
	gw := &fakeGateway{}
	wallet := &fakeWallet{}
	notifier := &fakeNotifier{}
	releaser := &fakeReleaser{}
	o := NewOrchestrator(store, gw, wallet, notifier, releaser)

	det, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 13)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if det.RefundAmountCents != 1150 || det.CreditAmountCents != 1400 {
		t.Fatalf("approved split = %d/%d, want 1150/1400", det.RefundAmountCents, det.CreditAmountCents)
	}
	if err := o.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	final, _ := store.Request(context.Background(), req.ID)
	if final.Status != model.RequestProcessed {
		t.Fatalf("status = %s, want PROCESSED", final.Status)
	}
	if len(final.Details.TransactionIDs) != 2 {
		t.Fatalf("expected gateway + wallet transaction ids, got %v", final.Details.TransactionIDs)
	}
	if releaser.calls != 1 {
		t.Fatalf("seat release calls = %d, want 1", releaser.calls)
	}
	if notifier.calls != 1 {
		t.Fatalf("notify calls = %d, want 1", notifier.calls)
	}
	// Every intermediate state was persisted, in order.
	want := []string{"APPROVED", "REFUNDING", "CREDITING", "NOTIFYING", "PROCESSED"}
	if len(store.history) != len(want) {
		t.Fatalf("transition history = %v", store.history)
	}
	for i, st := range want {
		if store.history[i] != st {
			t.Fatalf("transition %d = %s, want %s", i, store.history[i], st)
		}
	}
}

func TestGatewayFailureHaltsBeforeCredit(t *testing.T) {
	store, req := fixture()
	gw := &fakeGateway{fail: true}
	wallet := &fakeWallet{}
	o := NewOrchestrator(store, gw, wallet, &fakeNotifier{}, &fakeReleaser{})

	if _, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 13); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	err := o.Process(context.Background(), req.ID)
	if !errors.Is(err, ErrGatewayFailed) {
		t.Fatalf("expected ErrGatewayFailed, got %v", err)
	}
	if wallet.calls != 0 {
		t.Fatalf("wallet must never be credited before a confirmed refund, got %d calls", wallet.calls)
	}
	cur, _ := store.Request(context.Background(), req.ID)
	if cur.Status != model.RequestRefunding {
		t.Fatalf("status = %s, want REFUNDING (retryable)", cur.Status)
	}

	// Retry after the gateway recovers resumes from REFUNDING.
	gw.fail = false
	if err := o.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	cur, _ = store.Request(context.Background(), req.ID)
	if cur.Status != model.RequestProcessed {
		t.Fatalf("status after retry = %s, want PROCESSED", cur.Status)
	}
	// The gateway saw the same request ID both times, relying on its
	// per-request idempotency.
	if len(gw.calls) != 2 || gw.calls[0] != gw.calls[1] {
		t.Fatalf("gateway calls = %v", gw.calls)
	}
}

func TestWalletFailureParksForReconciliation(t *testing.T) {
	store, req := fixture()
	wallet := &fakeWallet{fail: true}
	o := NewOrchestrator(store, &fakeGateway{}, wallet, &fakeNotifier{}, &fakeReleaser{})

	if _, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 13); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	err := o.Process(context.Background(), req.ID)
	if !errors.Is(err, ErrPartialProcessing) {
		t.Fatalf("expected ErrPartialProcessing, got %v", err)
	}
	cur, _ := store.Request(context.Background(), req.ID)
	if cur.Status != model.RequestNeedsReconciliation {
		t.Fatalf("status = %s, want NEEDS_RECONCILIATION", cur.Status)
	}
	if cur.LastError == nil {
		t.Fatalf("reconciliation requests must record the failure")
	}
	// The confirmed refund stays: one gateway transaction recorded.
	if len(cur.Details.TransactionIDs) != 1 {
		t.Fatalf("refund transaction must be preserved, got %v", cur.Details.TransactionIDs)
	}
	// Re-processing does not retry money movement silently.
	if err := o.Process(context.Background(), req.ID); !errors.Is(err, ErrPartialProcessing) {
		t.Fatalf("reprocessing a parked request should surface ErrPartialProcessing, got %v", err)
	}
}

func TestNotificationFailureDoesNotBlockProcessed(t *testing.T) {
	store, req := fixture()
	notifier := &fakeNotifier{fail: true}
	o := NewOrchestrator(store, &fakeGateway{}, &fakeWallet{}, notifier, &fakeReleaser{})

	if _, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 13); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := o.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("process must tolerate notification failure, got %v", err)
	}
	cur, _ := store.Request(context.Background(), req.ID)
	if cur.Status != model.RequestProcessed {
		t.Fatalf("status = %s, want PROCESSED", cur.Status)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	store, req := fixture()
	gw := &fakeGateway{}
	wallet := &fakeWallet{}
	releaser := &fakeReleaser{}
	o := NewOrchestrator(store, gw, wallet, &fakeNotifier{}, releaser)

	if _, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 13); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := o.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("first process failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := o.Process(context.Background(), req.ID); err != nil {
			t.Fatalf("reprocess %d failed: %v", i, err)
		}
	}
	if len(gw.calls) != 1 {
		t.Fatalf("gateway called %d times, want exactly 1", len(gw.calls))
	}
	if wallet.calls != 1 {
		t.Fatalf("wallet called %d times, want exactly 1", wallet.calls)
	}
	if releaser.calls != 1 {
		t.Fatalf("seat released %d times, want exactly 1", releaser.calls)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	store, req := fixture()
	o := NewOrchestrator(store, &fakeGateway{}, &fakeWallet{}, &fakeNotifier{}, &fakeReleaser{})
	if err := o.Reject(context.Background(), req.ID, "duplicate request"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if err := o.Process(context.Background(), req.ID); err != nil {
		t.Fatalf("processing a rejected request must be a no-op, got %v", err)
	}
	if _, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 13); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approving a rejected request should fail, got %v", err)
	}
}

func TestStudioInitiatedFullRefund(t *testing.T) {
	store, req := fixture()
	store.requests[req.ID].Initiator = model.InitiatorWeather
	o := NewOrchestrator(store, &fakeGateway{}, &fakeWallet{}, &fakeNotifier{}, &fakeReleaser{})
	det, err := o.Approve(context.Background(), req.ID, tieredPolicy(), 0.25)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if det.RefundAmountCents != 2800 {
		t.Fatalf("weather cancellation refund = %d, want full 2800", det.RefundAmountCents)
	}
}
