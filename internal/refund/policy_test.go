package refund

import (
	"testing"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// tieredPolicy mirrors a typical studio policy: full refund a day out,
// half refund/half credit the same day, credit only close to start,
// nothing once the class has begun.
func tieredPolicy() model.CancellationPolicy {
	return model.CancellationPolicy{
		Rules: []model.CancellationRule{
			{HoursBefore: 24, RefundPct: 100, CreditPct: 0, ProcessingFeeCents: 0},
			{HoursBefore: 12, RefundPct: 50, CreditPct: 50, ProcessingFeeCents: 250},
			{HoursBefore: 2, RefundPct: 0, CreditPct: 100, ProcessingFeeCents: 250},
			{HoursBefore: 0, RefundPct: 0, CreditPct: 0, ProcessingFeeCents: 0},
		},
	}
}

func TestCalculateRefundTiers(t *testing.T) {
	policy := tieredPolicy()
	cases := []struct {
		name        string
		hoursBefore float64
		wantRefund  int64
		wantCredit  int64
	}{
		{"thirty hours out", 30, 2800, 0},
		{"thirteen hours out", 13, 1150, 1400},
		{"one hour out", 1, 0, 2550},
		{"at start", 0, 0, 0},
	}
	for _, tc := range cases {
		det := CalculateRefund(2800, tc.hoursBefore, policy, model.InitiatorCustomer)
		if det.RefundAmountCents != tc.wantRefund {
			t.Fatalf("%s: refund = %d, want %d", tc.name, det.RefundAmountCents, tc.wantRefund)
		}
		if det.CreditAmountCents != tc.wantCredit {
			t.Fatalf("%s: credit = %d, want %d", tc.name, det.CreditAmountCents, tc.wantCredit)
		}
		if det.OriginalAmountCents != 2800 {
			t.Fatalf("%s: original = %d, want 2800", tc.name, det.OriginalAmountCents)
		}
	}
}

func TestNonCustomerInitiatorsAlwaysFullRefund(t *testing.T) {
	policy := tieredPolicy()
	for _, initiator := range []string{
		model.InitiatorInstructor,
		model.InitiatorStudio,
		model.InitiatorWeather,
		model.InitiatorEmergency,
	} {
		for _, hours := range []float64{100, 5, 0.5, 0, -2} {
			det := CalculateRefund(2800, hours, policy, initiator)
			if det.RefundAmountCents != 2800 {
				t.Fatalf("%s at %gh: refund = %d, want full 2800", initiator, hours, det.RefundAmountCents)
			}
			if det.CreditAmountCents != 0 || det.ProcessingFeeCents != 0 {
				t.Fatalf("%s at %gh: credit/fee must be zero, got %d/%d", initiator, hours, det.CreditAmountCents, det.ProcessingFeeCents)
			}
		}
	}
}

func TestRefundNeverExceedsOriginal(t *testing.T) {
	policies := []model.CancellationPolicy{
		tieredPolicy(),
		{Rules: []model.CancellationRule{{HoursBefore: 0, RefundPct: 100, CreditPct: 100}}},
		{Rules: []model.CancellationRule{{HoursBefore: 5, RefundPct: 10, CreditPct: 10, ProcessingFeeCents: 5000}}},
		{},
	}
	for _, p := range policies {
		for _, hours := range []float64{-5, 0, 1, 6, 48} {
			det := CalculateRefund(2800, hours, p, model.InitiatorCustomer)
			if det.RefundAmountCents < 0 || det.RefundAmountCents > 2800 {
				t.Fatalf("refund %d out of [0, 2800] at %gh with policy %+v", det.RefundAmountCents, hours, p)
			}
			if det.CreditAmountCents < 0 {
				t.Fatalf("credit %d negative at %gh", det.CreditAmountCents, hours)
			}
		}
	}
}

func TestForfeitedRemainderStaysWithStudio(t *testing.T) {
	// 40% refund + 30% credit leaves 30% forfeited.
	policy := model.CancellationPolicy{
		Rules: []model.CancellationRule{{HoursBefore: 10, RefundPct: 40, CreditPct: 30}},
	}
	det := CalculateRefund(1000, 12, policy, model.InitiatorCustomer)
	if det.RefundAmountCents != 400 || det.CreditAmountCents != 300 {
		t.Fatalf("split = %d/%d, want 400/300", det.RefundAmountCents, det.CreditAmountCents)
	}
}

func TestFeeUnabsorbedByTinyAmounts(t *testing.T) {
	// Fee larger than the whole credit: everything clamps to zero.
	policy := model.CancellationPolicy{
		Rules: []model.CancellationRule{{HoursBefore: 2, RefundPct: 0, CreditPct: 100, ProcessingFeeCents: 250}},
	}
	det := CalculateRefund(100, 3, policy, model.InitiatorCustomer)
	if det.RefundAmountCents != 0 || det.CreditAmountCents != 0 {
		t.Fatalf("split = %d/%d, want 0/0", det.RefundAmountCents, det.CreditAmountCents)
	}
	if det.Method != MethodNone {
		t.Fatalf("method = %q, want %q", det.Method, MethodNone)
	}
}

func TestMethodClassification(t *testing.T) {
	policy := tieredPolicy()
	if m := CalculateRefund(2800, 30, policy, model.InitiatorCustomer).Method; m != MethodGateway {
		t.Fatalf("full-refund method = %q, want %q", m, MethodGateway)
	}
	if m := CalculateRefund(2800, 13, policy, model.InitiatorCustomer).Method; m != MethodMixed {
		t.Fatalf("split method = %q, want %q", m, MethodMixed)
	}
	if m := CalculateRefund(2800, 1, policy, model.InitiatorCustomer).Method; m != MethodWallet {
		t.Fatalf("credit-only method = %q, want %q", m, MethodWallet)
	}
}
