package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestReconciler_Run(t *testing.T) {
	h := newHarness(t)
	paid := h.pending(t, "OLD1", 3*time.Hour)
	failed := h.pending(t, "OLD2", 2*time.Hour)
	broken := h.pending(t, "OLD3", 90*time.Minute)
	still := h.pending(t, "OLD4", time.Hour)
	fresh := h.pending(t, "NEW1", time.Minute)

	h.gw.statuses["OLD1"] = map[string]any{"status": "CHARGED", "order_id": "OLD1"}
	h.gw.statuses["OLD2"] = map[string]any{"status": "FAILED", "order_id": "OLD2"}
	h.gw.statusErr["OLD3"] = &gateway.GatewayError{Op: "status", Hint: gateway.HintForStatus(0)}
	h.gw.statuses["OLD4"] = map[string]any{"status": "PENDING_VBV"}

	r := NewReconciler(h.repo, h.processor, ReconcileOptions{OlderThan: 15 * time.Minute, BatchSize: 10}, zap.NewNop())
	rep, err := r.Run(context.Background(), r.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	want := Report{Checked: 4, Succeeded: 1, Failed: 1, Errors: 1}
	if rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}

	polled := h.gw.Polled()
	if len(polled) != 4 || polled[0] != "OLD1" || polled[3] != "OLD4" {
		t.Fatalf("poll order %v", polled)
	}

	status := func(d *model.Donation) string { return h.reload(t, d.DonationID).DonationStatus }
	if status(paid) != model.DonationStatusSuccess || status(failed) != model.DonationStatusFailed {
		t.Fatal("transitions not applied")
	}
	if status(broken) != model.DonationStatusPending || status(still) != model.DonationStatusPending || status(fresh) != model.DonationStatusPending {
		t.Fatal("unexpected change")
	}
	if h.repo.ReceiptCount(paid.DonationID) != 1 {
		t.Fatal("receipt not issued")
	}
}

func TestReconciler_BatchAndMaxAge(t *testing.T) {
	h := newHarness(t)
	h.pending(t, "ANCIENT", 72*time.Hour)
	h.pending(t, "A", 3*time.Hour)
	h.pending(t, "B", 2*time.Hour)
	h.pending(t, "C", time.Hour)

	r := NewReconciler(h.repo, h.processor, ReconcileOptions{}, zap.NewNop())
	rep, err := r.Run(context.Background(), ReconcileOptions{OlderThan: 30 * time.Minute, MaxAge: 24 * time.Hour, BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Checked != 2 {
		t.Fatalf("checked = %d", rep.Checked)
	}
	polled := h.gw.Polled()
	if polled[0] != "A" || polled[1] != "B" {
		t.Fatalf("polled %v", polled)
	}
}

func TestReconciler_NoOverlap(t *testing.T) {
	h := newHarness(t)
	r := NewReconciler(h.repo, h.processor, ReconcileOptions{}, zap.NewNop())
	r.running.Store(true)
	if _, err := r.Run(context.Background(), ReconcileOptions{}); !errors.Is(err, ErrReconcileRunning) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.pending(t, "DON1", time.Minute)
	svc := NewRefundService(h.repo, h.gw, time.Second, zap.NewNop())

	if _, err := svc.Refund(ctx, "DON1", nil); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("pending refund: %v", err)
	}
	if _, err := h.sm.ApplySuccess(ctx, d, Payment{}); err != nil {
		t.Fatal(err)
	}

	part := decimal.RequireFromString("200")
	res, err := svc.Refund(ctx, "DON1", &part)
	if err != nil {
		t.Fatal(err)
	}
	if res.Donation.DonationRefundedAmount.StringFixed(2) != "200.00" {
		t.Fatalf("refunded = %s", res.Donation.DonationRefundedAmount)
	}

	tooMuch := decimal.RequireFromString("400")
	if _, err := svc.Refund(ctx, "DON1", &tooMuch); !errors.Is(err, ErrRefundTooLarge) {
		t.Fatalf("err = %v", err)
	}

	h.gw.refundErr = &gateway.GatewayError{Op: "refund", StatusCode: 500}
	if _, err := svc.Refund(ctx, "DON1", nil); err == nil {
		t.Fatal("expected gateway error")
	}
	if got := h.reload(t, d.DonationID).DonationRefundedAmount.StringFixed(2); got != "200.00" {
		t.Fatalf("reservation not released: %s", got)
	}

	h.gw.refundErr = nil
	rest, err := svc.Refund(ctx, "DON1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rest.Amount.StringFixed(2) != "301.00" || rest.Donation.DonationStatus != model.DonationStatusSuccess {
		t.Fatalf("amount=%s status=%s", rest.Amount, rest.Donation.DonationStatus)
	}
}

func TestRefund_AmountTheGatewayCannotCharge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.pending(t, "DON1", time.Minute)
	if _, err := h.sm.ApplySuccess(ctx, d, Payment{}); err != nil {
		t.Fatal(err)
	}
	svc := NewRefundService(h.repo, wholeUnitsGateway{h.gw}, time.Second, zap.NewNop())

	part := decimal.RequireFromString("10.50")
	var ve *ValidationError
	if _, err := svc.Refund(ctx, "DON1", &part); !errors.As(err, &ve) {
		t.Fatalf("err = %v", err)
	}
	if got := h.reload(t, d.DonationID).DonationRefundedAmount; !got.IsZero() {
		t.Fatalf("refunded = %s", got)
	}
}
