package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
)

var receiptPattern = regexp.MustCompile(`^TSV-\d{4}-[A-Z2-9]{8}$`)

func TestApplySuccess_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.pending(t, "DON1", time.Minute)

	first, err := h.sm.ApplySuccess(ctx, d, Payment{Method: "UPI", BankTxnID: "T1", Metadata: map[string]any{"status": "CHARGED"}})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !first.Transitioned {
		t.Fatal("first call must transition")
	}
	if !receiptPattern.MatchString(first.Receipt.ReceiptNumber) {
		t.Fatalf("receipt number %q", first.Receipt.ReceiptNumber)
	}

	second, err := h.sm.ApplySuccess(ctx, d, Payment{Method: "CARD"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Transitioned {
		t.Fatal("second call must not transition")
	}
	if second.Receipt.ReceiptNumber != first.Receipt.ReceiptNumber {
		t.Fatalf("receipt changed: %s -> %s", first.Receipt.ReceiptNumber, second.Receipt.ReceiptNumber)
	}

	got := h.reload(t, d.DonationID)
	if got.DonationStatus != model.DonationStatusSuccess || got.DonationPaidAt == nil {
		t.Fatalf("status=%s paidAt=%v", got.DonationStatus, got.DonationPaidAt)
	}
	if *got.DonationPaymentMethod != "UPI" || *got.DonationBankTxnID != "T1" {
		t.Fatalf("payment details overwritten: %s %s", *got.DonationPaymentMethod, *got.DonationBankTxnID)
	}
	if !got.DonationReceiptNotificationSent {
		t.Fatal("notification flag not set")
	}
	if n := len(h.notifier.Receipts()); n != 1 {
		t.Fatalf("receipts sent = %d, want 1", n)
	}
	if h.claims.issued != 1 {
		t.Fatalf("claim links = %d, want 1", h.claims.issued)
	}
}

func TestApplySuccess_Concurrent(t *testing.T) {
	h := newHarness(t)
	d := h.pending(t, "DON1", time.Minute)

	const workers = 16
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		transitioned int
		numbers      = map[string]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.sm.ApplySuccess(context.Background(), d, Payment{Method: "UPI"})
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Transitioned {
				transitioned++
			}
			numbers[res.Receipt.ReceiptNumber] = true
		}()
	}
	wg.Wait()

	if transitioned != 1 {
		t.Fatalf("transitions = %d, want 1", transitioned)
	}
	if len(numbers) != 1 {
		t.Fatalf("distinct receipt numbers = %d, want 1", len(numbers))
	}
	if c := h.repo.ReceiptCount(d.DonationID); c != 1 {
		t.Fatalf("receipts = %d", c)
	}
	if n := len(h.notifier.Receipts()); n != 1 {
		t.Fatalf("notifications = %d, want 1", n)
	}
}

func TestApplySuccess_FromFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.pending(t, "DON1", time.Minute)

	if _, err := h.sm.ApplyFailure(ctx, d, map[string]any{"status": "FAILED"}); err != nil {
		t.Fatal(err)
	}
	res, err := h.sm.ApplySuccess(ctx, d, Payment{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Transitioned || res.Donation.DonationStatus != model.DonationStatusSuccess {
		t.Fatalf("late success not applied: %+v", res.Donation.DonationStatus)
	}
}

func TestApplyFailure_SuccessIsSticky(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.pending(t, "DON1", time.Minute)

	if _, err := h.sm.ApplySuccess(ctx, d, Payment{Method: "UPI"}); err != nil {
		t.Fatal(err)
	}
	res, err := h.sm.ApplyFailure(ctx, d, map[string]any{"status": "FAILED"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || !res.Conflict {
		t.Fatalf("applied=%v conflict=%v", res.Applied, res.Conflict)
	}
	if got := h.reload(t, d.DonationID); got.DonationStatus != model.DonationStatusSuccess {
		t.Fatalf("status reverted to %s", got.DonationStatus)
	}
}

func TestApplyFailure_Pending(t *testing.T) {
	h := newHarness(t)
	d := h.pending(t, "DON1", time.Minute)

	res, err := h.sm.ApplyFailure(context.Background(), d, map[string]any{"reason": "declined"})
	if err != nil {
		t.Fatal(err)
	}
	got := h.reload(t, d.DonationID)
	if !res.Applied || got.DonationStatus != model.DonationStatusFailed || got.DonationFailedAt == nil {
		t.Fatalf("status=%s", got.DonationStatus)
	}
	if got.DonationGatewayMeta["reason"] != "declined" {
		t.Fatalf("metadata not stored: %v", got.DonationGatewayMeta)
	}
}

func TestApplySuccess_NoEmailSkipsClaimLink(t *testing.T) {
	h := newHarness(t)
	d := h.pending(t, "DON1", time.Minute)

	noEmail := h.donor
	noEmail.DonorEmail = nil
	h.donorRepo.Put(noEmail)

	if _, err := h.sm.ApplySuccess(context.Background(), d, Payment{}); err != nil {
		t.Fatal(err)
	}
	if h.claims.issued != 0 {
		t.Fatalf("claim link issued without an email")
	}
	if !h.reload(t, d.DonationID).DonationReceiptNotificationSent {
		t.Fatal("flag must be set even when delivery is skipped")
	}
}
