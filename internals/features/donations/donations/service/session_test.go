package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	donorService "templeseva_backend/internals/features/donations/donors/service"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newSessionCreator(h *harness) *SessionCreator {
	return NewSessionCreator(h.repo, h.donors, h.sm, h.gw, SessionConfig{
		OrderIDPrefix: "DON",
		Currency:      "INR",
		ReturnURL:     "https://temple.example/api/public/payments/return",
		Timeout:       time.Second,
	}, zap.NewNop())
}

var payer = donorService.PayerInput{Name: "Sita Devi", Email: "sita@example.com", Phone: "9876543210"}

func TestParseAmount(t *testing.T) {
	for _, ok := range []string{"1", "501.00", " 10.5 ", "0.01"} {
		if _, err := ParseAmount(ok); err != nil {
			t.Errorf("%q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "abc", "0", "-5", "10.005", "0.001"} {
		var ve *ValidationError
		if _, err := ParseAmount(bad); !errors.As(err, &ve) || ve.Field != "amount" {
			t.Errorf("%q: err = %v", bad, err)
		}
	}
}

func TestCreate_Success(t *testing.T) {
	h := newHarness(t)
	sc := newSessionCreator(h)

	out, err := sc.Create(context.Background(), SessionInput{Payer: payer, Amount: "1001.5", Purpose: "Abhishekam"})
	if err != nil {
		t.Fatal(err)
	}
	d := h.reload(t, out.Donation.DonationID)
	if d.DonationStatus != model.DonationStatusPending {
		t.Fatalf("status = %s", d.DonationStatus)
	}
	if !strings.HasPrefix(d.DonationMerchantOrderID, "DON") || len(d.DonationMerchantOrderID) > MaxOrderIDLen {
		t.Fatalf("merchant id %q", d.DonationMerchantOrderID)
	}
	if d.DonationGatewayOrderID == nil || *d.DonationGatewayOrderID != "GW-"+d.DonationMerchantOrderID {
		t.Fatalf("gateway id not attached: %v", d.DonationGatewayOrderID)
	}
	if out.RedirectURL == "" || d.DonationAmount.StringFixed(2) != "1001.50" {
		t.Fatalf("redirect=%q amount=%s", out.RedirectURL, d.DonationAmount)
	}

	req := h.gw.sessions[0]
	if req.PayerFirstName != "Sita" || req.PayerLastName != "Devi" || req.PayerPhone != "+919876543210" {
		t.Fatalf("payer fields: %+v", req)
	}
	if req.ReturnURL != "https://temple.example/api/public/payments/return" {
		t.Fatalf("return url %q", req.ReturnURL)
	}
}

func TestCreate_ValidationPersistsNothing(t *testing.T) {
	h := newHarness(t)
	sc := newSessionCreator(h)

	cases := []SessionInput{
		{Payer: payer, Amount: "0"},
		{Payer: payer, Amount: "10", MerchantOrderID: "!!//--"},
		{Payer: donorService.PayerInput{Name: "Anon"}, Amount: "10"},
	}
	for i, in := range cases {
		var ve *ValidationError
		if _, err := sc.Create(context.Background(), in); !errors.As(err, &ve) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
	if len(h.gw.sessions) != 0 {
		t.Fatal("gateway called for invalid input")
	}
	if list, _ := h.repo.ListStalePending(context.Background(), time.Now().Add(time.Hour), time.Time{}, 0); len(list) != 0 {
		t.Fatalf("%d donations persisted", len(list))
	}
}

func TestCreate_CollisionGetsSuffix(t *testing.T) {
	h := newHarness(t)
	sc := newSessionCreator(h)
	h.pending(t, "ORD202405", time.Minute)

	out, err := sc.Create(context.Background(), SessionInput{Payer: payer, Amount: "10", MerchantOrderID: "ORD-2024/05"})
	if err != nil {
		t.Fatal(err)
	}
	id := out.Donation.DonationMerchantOrderID
	if id == "ORD202405" || !strings.HasPrefix(id, "ORD202405") || len(id) != len("ORD202405")+orderIDSuffixLen {
		t.Fatalf("merchant id %q", id)
	}
}

func TestCreate_GatewayFailure(t *testing.T) {
	h := newHarness(t)
	sc := newSessionCreator(h)
	h.gw.sessionErr = &gateway.GatewayError{
		Op:                 "session",
		StatusCode:         400,
		Hint:               gateway.HintForStatus(400),
		RawResponseSnippet: `{"error_message":"invalid order_id"}`,
	}

	_, err := sc.Create(context.Background(), SessionInput{Payer: payer, Amount: "10", MerchantOrderID: "DON77"})
	var se *SessionError
	if !errors.As(err, &se) || se.MerchantOrderID != "DON77" {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(se.Error(), "invalid order_id") {
		t.Fatal("gateway detail leaked to the payer")
	}

	d, ferr := h.repo.FindByMerchantOrderID(context.Background(), "DON77")
	if ferr != nil {
		t.Fatal(ferr)
	}
	if d.DonationStatus != model.DonationStatusFailed || d.DonationGatewayMeta["raw"] != `{"error_message":"invalid order_id"}` {
		t.Fatalf("status=%s meta=%v", d.DonationStatus, d.DonationGatewayMeta)
	}
	evs := h.eventsWithStatus(model.EventStatusFailed)
	if len(evs) != 1 || evs[0].GatewayEventSource != model.EventSourceSession {
		t.Fatalf("session events: %+v", evs)
	}
}

// wholeUnitsGateway charges whole currency units only, like Midtrans.
type wholeUnitsGateway struct {
	*fakeGateway
}

func (wholeUnitsGateway) CheckAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(0)) {
		return errors.New("whole units only")
	}
	return nil
}

func TestCreate_AmountTheGatewayCannotCharge(t *testing.T) {
	h := newHarness(t)
	sc := NewSessionCreator(h.repo, h.donors, h.sm, wholeUnitsGateway{h.gw}, SessionConfig{OrderIDPrefix: "DON", Timeout: time.Second}, zap.NewNop())

	var ve *ValidationError
	if _, err := sc.Create(context.Background(), SessionInput{Payer: payer, Amount: "100.50"}); !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("err = %v", err)
	}
	if len(h.gw.sessions) != 0 {
		t.Fatal("gateway called for a fractional amount")
	}
	if list, _ := h.repo.ListStalePending(context.Background(), time.Now().Add(time.Hour), time.Time{}, 0); len(list) != 0 {
		t.Fatalf("%d donations persisted", len(list))
	}

	out, err := sc.Create(context.Background(), SessionInput{Payer: payer, Amount: "100"})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.gw.sessions[0].Amount.StringFixed(2); got != "100.00" || out.Donation.DonationAmount.StringFixed(2) != got {
		t.Fatalf("charged %s, recorded %s", got, out.Donation.DonationAmount)
	}
}
