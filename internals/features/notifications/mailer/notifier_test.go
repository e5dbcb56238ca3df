package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSendReceipt_RendersAndSends(t *testing.T) {
	rec := &RecordingTransport{}
	n := NewNotifier(rec, "seva@temple.test", "", zap.NewNop())

	res := n.SendReceipt(context.Background(), ReceiptMessage{
		To:              "bob@x.com",
		DonorName:       "Robert",
		MerchantOrderID: "DON1",
		ReceiptNumber:   "TSV-2610-ABCDEFGH",
		Amount:          "100.00",
		Currency:        "INR",
		PaidAt:          time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
		ClaimURL:        "https://temple.test/claim?token=abc",
	})
	if !res.Sent() {
		t.Fatalf("not sent: %s", res.Reason)
	}
	msgs := rec.Sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages", len(msgs))
	}
	for _, want := range []string{"Robert", "TSV-2610-ABCDEFGH", "INR 100.00", "claim?token=abc", "01 Oct 2026"} {
		if !strings.Contains(msgs[0].Body, want) {
			t.Errorf("body missing %q:\n%s", want, msgs[0].Body)
		}
	}
}

func TestSend_TransportFailureIsNotSent(t *testing.T) {
	rec := &RecordingTransport{Err: errors.New("connection refused")}
	n := NewNotifier(rec, "seva@temple.test", "", zap.NewNop())

	res := n.SendOtp(context.Background(), "a@b.c", "123456", 10*time.Minute)
	if res.Sent() || !strings.Contains(res.Reason, "connection refused") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSend_MissingRecipient(t *testing.T) {
	n := NewNotifier(&RecordingTransport{}, "f@x", "", zap.NewNop())
	if n.SendMagicLink(context.Background(), "", "u", time.Minute).Sent() {
		t.Fatal("sent without recipient")
	}
	if n.SendAdminPaymentAlert(context.Background(), ReceiptMessage{}).Sent() {
		t.Fatal("admin alert sent without admin email")
	}
}

func TestBuildMessage_Headers(t *testing.T) {
	raw := string(buildMessage(Message{From: "a@x", To: []string{"b@y"}, Subject: "Hi", Body: "l1\nl2"}, "x"))
	if !strings.Contains(raw, "Subject: Hi\r\n") || !strings.HasSuffix(raw, "l1\r\nl2") {
		t.Fatalf("unexpected message:\n%s", raw)
	}
}
