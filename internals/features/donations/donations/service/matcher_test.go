package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMatcher_ResolutionOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	txn := h.pending(t, "TXN123", time.Minute)
	internal := h.pending(t, "INT123", time.Minute)
	if err := h.repo.AttachSession(ctx, internal.DonationID, "GW456", "https://pay", nil); err != nil {
		t.Fatal(err)
	}
	direct := h.pending(t, "DON1", time.Minute)

	m := NewMatcher(h.repo)
	cases := []struct {
		name string
		c    Candidates
		want string
	}{
		{"rule 1 merchant id", Candidates{GatewayOrderID: "DON1"}, direct.DonationMerchantOrderID},
		{"rule 2 stored gateway id", Candidates{GatewayOrderID: "GW456"}, "INT123"},
		{"rule 3 txn id as merchant id", Candidates{GatewayOrderID: "nope", GatewayTxnID: "TXN123"}, txn.DonationMerchantOrderID},
		{"rule 4 txn id as gateway id", Candidates{GatewayTxnID: "GW456"}, "INT123"},
		{"rule 1 wins over rule 3", Candidates{GatewayOrderID: "DON1", GatewayTxnID: "TXN123"}, "DON1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := m.Match(ctx, tc.c)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if d.DonationMerchantOrderID != tc.want {
				t.Fatalf("matched %s, want %s", d.DonationMerchantOrderID, tc.want)
			}
		})
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	h := newHarness(t)
	h.pending(t, "DON1", time.Minute)

	m := NewMatcher(h.repo)
	for _, c := range []Candidates{{}, {GatewayOrderID: "OTHER"}, {GatewayTxnID: "T9"}} {
		if _, err := m.Match(context.Background(), c); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("%+v: err = %v, want ErrNoMatch", c, err)
		}
	}
}
