package midtrans

import (
	"context"
	"errors"
	"testing"
	"time"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/features/payment/gateway"
	"templeseva_backend/internals/features/payment/normalizer"

	mt "github.com/midtrans/midtrans-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestCanonicalStatus(t *testing.T) {
	cases := []struct {
		ts, fraud string
		want      string
		state     normalizer.State
	}{
		{"settlement", "", "SETTLED", normalizer.StateSuccess},
		{"capture", "accept", "CAPTURED", normalizer.StateSuccess},
		{"capture", "challenge", "PENDING", normalizer.StatePending},
		{"capture", "deny", "FAILED", normalizer.StateFailed},
		{"pending", "", "PENDING", normalizer.StatePending},
		{"expire", "", "FAILED", normalizer.StateFailed},
		{"refund", "", "REFUNDED", normalizer.StateUnknown},
		{"authorize", "", "AUTHORIZE", normalizer.StateUnknown},
	}
	for _, tc := range cases {
		got := CanonicalStatus(tc.ts, tc.fraud)
		if got != tc.want {
			t.Errorf("CanonicalStatus(%q,%q) = %q, want %q", tc.ts, tc.fraud, got, tc.want)
		}
		if st := normalizer.Normalize(map[string]any{"status": got}).State; st != tc.state {
			t.Errorf("normalized %q = %s, want %s", got, st, tc.state)
		}
	}
}

func TestCheckAmount(t *testing.T) {
	c := New(configs.MidtransConfig{ServerKey: "sk"}, time.Second, zap.NewNop())
	if err := c.CheckAmount(decimal.RequireFromString("100.00")); err != nil {
		t.Fatalf("whole amount rejected: %v", err)
	}
	if err := c.CheckAmount(decimal.RequireFromString("100.50")); !errors.Is(err, ErrFractionalAmount) {
		t.Fatalf("err = %v", err)
	}

	_, err := c.CreateSession(context.Background(), gateway.SessionRequest{MerchantOrderID: "DON1", Amount: decimal.RequireFromString("100.50")})
	if !gateway.IsGatewayError(err) || !errors.Is(err, ErrFractionalAmount) {
		t.Fatalf("session err = %v", err)
	}
}

func TestNew_KeepsPackageHTTPClient(t *testing.T) {
	before := mt.DefaultGoHttpClient
	c := New(configs.MidtransConfig{ServerKey: "sk"}, 7*time.Second, zap.NewNop())
	if mt.DefaultGoHttpClient != before {
		t.Fatal("package-wide http client replaced")
	}
	for name, hc := range map[string]mt.HttpClient{"snap": c.snap.HttpClient, "core": c.core.HttpClient} {
		impl, ok := hc.(*mt.HttpClientImplementation)
		if !ok || impl.HttpClient.Timeout != 7*time.Second {
			t.Fatalf("%s client timeout not applied", name)
		}
	}
}
