package midtrans

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/bytedance/sonic"
	mt "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ProviderName = "midtrans"

// Client wraps Snap for sessions and Core API for status and refunds.
// The SDK has no context support, so ctx only gates the call start; the
// configured timeout bounds the HTTP round trip.
type Client struct {
	snap snap.Client
	core coreapi.Client
	log  *zap.Logger
}

func New(cfg configs.MidtransConfig, timeout time.Duration, log *zap.Logger) *Client {
	env := mt.Sandbox
	if cfg.Production {
		env = mt.Production
	}
	httpClient := &mt.HttpClientImplementation{
		HttpClient: &http.Client{Timeout: timeout},
		Logger:     mt.GetDefaultLogger(env),
	}

	c := &Client{log: log.Named("midtrans")}
	c.snap.New(cfg.ServerKey, env)
	c.snap.HttpClient = httpClient
	c.core.New(cfg.ServerKey, env)
	c.core.HttpClient = httpClient
	return c
}

func (c *Client) Name() string { return ProviderName }

var ErrFractionalAmount = errors.New("midtrans charges whole currency units only")

// CheckAmount rejects amounts with a fractional part; Midtrans gross_amount
// has no minor units.
func (c *Client) CheckAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(0)) {
		return ErrFractionalAmount
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Op: "create session", Hint: gateway.HintForStatus(0), Err: err}
	}
	if err := c.CheckAmount(req.Amount); err != nil {
		return nil, &gateway.GatewayError{Op: "create session", Hint: "amount not chargeable", Err: err}
	}

	snapReq := &snap.Request{
		TransactionDetails: mt.TransactionDetails{
			OrderID:  req.MerchantOrderID,
			GrossAmt: req.Amount.IntPart(),
		},
		CustomerDetail: &mt.CustomerDetails{
			FName: req.PayerFirstName,
			LName: req.PayerLastName,
			Email: req.PayerEmail,
			Phone: req.PayerPhone,
		},
		Callbacks: &snap.Callbacks{Finish: req.ReturnURL},
		Items: &[]mt.ItemDetails{{
			ID:    req.MerchantOrderID,
			Price: req.Amount.IntPart(),
			Qty:   1,
			Name:  truncate(firstNonEmpty(req.Description, "Donation"), 50),
		}},
	}

	resp, mErr := c.snap.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, fromMidtrans("create session", mErr)
	}

	raw := toMap(resp)
	c.log.Info("snap transaction created", zap.String("merchant_order_id", req.MerchantOrderID))
	return &gateway.SessionResult{GatewayOrderID: resp.Token, RedirectURL: resp.RedirectURL, Raw: raw}, nil
}

// GetOrderStatus reports the Core API status with a canonical "status" token added.
func (c *Client) GetOrderStatus(ctx context.Context, merchantOrderID, payerID string) (*gateway.StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Op: "order status", Hint: gateway.HintForStatus(0), Err: err}
	}

	resp, mErr := c.core.CheckTransaction(merchantOrderID)
	if mErr != nil {
		return nil, fromMidtrans("order status", mErr)
	}

	raw := toMap(resp)
	raw["status"] = CanonicalStatus(resp.TransactionStatus, resp.FraudStatus)
	raw["order_id"] = resp.OrderID
	raw["txn_id"] = resp.TransactionID
	raw["payment_method"] = resp.PaymentType
	return &gateway.StatusResult{Raw: raw}, nil
}

func (c *Client) Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*gateway.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Op: "refund", Hint: gateway.HintForStatus(0), Err: err}
	}

	req := &coreapi.RefundReq{
		RefundKey: merchantOrderID + "-" + time.Now().Format("060102150405"),
		Reason:    "donation refund",
	}
	if amount != nil {
		if err := c.CheckAmount(*amount); err != nil {
			return nil, &gateway.GatewayError{Op: "refund", Hint: "amount not refundable", Err: err}
		}
		req.Amount = amount.IntPart()
	}

	resp, mErr := c.core.RefundTransaction(merchantOrderID, req)
	if mErr != nil {
		return nil, fromMidtrans("refund", mErr)
	}
	return &gateway.RefundResult{Raw: toMap(resp)}, nil
}

// CanonicalStatus folds transaction_status and fraud_status into one token.
func CanonicalStatus(transactionStatus, fraudStatus string) string {
	ts := strings.ToLower(transactionStatus)
	fraud := strings.ToLower(fraudStatus)

	switch ts {
	case "capture":
		switch fraud {
		case "accept", "":
			return "CAPTURED"
		case "challenge":
			return "PENDING"
		}
		return "FAILED"
	case "settlement":
		return "SETTLED"
	case "pending":
		return "PENDING"
	case "deny", "cancel", "expire", "failure":
		return "FAILED"
	case "refund", "partial_refund":
		return "REFUNDED"
	}
	return strings.ToUpper(ts)
}

func fromMidtrans(op string, e *mt.Error) *gateway.GatewayError {
	return &gateway.GatewayError{
		Op:                 op,
		StatusCode:         e.GetStatusCode(),
		Hint:               gateway.HintForStatus(e.GetStatusCode()),
		RawResponseSnippet: gateway.Snippet([]byte(e.GetMessage())),
		Err:                e,
	}
}

func toMap(v any) map[string]any {
	out := map[string]any{}
	b, err := sonic.Marshal(v)
	if err != nil {
		return out
	}
	_ = sonic.Unmarshal(b, &out)
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
