package razorpay

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/razorpay/razorpay-go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ProviderName = "razorpay"

// Client uses Razorpay Orders. The merchant order id travels as the order
// receipt, so status and refunds can be looked up by it.
type Client struct {
	rp          *razorpay.Client
	checkoutURL string
	log         *zap.Logger
}

func New(cfg configs.RazorpayConfig, timeout time.Duration, log *zap.Logger) *Client {
	rp := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	rp.Request.SetTimeout(int16(timeout / time.Second))
	return &Client{rp: rp, checkoutURL: cfg.CheckoutURL, log: log.Named("razorpay")}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Op: "create session", Hint: gateway.HintForStatus(0), Err: err}
	}

	order, err := c.rp.Order.Create(map[string]interface{}{
		"amount":   toPaise(req.Amount),
		"currency": req.Currency,
		"receipt":  req.MerchantOrderID,
		"notes": map[string]interface{}{
			"customer_id": req.PayerID,
			"email":       req.PayerEmail,
			"purpose":     req.Description,
		},
	}, nil)
	if err != nil {
		return nil, wrap("create session", err)
	}

	orderID := lo.FromPtrOr(stringField(order, "id"), "")
	if orderID == "" {
		return nil, &gateway.GatewayError{Op: "create session", StatusCode: 200, Hint: "order created without id"}
	}

	q := url.Values{}
	q.Set("order_id", orderID)
	q.Set("return_url", req.ReturnURL)
	redirect := c.checkoutURL + "?" + q.Encode()

	c.log.Info("order created", zap.String("merchant_order_id", req.MerchantOrderID), zap.String("gateway_order_id", orderID))
	return &gateway.SessionResult{GatewayOrderID: orderID, RedirectURL: redirect, Raw: order}, nil
}

// GetOrderStatus finds the order by receipt. For paid orders the captured
// payment supplies txn_id and payment_method.
func (c *Client) GetOrderStatus(ctx context.Context, merchantOrderID, payerID string) (*gateway.StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Op: "order status", Hint: gateway.HintForStatus(0), Err: err}
	}

	order, err := c.orderByReceipt(merchantOrderID)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	for k, v := range order {
		raw[k] = v
	}
	raw["status"] = strings.ToUpper(lo.FromPtrOr(stringField(order, "status"), ""))
	raw["order_id"] = lo.FromPtrOr(stringField(order, "id"), "")

	if raw["status"] == "PAID" {
		if p, err := c.capturedPayment(raw["order_id"].(string)); err == nil && p != nil {
			raw["txn_id"] = lo.FromPtrOr(stringField(p, "id"), "")
			raw["payment_method"] = lo.FromPtrOr(stringField(p, "method"), "")
		}
	}
	return &gateway.StatusResult{Raw: raw}, nil
}

func (c *Client) Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*gateway.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Op: "refund", Hint: gateway.HintForStatus(0), Err: err}
	}

	order, err := c.orderByReceipt(merchantOrderID)
	if err != nil {
		return nil, err
	}
	payment, err := c.capturedPayment(lo.FromPtrOr(stringField(order, "id"), ""))
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, &gateway.GatewayError{Op: "refund", Hint: "order has no captured payment"}
	}

	paise := 0
	if amount != nil {
		paise = int(toPaise(*amount))
	} else if v, ok := payment["amount"].(float64); ok {
		paise = int(v)
	}

	res, err := c.rp.Payment.Refund(lo.FromPtrOr(stringField(payment, "id"), ""), paise, map[string]interface{}{
		"notes": map[string]interface{}{"merchant_order_id": merchantOrderID},
	}, nil)
	if err != nil {
		return nil, wrap("refund", err)
	}
	return &gateway.RefundResult{Raw: res}, nil
}

func (c *Client) orderByReceipt(receipt string) (map[string]interface{}, error) {
	list, err := c.rp.Order.All(map[string]interface{}{"receipt": receipt}, nil)
	if err != nil {
		return nil, wrap("order status", err)
	}
	items, _ := list["items"].([]interface{})
	for _, it := range items {
		if m, ok := it.(map[string]interface{}); ok {
			return m, nil
		}
	}
	return nil, &gateway.GatewayError{Op: "order status", StatusCode: 404, Hint: gateway.HintForStatus(404)}
}

func (c *Client) capturedPayment(orderID string) (map[string]interface{}, error) {
	if orderID == "" {
		return nil, nil
	}
	list, err := c.rp.Order.Payments(orderID, nil, nil)
	if err != nil {
		return nil, wrap("order payments", err)
	}
	items, _ := list["items"].([]interface{})
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if ok && lo.FromPtrOr(stringField(m, "status"), "") == "captured" {
			return m, nil
		}
	}
	return nil, nil
}

func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func stringField(data map[string]interface{}, key string) *string {
	if v, ok := data[key].(string); ok {
		return &v
	}
	return nil
}

func wrap(op string, err error) *gateway.GatewayError {
	return &gateway.GatewayError{
		Op:                 op,
		Hint:               "razorpay API error",
		RawResponseSnippet: gateway.Snippet([]byte(fmt.Sprint(err))),
		Err:                err,
	}
}
