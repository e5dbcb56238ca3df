package hdfc

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ProviderName = "hdfc"

// Client talks to the HDFC SmartGateway REST API.
type Client struct {
	cfg  configs.HDFCConfig
	http *resty.Client
	log  *zap.Logger
}

func New(cfg configs.HDFCConfig, timeout time.Duration, log *zap.Logger) *Client {
	key := cfg.APIKey
	if cfg.APIKeyTrailingColon {
		key += ":"
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(key))).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-merchantid", cfg.MerchantID).
		SetHeader("x-resellerid", cfg.ResellerID).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{cfg: cfg, http: httpClient, log: log.Named("hdfc")}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResult, error) {
	first, last := req.PayerFirstName, req.PayerLastName
	if first == "" {
		first = "Donor"
	}

	payload := map[string]any{
		"order_id":               req.MerchantOrderID,
		"amount":                 req.Amount.StringFixed(2),
		"currency":               req.Currency,
		"customer_id":            req.PayerID,
		"customer_email":         req.PayerEmail,
		"customer_phone":         req.PayerPhone,
		"payment_page_client_id": c.pageClientID(),
		"action":                 "paymentPage",
		"return_url":             req.ReturnURL,
		"description":            req.Description,
		"first_name":             first,
		"last_name":              last,
	}

	data, err := c.do(ctx, "create session", req.PayerID, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(payload).Post("/session")
	})
	if err != nil {
		return nil, err
	}

	redirect := paymentLink(data)
	if redirect == "" {
		return nil, &gateway.GatewayError{
			Op:                 "create session",
			StatusCode:         200,
			Hint:               "session created without payment_links",
			RawResponseSnippet: snippetOf(data),
		}
	}

	gatewayOrderID, _ := data["id"].(string)
	c.log.Info("session created",
		zap.String("merchant_order_id", req.MerchantOrderID),
		zap.String("gateway_order_id", gatewayOrderID),
	)
	return &gateway.SessionResult{GatewayOrderID: gatewayOrderID, RedirectURL: redirect, Raw: data}, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, merchantOrderID, payerID string) (*gateway.StatusResult, error) {
	data, err := c.do(ctx, "order status", payerID, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", merchantOrderID).Get("/orders/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &gateway.StatusResult{Raw: data}, nil
}

func (c *Client) Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*gateway.RefundResult, error) {
	payload := map[string]any{
		"order_id":          merchantOrderID,
		"unique_request_id": strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	}
	if amount != nil {
		payload["amount"] = amount.StringFixed(2)
	}

	data, err := c.do(ctx, "refund", "", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(payload).Post("/refunds")
	})
	if err != nil {
		return nil, err
	}
	return &gateway.RefundResult{Raw: data}, nil
}

func (c *Client) do(ctx context.Context, op, customerID string, send func(*resty.Request) (*resty.Response, error)) (map[string]any, error) {
	req := c.http.R().SetContext(ctx)
	if customerID != "" {
		req.SetHeader("x-customerid", customerID)
	}

	resp, err := send(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		return nil, &gateway.GatewayError{Op: op, Hint: gateway.HintForStatus(0), Err: err}
	}

	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		c.log.Warn("non-2xx response", zap.String("op", op), zap.Int("status", resp.StatusCode()))
		return nil, &gateway.GatewayError{
			Op:                 op,
			StatusCode:         resp.StatusCode(),
			Hint:               gateway.HintForStatus(resp.StatusCode()),
			RawResponseSnippet: gateway.Snippet(body),
		}
	}

	data := map[string]any{}
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &data); err != nil {
			return nil, &gateway.GatewayError{
				Op:                 op,
				StatusCode:         resp.StatusCode(),
				Hint:               "response is not a JSON object",
				RawResponseSnippet: gateway.Snippet(body),
				Err:                err,
			}
		}
	}
	return data, nil
}

func (c *Client) pageClientID() string {
	if c.cfg.PaymentPageClientID != "" {
		return c.cfg.PaymentPageClientID
	}
	return c.cfg.MerchantID
}

func paymentLink(data map[string]any) string {
	links, _ := data["payment_links"].(map[string]any)
	if web, _ := links["web"].(string); web != "" {
		return web
	}
	mobile, _ := links["mobile"].(string)
	return mobile
}

func snippetOf(data map[string]any) string {
	b, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return gateway.Snippet(b)
}
