package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Client is the boundary to the external payment provider. Implementations
// bound every call with the configured timeout and must not be called while a
// database lock is held.
type Client interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error)
	GetOrderStatus(ctx context.Context, merchantOrderID, payerID string) (*StatusResult, error)
	// Refund refunds amount, or the full remaining amount when nil.
	Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*RefundResult, error)
}

// AmountChecker is implemented by clients that cannot charge every amount
// ParseAmount accepts, such as providers without minor currency units.
type AmountChecker interface {
	CheckAmount(amount decimal.Decimal) error
}

// CheckAmount asks c when it implements AmountChecker.
func CheckAmount(c Client, amount decimal.Decimal) error {
	if ac, ok := c.(AmountChecker); ok {
		return ac.CheckAmount(amount)
	}
	return nil
}

type SessionRequest struct {
	MerchantOrderID string
	Amount          decimal.Decimal
	Currency        string
	PayerID         string
	PayerEmail      string
	PayerPhone      string
	PayerFirstName  string
	PayerLastName   string
	ReturnURL       string
	Description     string
}

type SessionResult struct {
	GatewayOrderID string
	RedirectURL    string
	Raw            map[string]any
}

// StatusResult carries the provider payload untouched; the normalizer interprets it.
type StatusResult struct {
	Raw map[string]any
}

type RefundResult struct {
	Raw map[string]any
}

// GatewayError is any transport failure or non-2xx answer from the provider.
type GatewayError struct {
	Op         string
	StatusCode int
	Hint       string
	// RawResponseSnippet is at most SnippetLimit bytes of the response body.
	RawResponseSnippet string
	Err                error
}

const SnippetLimit = 800

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s failed", e.Op)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// Snippet trims a response body for GatewayError.
func Snippet(body []byte) string {
	if len(body) > SnippetLimit {
		body = body[:SnippetLimit]
	}
	return string(body)
}

// HintForStatus explains the usual cause of an HTTP status from a provider.
func HintForStatus(code int) string {
	switch {
	case code == 401 || code == 403:
		return "check API key, merchant id and the Basic auth format"
	case code == 400 || code == 422:
		return "field validation failed; check order_id (alphanumeric, max 20), amount and return_url"
	case code == 404:
		return "endpoint or order not found; check the base URL and the order id"
	case code >= 500:
		return "provider-side error; retry later"
	case code == 0:
		return "network error or timeout"
	default:
		return "unexpected response from provider"
	}
}
