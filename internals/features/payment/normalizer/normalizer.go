package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"
)

type State string

const (
	StatePending State = "PENDING"
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
	StateUnknown State = "UNKNOWN"
)

// Actionable reports whether the state changes a donation. PENDING and
// UNKNOWN are acknowledged without a state change.
func (s State) Actionable() bool {
	return s == StateSuccess || s == StateFailed
}

// NormalizedStatus is the canonical view of a gateway payload. Empty strings
// mean the field was absent.
type NormalizedStatus struct {
	State       State
	Token       string
	Event       string
	BankOrderID string
	BankTxnID   string
	Method      string
}

// HasCorrelation is true when the payload names an order or a transaction.
func (n NormalizedStatus) HasCorrelation() bool {
	return n.BankOrderID != "" || n.BankTxnID != ""
}

type set map[string]struct{}

func newSet(vals ...string) set {
	s := make(set, len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

// Table is the extraction table: candidate key paths per field, tried in
// order, plus the token sets that decide the state.
type Table struct {
	Status      [][]string
	Event       [][]string
	BankOrderID [][]string
	BankTxnID   [][]string
	Method      [][]string

	SuccessTokens set
	FailedTokens  set
	PendingTokens set
	SuccessEvents set

	// Risk names a fraud verdict that can hold back or reject a success.
	Risk       [][]string
	RiskHold   set
	RiskReject set
}

var DefaultTable = Table{
	Status: [][]string{
		{"status"},
		{"order", "status"},
		{"payment", "status"},
		{"transaction", "status"},
		{"result", "status"},
	},
	Event:       [][]string{{"event"}, {"event_type"}},
	BankOrderID: [][]string{{"order", "id"}, {"order_id"}},
	BankTxnID:   [][]string{{"transaction", "id"}, {"txn_id"}},
	Method:      [][]string{{"payment", "method"}, {"payment_method"}, {"payment_method_type"}},

	SuccessTokens: newSet("CHARGED", "SUCCESS", "SUCCESSFUL", "PAID", "CAPTURED", "COMPLETED", "SETTLED"),
	FailedTokens:  newSet("FAILED"),
	PendingTokens: newSet("PENDING", "PENDING_VBV", "NEW", "STARTED", "AUTHORIZING", "CREATED", "ATTEMPTED"),
	SuccessEvents: newSet("ORDER_CHARGED", "PAYMENT_SUCCESS", "PAYMENT_CAPTURED", "ORDER_PAID"),
}

// MidtransTable reads Core API notifications and the polled status, which
// carries the canonical token under "status".
var MidtransTable = Table{
	Status:      [][]string{{"status"}, {"transaction_status"}},
	BankOrderID: [][]string{{"order_id"}},
	BankTxnID:   [][]string{{"txn_id"}, {"transaction_id"}},
	Method:      [][]string{{"payment_method"}, {"payment_type"}},

	SuccessTokens: newSet("SETTLEMENT", "CAPTURE", "SETTLED", "CAPTURED"),
	FailedTokens:  newSet("DENY", "CANCEL", "EXPIRE", "FAILURE", "FAILED"),
	PendingTokens: newSet("PENDING", "AUTHORIZE"),

	Risk:       [][]string{{"fraud_status"}},
	RiskHold:   newSet("CHALLENGE"),
	RiskReject: newSet("DENY"),
}

// RazorpayTable reads webhook envelopes (payload.order.entity,
// payload.payment.entity) and the polled order, whose receipt is the
// merchant order id.
var RazorpayTable = Table{
	Status: [][]string{
		{"status"},
		{"payload", "order", "entity", "status"},
		{"payload", "payment", "entity", "status"},
	},
	Event: [][]string{{"event"}},
	BankOrderID: [][]string{
		{"receipt"},
		{"payload", "order", "entity", "receipt"},
		{"order_id"},
		{"payload", "payment", "entity", "order_id"},
	},
	BankTxnID: [][]string{{"txn_id"}, {"payload", "payment", "entity", "id"}},
	Method:    [][]string{{"payment_method"}, {"payload", "payment", "entity", "method"}},

	SuccessTokens: newSet("PAID", "CAPTURED"),
	FailedTokens:  newSet("FAILED"),
	PendingTokens: newSet("CREATED", "ATTEMPTED", "AUTHORIZED"),
	SuccessEvents: newSet("ORDER.PAID", "PAYMENT.CAPTURED"),
}

// Normalize applies DefaultTable.
func Normalize(payload map[string]any) NormalizedStatus {
	return DefaultTable.Normalize(payload)
}

// Normalize never panics: missing or mistyped sub-objects are skipped.
func (t Table) Normalize(payload map[string]any) NormalizedStatus {
	out := NormalizedStatus{
		Token:       strings.ToUpper(t.first(payload, t.Status)),
		Event:       strings.ToUpper(t.first(payload, t.Event)),
		BankOrderID: t.first(payload, t.BankOrderID),
		BankTxnID:   t.first(payload, t.BankTxnID),
		Method:      t.first(payload, t.Method),
	}

	switch {
	case t.SuccessTokens.has(out.Token):
		out.State = StateSuccess
	case t.FailedTokens.has(out.Token):
		out.State = StateFailed
	case t.SuccessEvents.has(out.Event):
		out.State = StateSuccess
	case t.PendingTokens.has(out.Token):
		out.State = StatePending
	default:
		out.State = StateUnknown
	}

	if out.State == StateSuccess && len(t.Risk) > 0 {
		switch risk := strings.ToUpper(t.first(payload, t.Risk)); {
		case t.RiskReject.has(risk):
			out.State = StateFailed
		case t.RiskHold.has(risk):
			out.State = StatePending
		}
	}
	return out
}

func (t Table) first(payload map[string]any, paths [][]string) string {
	for _, p := range paths {
		if v := lookup(payload, p); v != "" {
			return v
		}
	}
	return ""
}

func lookup(payload map[string]any, path []string) string {
	var cur any = payload
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	return scalar(cur)
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
