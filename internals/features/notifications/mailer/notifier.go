package mailer

import (
	"bytes"
	"context"
	"text/template"
	"time"

	"go.uber.org/zap"
)

type Outcome int

const (
	NotSent Outcome = iota
	Sent
)

// Result is what every notifier call returns. Callers log NotSent and move on.
type Result struct {
	Outcome Outcome
	Reason  string
}

func (r Result) Sent() bool { return r.Outcome == Sent }

func sent() Result { return Result{Outcome: Sent} }
func notSent(reason string) Result { return Result{Outcome: NotSent, Reason: reason} }

type ReceiptMessage struct {
	To              string
	DonorName       string
	MerchantOrderID string
	ReceiptNumber   string
	Amount          string
	Currency        string
	Purpose         string
	PaymentMethod   string
	PaidAt          time.Time
	ClaimURL        string
}

type Notifier struct {
	transport  Transport
	from       string
	adminEmail string
	log        *zap.Logger
}

func NewNotifier(t Transport, from, adminEmail string, log *zap.Logger) *Notifier {
	return &Notifier{transport: t, from: from, adminEmail: adminEmail, log: log.Named("mailer")}
}

var (
	receiptTmpl = template.Must(template.New("receipt").Parse(`Dear {{if .DonorName}}{{.DonorName}}{{else}}Devotee{{end}},

Thank you for your offering. Your donation has been received.

Receipt number : {{.ReceiptNumber}}
Reference      : {{.MerchantOrderID}}
Amount         : {{.Currency}} {{.Amount}}
{{- if .Purpose}}
Purpose        : {{.Purpose}}{{end}}
{{- if .PaymentMethod}}
Paid via       : {{.PaymentMethod}}{{end}}
Date           : {{.PaidAt.Format "02 Jan 2006 15:04"}}
{{if .ClaimURL}}
View your donations and download receipts:
{{.ClaimURL}}
(This link works once and expires soon.)
{{end}}`))

	magicLinkTmpl = template.Must(template.New("magic").Parse(`Namaste,

Use the link below to sign in and view your donations:
{{.URL}}

The link can be used once and expires in {{.TTL}}.
`))

	otpTmpl = template.Must(template.New("otp").Parse(`Your verification code is {{.Code}}.

It expires in {{.TTL}}. Do not share it with anyone.
`))

	adminTmpl = template.Must(template.New("admin").Parse(`Donation received.

Reference : {{.MerchantOrderID}}
Receipt   : {{.ReceiptNumber}}
Amount    : {{.Currency}} {{.Amount}}
Donor     : {{.DonorName}} <{{.To}}>
Purpose   : {{.Purpose}}
`))
)

func (n *Notifier) SendReceipt(ctx context.Context, m ReceiptMessage) Result {
	if m.To == "" {
		return notSent("donor has no email")
	}
	return n.send(ctx, "receipt", m.To, "Donation receipt "+m.ReceiptNumber, receiptTmpl, m)
}

func (n *Notifier) SendMagicLink(ctx context.Context, to, url string, ttl time.Duration) Result {
	if to == "" {
		return notSent("donor has no email")
	}
	return n.send(ctx, "magic_link", to, "Your sign-in link", magicLinkTmpl, map[string]any{"URL": url, "TTL": ttl.String()})
}

func (n *Notifier) SendOtp(ctx context.Context, to, code string, ttl time.Duration) Result {
	if to == "" {
		return notSent("donor has no email")
	}
	return n.send(ctx, "otp", to, "Your verification code", otpTmpl, map[string]any{"Code": code, "TTL": ttl.String()})
}

func (n *Notifier) SendAdminPaymentAlert(ctx context.Context, m ReceiptMessage) Result {
	if n.adminEmail == "" {
		return notSent("admin notification disabled")
	}
	return n.send(ctx, "admin_alert", n.adminEmail, "Donation received: "+m.MerchantOrderID, adminTmpl, m)
}

func (n *Notifier) send(ctx context.Context, kind, to, subject string, tmpl *template.Template, data any) Result {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		n.log.Error("render mail", zap.String("kind", kind), zap.Error(err))
		return notSent("render: " + err.Error())
	}

	err := n.transport.Send(ctx, Message{From: n.from, To: []string{to}, Subject: subject, Body: body.String()})
	if err != nil {
		n.log.Warn("mail not sent", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
		return notSent(err.Error())
	}
	n.log.Info("mail sent", zap.String("kind", kind), zap.String("to", to))
	return sent()
}
