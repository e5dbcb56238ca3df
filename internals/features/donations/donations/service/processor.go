package service

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/payment/gateway"
	"templeseva_backend/internals/features/payment/normalizer"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrNoCorrelation rejects a notification naming neither an order nor a transaction.
var ErrNoCorrelation = errors.New("notification carries no order or transaction id")

type Outcome string

const (
	OutcomePaid         Outcome = "paid"
	OutcomeAlreadyPaid  Outcome = "already_paid"
	OutcomeFailed       Outcome = "failed"
	OutcomeNeedsReview  Outcome = "needs_review"
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeUnmatched    Outcome = "unmatched"
)

// Changed is true for outcomes that answered the notification with a state
// decision, including idempotent repeats.
func (o Outcome) Changed() bool {
	return o == OutcomePaid || o == OutcomeAlreadyPaid || o == OutcomeFailed || o == OutcomeNeedsReview
}

// Notification is one status report about a payment, from any channel.
type Notification struct {
	Source  string
	Payload map[string]any
	Headers map[string]string
}

type ProcessResult struct {
	Outcome  Outcome
	Status   normalizer.NormalizedStatus
	Donation *model.Donation
	Receipt  *model.Receipt
}

// Processor turns gateway reports into state transitions. Webhooks, the
// return redirect and the reconciler all go through it.
type Processor struct {
	repo    repository.Repository
	matcher *Matcher
	sm      *StateMachine
	gw      gateway.Client
	table   normalizer.Table
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// NewProcessor reads payloads with table, which must match the payload
// shapes of gw.
func NewProcessor(repo repository.Repository, sm *StateMachine, gw gateway.Client, table normalizer.Table, timeout time.Duration, log *zap.Logger) *Processor {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &Processor{
		repo:    repo,
		matcher: NewMatcher(repo),
		sm:      sm,
		gw:      gw,
		table:   table,
		timeout: timeout,
		log:     log.Named("processor"),
		now:     time.Now,
	}
}

// Handle normalizes n, finds its donation and applies the state.
func (p *Processor) Handle(ctx context.Context, n Notification) (*ProcessResult, error) {
	st := p.table.Normalize(n.Payload)
	if !st.HasCorrelation() {
		p.record(ctx, n, st, nil, model.EventStatusFailed, ErrNoCorrelation)
		return nil, ErrNoCorrelation
	}

	d, err := p.matcher.Match(ctx, Candidates{GatewayOrderID: st.BankOrderID, GatewayTxnID: st.BankTxnID})
	if errors.Is(err, ErrNoMatch) {
		p.log.Warn("unmatched notification",
			zap.String("source", n.Source),
			zap.String("order_id", st.BankOrderID),
			zap.String("txn_id", st.BankTxnID),
			zap.String("state", string(st.State)),
		)
		p.record(ctx, n, st, nil, model.EventStatusUnmatched, nil)
		return &ProcessResult{Outcome: OutcomeUnmatched, Status: st}, nil
	}
	if err != nil {
		p.record(ctx, n, st, nil, model.EventStatusFailed, err)
		return nil, err
	}

	return p.apply(ctx, n, st, d)
}

// Find resolves a gateway-facing reference to a donation using the matcher rules.
func (p *Processor) Find(ctx context.Context, c Candidates) (*model.Donation, error) {
	return p.matcher.Match(ctx, c)
}

// Refresh asks the gateway for the current status of d and applies it.
func (p *Processor) Refresh(ctx context.Context, d *model.Donation, source string) (*ProcessResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	sr, err := p.gw.GetOrderStatus(callCtx, d.DonationMerchantOrderID, d.DonationCustomerRef)
	if err != nil {
		n := Notification{Source: source}
		p.record(ctx, n, normalizer.NormalizedStatus{State: normalizer.StateUnknown}, d, model.EventStatusFailed, err)
		return nil, err
	}

	n := Notification{Source: source, Payload: sr.Raw}
	st := p.table.Normalize(sr.Raw)

	// The poll targets this record; match it through its own merchant id.
	matched, err := p.matcher.Match(ctx, Candidates{GatewayOrderID: d.DonationMerchantOrderID})
	if err != nil {
		p.record(ctx, n, st, d, model.EventStatusFailed, err)
		return nil, err
	}
	return p.apply(ctx, n, st, matched)
}

func (p *Processor) apply(ctx context.Context, n Notification, st normalizer.NormalizedStatus, d *model.Donation) (*ProcessResult, error) {
	res := &ProcessResult{Status: st, Donation: d}

	switch st.State {
	case normalizer.StateSuccess:
		sr, err := p.sm.ApplySuccess(ctx, d, Payment{Method: st.Method, BankTxnID: st.BankTxnID, Metadata: n.Payload})
		if err != nil {
			p.record(ctx, n, st, d, model.EventStatusFailed, err)
			return nil, err
		}
		res.Donation, res.Receipt = sr.Donation, sr.Receipt
		res.Outcome = lo.Ternary(sr.Transitioned, OutcomePaid, OutcomeAlreadyPaid)
		p.record(ctx, n, st, d, model.EventStatusProcessed, nil)

	case normalizer.StateFailed:
		fr, err := p.sm.ApplyFailure(ctx, d, n.Payload)
		if err != nil {
			p.record(ctx, n, st, d, model.EventStatusFailed, err)
			return nil, err
		}
		res.Donation = fr.Donation
		if fr.Conflict {
			res.Outcome = OutcomeNeedsReview
			p.record(ctx, n, st, d, model.EventStatusNeedsReview, nil)
		} else {
			res.Outcome = OutcomeFailed
			p.record(ctx, n, st, d, model.EventStatusProcessed, nil)
		}

	default:
		p.sm.ApplyUnknown(ctx, d, st.Token)
		res.Outcome = OutcomeAcknowledged
		p.record(ctx, n, st, d, model.EventStatusIgnored, nil)
	}
	return res, nil
}

// record writes the audit row. A failed write is logged and never fails
// the notification.
func (p *Processor) record(ctx context.Context, n Notification, st normalizer.NormalizedStatus, d *model.Donation, status string, cause error) {
	now := p.now()
	ev := &model.GatewayEvent{
		GatewayEventProvider:    p.gw.Name(),
		GatewayEventSource:      n.Source,
		GatewayEventState:       string(st.State),
		GatewayEventExternalID:  lo.EmptyableToPtr(st.BankOrderID),
		GatewayEventExternalRef: lo.EmptyableToPtr(st.BankTxnID),
		GatewayEventType:        lo.EmptyableToPtr(st.Event),
		GatewayEventStatus:      status,
		GatewayEventReceivedAt:  now,
		GatewayEventProcessedAt: &now,
	}
	if d != nil {
		ev.GatewayEventDonationID = &d.DonationID
	}
	if cause != nil {
		ev.GatewayEventError = lo.ToPtr(cause.Error())
	}
	if n.Payload != nil {
		if b, err := sonic.Marshal(n.Payload); err == nil {
			ev.GatewayEventPayload = datatypes.JSON(b)
		}
	}
	if len(n.Headers) > 0 {
		if b, err := sonic.Marshal(n.Headers); err == nil {
			ev.GatewayEventHeaders = datatypes.JSON(b)
		}
	}

	if err := p.repo.LogEvent(context.WithoutCancel(ctx), ev); err != nil {
		p.log.Warn("gateway event not recorded", zap.String("status", status), zap.Error(err))
	}
}
