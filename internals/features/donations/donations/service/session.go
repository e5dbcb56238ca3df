package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	donorModel "templeseva_backend/internals/features/donations/donors/model"
	donorService "templeseva_backend/internals/features/donations/donors/service"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	maxOrderIDAttempts    = 5
	orderIDSuffixLen      = 4
	defaultGatewayTimeout = 30 * time.Second
)

type PayerResolver interface {
	ResolveOrCreate(ctx context.Context, in donorService.PayerInput) (*donorModel.Donor, error)
}

type SessionConfig struct {
	OrderIDPrefix string
	Currency      string
	ReturnURL     string
	Timeout       time.Duration
}

type SessionInput struct {
	Payer   donorService.PayerInput
	Amount  string
	Purpose string
	// MerchantOrderID is optional; one is generated when empty.
	MerchantOrderID string
	ReturnURL       string
}

type SessionOutput struct {
	Donation    *model.Donation
	RedirectURL string
}

// SessionCreator persists a PENDING donation and opens a gateway session for it.
type SessionCreator struct {
	repo   repository.Repository
	payers PayerResolver
	sm     *StateMachine
	gw     gateway.Client
	cfg    SessionConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewSessionCreator(repo repository.Repository, payers PayerResolver, sm *StateMachine, gw gateway.Client, cfg SessionConfig, log *zap.Logger) *SessionCreator {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	return &SessionCreator{
		repo:   repo,
		payers: payers,
		sm:     sm,
		gw:     gw,
		cfg:    cfg,
		log:    log.Named("session"),
		now:    time.Now,
	}
}

// ParseAmount accepts a positive amount with at most two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, invalid("amount", "must be a number")
	}
	if !amt.IsPositive() {
		return decimal.Zero, invalid("amount", "must be greater than zero")
	}
	if !amt.Equal(amt.Round(2)) {
		return decimal.Zero, invalid("amount", "at most two decimal places")
	}
	return amt.Round(2), nil
}

func (s *SessionCreator) Create(ctx context.Context, in SessionInput) (*SessionOutput, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if err := gateway.CheckAmount(s.gw, amount); err != nil {
		return nil, invalid("amount", err.Error())
	}

	var requested string
	if in.MerchantOrderID != "" {
		requested = SanitizeOrderID(in.MerchantOrderID)
		if requested == "" {
			return nil, invalid("merchant_order_id", "must contain letters or digits")
		}
	}

	donor, err := s.payers.ResolveOrCreate(ctx, in.Payer)
	if errors.Is(err, donorService.ErrNoIdentity) {
		return nil, invalid("payer", err.Error())
	}
	if err != nil {
		return nil, err
	}

	d := &model.Donation{
		DonationDonorID:         donor.DonorID,
		DonationGatewayProvider: s.gw.Name(),
		DonationCustomerRef:     donor.GatewayCustomerRef(),
		DonationAmount:          amount,
		DonationCurrency:        s.cfg.Currency,
		DonationPurpose:         strings.TrimSpace(in.Purpose),
		DonationStatus:          model.DonationStatusPending,
	}
	if err := s.insert(ctx, d, requested); err != nil {
		return nil, err
	}

	log := s.log.With(zap.String("merchant_order_id", d.DonationMerchantOrderID))

	req := gateway.SessionRequest{
		MerchantOrderID: d.DonationMerchantOrderID,
		Amount:          amount,
		Currency:        d.DonationCurrency,
		PayerID:         d.DonationCustomerRef,
		PayerEmail:      lo.FromPtrOr(donor.DonorEmail, ""),
		PayerPhone:      lo.FromPtrOr(donor.DonorPhone, ""),
		ReturnURL:       lo.CoalesceOrEmpty(in.ReturnURL, s.cfg.ReturnURL),
		Description:     lo.CoalesceOrEmpty(d.DonationPurpose, "Donation"),
	}
	req.PayerFirstName, req.PayerLastName = splitName(donor.DonorName)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	res, err := s.gw.CreateSession(callCtx, req)
	cancel()
	if err != nil {
		log.Error("gateway session failed", zap.Error(err))
		s.recordFailure(ctx, d, err)
		return nil, &SessionError{MerchantOrderID: d.DonationMerchantOrderID, Err: err}
	}

	if err := s.repo.AttachSession(ctx, d.DonationID, res.GatewayOrderID, res.RedirectURL, datatypes.JSONMap(res.Raw)); err != nil {
		return nil, err
	}
	d.DonationGatewayOrderID = lo.EmptyableToPtr(res.GatewayOrderID)
	d.DonationRedirectURL = &res.RedirectURL

	log.Info("payment session created", zap.String("gateway_order_id", res.GatewayOrderID))
	return &SessionOutput{Donation: d, RedirectURL: res.RedirectURL}, nil
}

// insert claims a unique merchant order id, suffixing on collision.
func (s *SessionCreator) insert(ctx context.Context, d *model.Donation, requested string) error {
	base := requested
	if base == "" {
		base = newOrderID(s.cfg.OrderIDPrefix, s.now())
	}

	id := base
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		if attempt > 0 {
			id = withSuffix(base, orderIDSuffixLen)
		}
		taken, err := s.repo.MerchantOrderIDExists(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			continue
		}
		d.DonationMerchantOrderID = id
		err = s.repo.Create(ctx, d)
		if errors.Is(err, repository.ErrDuplicateOrderID) {
			continue
		}
		return err
	}
	return ErrOrderIDExhausted
}

// recordFailure keeps the raw provider answer for audit and marks the donation FAILED.
func (s *SessionCreator) recordFailure(ctx context.Context, d *model.Donation, cause error) {
	meta := map[string]any{"error": cause.Error()}
	var ge *gateway.GatewayError
	if errors.As(cause, &ge) {
		meta["http_status"] = ge.StatusCode
		meta["hint"] = ge.Hint
		meta["raw"] = ge.RawResponseSnippet
	}

	ctx = context.WithoutCancel(ctx)
	if _, err := s.sm.ApplyFailure(ctx, d, meta); err != nil {
		s.log.Warn("could not mark donation failed", zap.String("merchant_order_id", d.DonationMerchantOrderID), zap.Error(err))
	}

	now := s.now()
	ev := &model.GatewayEvent{
		GatewayEventDonationID:  &d.DonationID,
		GatewayEventProvider:    s.gw.Name(),
		GatewayEventSource:      model.EventSourceSession,
		GatewayEventState:       model.DonationStatusFailed,
		GatewayEventExternalID:  &d.DonationMerchantOrderID,
		GatewayEventStatus:      model.EventStatusFailed,
		GatewayEventError:       lo.ToPtr(cause.Error()),
		GatewayEventReceivedAt:  now,
		GatewayEventProcessedAt: &now,
	}
	if b, err := sonic.Marshal(meta); err == nil {
		ev.GatewayEventPayload = datatypes.JSON(b)
	}
	if err := s.repo.LogEvent(ctx, ev); err != nil {
		s.log.Warn("session failure not recorded", zap.Error(err))
	}
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
