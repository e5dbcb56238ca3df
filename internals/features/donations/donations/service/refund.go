package service

import (
	"context"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/payment/gateway"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type RefundResult struct {
	Donation *model.Donation
	Amount   decimal.Decimal
	Raw      map[string]any
}

type RefundService struct {
	repo    repository.Repository
	gw      gateway.Client
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewRefundService(repo repository.Repository, gw gateway.Client, timeout time.Duration, log *zap.Logger) *RefundService {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &RefundService{repo: repo, gw: gw, timeout: timeout, log: log.Named("refund"), now: time.Now}
}

// Refund returns amount (or everything still refundable when nil) to the payer.
// The amount is reserved under the row lock before the gateway call and
// released again if the call fails.
func (s *RefundService) Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*RefundResult, error) {
	d, err := s.repo.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return nil, err
	}

	var reserved decimal.Decimal
	err = s.repo.WithLock(ctx, d.DonationID, func(tx repository.Tx, cur *model.Donation) error {
		if !cur.IsPaid() {
			return ErrNotRefundable
		}
		left := cur.RefundableAmount()
		want := left
		if amount != nil {
			want = amount.Round(2)
			if !want.IsPositive() {
				return invalid("amount", "must be greater than zero")
			}
		}
		if !left.IsPositive() || want.GreaterThan(left) {
			return ErrRefundTooLarge
		}
		if err := gateway.CheckAmount(s.gw, want); err != nil {
			return invalid("amount", err.Error())
		}
		reserved = want
		cur.DonationRefundedAmount = cur.DonationRefundedAmount.Add(want)
		return tx.Save(ctx, cur)
	})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	res, gwErr := s.gw.Refund(callCtx, d.DonationMerchantOrderID, &reserved)
	cancel()

	if gwErr != nil {
		s.release(context.WithoutCancel(ctx), d, reserved)
		s.record(ctx, d, nil, model.EventStatusFailed, gwErr)
		return nil, gwErr
	}

	if res == nil {
		res = &gateway.RefundResult{}
	}
	s.record(ctx, d, res.Raw, model.EventStatusProcessed, nil)
	s.log.Info("refund issued",
		zap.String("merchant_order_id", d.DonationMerchantOrderID),
		zap.String("amount", reserved.StringFixed(2)),
	)

	fresh, err := s.repo.FindByID(ctx, d.DonationID)
	if err != nil {
		fresh = d
	}
	return &RefundResult{Donation: fresh, Amount: reserved, Raw: res.Raw}, nil
}

func (s *RefundService) release(ctx context.Context, d *model.Donation, amount decimal.Decimal) {
	err := s.repo.WithLock(ctx, d.DonationID, func(tx repository.Tx, cur *model.Donation) error {
		cur.DonationRefundedAmount = decimal.Max(decimal.Zero, cur.DonationRefundedAmount.Sub(amount))
		return tx.Save(ctx, cur)
	})
	if err != nil {
		s.log.Error("refund reservation not released",
			zap.String("merchant_order_id", d.DonationMerchantOrderID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		)
	}
}

func (s *RefundService) record(ctx context.Context, d *model.Donation, raw map[string]any, status string, cause error) {
	now := s.now()
	ev := &model.GatewayEvent{
		GatewayEventDonationID:  &d.DonationID,
		GatewayEventProvider:    s.gw.Name(),
		GatewayEventSource:      model.EventSourceRefund,
		GatewayEventState:       d.DonationStatus,
		GatewayEventExternalID:  &d.DonationMerchantOrderID,
		GatewayEventStatus:      status,
		GatewayEventReceivedAt:  now,
		GatewayEventProcessedAt: &now,
	}
	if cause != nil {
		ev.GatewayEventError = lo.ToPtr(cause.Error())
	}
	if raw != nil {
		if b, err := sonic.Marshal(raw); err == nil {
			ev.GatewayEventPayload = datatypes.JSON(b)
		}
	}
	if err := s.repo.LogEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("refund event not recorded", zap.Error(err))
	}
}
