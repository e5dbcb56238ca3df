package service

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	donorModel "templeseva_backend/internals/features/donations/donors/model"
	"templeseva_backend/internals/features/notifications/mailer"
	"templeseva_backend/internals/helpers/dbtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type DonorLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*donorModel.Donor, error)
}

// ClaimLinkIssuer mints a single-use sign-in URL for a donor.
type ClaimLinkIssuer interface {
	IssueMagicLink(ctx context.Context, donorID uuid.UUID) (string, error)
}

type ReceiptNotifier interface {
	SendReceipt(ctx context.Context, m mailer.ReceiptMessage) mailer.Result
	SendAdminPaymentAlert(ctx context.Context, m mailer.ReceiptMessage) mailer.Result
}

// Payment is what a success notification tells us about the payment.
type Payment struct {
	Method    string
	BankTxnID string
	Metadata  map[string]any
}

type SuccessResult struct {
	Donation *model.Donation
	Receipt  *model.Receipt
	// Transitioned is true only for the call that moved the donation to SUCCESS.
	Transitioned bool
}

type FailureResult struct {
	Donation *model.Donation
	Applied  bool
	// Conflict is a FAILED notification for a donation already paid.
	Conflict bool
}

const dispatchTimeout = 30 * time.Second

// StateMachine owns donation status. Every transition runs under the
// donation's row lock; notifications go out after commit.
type StateMachine struct {
	repo          repository.Repository
	donors        DonorLookup
	claims        ClaimLinkIssuer
	notifier      ReceiptNotifier
	receiptPrefix string
	log           *zap.Logger
	now           func() time.Time
}

func NewStateMachine(
	repo repository.Repository,
	donors DonorLookup,
	claims ClaimLinkIssuer,
	notifier ReceiptNotifier,
	receiptPrefix string,
	log *zap.Logger,
) *StateMachine {
	return &StateMachine{
		repo:          repo,
		donors:        donors,
		claims:        claims,
		notifier:      notifier,
		receiptPrefix: receiptPrefix,
		log:           log.Named("state_machine"),
		now:           time.Now,
	}
}

// ApplySuccess marks the donation paid and issues its receipt. A donation
// already in SUCCESS is returned with its existing receipt and nothing changes.
func (sm *StateMachine) ApplySuccess(ctx context.Context, d *model.Donation, p Payment) (*SuccessResult, error) {
	var res SuccessResult
	dispatch := false

	err := sm.repo.WithLock(ctx, d.DonationID, func(tx repository.Tx, cur *model.Donation) error {
		if cur.IsPaid() {
			rc, err := tx.FindReceipt(ctx, cur.DonationID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			res = SuccessResult{Donation: cur, Receipt: rc}
			return nil
		}

		now := sm.now()
		cur.DonationStatus = model.DonationStatusSuccess
		cur.DonationPaidAt = &now
		if p.Method != "" {
			cur.DonationPaymentMethod = lo.ToPtr(p.Method)
		}
		if p.BankTxnID != "" {
			cur.DonationBankTxnID = lo.ToPtr(p.BankTxnID)
		}
		cur.DonationGatewayMeta = datatypes.JSONMap(p.Metadata)

		if cur.DonationReceiptNumber == nil {
			number, err := newReceiptNumber(ctx, tx, sm.receiptPrefix, now)
			if err != nil {
				return err
			}
			cur.DonationReceiptNumber = &number
		}

		rc, err := tx.FindReceipt(ctx, cur.DonationID)
		if errors.Is(err, repository.ErrNotFound) {
			rc = &model.Receipt{
				ReceiptID:         uuid.New(),
				ReceiptDonationID: cur.DonationID,
				ReceiptNumber:     *cur.DonationReceiptNumber,
				ReceiptIssuedAt:   now,
			}
			if err := tx.CreateReceipt(ctx, rc); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if !cur.DonationReceiptNotificationSent {
			cur.DonationReceiptNotificationSent = true
			dispatch = true
		}
		if err := tx.Save(ctx, cur); err != nil {
			return err
		}

		res = SuccessResult{Donation: cur, Receipt: rc, Transitioned: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Transitioned {
		sm.log.Info("donation paid",
			zap.String("merchant_order_id", res.Donation.DonationMerchantOrderID),
			zap.String("receipt_number", res.Receipt.ReceiptNumber),
		)
	}
	if dispatch {
		sm.dispatchReceipt(ctx, res.Donation, res.Receipt)
	}
	return &res, nil
}

// ApplyFailure marks the donation FAILED unless it is already paid.
func (sm *StateMachine) ApplyFailure(ctx context.Context, d *model.Donation, metadata map[string]any) (*FailureResult, error) {
	var res FailureResult

	err := sm.repo.WithLock(ctx, d.DonationID, func(tx repository.Tx, cur *model.Donation) error {
		if cur.IsPaid() {
			res = FailureResult{Donation: cur, Conflict: true}
			return nil
		}
		now := sm.now()
		cur.DonationStatus = model.DonationStatusFailed
		cur.DonationFailedAt = &now
		cur.DonationGatewayMeta = datatypes.JSONMap(metadata)
		if err := tx.Save(ctx, cur); err != nil {
			return err
		}
		res = FailureResult{Donation: cur, Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Conflict {
		sm.log.Warn("failure notification for a paid donation, status kept",
			zap.String("merchant_order_id", res.Donation.DonationMerchantOrderID),
		)
	}
	return &res, nil
}

// ApplyUnknown changes nothing; the notification is only acknowledged.
func (sm *StateMachine) ApplyUnknown(ctx context.Context, d *model.Donation, token string) {
	sm.log.Debug("non-actionable status",
		zap.String("merchant_order_id", d.DonationMerchantOrderID),
		zap.String("token", token),
	)
}

// dispatchReceipt runs after commit. Failures are logged and never change
// the donation.
func (sm *StateMachine) dispatchReceipt(ctx context.Context, d *model.Donation, rc *model.Receipt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	log := sm.log.With(zap.String("merchant_order_id", d.DonationMerchantOrderID))

	donor, err := sm.donors.FindByID(ctx, d.DonationDonorID)
	if err != nil {
		log.Warn("receipt not sent: donor lookup failed", zap.Error(err))
		return
	}
	email := lo.FromPtrOr(donor.DonorEmail, "")

	claimURL := ""
	if email != "" && sm.claims != nil {
		url, err := sm.claims.IssueMagicLink(ctx, donor.DonorID)
		if err != nil {
			log.Warn("claim link not issued", zap.Error(err))
		} else {
			claimURL = url
		}
	}

	msg := mailer.ReceiptMessage{
		To:              email,
		DonorName:       donor.DonorName,
		MerchantOrderID: d.DonationMerchantOrderID,
		ReceiptNumber:   rc.ReceiptNumber,
		Amount:          d.DonationAmount.StringFixed(2),
		Currency:        d.DonationCurrency,
		Purpose:         d.DonationPurpose,
		PaymentMethod:   lo.FromPtrOr(d.DonationPaymentMethod, ""),
		PaidAt:          dbtime.ToLocal(lo.FromPtrOr(d.DonationPaidAt, sm.now())),
		ClaimURL:        claimURL,
	}

	if r := sm.notifier.SendReceipt(ctx, msg); !r.Sent() {
		log.Warn("receipt email not sent", zap.String("reason", r.Reason))
	}
	if r := sm.notifier.SendAdminPaymentAlert(ctx, msg); !r.Sent() {
		log.Debug("admin alert not sent", zap.String("reason", r.Reason))
	}
}
