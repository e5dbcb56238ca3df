package repository

import (
	"context"
	"errors"
	"time"

	database "templeseva_backend/internals/databases"
	"templeseva_backend/internals/features/donations/donations/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxLockAttempts = 3

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, d *model.Donation) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateOrderID
		}
		return err
	}
	return nil
}

// AttachSession writes only session columns so a webhook that already
// settled the donation is not overwritten.
func (r *gormRepository) AttachSession(ctx context.Context, id uuid.UUID, gatewayOrderID, redirectURL string, raw datatypes.JSONMap) error {
	updates := map[string]any{
		"donation_redirect_url": redirectURL,
		"donation_gateway_meta": raw,
	}
	if gatewayOrderID != "" {
		updates["donation_gateway_order_id"] = gatewayOrderID
	}
	res := r.db.WithContext(ctx).
		Model(&model.Donation{}).
		Where("donation_id = ? AND donation_status = ?", id, model.DonationStatusPending).
		Updates(updates)
	return res.Error
}

func (r *gormRepository) MerchantOrderIDExists(ctx context.Context, merchantOrderID string) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).
		Raw(`SELECT EXISTS(SELECT 1 FROM donations WHERE donation_merchant_order_id = ?)`, merchantOrderID).
		Scan(&exists).Error
	return exists, err
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Donation, error) {
	return r.first(ctx, "donation_id = ?", id)
}

func (r *gormRepository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Donation, error) {
	return r.first(ctx, "donation_merchant_order_id = ?", merchantOrderID)
}

func (r *gormRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Donation, error) {
	return r.first(ctx, "donation_gateway_order_id = ?", gatewayOrderID)
}

func (r *gormRepository) first(ctx context.Context, where string, arg any) (*model.Donation, error) {
	var d model.Donation
	if err := r.db.WithContext(ctx).Where(where, arg).First(&d).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *gormRepository) ListStalePending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]model.Donation, error) {
	q := r.db.WithContext(ctx).
		Where("donation_status = ? AND donation_created_at < ?", model.DonationStatusPending, createdBefore)
	if !createdAfter.IsZero() {
		q = q.Where("donation_created_at >= ?", createdAfter)
	}
	var out []model.Donation
	err := q.Order("donation_created_at ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *gormRepository) ListByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]model.Donation, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Donation{}).Where("donation_donor_id = ?", donorID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []model.Donation
	err := q.Order("donation_created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

func (r *gormRepository) FindReceipt(ctx context.Context, donationID uuid.UUID) (*model.Receipt, error) {
	return findReceipt(r.db.WithContext(ctx), donationID)
}

// WithLock loads the donation with SELECT ... FOR UPDATE and runs fn in the
// same transaction. Serialization failures and deadlocks are retried.
func (r *gormRepository) WithLock(ctx context.Context, id uuid.UUID, fn func(tx Tx, d *model.Donation) error) error {
	var err error
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var d model.Donation
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&d, "donation_id = ?", id).Error; err != nil {
				return mapErr(err)
			}
			return fn(&gormTx{db: tx}, &d)
		})
		if !database.IsLockConflict(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return err
}

func (r *gormRepository) LogEvent(ctx context.Context, ev *model.GatewayEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *gormRepository) ListEvents(ctx context.Context, status string, limit, offset int) ([]model.GatewayEvent, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.GatewayEvent{})
	if status != "" {
		q = q.Where("gateway_event_status = ?", status)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []model.GatewayEvent
	err := q.Order("gateway_event_received_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Save(ctx context.Context, d *model.Donation) error {
	return t.db.WithContext(ctx).Save(d).Error
}

func (t *gormTx) FindReceipt(ctx context.Context, donationID uuid.UUID) (*model.Receipt, error) {
	return findReceipt(t.db.WithContext(ctx), donationID)
}

func (t *gormTx) ReceiptNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := t.db.WithContext(ctx).
		Raw(`SELECT EXISTS(SELECT 1 FROM donation_receipts WHERE receipt_number = ?)`, number).
		Scan(&exists).Error
	return exists, err
}

func (t *gormTx) CreateReceipt(ctx context.Context, rc *model.Receipt) error {
	if err := t.db.WithContext(ctx).Create(rc).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

func findReceipt(db *gorm.DB, donationID uuid.UUID) (*model.Receipt, error) {
	var rc model.Receipt
	if err := db.First(&rc, "receipt_donation_id = ?", donationID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &rc, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
