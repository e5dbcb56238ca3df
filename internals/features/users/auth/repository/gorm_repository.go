package repository

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/users/auth/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateMagicLink(ctx context.Context, t *model.MagicLinkToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormRepository) FindMagicLinkByHash(ctx context.Context, hash []byte) (*model.MagicLinkToken, error) {
	var t model.MagicLinkToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *gormRepository) ConsumeMagicLink(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.MagicLinkToken{}).
		Where("id = ? AND used_at IS NULL AND expires_at > ?", id, now).
		Update("used_at", now)
	return res.RowsAffected == 1, res.Error
}

func (r *gormRepository) CreateOtp(ctx context.Context, o *model.OtpCode, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.OtpCode{}).
			Where("donor_id = ? AND channel = ? AND consumed_at IS NULL", o.DonorID, o.Channel).
			Update("consumed_at", now).Error; err != nil {
			return err
		}
		return tx.Create(o).Error
	})
}

func (r *gormRepository) LatestOtp(ctx context.Context, donorID uuid.UUID, channel string) (*model.OtpCode, error) {
	var o model.OtpCode
	err := r.db.WithContext(ctx).
		Where("donor_id = ? AND channel = ?", donorID, channel).
		Order("created_at DESC").
		First(&o).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r *gormRepository) ReserveOtpAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.OtpCode{}).
		Where("id = ? AND attempts < ? AND consumed_at IS NULL AND expires_at > ?", id, maxAttempts, now).
		Update("attempts", gorm.Expr("attempts + 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *gormRepository) ConsumeOtp(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.OtpCode{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ?", id, now).
		Update("consumed_at", now)
	return res.RowsAffected == 1, res.Error
}

func (r *gormRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("expires_at < ? OR used_at < ?", cutoff, cutoff).Delete(&model.MagicLinkToken{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected

		res = tx.Where("expires_at < ? OR consumed_at < ?", cutoff, cutoff).Delete(&model.OtpCode{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	return total, err
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
