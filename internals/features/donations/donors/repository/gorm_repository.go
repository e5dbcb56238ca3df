package repository

import (
	"context"
	"errors"

	database "templeseva_backend/internals/databases"
	"templeseva_backend/internals/features/donations/donors/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	var d model.Donor
	if err := r.db.WithContext(ctx).First(&d, "donor_id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *gormRepository) FindByEmailNorm(ctx context.Context, emailNorm string) (*model.Donor, error) {
	var d model.Donor
	if err := r.db.WithContext(ctx).First(&d, "donor_email_norm = ?", emailNorm).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *gormRepository) MarkClaimed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Donor{}).
		Where("donor_id = ? AND donor_is_claimed = false", id).
		Update("donor_is_claimed", true).Error
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) first(ctx context.Context, where string, arg any) (*model.Donor, error) {
	var d model.Donor
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(where, arg).
		Order("donor_created_at ASC").
		First(&d).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (t *gormTx) FindByEmailNorm(ctx context.Context, emailNorm string) (*model.Donor, error) {
	return t.first(ctx, "donor_email_norm = ?", emailNorm)
}

func (t *gormTx) FindByPhone(ctx context.Context, phone string) (*model.Donor, error) {
	return t.first(ctx, "donor_phone = ?", phone)
}

func (t *gormTx) FindByPAN(ctx context.Context, pan string) (*model.Donor, error) {
	return t.first(ctx, "donor_pan = ?", pan)
}

func (t *gormTx) Create(ctx context.Context, d *model.Donor) error {
	if err := t.db.WithContext(ctx).Create(d).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (t *gormTx) Save(ctx context.Context, d *model.Donor) error {
	return t.db.WithContext(ctx).Save(d).Error
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
