package repository

import (
	"context"
	"errors"

	"templeseva_backend/internals/features/donations/donors/model"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("donor not found")
	ErrDuplicate = errors.New("donor already exists")
)

// Repository is the donor store. Lookups made through a Tx lock the rows they return.
type Repository interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Donor, error)
	FindByEmailNorm(ctx context.Context, emailNorm string) (*model.Donor, error)
	MarkClaimed(ctx context.Context, id uuid.UUID) error
}

type Tx interface {
	FindByEmailNorm(ctx context.Context, emailNorm string) (*model.Donor, error)
	FindByPhone(ctx context.Context, phone string) (*model.Donor, error)
	FindByPAN(ctx context.Context, pan string) (*model.Donor, error)
	Create(ctx context.Context, d *model.Donor) error
	Save(ctx context.Context, d *model.Donor) error
}
