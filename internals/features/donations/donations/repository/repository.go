package repository

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrNotFound         = errors.New("donation not found")
	ErrDuplicateOrderID = errors.New("merchant order id already used")
	ErrDuplicateReceipt = errors.New("receipt already exists")
)

// Repository is the donation store. WithLock is the only way to change a
// donation's status: it holds an exclusive row lock for the whole callback
// and commits its writes all-or-nothing.
type Repository interface {
	Create(ctx context.Context, d *model.Donation) error
	AttachSession(ctx context.Context, id uuid.UUID, gatewayOrderID, redirectURL string, raw datatypes.JSONMap) error
	MerchantOrderIDExists(ctx context.Context, merchantOrderID string) (bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*model.Donation, error)
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Donation, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Donation, error)
	// ListStalePending returns PENDING donations created before createdBefore
	// (and after createdAfter when non-zero), oldest first.
	ListStalePending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]model.Donation, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]model.Donation, int64, error)
	FindReceipt(ctx context.Context, donationID uuid.UUID) (*model.Receipt, error)

	WithLock(ctx context.Context, id uuid.UUID, fn func(tx Tx, d *model.Donation) error) error

	LogEvent(ctx context.Context, ev *model.GatewayEvent) error
	ListEvents(ctx context.Context, status string, limit, offset int) ([]model.GatewayEvent, int64, error)
}

type Tx interface {
	Save(ctx context.Context, d *model.Donation) error
	FindReceipt(ctx context.Context, donationID uuid.UUID) (*model.Receipt, error)
	ReceiptNumberExists(ctx context.Context, number string) (bool, error)
	CreateReceipt(ctx context.Context, r *model.Receipt) error
}
