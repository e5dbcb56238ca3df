package repository

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/users/auth/model"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("token not found")

type Repository interface {
	CreateMagicLink(ctx context.Context, t *model.MagicLinkToken) error
	FindMagicLinkByHash(ctx context.Context, hash []byte) (*model.MagicLinkToken, error)
	// ConsumeMagicLink marks the token used when it is still usable at now.
	// It reports false when another caller got there first or it expired.
	ConsumeMagicLink(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// CreateOtp stores o and retires every earlier unconsumed code of the donor.
	CreateOtp(ctx context.Context, o *model.OtpCode, now time.Time) error
	LatestOtp(ctx context.Context, donorID uuid.UUID, channel string) (*model.OtpCode, error)
	// ReserveOtpAttempt counts one guess against the code before it is
	// compared. It reports false when the code is used, expired or out of attempts.
	ReserveOtpAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error)
	ConsumeOtp(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// DeleteStale removes tokens and codes that expired or were used before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
