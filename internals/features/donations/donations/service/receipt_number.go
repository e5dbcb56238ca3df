package service

import (
	"context"
	"errors"
	"time"

	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/helpers/dbtime"
)

const receiptAttempts = 5

// newReceiptNumber returns <prefix>-<YYMM>-<8 chars> not yet used by any receipt.
// The month is the temple's local month.
func newReceiptNumber(ctx context.Context, tx repository.Tx, prefix string, now time.Time) (string, error) {
	now = dbtime.ToLocal(now)
	for i := 0; i < receiptAttempts; i++ {
		n := prefix + "-" + now.Format("0601") + "-" + randomString(alnum, 8)
		exists, err := tx.ReceiptNumberExists(ctx, n)
		if err != nil {
			return "", err
		}
		if !exists {
			return n, nil
		}
	}
	return "", errors.New("could not allocate a unique receipt number")
}
