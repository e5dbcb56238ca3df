package repository

import (
	"bytes"
	"context"
	"sync"
	"time"

	"templeseva_backend/internals/features/users/auth/model"

	"github.com/google/uuid"
)

// MemoryRepository keeps tokens in process memory. Consume calls are atomic
// like the conditional UPDATE of the gorm implementation.
type MemoryRepository struct {
	mu    sync.Mutex
	links map[uuid.UUID]model.MagicLinkToken
	otps  []model.OtpCode
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{links: map[uuid.UUID]model.MagicLinkToken{}}
}

func (r *MemoryRepository) CreateMagicLink(ctx context.Context, t *model.MagicLinkToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.links[t.ID] = *t
	return nil
}

func (r *MemoryRepository) FindMagicLinkByHash(ctx context.Context, hash []byte) (*model.MagicLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.links {
		if bytes.Equal(t.TokenHash, hash) {
			cp := t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ConsumeMagicLink(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.links[id]
	if !ok || !t.Usable(now) {
		return false, nil
	}
	t.UsedAt = &now
	r.links[id] = t
	return true, nil
}

func (r *MemoryRepository) CreateOtp(ctx context.Context, o *model.OtpCode, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.otps {
		if r.otps[i].DonorID == o.DonorID && r.otps[i].Channel == o.Channel && r.otps[i].ConsumedAt == nil {
			r.otps[i].ConsumedAt = &now
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	r.otps = append(r.otps, *o)
	return nil
}

func (r *MemoryRepository) LatestOtp(ctx context.Context, donorID uuid.UUID, channel string) (*model.OtpCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.otps) - 1; i >= 0; i-- {
		if r.otps[i].DonorID == donorID && r.otps[i].Channel == channel {
			cp := r.otps[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ReserveOtpAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.otps {
		o := &r.otps[i]
		if o.ID != id {
			continue
		}
		if !o.Usable(now, maxAttempts) {
			return false, nil
		}
		o.Attempts++
		return true, nil
	}
	return false, nil
}

func (r *MemoryRepository) ConsumeOtp(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.otps {
		o := &r.otps[i]
		if o.ID != id {
			continue
		}
		if o.ConsumedAt != nil || !now.Before(o.ExpiresAt) {
			return false, nil
		}
		o.ConsumedAt = &now
		return true, nil
	}
	return false, nil
}

func (r *MemoryRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.links {
		if t.ExpiresAt.Before(cutoff) || (t.UsedAt != nil && t.UsedAt.Before(cutoff)) {
			delete(r.links, id)
			n++
		}
	}
	kept := r.otps[:0]
	for _, o := range r.otps {
		if o.ExpiresAt.Before(cutoff) || (o.ConsumedAt != nil && o.ConsumedAt.Before(cutoff)) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	r.otps = kept
	return n, nil
}
