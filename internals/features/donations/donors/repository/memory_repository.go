package repository

import (
	"context"
	"sync"
	"time"

	"templeseva_backend/internals/features/donations/donors/model"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. Transactions are serialized
// and applied all-or-nothing. Used by tests and local tooling.
type MemoryRepository struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	donors map[uuid.UUID]model.Donor
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{donors: map[uuid.UUID]model.Donor{}}
}

func (r *MemoryRepository) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	staged := make(map[uuid.UUID]model.Donor, len(r.donors))
	for k, v := range r.donors {
		staged[k] = v
	}
	r.mu.Unlock()

	if err := fn(&memoryTx{donors: staged}); err != nil {
		return err
	}

	r.mu.Lock()
	r.donors = staged
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) FindByEmailNorm(ctx context.Context, emailNorm string) (*model.Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return findIn(r.donors, func(d model.Donor) bool { return ptrEq(d.DonorEmailNorm, emailNorm) })
}

func (r *MemoryRepository) MarkClaimed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donors[id]
	if !ok {
		return ErrNotFound
	}
	d.DonorIsClaimed = true
	r.donors[id] = d
	return nil
}

// Put inserts or replaces a donor directly.
func (r *MemoryRepository) Put(d model.Donor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.DonorID == uuid.Nil {
		d.DonorID = uuid.New()
	}
	r.donors[d.DonorID] = d
}

func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.donors)
}

type memoryTx struct {
	donors map[uuid.UUID]model.Donor
}

func (t *memoryTx) FindByEmailNorm(ctx context.Context, emailNorm string) (*model.Donor, error) {
	return findIn(t.donors, func(d model.Donor) bool { return ptrEq(d.DonorEmailNorm, emailNorm) })
}

func (t *memoryTx) FindByPhone(ctx context.Context, phone string) (*model.Donor, error) {
	return findIn(t.donors, func(d model.Donor) bool { return ptrEq(d.DonorPhone, phone) })
}

func (t *memoryTx) FindByPAN(ctx context.Context, pan string) (*model.Donor, error) {
	return findIn(t.donors, func(d model.Donor) bool { return ptrEq(d.DonorPAN, pan) })
}

func (t *memoryTx) Create(ctx context.Context, d *model.Donor) error {
	if d.DonorEmailNorm != nil {
		if _, err := findIn(t.donors, func(x model.Donor) bool { return ptrEq(x.DonorEmailNorm, *d.DonorEmailNorm) }); err == nil {
			return ErrDuplicate
		}
	}
	if d.DonorID == uuid.Nil {
		d.DonorID = uuid.New()
	}
	now := time.Now()
	d.DonorCreatedAt, d.DonorUpdatedAt = now, now
	t.donors[d.DonorID] = *d
	return nil
}

func (t *memoryTx) Save(ctx context.Context, d *model.Donor) error {
	d.DonorUpdatedAt = time.Now()
	t.donors[d.DonorID] = *d
	return nil
}

func findIn(m map[uuid.UUID]model.Donor, match func(model.Donor) bool) (*model.Donor, error) {
	var best *model.Donor
	for _, d := range m {
		if !match(d) {
			continue
		}
		if best == nil || d.DonorCreatedAt.Before(best.DonorCreatedAt) {
			cp := d
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func ptrEq(p *string, v string) bool {
	return p != nil && *p == v
}
