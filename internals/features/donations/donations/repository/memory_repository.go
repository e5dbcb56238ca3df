package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MemoryRepository is an in-process Repository with the same locking
// contract as the gorm one: WithLock serializes per donation and applies
// staged writes only when the callback succeeds.
type MemoryRepository struct {
	mu        sync.Mutex
	rowLocks  map[uuid.UUID]*sync.Mutex
	donations map[uuid.UUID]model.Donation
	receipts  map[uuid.UUID]model.Receipt
	events    []model.GatewayEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rowLocks:  map[uuid.UUID]*sync.Mutex{},
		donations: map[uuid.UUID]model.Donation{},
		receipts:  map[uuid.UUID]model.Receipt{},
	}
}

func (r *MemoryRepository) Create(ctx context.Context, d *model.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.donations {
		if x.DonationMerchantOrderID == d.DonationMerchantOrderID {
			return ErrDuplicateOrderID
		}
	}
	if d.DonationID == uuid.Nil {
		d.DonationID = uuid.New()
	}
	now := time.Now()
	if d.DonationCreatedAt.IsZero() {
		d.DonationCreatedAt = now
	}
	d.DonationUpdatedAt = now
	if d.DonationStatus == "" {
		d.DonationStatus = model.DonationStatusPending
	}
	r.donations[d.DonationID] = *d
	return nil
}

func (r *MemoryRepository) AttachSession(ctx context.Context, id uuid.UUID, gatewayOrderID, redirectURL string, raw datatypes.JSONMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok || d.DonationStatus != model.DonationStatusPending {
		return nil
	}
	if gatewayOrderID != "" {
		d.DonationGatewayOrderID = &gatewayOrderID
	}
	d.DonationRedirectURL = &redirectURL
	d.DonationGatewayMeta = raw
	r.donations[id] = d
	return nil
}

func (r *MemoryRepository) MerchantOrderIDExists(ctx context.Context, merchantOrderID string) (bool, error) {
	_, err := r.FindByMerchantOrderID(ctx, merchantOrderID)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Donation, error) {
	return r.find(func(d model.Donation) bool { return d.DonationMerchantOrderID == merchantOrderID })
}

func (r *MemoryRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Donation, error) {
	return r.find(func(d model.Donation) bool {
		return d.DonationGatewayOrderID != nil && *d.DonationGatewayOrderID == gatewayOrderID
	})
}

func (r *MemoryRepository) find(match func(model.Donation) bool) (*model.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.donations {
		if match(d) {
			cp := d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListStalePending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]model.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Donation
	for _, d := range r.donations {
		if d.DonationStatus != model.DonationStatusPending || !d.DonationCreatedAt.Before(createdBefore) {
			continue
		}
		if !createdAfter.IsZero() && d.DonationCreatedAt.Before(createdAfter) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DonationCreatedAt.Before(out[j].DonationCreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]model.Donation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.Donation
	for _, d := range r.donations {
		if d.DonationDonorID == donorID {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DonationCreatedAt.After(all[j].DonationCreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *MemoryRepository) FindReceipt(ctx context.Context, donationID uuid.UUID) (*model.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[donationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rc, nil
}

func (r *MemoryRepository) WithLock(ctx context.Context, id uuid.UUID, fn func(tx Tx, d *model.Donation) error) error {
	r.mu.Lock()
	row, ok := r.rowLocks[id]
	if !ok {
		row = &sync.Mutex{}
		r.rowLocks[id] = row
	}
	r.mu.Unlock()

	row.Lock()
	defer row.Unlock()

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	tx := &memoryTx{repo: r}
	if err := fn(tx, current); err != nil {
		return err
	}
	return tx.commit()
}

func (r *MemoryRepository) LogEvent(ctx context.Context, ev *model.GatewayEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.GatewayEventID == uuid.Nil {
		ev.GatewayEventID = uuid.New()
	}
	r.events = append(r.events, *ev)
	return nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, status string, limit, offset int) ([]model.GatewayEvent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.GatewayEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if status == "" || r.events[i].GatewayEventStatus == status {
			out = append(out, r.events[i])
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// Events returns every logged event in insertion order.
func (r *MemoryRepository) Events() []model.GatewayEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.GatewayEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) ReceiptCount(donationID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.receipts[donationID]; ok {
		return 1
	}
	return 0
}

type memoryTx struct {
	repo     *MemoryRepository
	saved    *model.Donation
	receipts []model.Receipt
}

func (t *memoryTx) Save(ctx context.Context, d *model.Donation) error {
	cp := *d
	cp.DonationUpdatedAt = time.Now()
	t.saved = &cp
	return nil
}

func (t *memoryTx) FindReceipt(ctx context.Context, donationID uuid.UUID) (*model.Receipt, error) {
	for _, rc := range t.receipts {
		if rc.ReceiptDonationID == donationID {
			cp := rc
			return &cp, nil
		}
	}
	return t.repo.FindReceipt(ctx, donationID)
}

func (t *memoryTx) ReceiptNumberExists(ctx context.Context, number string) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, rc := range t.repo.receipts {
		if rc.ReceiptNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) CreateReceipt(ctx context.Context, rc *model.Receipt) error {
	if rc.ReceiptID == uuid.Nil {
		rc.ReceiptID = uuid.New()
	}
	t.receipts = append(t.receipts, *rc)
	return nil
}

func (t *memoryTx) commit() error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[uuid.UUID]bool{}
	for _, rc := range t.receipts {
		if _, exists := r.receipts[rc.ReceiptDonationID]; exists || seen[rc.ReceiptDonationID] {
			return ErrDuplicateReceipt
		}
		for _, other := range r.receipts {
			if other.ReceiptNumber == rc.ReceiptNumber {
				return ErrDuplicateReceipt
			}
		}
		seen[rc.ReceiptDonationID] = true
	}

	for _, rc := range t.receipts {
		r.receipts[rc.ReceiptDonationID] = rc
	}
	if t.saved != nil {
		r.donations[t.saved.DonationID] = *t.saved
	}
	return nil
}
