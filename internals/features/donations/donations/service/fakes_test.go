package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	donorModel "templeseva_backend/internals/features/donations/donors/model"
	donorRepo "templeseva_backend/internals/features/donations/donors/repository"
	donorService "templeseva_backend/internals/features/donations/donors/service"
	"templeseva_backend/internals/features/notifications/mailer"
	"templeseva_backend/internals/features/payment/gateway"
	"templeseva_backend/internals/features/payment/normalizer"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu         sync.Mutex
	sessionErr error
	session    *gateway.SessionResult
	statuses   map[string]map[string]any
	statusErr  map[string]error
	refundErr  error
	polled     []string
	refunds    []decimal.Decimal
	sessions   []gateway.SessionRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]map[string]any{}, statusErr: map[string]error{}}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, req)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	if g.session != nil {
		return g.session, nil
	}
	return &gateway.SessionResult{
		GatewayOrderID: "GW-" + req.MerchantOrderID,
		RedirectURL:    "https://pay.example/" + req.MerchantOrderID,
		Raw:            map[string]any{"id": "GW-" + req.MerchantOrderID},
	}, nil
}

func (g *fakeGateway) GetOrderStatus(ctx context.Context, merchantOrderID, payerID string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polled = append(g.polled, merchantOrderID)
	if err := g.statusErr[merchantOrderID]; err != nil {
		return nil, err
	}
	return &gateway.StatusResult{Raw: g.statuses[merchantOrderID]}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, *amount)
	return &gateway.RefundResult{Raw: map[string]any{"status": "PENDING"}}, nil
}

func (g *fakeGateway) Polled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.polled...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	receipts []mailer.ReceiptMessage
	alerts   int
}

func (n *fakeNotifier) SendReceipt(ctx context.Context, m mailer.ReceiptMessage) mailer.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, m)
	return mailer.Result{Outcome: mailer.Sent}
}

func (n *fakeNotifier) SendAdminPaymentAlert(ctx context.Context, m mailer.ReceiptMessage) mailer.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts++
	return mailer.Result{Outcome: mailer.Sent}
}

func (n *fakeNotifier) Receipts() []mailer.ReceiptMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]mailer.ReceiptMessage(nil), n.receipts...)
}

type fakeClaims struct {
	mu     sync.Mutex
	issued int
}

func (c *fakeClaims) IssueMagicLink(ctx context.Context, donorID uuid.UUID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return "https://temple.example/claim?token=t" + donorID.String(), nil
}

type harness struct {
	repo      *repository.MemoryRepository
	donorRepo *donorRepo.MemoryRepository
	donors    *donorService.Service
	gw        *fakeGateway
	notifier  *fakeNotifier
	claims    *fakeClaims
	sm        *StateMachine
	processor *Processor
	donor     donorModel.Donor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		repo:      repository.NewMemoryRepository(),
		donorRepo: donorRepo.NewMemoryRepository(),
		gw:        newFakeGateway(),
		notifier:  &fakeNotifier{},
		claims:    &fakeClaims{},
	}
	h.donors = donorService.NewService(h.donorRepo, log)
	email := "devotee@example.com"
	h.donor = donorModel.Donor{DonorID: uuid.New(), DonorEmail: &email, DonorName: "Devotee"}
	h.donorRepo.Put(h.donor)

	h.sm = NewStateMachine(h.repo, h.donors, h.claims, h.notifier, "TSV", log)
	h.processor = NewProcessor(h.repo, h.sm, h.gw, normalizer.DefaultTable, time.Second, log)
	return h
}

// pending stores a PENDING donation created age ago.
func (h *harness) pending(t *testing.T, merchantOrderID string, age time.Duration) *model.Donation {
	t.Helper()
	d := &model.Donation{
		DonationDonorID:         h.donor.DonorID,
		DonationMerchantOrderID: merchantOrderID,
		DonationGatewayProvider: "fake",
		DonationCustomerRef:     "devotee@example.com",
		DonationAmount:          decimal.RequireFromString("501.00"),
		DonationCurrency:        "INR",
		DonationPurpose:         "Annadanam",
		DonationStatus:          model.DonationStatusPending,
		DonationCreatedAt:       time.Now().Add(-age),
	}
	if err := h.repo.Create(context.Background(), d); err != nil {
		t.Fatalf("create donation: %v", err)
	}
	return d
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *model.Donation {
	t.Helper()
	d, err := h.repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return d
}

func (h *harness) eventsWithStatus(status string) []model.GatewayEvent {
	var out []model.GatewayEvent
	for _, ev := range h.repo.Events() {
		if ev.GatewayEventStatus == status {
			out = append(out, ev)
		}
	}
	return out
}
