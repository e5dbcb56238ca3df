package controller_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/features/donations/donations/controller"
	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/donations/donations/service"
	donorModel "templeseva_backend/internals/features/donations/donors/model"
	donorRepo "templeseva_backend/internals/features/donations/donors/repository"
	donorService "templeseva_backend/internals/features/donations/donors/service"
	"templeseva_backend/internals/features/notifications/mailer"
	"templeseva_backend/internals/features/payment/gateway"
	"templeseva_backend/internals/features/payment/normalizer"
	authMw "templeseva_backend/internals/middlewares/auth"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubGateway struct {
	mu         sync.Mutex
	sessionErr error
	statusErr  error
	status     map[string]any
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return &gateway.SessionResult{GatewayOrderID: "GW-" + req.MerchantOrderID, RedirectURL: "https://pay.example/" + req.MerchantOrderID}, nil
}

func (g *stubGateway) GetOrderStatus(ctx context.Context, merchantOrderID, payerID string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return &gateway.StatusResult{Raw: g.status}, nil
}

func (g *stubGateway) Refund(ctx context.Context, merchantOrderID string, amount *decimal.Decimal) (*gateway.RefundResult, error) {
	return &gateway.RefundResult{Raw: map[string]any{}}, nil
}

type noClaims struct{}

func (noClaims) IssueMagicLink(ctx context.Context, donorID uuid.UUID) (string, error) {
	return "https://temple.example/claim?token=x", nil
}

type testEnv struct {
	app       *fiber.App
	processor *service.Processor
	repo  *repository.MemoryRepository
	gw    *stubGateway
	mail  *mailer.RecordingTransport
	donor donorModel.Donor
}

var headerAuth = configs.WebhookAuthConfig{HeaderKey: "X-Webhook-Token", HeaderValue: "s3cret", UnauthenticatedPolicy: configs.WebhookPolicyReject}

func newEnv(t *testing.T, auth configs.WebhookAuthConfig) *testEnv {
	t.Helper()
	return newEnvWithTable(t, auth, normalizer.DefaultTable)
}

func newEnvWithTable(t *testing.T, auth configs.WebhookAuthConfig, table normalizer.Table) *testEnv {
	t.Helper()
	log := zap.NewNop()
	env := &testEnv{
		repo: repository.NewMemoryRepository(),
		gw:   &stubGateway{status: map[string]any{}},
		mail: &mailer.RecordingTransport{},
	}

	dr := donorRepo.NewMemoryRepository()
	donors := donorService.NewService(dr, log)
	email := "devotee@example.com"
	env.donor = donorModel.Donor{DonorID: uuid.New(), DonorEmail: &email, DonorName: "Devotee"}
	dr.Put(env.donor)

	notifier := mailer.NewNotifier(env.mail, "seva@temple.example", "", log)
	sm := service.NewStateMachine(env.repo, donors, noClaims{}, notifier, "TSV", log)
	processor := service.NewProcessor(env.repo, sm, env.gw, table, time.Second, log)
	sessions := service.NewSessionCreator(env.repo, donors, sm, env.gw, service.SessionConfig{
		OrderIDPrefix: "DON", Currency: "INR", ReturnURL: "https://temple.example/return", Timeout: time.Second,
	}, log)
	v := validator.New()

	app := fiber.New(fiber.Config{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal})
	donationCtrl := controller.NewDonationController(sessions, env.repo, v, log)
	paymentCtrl := controller.NewPaymentController(processor, "https://temple.example", log)
	webhookAuth := controller.NewWebhookAuth(auth, "merchant-key", log)
	donorCtrl := controller.NewDonorDonationController(env.repo, donors)

	app.Post("/donations", donationCtrl.Create)
	app.Get("/donations/:merchant_order_id/status", donationCtrl.Status)
	app.Post("/webhook", webhookAuth.Handler(), paymentCtrl.Webhook)
	app.Get("/return", paymentCtrl.Return)

	// stands in for DonorAuth: the X-Donor header carries the signed-in id
	u := app.Group("/u", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Get("X-Donor"))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(authMw.LocalDonorID, id)
		return c.Next()
	})
	u.Get("/donations", donorCtrl.List)
	u.Get("/donations/:id/receipt", donorCtrl.Receipt)

	env.app = app
	env.processor = processor
	return env
}

func (e *testEnv) pending(t *testing.T, merchantOrderID string) *model.Donation {
	t.Helper()
	d := &model.Donation{
		DonationDonorID:         e.donor.DonorID,
		DonationMerchantOrderID: merchantOrderID,
		DonationGatewayProvider: "stub",
		DonationCustomerRef:     "devotee@example.com",
		DonationAmount:          decimal.RequireFromString("251.00"),
		DonationCurrency:        "INR",
		DonationStatus:          model.DonationStatusPending,
		DonationCreatedAt:       time.Now(),
	}
	if err := e.repo.Create(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	return d
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func webhookReq(body string, header map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return req
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

var authed = map[string]string{"X-Webhook-Token": "s3cret"}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	env := newEnv(t, headerAuth)
	d := env.pending(t, "DON1")
	body := `{"event":"ORDER_CHARGED","order":{"id":"DON1","status":"CHARGED"},"payment_method":"UPI"}`

	for i := 0; i < 2; i++ {
		code, resp := env.do(t, webhookReq(body, authed))
		if code != fiber.StatusOK {
			t.Fatalf("delivery %d: %d %s", i+1, code, resp)
		}
	}
	if env.repo.ReceiptCount(d.DonationID) != 1 {
		t.Fatal("expected exactly one receipt")
	}

	receipts := 0
	for _, m := range env.mail.Sent() {
		if len(m.To) == 1 && m.To[0] == "devotee@example.com" {
			receipts++
		}
	}
	if receipts != 1 {
		t.Fatalf("receipt emails = %d, want 1", receipts)
	}
}

func TestWebhook_Outcomes(t *testing.T) {
	env := newEnv(t, headerAuth)
	env.pending(t, "DON2")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unmatched", `{"order_id":"SOMEONE_ELSE","status":"CHARGED"}`, fiber.StatusAccepted},
		{"pending acknowledged", `{"order_id":"DON2","status":"PENDING_VBV"}`, fiber.StatusAccepted},
		{"malformed", `{"order_id":`, fiber.StatusBadRequest},
		{"not an object", `[1,2]`, fiber.StatusBadRequest},
		{"no correlation", `{"status":"CHARGED"}`, fiber.StatusBadRequest},
		{"unknown token acknowledged", `{"order_id":"DON2","status":"AUTHENTICATION_FAILED"}`, fiber.StatusAccepted},
		{"failed", `{"order_id":"DON2","status":"FAILED"}`, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, body := env.do(t, webhookReq(tc.body, authed)); code != tc.want {
				t.Fatalf("status %d, want %d: %s", code, tc.want, body)
			}
		})
	}
}

func TestWebhook_Auth(t *testing.T) {
	cfg := configs.WebhookAuthConfig{
		BasicUser: "hook", BasicPass: "pw",
		AllowMerchantBasic: true,
		HeaderKey:          "X-Webhook-Token", HeaderValue: "s3cret",
	}
	env := newEnv(t, cfg)
	env.pending(t, "DON3")
	body := `{"order_id":"DON3","status":"PENDING"}`

	cases := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"none", nil, fiber.StatusUnauthorized},
		{"wrong header", map[string]string{"X-Webhook-Token": "nope"}, fiber.StatusUnauthorized},
		{"wrong basic", map[string]string{"Authorization": basic("hook", "bad")}, fiber.StatusUnauthorized},
		{"header", authed, fiber.StatusAccepted},
		{"basic", map[string]string{"Authorization": basic("hook", "pw")}, fiber.StatusAccepted},
		{"merchant basic", map[string]string{"Authorization": basic("merchant-key", "")}, fiber.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, resp := env.do(t, webhookReq(body, tc.header)); code != tc.want {
				t.Fatalf("status %d, want %d: %s", code, tc.want, resp)
			}
		})
	}
}

func TestWebhook_UnauthenticatedPolicy(t *testing.T) {
	body := `{"order_id":"DON4","status":"PENDING"}`

	reject := newEnv(t, configs.WebhookAuthConfig{UnauthenticatedPolicy: configs.WebhookPolicyReject})
	reject.pending(t, "DON4")
	if code, _ := reject.do(t, webhookReq(body, nil)); code != fiber.StatusUnauthorized {
		t.Fatalf("reject policy: %d", code)
	}

	accept := newEnv(t, configs.WebhookAuthConfig{UnauthenticatedPolicy: configs.WebhookPolicyAccept})
	accept.pending(t, "DON4")
	if code, _ := accept.do(t, webhookReq(body, nil)); code != fiber.StatusAccepted {
		t.Fatalf("accept policy: %d", code)
	}
}

func midtransNotice(orderID, transactionStatus, serverKey string) string {
	statusCode, gross := "200", "251.00"
	sum := sha512.Sum512([]byte(orderID + statusCode + gross + serverKey))
	return fmt.Sprintf(`{"order_id":%q,"status_code":%q,"gross_amount":%q,"transaction_status":%q,"transaction_id":"tx-1","payment_type":"qris","signature_key":%q}`,
		orderID, statusCode, gross, transactionStatus, hex.EncodeToString(sum[:]))
}

func TestWebhook_MidtransSignature(t *testing.T) {
	env := newEnvWithTable(t, configs.WebhookAuthConfig{MidtransServerKey: "SB-server", UnauthenticatedPolicy: configs.WebhookPolicyReject}, normalizer.MidtransTable)
	d := env.pending(t, "DON6")

	forged := midtransNotice("DON6", "settlement", "other-key")
	if code, _ := env.do(t, webhookReq(forged, nil)); code != fiber.StatusUnauthorized {
		t.Fatalf("forged signature: %d", code)
	}
	if got, _ := env.repo.FindByID(context.Background(), d.DonationID); got.DonationStatus != model.DonationStatusPending {
		t.Fatalf("forged notice changed status to %s", got.DonationStatus)
	}

	code, resp := env.do(t, webhookReq(midtransNotice("DON6", "settlement", "SB-server"), nil))
	if code != fiber.StatusOK {
		t.Fatalf("signed notice: %d %s", code, resp)
	}
	if got, _ := env.repo.FindByID(context.Background(), d.DonationID); got.DonationStatus != model.DonationStatusSuccess {
		t.Fatalf("status = %s", got.DonationStatus)
	}
}

func TestWebhook_RazorpaySignature(t *testing.T) {
	env := newEnvWithTable(t, configs.WebhookAuthConfig{RazorpaySecret: "whsec", UnauthenticatedPolicy: configs.WebhookPolicyReject}, normalizer.RazorpayTable)
	d := env.pending(t, "DON7")
	body := `{"entity":"event","event":"order.paid","payload":{` +
		`"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured","method":"upi"}},` +
		`"order":{"entity":{"id":"order_1","receipt":"DON7","status":"paid"}}}}`

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write([]byte(body))
	signature := hex.EncodeToString(mac.Sum(nil))

	if code, _ := env.do(t, webhookReq(body, map[string]string{"X-Razorpay-Signature": strings.Repeat("0", len(signature))})); code != fiber.StatusUnauthorized {
		t.Fatalf("bad signature: %d", code)
	}
	code, resp := env.do(t, webhookReq(body, map[string]string{"X-Razorpay-Signature": signature}))
	if code != fiber.StatusOK {
		t.Fatalf("signed event: %d %s", code, resp)
	}
	if got, _ := env.repo.FindByID(context.Background(), d.DonationID); got.DonationStatus != model.DonationStatusSuccess {
		t.Fatalf("status = %s", got.DonationStatus)
	}
}

func TestCreateDonation(t *testing.T) {
	env := newEnv(t, headerAuth)
	post := func(body string) (int, string) {
		req := httptest.NewRequest(http.MethodPost, "/donations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return env.do(t, req)
	}

	code, body := post(`{"name":"Sita Devi","email":"sita@example.com","amount":"501","purpose":"Annadanam","merchant_order_id":"SEVA-1"}`)
	if code != fiber.StatusCreated || !strings.Contains(body, `"redirect_url":"https://pay.example/SEVA1"`) {
		t.Fatalf("create: %d %s", code, body)
	}

	if code, body := post(`{"name":"Sita Devi","amount":"501"}`); code != fiber.StatusUnprocessableEntity || !strings.Contains(body, `"email"`) {
		t.Fatalf("missing contact: %d %s", code, body)
	}
	if code, body := post(`{"name":"Sita","email":"sita@example.com","amount":"1.005"}`); code != fiber.StatusUnprocessableEntity || !strings.Contains(body, `"amount"`) {
		t.Fatalf("bad amount: %d %s", code, body)
	}

	env.gw.sessionErr = &gateway.GatewayError{Op: "session", StatusCode: 500, RawResponseSnippet: "upstream exploded"}
	code, body = post(`{"name":"Sita","email":"sita@example.com","amount":"10","merchant_order_id":"SEVA2"}`)
	if code != fiber.StatusBadGateway || !strings.Contains(body, "SEVA2") || strings.Contains(body, "exploded") {
		t.Fatalf("gateway failure: %d %s", code, body)
	}

	code, body = env.do(t, httptest.NewRequest(http.MethodGet, "/donations/SEVA2/status", nil))
	if code != fiber.StatusOK || !strings.Contains(body, `"status":"FAILED"`) {
		t.Fatalf("status: %d %s", code, body)
	}
}

func TestReturn(t *testing.T) {
	env := newEnv(t, headerAuth)
	env.pending(t, "DON5")

	env.gw.statusErr = &gateway.GatewayError{Op: "status", StatusCode: 503}
	req := httptest.NewRequest(http.MethodGet, "/return?order_id=DON5", nil)
	req.Header.Set("Accept", "application/json")
	code, body := env.do(t, req)
	if code != fiber.StatusOK || !strings.Contains(body, `"confirmed":false`) || !strings.Contains(body, `"status":"PENDING"`) {
		t.Fatalf("gateway down: %d %s", code, body)
	}

	env.gw.statusErr = nil
	env.gw.status = map[string]any{"order_id": "DON5", "status": "CHARGED"}
	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/return?order_id=DON5", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	loc := resp.Header.Get("Location")
	if resp.StatusCode != fiber.StatusSeeOther || !strings.Contains(loc, "status=SUCCESS") {
		t.Fatalf("redirect: %d %s", resp.StatusCode, loc)
	}

	if code, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/return", nil)); code != fiber.StatusBadRequest {
		t.Fatalf("missing order_id: %d", code)
	}
}

func TestDonorReceipt(t *testing.T) {
	env := newEnv(t, headerAuth)
	d := env.pending(t, "DON6")

	get := func(path, donor string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Donor", donor)
		return env.do(t, req)
	}
	receiptPath := "/u/donations/" + d.DonationID.String() + "/receipt"

	if code, _ := get(receiptPath, env.donor.DonorID.String()); code != fiber.StatusConflict {
		t.Fatalf("unpaid receipt: %d", code)
	}
	if code, _ := env.do(t, webhookReq(`{"order_id":"DON6","status":"CHARGED"}`, authed)); code != fiber.StatusOK {
		t.Fatalf("webhook: %d", code)
	}

	code, body := get(receiptPath, env.donor.DonorID.String())
	if code != fiber.StatusOK || !strings.Contains(body, `"receipt_number":"TSV-`) {
		t.Fatalf("receipt: %d %s", code, body)
	}
	if code, _ := get(receiptPath, uuid.NewString()); code != fiber.StatusNotFound {
		t.Fatalf("foreign donor: %d", code)
	}

	code, body = get("/u/donations?per_page=5", env.donor.DonorID.String())
	if code != fiber.StatusOK || !strings.Contains(body, `"total":1`) {
		t.Fatalf("list: %d %s", code, body)
	}
}

func TestAdminReconcile_OutlivesRequestDeadline(t *testing.T) {
	env := newEnv(t, headerAuth)
	d := env.pending(t, "DON8")
	env.gw.status = map[string]any{"status": "CHARGED", "order_id": "DON8"}

	log := zap.NewNop()
	admin := controller.NewAdminController(env.repo,
		service.NewReconciler(env.repo, env.processor, service.ReconcileOptions{}, log),
		service.NewRefundService(env.repo, env.gw, time.Second, log),
		validator.New(), log)

	app := fiber.New(fiber.Config{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal})
	// the request deadline has already passed when the handler runs
	app.Post("/reconcile", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}, admin.Reconcile)

	req := httptest.NewRequest(http.MethodPost, "/reconcile", strings.NewReader(`{"older_than":"0s"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(b), `"checked":1`) || !strings.Contains(string(b), `"interrupted":false`) {
		t.Fatalf("%d %s", resp.StatusCode, b)
	}
	if got, _ := env.repo.FindByID(context.Background(), d.DonationID); got.DonationStatus != model.DonationStatusSuccess {
		t.Fatalf("status = %s", got.DonationStatus)
	}
}
