package controller_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	donorModel "templeseva_backend/internals/features/donations/donors/model"
	donorRepo "templeseva_backend/internals/features/donations/donors/repository"
	donorService "templeseva_backend/internals/features/donations/donors/service"
	"templeseva_backend/internals/features/notifications/mailer"
	"templeseva_backend/internals/features/users/auth/controller"
	"templeseva_backend/internals/features/users/auth/repository"
	"templeseva_backend/internals/features/users/auth/service"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var codePattern = regexp.MustCompile(`code is (\d{6})`)

type authEnv struct {
	app    *fiber.App
	tokens *service.TokenService
	mail   *mailer.RecordingTransport
	donor  donorModel.Donor
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	log := zap.NewNop()
	env := &authEnv{mail: &mailer.RecordingTransport{}}

	dr := donorRepo.NewMemoryRepository()
	email := "devotee@example.com"
	norm := email
	env.donor = donorModel.Donor{DonorID: uuid.New(), DonorEmail: &email, DonorEmailNorm: &norm, DonorName: "Devotee"}
	dr.Put(env.donor)
	donors := donorService.NewService(dr, log)

	env.tokens = service.NewTokenService(repository.NewMemoryRepository(), donors,
		mailer.NewNotifier(env.mail, "seva@temple.example", "", log),
		service.Config{
			SiteBaseURL:    "https://temple.example",
			MagicLinkTTL:   30 * time.Minute,
			OTPTTL:         10 * time.Minute,
			OTPMaxAttempts: 3,
			JWTSecret:      "test-secret",
			JWTTTL:         time.Hour,
			BcryptCost:     bcrypt.MinCost,
		}, log)

	ctrl := controller.NewAuthController(env.tokens, donors, validator.New(), false, log)
	app := fiber.New(fiber.Config{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal})
	app.Post("/otp/request", ctrl.RequestOtp)
	app.Post("/otp/verify", ctrl.VerifyOtp)
	app.Get("/claim", ctrl.Claim)
	env.app = app
	return env
}

func (e *authEnv) post(t *testing.T, path, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.send(t, req)
}

func (e *authEnv) send(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func sessionCookie(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		if ck.Name == controller.SessionCookie {
			return ck.Value
		}
	}
	return ""
}

func TestOtpFlow(t *testing.T) {
	env := newAuthEnv(t)

	resp, body := env.post(t, "/otp/request", `{"email":"Devotee@Example.com"}`)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("request: %d %s", resp.StatusCode, body)
	}
	sent := env.mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("mails = %d", len(sent))
	}
	m := codePattern.FindStringSubmatch(sent[0].Body)
	if m == nil {
		t.Fatalf("no code in %q", sent[0].Body)
	}
	code := m[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if resp, _ := env.post(t, "/otp/verify", `{"email":"devotee@example.com","code":"`+wrong+`"}`); resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("wrong code: %d", resp.StatusCode)
	}

	resp, body = env.post(t, "/otp/verify", `{"email":"devotee@example.com","code":"`+code+`"}`)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(body, `"access_token"`) {
		t.Fatalf("verify: %d %s", resp.StatusCode, body)
	}
	tok := sessionCookie(resp)
	id, err := env.tokens.ParseDonorID(tok)
	if err != nil || id != env.donor.DonorID {
		t.Fatalf("cookie token: %v %v", id, err)
	}

	if resp, _ := env.post(t, "/otp/verify", `{"email":"devotee@example.com","code":"`+code+`"}`); resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("reused code: %d", resp.StatusCode)
	}
}

func TestOtpRequest_UnknownEmailLooksTheSame(t *testing.T) {
	env := newAuthEnv(t)
	resp, _ := env.post(t, "/otp/request", `{"email":"stranger@example.com"}`)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(env.mail.Sent()) != 0 {
		t.Fatal("mail sent to unknown address")
	}
	if resp, _ := env.post(t, "/otp/request", `{"email":"not-an-email"}`); resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("invalid email: %d", resp.StatusCode)
	}
}

func TestClaim(t *testing.T) {
	env := newAuthEnv(t)
	link, err := env.tokens.IssueMagicLink(context.Background(), env.donor.DonorID)
	if err != nil {
		t.Fatal(err)
	}
	path := strings.TrimPrefix(link, "https://temple.example")

	resp, body := env.send(t, httptest.NewRequest(http.MethodGet, path, nil))
	if resp.StatusCode != fiber.StatusOK || sessionCookie(resp) == "" {
		t.Fatalf("claim: %d %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"is_claimed":true`) {
		t.Fatalf("donor not marked claimed: %s", body)
	}

	if resp, _ := env.send(t, httptest.NewRequest(http.MethodGet, path, nil)); resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("second claim: %d", resp.StatusCode)
	}
	if resp, _ := env.send(t, httptest.NewRequest(http.MethodGet, "/claim", nil)); resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("missing token: %d", resp.StatusCode)
	}
}
