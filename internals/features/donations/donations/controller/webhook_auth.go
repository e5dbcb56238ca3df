package controller

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"templeseva_backend/internals/configs"
	helper "templeseva_backend/internals/helpers"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"go.uber.org/zap"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// WebhookAuth checks an inbound notification against every configured
// scheme. Any one match is enough.
type WebhookAuth struct {
	cfg         configs.WebhookAuthConfig
	merchantKey string
	log         *zap.Logger
}

// NewWebhookAuth takes the merchant API key used by the merchant basic scheme.
func NewWebhookAuth(cfg configs.WebhookAuthConfig, merchantKey string, log *zap.Logger) *WebhookAuth {
	if !cfg.HasScheme() {
		log.Warn("no webhook auth scheme configured", zap.String("policy", cfg.UnauthenticatedPolicy))
	}
	return &WebhookAuth{cfg: cfg, merchantKey: merchantKey, log: log.Named("webhook_auth")}
}

// Handler guards the webhook route. Header and signature schemes are tried
// first; a request none of them accepts must carry valid Basic credentials.
func (a *WebhookAuth) Handler() fiber.Handler {
	return basicauth.New(basicauth.Config{
		Next:         a.passedWithoutBasic,
		Authorizer:   a.authorizeBasic,
		Unauthorized: a.reject,
	})
}

func (a *WebhookAuth) passedWithoutBasic(c *fiber.Ctx) bool {
	if !a.cfg.HasScheme() {
		return a.cfg.UnauthenticatedPolicy == configs.WebhookPolicyAccept
	}
	if a.cfg.HeaderKey != "" && a.cfg.HeaderValue != "" && equal(c.Get(a.cfg.HeaderKey), a.cfg.HeaderValue) {
		return true
	}
	if a.cfg.MidtransServerKey != "" && midtransSigned(c.Body(), a.cfg.MidtransServerKey) {
		return true
	}
	if a.cfg.RazorpaySecret != "" && razorpaySigned(c.Body(), c.Get(razorpaySignatureHeader), a.cfg.RazorpaySecret) {
		return true
	}
	return false
}

func (a *WebhookAuth) authorizeBasic(user, pass string) bool {
	if a.cfg.BasicUser != "" && a.cfg.BasicPass != "" {
		if equal(user, a.cfg.BasicUser) && equal(pass, a.cfg.BasicPass) {
			return true
		}
	}
	// HDFC signs with the merchant key as user and an empty password.
	if a.cfg.AllowMerchantBasic && a.merchantKey != "" {
		if equal(user, a.merchantKey) && pass == "" {
			return true
		}
	}
	return false
}

func (a *WebhookAuth) reject(c *fiber.Ctx) error {
	a.log.Warn("webhook rejected", zap.String("ip", c.IP()))
	return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
}

type midtransSignature struct {
	OrderID      string `json:"order_id"`
	StatusCode   string `json:"status_code"`
	GrossAmount  string `json:"gross_amount"`
	SignatureKey string `json:"signature_key"`
}

// midtransSigned checks signature_key = SHA512(order_id + status_code + gross_amount + server key).
func midtransSigned(body []byte, serverKey string) bool {
	var n midtransSignature
	if len(body) == 0 || sonic.Unmarshal(body, &n) != nil || n.SignatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	return equal(hex.EncodeToString(sum[:]), strings.ToLower(n.SignatureKey))
}

// razorpaySigned checks the hex HMAC-SHA256 of the raw body.
func razorpaySigned(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(strings.ToLower(signature)))
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
