package configs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =======================
// CONFIG STRUCTS
// =======================

type Config struct {
	Env  string
	Port string

	Database  DatabaseConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Webhook   WebhookAuthConfig
	Reconcile ReconcileConfig
	Mail      MailConfig
	Tokens    TokenConfig

	SiteBaseURL   string
	Timezone      string
	AdminAPIKey   string
	ReceiptPrefix string
	OrderIDPrefix string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// AutoMigrate runs gorm AutoMigrate at startup.
	AutoMigrate bool
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=templeseva&options=-c statement_timeout=5000",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type GatewayConfig struct {
	Provider  string // hdfc | midtrans | razorpay
	Timeout   time.Duration
	ReturnURL string
	Currency  string

	HDFC     HDFCConfig
	Midtrans MidtransConfig
	Razorpay RazorpayConfig
}

type HDFCConfig struct {
	BaseURL             string
	APIKey              string
	APIKeyTrailingColon bool
	MerchantID          string
	ResellerID          string
	PaymentPageClientID string
}

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

type RazorpayConfig struct {
	KeyID       string
	KeySecret   string
	CheckoutURL string
}

// WebhookAuthConfig holds every scheme the webhook accepts. A request passes
// when any configured scheme matches.
type WebhookAuthConfig struct {
	BasicUser          string
	BasicPass          string
	AllowMerchantBasic bool
	HeaderKey          string
	HeaderValue        string
	// MidtransServerKey enables the Midtrans signature_key check
	// (SHA512 of order_id, status_code, gross_amount and the key).
	MidtransServerKey string
	// RazorpaySecret enables the X-Razorpay-Signature HMAC check.
	RazorpaySecret string
	// UnauthenticatedPolicy applies only when no scheme is configured: "reject" or "accept".
	UnauthenticatedPolicy string
}

func (w WebhookAuthConfig) HasScheme() bool {
	return (w.BasicUser != "" && w.BasicPass != "") ||
		(w.HeaderKey != "" && w.HeaderValue != "") ||
		w.AllowMerchantBasic ||
		w.MidtransServerKey != "" ||
		w.RazorpaySecret != ""
}

type ReconcileConfig struct {
	OlderThan time.Duration
	MaxAge    time.Duration
	BatchSize int
	Cron      string
}

type MailConfig struct {
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	From        string
	AdminNotify string
}

func (m MailConfig) Enabled() bool { return m.SMTPHost != "" }

type TokenConfig struct {
	MagicLinkTTL   time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
}

const (
	WebhookPolicyReject = "reject"
	WebhookPolicyAccept = "accept"
)

// =======================
// ENV LOADER
// =======================

func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("[CONFIG] .env not found, using system environment")
		} else {
			log.Println("[CONFIG] .env loaded")
		}
	} else {
		log.Println("[CONFIG] running on Railway, using system environment")
	}
}

// Load reads the environment into a Config. It does not validate; call Validate.
func Load() *Config {
	LoadEnv()

	cfg := &Config{
		Env:  GetEnv("APP_ENV", "production"),
		Port: GetEnv("PORT", "3000"),
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST"),
			Port:     GetEnv("DB_PORT", "5432"),
			User:     GetEnv("DB_USER"),
			Password: GetEnv("DB_PASSWORD"),
			Name:     GetEnv("DB_NAME"),
			SSLMode:  GetEnv("DB_SSLMODE", "require"),

			AutoMigrate: GetBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			Secret: GetEnv("JWT_SECRET"),
			TTL:    GetDuration("JWT_TTL", 24*time.Hour),
		},
		Gateway: GatewayConfig{
			Provider:  strings.ToLower(GetEnv("PAYMENT_PROVIDER", "hdfc")),
			Timeout:   GetDuration("GATEWAY_TIMEOUT", 30*time.Second),
			ReturnURL: GetEnv("PAYMENT_RETURN_URL"),
			Currency:  strings.ToUpper(GetEnv("PAYMENT_CURRENCY", "INR")),
			HDFC: HDFCConfig{
				BaseURL:             strings.TrimRight(GetEnv("HDFC_BASE_URL", "https://smartgatewayuat.hdfcbank.com"), "/"),
				APIKey:              GetEnv("HDFC_API_KEY"),
				APIKeyTrailingColon: GetBool("HDFC_API_KEY_TRAILING_COLON", true),
				MerchantID:          GetEnv("HDFC_MERCHANT_ID"),
				ResellerID:          GetEnv("HDFC_RESELLER_ID", "hdfc_reseller"),
				PaymentPageClientID: GetEnv("HDFC_PAYMENT_PAGE_CLIENT_ID"),
			},
			Midtrans: MidtransConfig{
				ServerKey:  GetEnv("MIDTRANS_SERVER_KEY"),
				Production: GetBool("MIDTRANS_PRODUCTION", false),
			},
			Razorpay: RazorpayConfig{
				KeyID:       GetEnv("RAZORPAY_KEY_ID"),
				KeySecret:   GetEnv("RAZORPAY_KEY_SECRET"),
				CheckoutURL: GetEnv("RAZORPAY_CHECKOUT_URL"),
			},
		},
		Webhook: WebhookAuthConfig{
			BasicUser:             GetEnv("WEBHOOK_BASIC_USER"),
			BasicPass:             GetEnv("WEBHOOK_BASIC_PASS"),
			AllowMerchantBasic:    GetBool("WEBHOOK_ALLOW_MERCHANT_BASIC", false),
			HeaderKey:             GetEnv("WEBHOOK_HEADER_KEY"),
			HeaderValue:           GetEnv("WEBHOOK_HEADER_VALUE"),
			RazorpaySecret:        GetEnv("RAZORPAY_WEBHOOK_SECRET"),
			UnauthenticatedPolicy: strings.ToLower(GetEnv("WEBHOOK_UNAUTHENTICATED_POLICY", WebhookPolicyReject)),
		},
		Reconcile: ReconcileConfig{
			OlderThan: GetDuration("RECONCILE_OLDER_THAN", 15*time.Minute),
			MaxAge:    GetDuration("RECONCILE_MAX_AGE", 0),
			BatchSize: GetInt("RECONCILE_BATCH_SIZE", 100),
			Cron:      GetEnv("RECONCILE_CRON"),
		},
		Mail: MailConfig{
			SMTPHost:    GetEnv("SMTP_HOST"),
			SMTPPort:    GetInt("SMTP_PORT", 587),
			SMTPUser:    GetEnv("SMTP_USER"),
			SMTPPass:    GetEnv("SMTP_PASS"),
			From:        GetEnv("MAIL_FROM", "no-reply@templeseva.local"),
			AdminNotify: GetEnv("ADMIN_NOTIFY_EMAIL"),
		},
		Tokens: TokenConfig{
			MagicLinkTTL:   GetDuration("MAGIC_LINK_TTL", 30*time.Minute),
			OTPTTL:         GetDuration("OTP_TTL", 10*time.Minute),
			OTPMaxAttempts: GetInt("OTP_MAX_ATTEMPTS", 5),
		},
		SiteBaseURL:   strings.TrimRight(GetEnv("SITE_BASE_URL", "http://localhost:3000"), "/"),
		Timezone:      GetEnv("TEMPLE_TIMEZONE", "Asia/Kolkata"),
		AdminAPIKey:   GetEnv("ADMIN_API_KEY"),
		ReceiptPrefix: GetEnv("RECEIPT_PREFIX", "TSV"),
		OrderIDPrefix: GetEnv("ORDER_ID_PREFIX", "DON"),
	}
	if cfg.Gateway.Provider == "midtrans" {
		cfg.Webhook.MidtransServerKey = cfg.Gateway.Midtrans.ServerKey
	}
	return cfg
}

// Validate fails on the first group of missing or inconsistent settings.
func (c *Config) Validate() error {
	var missing []string
	need := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}

	need("DB_HOST", c.Database.Host)
	need("DB_USER", c.Database.User)
	need("DB_NAME", c.Database.Name)
	need("JWT_SECRET", c.JWT.Secret)
	need("PAYMENT_RETURN_URL", c.Gateway.ReturnURL)

	switch c.Gateway.Provider {
	case "hdfc":
		need("HDFC_API_KEY", c.Gateway.HDFC.APIKey)
		need("HDFC_MERCHANT_ID", c.Gateway.HDFC.MerchantID)
		need("HDFC_BASE_URL", c.Gateway.HDFC.BaseURL)
	case "midtrans":
		need("MIDTRANS_SERVER_KEY", c.Gateway.Midtrans.ServerKey)
	case "razorpay":
		need("RAZORPAY_KEY_ID", c.Gateway.Razorpay.KeyID)
		need("RAZORPAY_KEY_SECRET", c.Gateway.Razorpay.KeySecret)
		need("RAZORPAY_CHECKOUT_URL", c.Gateway.Razorpay.CheckoutURL)
		need("RAZORPAY_WEBHOOK_SECRET", c.Webhook.RazorpaySecret)
	default:
		return fmt.Errorf("config: unknown PAYMENT_PROVIDER %q", c.Gateway.Provider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required env: %s", strings.Join(missing, ", "))
	}

	if c.Gateway.Timeout <= 0 {
		return errors.New("config: GATEWAY_TIMEOUT must be positive")
	}
	if c.Reconcile.BatchSize <= 0 {
		return errors.New("config: RECONCILE_BATCH_SIZE must be positive")
	}
	if c.Tokens.OTPMaxAttempts <= 0 {
		return errors.New("config: OTP_MAX_ATTEMPTS must be positive")
	}

	switch c.Webhook.UnauthenticatedPolicy {
	case WebhookPolicyReject, WebhookPolicyAccept:
	default:
		return fmt.Errorf("config: WEBHOOK_UNAUTHENTICATED_POLICY must be %q or %q", WebhookPolicyReject, WebhookPolicyAccept)
	}
	if (c.Webhook.BasicUser == "") != (c.Webhook.BasicPass == "") {
		return errors.New("config: WEBHOOK_BASIC_USER and WEBHOOK_BASIC_PASS must be set together")
	}
	if (c.Webhook.HeaderKey == "") != (c.Webhook.HeaderValue == "") {
		return errors.New("config: WEBHOOK_HEADER_KEY and WEBHOOK_HEADER_VALUE must be set together")
	}
	if c.Webhook.AllowMerchantBasic && c.Gateway.Provider != "hdfc" {
		return errors.New("config: WEBHOOK_ALLOW_MERCHANT_BASIC requires the hdfc provider")
	}
	if c.Webhook.MidtransServerKey != "" && c.Gateway.Provider != "midtrans" {
		return errors.New("config: midtrans webhook signature requires the midtrans provider")
	}
	if c.Webhook.RazorpaySecret != "" && c.Gateway.Provider != "razorpay" {
		return errors.New("config: RAZORPAY_WEBHOOK_SECRET requires the razorpay provider")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// =======================
// ENV HELPERS
// =======================

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[CONFIG] invalid bool for %s=%q, using %v", key, v, def)
		return def
	}
	return b
}

func GetInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] invalid int for %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// GetDuration accepts Go duration strings ("15m") or plain seconds ("900").
func GetDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("[CONFIG] invalid duration for %s=%q, using %s", key, v, def)
	return def
}
