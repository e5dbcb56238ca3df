package bootstrap

import (
	"fmt"

	"templeseva_backend/internals/configs"
	donationRepo "templeseva_backend/internals/features/donations/donations/repository"
	donationService "templeseva_backend/internals/features/donations/donations/service"
	donorRepo "templeseva_backend/internals/features/donations/donors/repository"
	donorService "templeseva_backend/internals/features/donations/donors/service"
	"templeseva_backend/internals/features/notifications/mailer"
	"templeseva_backend/internals/features/payment/gateway"
	"templeseva_backend/internals/features/payment/gateway/provider"
	authRepo "templeseva_backend/internals/features/users/auth/repository"
	authService "templeseva_backend/internals/features/users/auth/service"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds the wired services shared by the HTTP server and the CLI.
type Container struct {
	Config *configs.Config
	DB     *gorm.DB
	Log    *zap.Logger

	Gateway  gateway.Client
	Notifier *mailer.Notifier
	Validate *validator.Validate

	Donations donationRepo.Repository
	Donors    *donorService.Service
	Tokens    *authService.TokenService

	StateMachine *donationService.StateMachine
	Processor    *donationService.Processor
	Sessions     *donationService.SessionCreator
	Reconciler   *donationService.Reconciler
	Refunds      *donationService.RefundService
}

func Build(cfg *configs.Config, db *gorm.DB, log *zap.Logger) (*Container, error) {
	gw, err := provider.New(cfg.Gateway, log)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	var transport mailer.Transport = mailer.LogTransport{Log: log.Named("mail")}
	if cfg.Mail.Enabled() {
		transport = mailer.NewSMTPTransport(cfg.Mail)
	}
	notifier := mailer.NewNotifier(transport, cfg.Mail.From, cfg.Mail.AdminNotify, log)

	c := &Container{
		Config:    cfg,
		DB:        db,
		Log:       log,
		Gateway:   gw,
		Notifier:  notifier,
		Validate:  validator.New(),
		Donations: donationRepo.NewGormRepository(db),
	}

	c.Donors = donorService.NewService(donorRepo.NewGormRepository(db), log)
	c.Tokens = authService.NewTokenService(authRepo.NewGormRepository(db), c.Donors, notifier, authService.Config{
		SiteBaseURL:    cfg.SiteBaseURL,
		MagicLinkTTL:   cfg.Tokens.MagicLinkTTL,
		OTPTTL:         cfg.Tokens.OTPTTL,
		OTPMaxAttempts: cfg.Tokens.OTPMaxAttempts,
		JWTSecret:      cfg.JWT.Secret,
		JWTTTL:         cfg.JWT.TTL,
	}, log)

	c.StateMachine = donationService.NewStateMachine(c.Donations, c.Donors, c.Tokens, notifier, cfg.ReceiptPrefix, log)
	c.Processor = donationService.NewProcessor(c.Donations, c.StateMachine, gw, provider.StatusTable(cfg.Gateway.Provider), cfg.Gateway.Timeout, log)
	c.Sessions = donationService.NewSessionCreator(c.Donations, c.Donors, c.StateMachine, gw, donationService.SessionConfig{
		OrderIDPrefix: cfg.OrderIDPrefix,
		Currency:      cfg.Gateway.Currency,
		ReturnURL:     cfg.Gateway.ReturnURL,
		Timeout:       cfg.Gateway.Timeout,
	}, log)
	c.Reconciler = donationService.NewReconciler(c.Donations, c.Processor, donationService.ReconcileOptions{
		OlderThan: cfg.Reconcile.OlderThan,
		MaxAge:    cfg.Reconcile.MaxAge,
		BatchSize: cfg.Reconcile.BatchSize,
	}, log)
	c.Refunds = donationService.NewRefundService(c.Donations, gw, cfg.Gateway.Timeout, log)

	return c, nil
}
