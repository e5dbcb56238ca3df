package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"templeseva_backend/internals/bootstrap"
	"templeseva_backend/internals/configs"
	database "templeseva_backend/internals/databases"
	donationScheduler "templeseva_backend/internals/features/donations/donations/scheduler"
	authScheduler "templeseva_backend/internals/features/users/auth/scheduler"
	helper "templeseva_backend/internals/helpers"
	"templeseva_backend/internals/helpers/dbtime"
	middlewares "templeseva_backend/internals/middlewares"
	routes "templeseva_backend/internals/route"
)

func main() {
	cfg := configs.Load()

	logger, err := configs.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if err := dbtime.SetTimezone(cfg.Timezone); err != nil {
		logger.Fatal("TEMPLE_TIMEZONE", zap.Error(err))
	}

	// 🔌 DB connect + pool
	db, err := database.ConnectDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	database.TunePool(db, logger)
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("auto migrate", zap.Error(err))
		}
	}

	container, err := bootstrap.Build(cfg, db, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ErrorHandler:            helper.ErrorHandler(logger),
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
		BodyLimit:               1 << 20,
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	middlewares.SetupMiddlewares(app, cfg, logger)

	routes.SetupRoutes(app, container)

	// ⏱ scheduler after DB is ready
	c := cron.New()
	if _, err := authScheduler.RegisterTokenCleanup(c, container.Tokens, logger); err != nil {
		logger.Fatal("token cleanup schedule", zap.Error(err))
	}
	if err := donationScheduler.RegisterReconcile(c, cfg.Reconcile.Cron, container.Reconciler, logger); err != nil {
		logger.Fatal("reconcile schedule", zap.Error(err))
	}
	c.Start()

	database.WarmUp(db, logger)

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 60 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("provider", container.Gateway.Name()))
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown: stop cron, drain HTTP, close pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	<-c.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
