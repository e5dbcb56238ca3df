package database

import (
	"context"
	"fmt"
	"time"

	"templeseva_backend/internals/configs"
	donationModel "templeseva_backend/internals/features/donations/donations/model"
	donorModel "templeseva_backend/internals/features/donations/donors/model"
	authModel "templeseva_backend/internals/features/users/auth/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ConnectDB opens the PostgreSQL pool. PreferSimpleProtocol keeps it usable behind PgBouncer.
func ConnectDB(cfg configs.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	log.Info("connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))

	level := gormLogger.Warn
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: configs.NewGormLogger(log, level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	log.Info("DB connected")
	return db, nil
}

func TunePool(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("pool tune failed", zap.Error(err))
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

// WarmUp pings the pool once the server is up so the first request does not pay for the dial.
func WarmUp(db *gorm.DB, log *zap.Logger) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := Ping(context.Background(), db); err != nil {
			log.Warn("warm-up ping failed", zap.Error(err))
		}
	}()
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&donorModel.Donor{},
		&donationModel.Donation{},
		&donationModel.Receipt{},
		&donationModel.GatewayEvent{},
		&authModel.MagicLinkToken{},
		&authModel.OtpCode{},
	)
}
