package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"roomservice-agent/config"
	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/model"
)

// Dialector picks the gorm driver for a DSN. Kiosk devices normally use a local
// sqlite file; a postgres DSN lets several agents share one store.
func Dialector(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database dsn %q", dsn)
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	logger.Info("running database migrations", "dialect", dialector.Name())
	if err := db.AutoMigrate(
		&model.CartItem{},
		&model.KioskMarker{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	logger.Info("database initialization complete")
	return db, nil
}
