package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ashutosh-1945/GateKeeper/internal/config"
	"github.com/Ashutosh-1945/GateKeeper/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg config.Config) (*gorm.DB, error) {
	var dialer gorm.Dialector
	if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		dialer = postgres.Open(cfg.DatabaseURL)
	} else if strings.HasPrefix(cfg.DatabaseURL, "sqlite") {
		dialer = sqlite.Open(strings.TrimPrefix(cfg.DatabaseURL, "sqlite://"))
	} else {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DatabaseURL)
	}

	gormCfg := &gorm.Config{}
	if cfg.IsProduction() {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialer, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(cfg.DatabaseURL) {
		// SQLite allows a single writer; serialize through one connection instead of
		// surfacing "database is locked" under concurrent grants.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func isSQLite(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "sqlite")
}

// AutoMigrate creates the schema for SQLite deployments and tests. PostgreSQL uses RunMigrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Link{}, &models.Click{}, &models.AuditLog{})
}

// PrepareSchema picks the migration strategy matching the configured driver.
func PrepareSchema(db *gorm.DB, cfg config.Config, logger *slog.Logger) error {
	if isSQLite(cfg.DatabaseURL) {
		logger.Info("Auto-migrating SQLite schema")
		return AutoMigrate(db)
	}
	logger.Info("Running database migrations...")
	return RunMigrations(cfg.DatabaseURL, "")
}

func RunMigrations(databaseURL string, sourcePath string) error {
	if sourcePath == "" {
		sourcePath = "file://migration"
	}
	m, err := migrate.New(
		sourcePath,
		databaseURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run up migrations: %w", err)
	}

	return nil
}
