package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jafsabakes/bakery-api/app/config"
	"github.com/jafsabakes/bakery-api/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the store selected by DB_DRIVER.
func Connect(cf *config.Config) (*gorm.DB, error) {
	switch cf.DbDriver {
	case config.DriverSQLite:
		return OpenSQLite(cf.SqlitePath)
	case config.DriverPostgres:
		return OpenPostgres(cf.DbName, cf.DbHost, cf.DbPort, cf.DbUser, cf.DbPas, cf.DbSSLMode)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cf.DbDriver)
}

func OpenPostgres(dbname, host, port, user, pas, sslmode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s", user, pas, host, port, dbname, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// OpenSQLite opens a sqlite file, or a private in-memory database for
// ":memory:" and "file:...mode=memory" paths. Foreign keys are enforced.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_foreign_keys=1"

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection also keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the catalog tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Category{}, &models.Product{})
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}
