package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jafsabakes/bakery-api/app/config"
	"github.com/jafsabakes/bakery-api/app/database"
	"github.com/jafsabakes/bakery-api/models"
)

// Seeds the fixed bakery categories. Safe to run repeatedly.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cf, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := config.NewLogger(cf, os.Stdout)

	db, err := database.Connect(cf)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	result, err := models.SeedCategories(ctx, db, models.DefaultCategorySeeds)
	if err != nil {
		return fmt.Errorf("seeding categories: %w", err)
	}

	logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("total", len(models.DefaultCategorySeeds)).
		Msg("categories seeded")
	return nil
}
