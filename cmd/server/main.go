package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jafsabakes/bakery-api/app/config"
	"github.com/jafsabakes/bakery-api/app/database"
	"github.com/jafsabakes/bakery-api/app/media"
	"github.com/jafsabakes/bakery-api/app/router"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

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
	for _, warning := range cf.Warnings {
		logger.Warn().Msg(warning)
	}
	if cf.AccessPolicy == config.PolicyAllowAny {
		logger.Warn().Msg("access policy allow_any: writes are open to everyone")
	}

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

	store, err := media.NewStore(cf)
	if err != nil {
		return fmt.Errorf("creating media store: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cf.ServerPort),
		Handler:           router.SetupRouter(router.Deps{Config: cf, DB: db, Store: store, Logger: &logger}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		// in-flight requests must outlive the signal context to drain on shutdown
		BaseContext: func(net.Listener) context.Context {
			return logger.WithContext(context.Background())
		},
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("driver", cf.DbDriver).
			Str("media", cf.MediaBackend).
			Str("access_policy", cf.AccessPolicy).
			Msg("server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("shutdown completed")
	return nil
}
