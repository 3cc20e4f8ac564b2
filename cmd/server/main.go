package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stockimport/internal/config"
	"github.com/JonMunkholm/stockimport/internal/core"
	"github.com/JonMunkholm/stockimport/internal/logging"
	"github.com/JonMunkholm/stockimport/internal/store"
	"github.com/JonMunkholm/stockimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, closeStore, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service, err := core.NewService(gateway, cfg, logger)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	server := web.NewServer(service, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Wait for active uploads to complete before closing the store
	if status := service.UploadLimiterStatus(); status.Active > 0 {
		logger.Info("waiting for uploads to complete", "active", status.Active)
		if err := service.WaitForUploads(shutdownCtx); err != nil {
			logger.Warn("uploads did not complete in time", "error", err)
		} else {
			logger.Info("all uploads completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openGateway builds the product store selected by STORE_DRIVER.
func openGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Gateway, func(), error) {
	if strings.EqualFold(cfg.Database.Driver, config.DriverMemory) {
		logger.Warn("using in-memory product store, data is lost on restart")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		logger.Info("connected to database",
			"name", strings.TrimPrefix(u.Path, "/"),
			"table", cfg.Database.Table,
			"max_conns", cfg.Database.MaxConns,
		)
	}

	return store.NewPostgres(pool, cfg.Database.Table, cfg.Database.UseCopy, logger), pool.Close, nil
}
