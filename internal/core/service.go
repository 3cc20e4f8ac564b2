package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/stockimport/internal/config"
	"github.com/JonMunkholm/stockimport/internal/logging"
)

// Service is the entry point used by transports. It combines the import
// pipeline, the listing reads and upload admission control.
type Service struct {
	gateway  Gateway
	importer *Importer
	lister   *Lister
	limiter  *UploadLimiter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewService wires a Service from configuration.
func NewService(gateway Gateway, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("new service: gateway is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		gateway: gateway,
		importer: NewImporter(gateway, logger, ImportOptions{
			MaxFileSize: cfg.Upload.MaxFileSize,
			StagingDir:  cfg.Upload.StagingDir,
		}),
		lister:  NewLister(gateway, logger),
		limiter: NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		timeout: cfg.Upload.Timeout,
		logger:  logger,
	}, nil
}

// Import runs one upload through the pipeline once an upload slot is free.
func (s *Service) Import(ctx context.Context, fileName string, data []byte) (*ImportOutcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		logging.WithRequestID(ctx, s.logger).Warn("upload not admitted", "file", fileName, "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.importer.ImportFile(ctx, data, fileName)
}

// ListAll returns every stored product.
func (s *Service) ListAll(ctx context.Context) ([]Product, error) {
	return s.lister.ListAll(ctx)
}

// Summary returns stock counts over the stored products.
func (s *Service) Summary(ctx context.Context) (InventorySummary, error) {
	return s.lister.Summary(ctx)
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.gateway.Ping(ctx); err != nil {
		return persistenceErr("ping store", err)
	}
	return nil
}

// UploadLimiterStatus reports current upload slot usage.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight uploads finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
