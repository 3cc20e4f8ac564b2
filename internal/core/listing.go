package core

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/stockimport/internal/logging"
)

// Lister reads stored products and reports stock diagnostics.
type Lister struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewLister creates a Lister. A nil logger discards diagnostics.
func NewLister(gateway Gateway, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Lister{gateway: gateway, logger: logger}
}

// ListAll returns every stored product. The zero-stock count is logged and
// never affects the result.
func (l *Lister) ListAll(ctx context.Context) ([]Product, error) {
	log := logging.WithRequestID(ctx, l.logger)

	products, err := l.gateway.FindAll(ctx)
	if err != nil {
		log.Error("failed to retrieve products", "error", err)
		return nil, persistenceErr("list products", err)
	}
	if products == nil {
		products = []Product{}
	}

	summary := Summarize(products)
	log.Info("retrieved products", "count", summary.Total)
	for _, p := range products {
		if p.OutOfStock() {
			log.Debug("product is out of stock", "sku", p.SKU, "name", p.Name)
		}
	}
	if summary.OutOfStock > 0 {
		log.Warn("products out of stock", "count", summary.OutOfStock)
	}

	return products, nil
}

// Summary returns aggregate counts over the stored products.
func (l *Lister) Summary(ctx context.Context) (InventorySummary, error) {
	products, err := l.ListAll(ctx)
	if err != nil {
		return InventorySummary{}, err
	}
	return Summarize(products), nil
}

// Summarize counts products and those with zero stock.
func Summarize(products []Product) InventorySummary {
	s := InventorySummary{Total: len(products)}
	for _, p := range products {
		if p.OutOfStock() {
			s.OutOfStock++
		}
	}
	return s
}
