package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/stockimport/internal/core"
)

// Memory keeps products in process memory. It backs STORE_DRIVER=memory
// and the package tests of its callers.
type Memory struct {
	mu       sync.RWMutex
	products []core.Product
	nextID   int64
}

var _ core.Gateway = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// BulkInsert validates every record before storing any of them.
func (m *Memory) BulkInsert(ctx context.Context, records []core.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		m.products = append(m.products, core.Product{
			ID:            m.nextID,
			SKU:           rec.SKU,
			Name:          rec.Name,
			StockQuantity: rec.StockQuantity,
		})
		m.nextID++
	}
	return nil
}

// FindAll returns a copy of every stored product in insertion order.
func (m *Memory) FindAll(ctx context.Context) ([]core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored products.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.products)
}
