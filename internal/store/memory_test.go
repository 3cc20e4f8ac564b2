package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockimport/internal/core"
)

func TestMemory_BulkInsertAssignsIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.BulkInsert(ctx, []core.ProductRecord{
		{SKU: "A1", Name: "Widget", StockQuantity: 10},
		{SKU: "A2", Name: "Gadget", StockQuantity: 0},
	}))
	require.NoError(t, m.BulkInsert(ctx, []core.ProductRecord{
		{SKU: "A3", Name: "Thing", StockQuantity: 4},
	}))

	got, err := m.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Product{
		{ID: 1, SKU: "A1", Name: "Widget", StockQuantity: 10},
		{ID: 2, SKU: "A2", Name: "Gadget", StockQuantity: 0},
		{ID: 3, SKU: "A3", Name: "Thing", StockQuantity: 4},
	}, got)
}

func TestMemory_BulkInsertIsAllOrNothing(t *testing.T) {
	m := NewMemory()

	err := m.BulkInsert(context.Background(), []core.ProductRecord{
		{SKU: "A1", Name: "Widget", StockQuantity: 10},
		{SKU: "", Name: "No SKU", StockQuantity: 1},
	})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_RejectsNegativeQuantity(t *testing.T) {
	m := NewMemory()

	err := m.BulkInsert(context.Background(), []core.ProductRecord{
		{SKU: "A1", Name: "Widget", StockQuantity: -1},
	})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_FindAllEmpty(t *testing.T) {
	got, err := NewMemory().FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemory_FindAllReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.BulkInsert(ctx, []core.ProductRecord{{SKU: "A1", Name: "Widget", StockQuantity: 1}}))

	got, err := m.FindAll(ctx)
	require.NoError(t, err)
	got[0].Name = "changed"

	again, err := m.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Widget", again[0].Name)
}

func TestMemory_CanceledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.BulkInsert(ctx, []core.ProductRecord{{SKU: "A1", Name: "Widget"}}), context.Canceled)
	_, err := m.FindAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Ping(ctx), context.Canceled)
}

func TestMemory_ConcurrentInserts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.BulkInsert(ctx, []core.ProductRecord{
				{SKU: "A", Name: "a", StockQuantity: 1},
				{SKU: "B", Name: "b", StockQuantity: 2},
			})
		}()
	}
	wg.Wait()

	got, err := m.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 40)

	seen := make(map[int64]bool)
	for _, p := range got {
		assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
	}
}
