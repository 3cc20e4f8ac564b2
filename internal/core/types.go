package core

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Column positions in a data row.
const (
	ColSKU = iota
	ColName
	ColQuantity

	// MinColumns is the number of fields a data row needs to be considered.
	MinColumns
)

// ProductRecord is a validated inventory row ready to be persisted.
// Records are built only by ValidateRow and are treated as immutable.
type ProductRecord struct {
	SKU           string
	Name          string
	StockQuantity int

	// Clamped is set when the source quantity was negative and replaced by 0.
	Clamped bool
}

// OutOfStock reports whether the record has no stock left.
func (p ProductRecord) OutOfStock() bool {
	return p.StockQuantity == 0
}

// Validate checks the record invariants. Stores call it before writing so
// a record assembled outside ValidateRow can never reach the table.
func (p ProductRecord) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SKU, validation.Required),
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.StockQuantity, validation.Min(0)),
	)
}

// Product is a persisted ProductRecord with its store-assigned ID.
type Product struct {
	ID            int64  `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stockQuantity"`
}

// OutOfStock reports whether the product has no stock left.
func (p Product) OutOfStock() bool {
	return p.StockQuantity == 0
}

// Gateway is the persistence boundary for product records.
//
// BulkInsert must be all-or-nothing: either every record is stored or none
// is. FindAll returns products in insertion order.
type Gateway interface {
	BulkInsert(ctx context.Context, records []ProductRecord) error
	FindAll(ctx context.Context) ([]Product, error)
	Ping(ctx context.Context) error
}

// SkippedRow describes a data row that did not pass validation.
type SkippedRow struct {
	LineNumber int        `json:"line"`
	Reason     SkipReason `json:"reason"`
	Detail     string     `json:"detail"`
	Data       []string   `json:"data"`
}

// ImportOutcome is the result of a single upload. It is built fresh for
// each request and never persisted.
type ImportOutcome struct {
	UploadID    string
	FileName    string
	TotalRows   int
	Imported    int
	Skipped     int
	SkipReasons map[SkipReason]int
	Clamped     int
	OutOfStock  int
	Records     []ProductRecord
	SkippedRows []SkippedRow
	Duration    time.Duration
}

func newImportOutcome(uploadID, fileName string) *ImportOutcome {
	return &ImportOutcome{
		UploadID:    uploadID,
		FileName:    fileName,
		SkipReasons: make(map[SkipReason]int),
	}
}

// InventorySummary holds aggregate diagnostics over the stored products.
type InventorySummary struct {
	Total      int `json:"total"`
	OutOfStock int `json:"outOfStock"`
}
