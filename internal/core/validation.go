package core

// validation.go provides row-level validation for uploaded stock CSVs.
//
// ValidateRow runs a fixed sequence of checks and stops at the first
// failure. Every outcome is represented in RowResult: a row is either
// valid (with its ProductRecord) or skipped with a SkipReason. Negative
// quantities are not a failure; they are clamped to zero and flagged.

import (
	"strconv"
	"strings"
)

// SkipReason classifies why a data row was not imported.
type SkipReason string

const (
	SkipInsufficientColumns SkipReason = "insufficient_columns"
	SkipEmptySKU            SkipReason = "empty_sku"
	SkipEmptyName           SkipReason = "empty_name"
	SkipEmptyQuantity       SkipReason = "empty_quantity"
	SkipInvalidNumberFormat SkipReason = "invalid_number_format"
)

// SkipReasons lists every reason in check order.
var SkipReasons = []SkipReason{
	SkipInsufficientColumns,
	SkipEmptySKU,
	SkipEmptyName,
	SkipEmptyQuantity,
	SkipInvalidNumberFormat,
}

// Description returns a human-readable explanation of the reason.
func (r SkipReason) Description() string {
	switch r {
	case SkipInsufficientColumns:
		return "insufficient columns"
	case SkipEmptySKU:
		return "SKU is empty"
	case SkipEmptyName:
		return "product name is empty"
	case SkipEmptyQuantity:
		return "stock quantity is empty"
	case SkipInvalidNumberFormat:
		return "invalid number format"
	default:
		return string(r)
	}
}

// RowResult is the outcome of validating one row.
// Exactly one of Record (when Valid) or Reason (when !Valid) is meaningful.
type RowResult struct {
	Index  int
	Valid  bool
	Record ProductRecord
	Reason SkipReason
}

func skipped(index int, reason SkipReason) RowResult {
	return RowResult{Index: index, Reason: reason}
}

// ValidateRow validates a single data row and builds its ProductRecord.
// It never panics on malformed input.
func ValidateRow(index int, row []string) RowResult {
	if len(row) < MinColumns {
		return skipped(index, SkipInsufficientColumns)
	}

	sku := CleanCell(row[ColSKU])
	if sku == "" {
		return skipped(index, SkipEmptySKU)
	}

	name := CleanCell(row[ColName])
	if name == "" {
		return skipped(index, SkipEmptyName)
	}

	rawQty := CleanCell(row[ColQuantity])
	if rawQty == "" {
		return skipped(index, SkipEmptyQuantity)
	}

	// Quantities are stored as 32-bit integers; anything wider is rejected
	// the same way as non-numeric text.
	qty64, err := strconv.ParseInt(rawQty, 10, 32)
	if err != nil {
		return skipped(index, SkipInvalidNumberFormat)
	}
	qty := int(qty64)

	record := ProductRecord{SKU: sku, Name: name, StockQuantity: qty}
	if qty < 0 {
		record.StockQuantity = 0
		record.Clamped = true
	}

	return RowResult{Index: index, Valid: true, Record: record}
}

// CleanCell trims surrounding whitespace from a raw CSV cell.
func CleanCell(s string) string {
	return strings.TrimSpace(s)
}
