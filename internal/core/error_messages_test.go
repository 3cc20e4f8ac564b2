package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},

		// Pipeline sentinels
		{"invalid input", importErr(ErrInvalidInput, "x.txt", "only CSV files are allowed", nil), "FILE004"},
		{"file too large wins over invalid input", importErr(ErrFileTooLarge, "x.csv", "", nil), "FILE001"},
		{"malformed content", importErr(ErrMalformedContent, "x.csv", "", errors.New(`bare " in non-quoted field`)), "FILE002"},
		{"no data rows", importErr(ErrNoDataRows, "x.csv", "", nil), "FILE005"},
		{"no valid rows", importErr(ErrNoValidRows, "x.csv", "", nil), "VAL001"},
		{"source not found", importErr(ErrSourceNotFound, "x.csv", "", errors.New("open: no such file")), "FILE006"},
		{"persistence failure", importErr(ErrPersistenceFailure, "x.csv", "", errors.New("disk full")), "DB008"},
		{"wrapped sentinel", fmt.Errorf("handler: %w", ErrNoDataRows), "FILE005"},

		// Driver errors behind a persistence failure keep their specific code
		{"persistence duplicate sku", importErr(ErrPersistenceFailure, "x.csv", "",
			fmt.Errorf("%w: %w", ErrDuplicateProduct,
				errors.New(`ERROR: duplicate key value violates unique constraint "products_sku_key"`))), "DB001"},
		{"persistence connection refused", persistenceErr("list products", errors.New("dial tcp: connection refused")), "DB004"},

		// Admission and context
		{"too many uploads", ErrTooManyUploads, "UPL002"},
		{"deadline exceeded", fmt.Errorf("import: %w", context.DeadlineExceeded), "UPL005"},
		{"canceled", context.Canceled, "UPL004"},

		// Raw patterns
		{"connection reset", errors.New("read: connection reset by peer"), "DB005"},
		{"timeout", errors.New("i/o timeout"), "DB006"},
		{"deadlock", errors.New("deadlock detected"), "DB007"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("DEADLOCK DETECTED"), "DB007"},

		{"unknown error", errors.New("something strange"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if tt.err != nil && (got.Message == "" || got.Action == "") {
				t.Errorf("MapError(%v) = %+v, want message and action", tt.err, got)
			}
		})
	}
}

func TestMapError_CodesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	check := func(code string) {
		if seen[code] {
			t.Errorf("duplicate code %s", code)
		}
		seen[code] = true
	}
	for _, sm := range sentinelMessages {
		check(sm.msg.Code)
	}
	for _, ep := range errorPatterns {
		check(ep.msg.Code)
	}
	check(defaultMessage.Code)
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(importErr(ErrNoValidRows, "x.csv", "", nil))
	want := "No valid data to import (Code: VAL001). Each row needs a SKU, a name and a whole-number quantity"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNoDataRows, true},
		{errors.New("deadlock detected"), true},
		{errors.New("random internal error"), false},
	}

	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
