package core

// pipeline.go turns one uploaded CSV file into persisted product records.
//
// The flow for a single upload is:
//
//  1. File-level preconditions (non-empty, .csv extension, size limit)
//  2. Open the content (memory, or a staged copy on disk)
//  3. Tokenize the whole file; tokenizer failures abort the upload
//  4. Skip the header and run ValidateRow on every data row
//  5. Fail with ErrNoValidRows only after every row has been examined
//  6. Hand all valid records to the Gateway in one bulk insert
//
// Skipped rows are tallied by reason and never abort the batch.

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockimport/internal/logging"
)

// DefaultMaxReportedSkips bounds how many skipped rows are kept in the
// outcome for display. Counts are always complete.
const DefaultMaxReportedSkips = 100

// ImportOptions tunes the pipeline's file-level checks.
type ImportOptions struct {
	// MaxFileSize rejects larger uploads with ErrFileTooLarge. Zero disables it.
	MaxFileSize int64

	// StagingDir, when set, writes uploads to disk before reading them.
	StagingDir string

	// MaxReportedSkips caps ImportOutcome.SkippedRows.
	MaxReportedSkips int
}

// Importer runs the import pipeline against a Gateway.
type Importer struct {
	gateway Gateway
	logger  *slog.Logger
	opts    ImportOptions
	newID   func() string
}

// NewImporter creates an Importer. A nil logger discards diagnostics.
func NewImporter(gateway Gateway, logger *slog.Logger, opts ImportOptions) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxReportedSkips <= 0 {
		opts.MaxReportedSkips = DefaultMaxReportedSkips
	}
	return &Importer{
		gateway: gateway,
		logger:  logger,
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// csvRow is a tokenized line together with its 1-indexed position in the file.
type csvRow struct {
	line   int
	fields []string
}

// ImportFile validates data as a stock CSV and bulk-inserts every valid row.
// On any error nothing has been persisted and the outcome is nil.
func (im *Importer) ImportFile(ctx context.Context, data []byte, fileName string) (*ImportOutcome, error) {
	startTime := time.Now()
	uploadID := im.newID()
	log := logging.WithFields(ctx, im.logger, "upload_id", uploadID, "file", fileName)

	if err := im.checkFile(data, fileName); err != nil {
		log.Warn("upload rejected", "error", err)
		return nil, err
	}

	// Blank lines never reach the validator, so a header followed only by
	// empty lines is ErrNoDataRows rather than ErrNoValidRows.
	rows, err := im.readRows(uploadID, fileName, data)
	if err != nil {
		log.Error("failed to read upload", "error", err)
		return nil, err
	}
	log.Info("csv read", "rows", len(rows))

	if len(rows) <= 1 {
		log.Warn("csv has no data rows")
		return nil, importErr(ErrNoDataRows, fileName, "file must contain at least one data row", nil)
	}

	outcome := newImportOutcome(uploadID, fileName)
	outcome.TotalRows = len(rows) - 1

	// Row 0 is the header.
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		result := ValidateRow(i, row.fields)
		im.record(log, outcome, row, result)
	}

	if len(outcome.Records) == 0 {
		log.Error("no valid data rows", "skipped", outcome.Skipped)
		return nil, importErr(ErrNoValidRows, fileName,
			fmt.Sprintf("all %d data rows were skipped", outcome.Skipped), nil)
	}

	if err := im.gateway.BulkInsert(ctx, outcome.Records); err != nil {
		log.Error("failed to save products", "error", err, "records", len(outcome.Records))
		return nil, importErr(ErrPersistenceFailure, fileName, "unable to save products", err)
	}

	outcome.Duration = time.Since(startTime)
	log.Info("import completed",
		"total_rows", outcome.TotalRows,
		"imported", outcome.Imported,
		"skipped", outcome.Skipped,
		"clamped", outcome.Clamped,
		"out_of_stock", outcome.OutOfStock,
		"duration_ms", outcome.Duration.Milliseconds(),
	)

	return outcome, nil
}

// checkFile enforces the file-level preconditions.
func (im *Importer) checkFile(data []byte, fileName string) error {
	if len(data) == 0 {
		return importErr(ErrInvalidInput, fileName, "file cannot be empty", nil)
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		return importErr(ErrInvalidInput, fileName, "only CSV files are allowed", nil)
	}
	if im.opts.MaxFileSize > 0 && int64(len(data)) > im.opts.MaxFileSize {
		return importErr(ErrFileTooLarge, fileName,
			fmt.Sprintf("%d bytes exceeds limit of %d", len(data), im.opts.MaxFileSize), nil)
	}
	return nil
}

// readRows opens the content and tokenizes all of it. The handle is closed
// before returning on every path.
func (im *Importer) readRows(uploadID, fileName string, data []byte) (rows []csvRow, err error) {
	src, err := openSource(im.opts.StagingDir, uploadID, fileName, data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			im.logger.Warn("failed to close upload source", "file", fileName, "error", closeErr)
		}
	}()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, importErr(ErrSourceNotFound, fileName, "read upload", err)
	}

	rows, err = parseCSV(prepareContent(content))
	if err != nil {
		return nil, importErr(ErrMalformedContent, fileName, "check your file structure", err)
	}
	return rows, nil
}

// record folds one validation result into the outcome and emits diagnostics.
func (im *Importer) record(log *slog.Logger, outcome *ImportOutcome, row csvRow, result RowResult) {
	if !result.Valid {
		outcome.Skipped++
		outcome.SkipReasons[result.Reason]++
		if len(outcome.SkippedRows) < im.opts.MaxReportedSkips {
			outcome.SkippedRows = append(outcome.SkippedRows, SkippedRow{
				LineNumber: row.line,
				Reason:     result.Reason,
				Detail:     result.Reason.Description(),
				Data:       row.fields,
			})
		}
		log.Warn("skipping row",
			"row", result.Index,
			"line", row.line,
			"reason", result.Reason,
			"detail", result.Reason.Description(),
			"columns", len(row.fields),
		)
		return
	}

	rec := result.Record
	outcome.Records = append(outcome.Records, rec)
	outcome.Imported++

	if rec.Clamped {
		outcome.Clamped++
		log.Warn("negative stock quantity, setting to 0",
			"row", result.Index,
			"sku", rec.SKU,
			"raw_quantity", row.fields[ColQuantity],
		)
	}
	if rec.OutOfStock() {
		outcome.OutOfStock++
		log.Warn("product is out of stock", "row", result.Index, "sku", rec.SKU, "name", rec.Name)
	}
	log.Debug("row processed", "row", result.Index, "sku", rec.SKU, "quantity", rec.StockQuantity)
}

// parseCSV tokenizes the whole file. Rows may have any number of fields;
// quoting is strict so that broken quotes are reported rather than guessed.
func parseCSV(data []byte) ([]csvRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var rows []csvRow
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, csvRow{line: line, fields: fields})
	}
	return rows, nil
}
