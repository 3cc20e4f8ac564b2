// Package core provides the business logic for stock CSV imports.
//
// This package contains all domain logic independent of any transport. It
// can be used by web handlers, CLI tools, or tests without modification.
//
// # Import Pipeline
//
// An upload is a CSV file whose first row is a header and whose data rows
// hold SKU, product name and stock quantity in the first three columns.
// [Importer.ImportFile] checks the file, tokenizes it, validates every data
// row with [ValidateRow] and bulk-inserts the valid rows through a
// [Gateway] in a single all-or-nothing call.
//
// Row problems are recoverable: the row is skipped with a [SkipReason] and
// counted in the [ImportOutcome]. Negative quantities are clamped to zero
// and the row is kept. Only file-level problems fail the upload:
//
//   - [ErrInvalidInput]: empty upload or not a .csv file name
//   - [ErrFileTooLarge]: upload exceeds the configured size
//   - [ErrSourceNotFound]: staged copy could not be opened
//   - [ErrMalformedContent]: the CSV tokenizer rejected the content
//   - [ErrNoDataRows]: header only, or no rows at all
//   - [ErrNoValidRows]: every data row was skipped
//   - [ErrPersistenceFailure]: the bulk insert failed
//
// # Diagnostics
//
// Skip reasons, clamped quantities and out-of-stock products are reported
// through the *slog.Logger handed to [NewImporter] and [NewLister], never by
// failing an otherwise successful import.
//
// # Error Handling
//
// Errors are mapped to user-friendly messages with support codes using
// [MapError].
package core
