package core

// error_messages.go maps technical errors to user-facing messages.
//
// Each message carries a code users can quote to support:
//
//	FILE001 - File too large            (ErrFileTooLarge)
//	FILE002 - Invalid CSV               (ErrMalformedContent)
//	FILE004 - Invalid upload            (ErrInvalidInput)
//	FILE005 - No data rows              (ErrNoDataRows)
//	FILE006 - Upload could not be read  (ErrSourceNotFound)
//	VAL001  - No valid rows             (ErrNoValidRows)
//	DB001   - Duplicate SKU             (ErrDuplicateProduct)
//	DB004   - Connection refused        ("connection refused")
//	DB005   - Connection reset          ("connection reset")
//	DB006   - Timeout                   ("timeout")
//	DB007   - Deadlock                  ("deadlock")
//	DB008   - Could not save products   (ErrPersistenceFailure)
//	UPL002  - System busy               (ErrTooManyUploads)
//	UPL004  - Request cancelled         (context.Canceled)
//	UPL005  - Request timed out         (context.DeadlineExceeded)
//	RATE001 - Rate limited              ("rate limit")
//	ERR000  - Anything else
//
// Sentinels are checked first with errors.Is, in table order, so the more
// specific kind wins (ErrFileTooLarge before ErrInvalidInput). Errors that
// carry no sentinel fall back to case-insensitive substring patterns.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{ErrInvalidInput, UserMessage{
		Message: "Invalid input. Please revise and re-upload the file",
		Action:  "Select a non-empty file with a .csv extension",
		Code:    "FILE004",
	}},
	{ErrMalformedContent, UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Check quoting and make sure the file is comma-separated",
		Code:    "FILE002",
	}},
	{ErrNoDataRows, UserMessage{
		Message: "The CSV file has no data rows",
		Action:  "Add at least one row below the header",
		Code:    "FILE005",
	}},
	{ErrNoValidRows, UserMessage{
		Message: "No valid data to import",
		Action:  "Each row needs a SKU, a name and a whole-number quantity",
		Code:    "VAL001",
	}},
	{ErrSourceNotFound, UserMessage{
		Message: "The uploaded file could not be read",
		Action:  "Please upload the file again",
		Code:    "FILE006",
	}},
	{ErrTooManyUploads, UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL005",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{ErrDuplicateProduct, UserMessage{
		Message: "A product with this SKU already exists",
		Action:  "Remove duplicate SKUs from your CSV",
		Code:    "DB001",
	}},
	{ErrPersistenceFailure, UserMessage{
		Message: "Unable to save products",
		Action:  "Please try again in a few moments",
		Code:    "DB008",
	}},
}

// errorPattern maps a lowercase substring of a raw error to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try uploading a smaller file or try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000). Support should
// check the application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Driver errors wrapped in ErrPersistenceFailure are matched against the
// pattern table first, so a refused connection reports DB004 rather than
// the generic DB008.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if errors.Is(err, ErrPersistenceFailure) {
		if msg, ok := matchPattern(err); ok {
			return msg
		}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
