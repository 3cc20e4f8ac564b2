package core

import (
	"errors"
	"fmt"
)

// Pipeline-level failures. Row-level problems never surface as errors;
// they are tallied in ImportOutcome instead.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrFileTooLarge       = fmt.Errorf("file too large: %w", ErrInvalidInput)
	ErrSourceNotFound     = errors.New("source not found")
	ErrMalformedContent   = errors.New("invalid csv")
	ErrNoDataRows         = errors.New("no data rows")
	ErrNoValidRows        = errors.New("no valid rows")
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrDuplicateProduct is returned by gateways whose store enforces
	// unique SKUs. It always arrives wrapped in ErrPersistenceFailure.
	ErrDuplicateProduct = errors.New("duplicate product")
)

// ImportError wraps a pipeline failure with the sentinel that classifies it
// and the underlying cause, if any.
type ImportError struct {
	Kind     error
	FileName string
	Detail   string
	Err      error
}

func (e *ImportError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the classifying sentinel so callers can use errors.Is.
func (e *ImportError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func importErr(kind error, fileName, detail string, cause error) *ImportError {
	return &ImportError{Kind: kind, FileName: fileName, Detail: detail, Err: cause}
}

// persistenceErr wraps a gateway error for callers outside the pipeline.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, &ImportError{Kind: ErrPersistenceFailure, Err: err})
}
