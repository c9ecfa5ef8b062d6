// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"errors"
	"fmt"
)

// Sentinel errors for the state package.
var (
	// ErrNoState is returned when an operation requires a loaded state.
	ErrNoState = errors.New("no state loaded")

	// ErrNilTransaction is returned when a nil transaction is supplied.
	ErrNilTransaction = errors.New("transaction must not be nil")

	// ErrTransactionClosed is returned when a transaction is committed or
	// rolled back twice.
	ErrTransactionClosed = errors.New("transaction already committed or rolled back")

	// ErrEnvelopeFormat is returned when a persisted state file does not
	// carry the expected envelope.
	ErrEnvelopeFormat = errors.New("invalid state file format")

	// ErrEnvelopeVersion is returned when a persisted state file was
	// written by an incompatible version. No migration is attempted.
	ErrEnvelopeVersion = errors.New("unsupported state file version")

	// ErrWatcherClosed is returned when a closed watcher is reused.
	ErrWatcherClosed = errors.New("watcher is closed")
)

// ValidationError reports a malformed or incomplete state. It is always
// local: a failed validation never partially applies.
type ValidationError struct {
	// Field is the dotted path of the offending field,
	// e.g. "java_classes[2].file_path".
	Field string

	// Message describes what is wrong.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("state validation: %s", e.Message)
	}
	return fmt.Sprintf("state validation: %s: %s", e.Field, e.Message)
}

// newValidationError builds a ValidationError for a field path.
func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
