// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNilManager indicates the orchestrator was built without a state
	// manager.
	ErrNilManager = errors.New("workflow: nil state manager")

	// ErrIncompleteStages indicates at least one stage collaborator is
	// missing.
	ErrIncompleteStages = errors.New("workflow: missing stage collaborator")

	// ErrNoInitialState indicates Run was called without a seed state.
	ErrNoInitialState = errors.New("workflow: no initial state")
)

// StageError wraps a collaborator failure with the stage it occurred in.
// The underlying error is preserved via Unwrap so callers can match the
// root cause with errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
