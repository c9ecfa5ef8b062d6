// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diff

import (
	"errors"
	"fmt"
	"os"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// ErrNoSavedState indicates the project has no saved state file to
// compare against.
var ErrNoSavedState = errors.New("no saved state to compare against")

// CompareWithSaved diffs the manager's current state against the
// project's saved state file.
//
// # Description
//
// Loads the project's default state file and diffs it against the
// manager's current state, saved side as old. Returns the formatted
// report. A missing state file yields ErrNoSavedState so callers can
// treat a first run differently from a corrupt file.
//
// # Outputs
//
//	string - The formatted diff report.
//	error - ErrNoSavedState when no state file exists, state.ErrNoState
//	        when the manager holds no state, otherwise the load failure.
func CompareWithSaved(m *state.Manager, projectPath string) (string, error) {
	current := m.GetState()
	if current == nil {
		return "", state.ErrNoState
	}

	saved, err := state.LoadSavedState(projectPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoSavedState
		}
		return "", fmt.Errorf("load saved state: %w", err)
	}

	return Format(Diff(saved, current)), nil
}
