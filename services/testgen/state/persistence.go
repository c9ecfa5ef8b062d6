// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvelopeVersion is the on-disk state format version. A loaded file with
// any other version is rejected; no migration is attempted.
const EnvelopeVersion = "1.0"

// StateFileName is the default per-project state file.
const StateFileName = ".project_state.json"

// envelope is the on-disk wrapper around a persisted state.
type envelope struct {
	SavedAt time.Time     `json:"saved_at"`
	Version string        `json:"version"`
	State   *ProjectState `json:"state"`
}

// SaveState writes the state to path wrapped in the versioned envelope.
// Parent directories are created as needed.
func SaveState(s *ProjectState, path string) error {
	if s == nil {
		return ErrNoState
	}
	if path == "" {
		return newValidationError("file_path", "must not be empty")
	}

	env := envelope{
		SavedAt: time.Now(),
		Version: EnvelopeVersion,
		State:   s,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// LoadState reads a state envelope from path.
//
// Outputs:
//
//	*ProjectState - The persisted state, nil on any failure.
//	error - ErrEnvelopeFormat for a malformed file, ErrEnvelopeVersion
//	        for an incompatible version.
func LoadState(path string) (*ProjectState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelopeFormat, err)
	}
	if env.State == nil {
		return nil, fmt.Errorf("%w: missing state", ErrEnvelopeFormat)
	}
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %q", ErrEnvelopeVersion, env.Version)
	}
	return env.State, nil
}

// SaveCurrentState persists the manager's current state into the
// project's default state file.
func SaveCurrentState(m *Manager, projectPath string) error {
	s := m.GetState()
	if s == nil {
		return ErrNoState
	}
	return SaveState(s, filepath.Join(projectPath, StateFileName))
}

// LoadSavedState loads the project's default state file, if present.
func LoadSavedState(projectPath string) (*ProjectState, error) {
	return LoadState(filepath.Join(projectPath, StateFileName))
}
