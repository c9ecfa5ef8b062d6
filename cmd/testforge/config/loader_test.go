// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "testforge.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// The default file is written for next time.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadFromPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  max_retries: 5\n"), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	// Unspecified sections keep their defaults.
	assert.Equal(t, "mvn", cfg.Maven.Binary)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadFromMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [not a map"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}
