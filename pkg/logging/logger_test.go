// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelToSlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  slog.Level
	}{
		{"debug", LevelDebug, slog.LevelDebug},
		{"info", LevelInfo, slog.LevelInfo},
		{"warn", LevelWarn, slog.LevelWarn},
		{"warning alias", Level("warning"), slog.LevelWarn},
		{"error", LevelError, slog.LevelError},
		{"unknown defaults to info", Level("verbose"), slog.LevelInfo},
		{"empty defaults to info", Level(""), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.toSlogLevel())
		})
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "statetest",
		Quiet:   true,
	})
	logger.Info("snapshot captured", "operation", "set_state")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "statetest_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"set_state"`)
	assert.Contains(t, string(data), `"service":"statetest"`)
}

func TestWithCreatesChild(t *testing.T) {
	logger := New(Config{Level: LevelInfo, Quiet: true})
	child := logger.With("run_id", "abc123")

	require.NotNil(t, child.Slog())
	assert.Nil(t, child.file, "child must not own the parent's file handle")
	assert.NoError(t, child.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := New(Config{Level: LevelInfo, LogDir: t.TempDir(), Quiet: true})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".testforge/logs"), expandPath("~/.testforge/logs"))
	assert.Equal(t, "/var/log/testforge", expandPath("/var/log/testforge"))
}
