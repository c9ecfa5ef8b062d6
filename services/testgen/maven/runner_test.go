// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package maven

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerMissingBinary(t *testing.T) {
	r := NewRunner(nil, WithBinary("definitely-not-a-real-maven"))
	_, err := r.Run(context.Background(), t.TempDir(), "compile")
	assert.ErrorIs(t, err, ErrMavenNotFound)
}

func TestRunnerSuccessExit(t *testing.T) {
	// Stand-in binaries keep the test hermetic; only exit code handling
	// is under test here.
	r := NewRunner(nil, WithBinary("true"))
	result, err := r.Run(context.Background(), t.TempDir(), "compile")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, []string{"compile"}, result.Goals)
}

func TestRunnerFailureExit(t *testing.T) {
	r := NewRunner(nil, WithBinary("false"))
	result, err := r.Run(context.Background(), t.TempDir(), "test")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotZero(t, result.ExitCode)
}

func TestRunnerTimeout(t *testing.T) {
	r := NewRunner(nil, WithBinary("sleep"), WithTimeout(50*time.Millisecond))
	_, err := r.Run(context.Background(), t.TempDir(), "5")
	assert.Error(t, err)
}
