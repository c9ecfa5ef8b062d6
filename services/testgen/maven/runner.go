// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package maven invokes the Maven build tool and parses its output.
package maven

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single Maven invocation.
const DefaultTimeout = 5 * time.Minute

// ErrMavenNotFound indicates the mvn binary is not on PATH.
var ErrMavenNotFound = errors.New("mvn binary not found")

// Result is the outcome of one Maven invocation.
type Result struct {
	Success        bool
	ExitCode       int
	Stdout         string
	Stderr         string
	DurationMillis int64
	Goals          []string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBinary overrides the mvn executable path.
func WithBinary(path string) RunnerOption {
	return func(r *Runner) {
		if path != "" {
			r.binary = path
		}
	}
}

// Runner executes Maven goals in a project directory.
//
// # Thread Safety
//
// Runner is safe for concurrent use; each Run spawns its own process.
type Runner struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		binary:  "mvn",
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the given goals in projectDir.
//
// # Description
//
// The invocation runs in batch mode with the runner's timeout layered on
// top of ctx. A non-zero exit is not a Go error: it yields a Result with
// Success false so callers can parse the failure output. Only a missing
// binary or a context failure returns an error.
func (r *Runner) Run(ctx context.Context, projectDir string, goals ...string) (*Result, error) {
	if _, err := exec.LookPath(r.binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMavenNotFound, r.binary)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append([]string{"--batch-mode"}, goals...)
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = projectDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Success:        err == nil,
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		DurationMillis: elapsed.Milliseconds(),
		Goals:          goals,
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("maven invocation aborted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("maven invocation failed to start: %w", err)
		}
	}

	r.logger.Debug("maven invocation finished",
		slog.String("dir", projectDir),
		slog.Any("goals", goals),
		slog.Bool("success", result.Success),
		slog.Duration("duration", elapsed),
	)
	return result, nil
}

// Compile runs mvn compile.
func (r *Runner) Compile(ctx context.Context, projectDir string) (*Result, error) {
	return r.Run(ctx, projectDir, "compile")
}

// TestCompile runs mvn test-compile.
func (r *Runner) TestCompile(ctx context.Context, projectDir string) (*Result, error) {
	return r.Run(ctx, projectDir, "test-compile")
}

// Test runs mvn test, optionally restricted to a single test class.
func (r *Runner) Test(ctx context.Context, projectDir, testClass string) (*Result, error) {
	if testClass == "" {
		return r.Run(ctx, projectDir, "test")
	}
	return r.Run(ctx, projectDir, "test", "-Dtest="+testClass)
}
