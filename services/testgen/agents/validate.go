// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/testforgelabs/testforge/services/testgen/maven"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

// TestValidator writes generated tests to disk and runs them with Maven.
type TestValidator struct {
	runner *maven.Runner
	logger *slog.Logger
}

// NewTestValidator creates the validator.
func NewTestValidator(runner *maven.Runner, logger *slog.Logger) *TestValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestValidator{runner: runner, logger: logger}
}

// Process implements the validate_test stage.
//
// # Description
//
// Every test not yet terminal is written to its file path, then the
// project is test-compiled once. A compilation failure marks all
// candidates compilation_failed without running anything. Otherwise each
// candidate runs individually so one failure's output is attributable to
// its test class. Results land in TestResults keyed by test name;
// statuses become passed, failed, or compilation_failed when the
// individual run itself broke the build.
func (v *TestValidator) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	if len(s.TestClasses) == 0 {
		return workflow.PartialUpdate{LastAction: "validate_test_skipped"}, nil
	}

	tests := make([]state.TestClassRecord, len(s.TestClasses))
	results := make(map[string]state.TestResult)
	var candidates []int
	for i, tc := range s.TestClasses {
		tests[i] = tc.Clone()
		if tc.Status == state.TestPassed {
			continue
		}
		if err := v.writeTestFile(&tests[i]); err != nil {
			tests[i].Status = state.TestError
			tests[i].Errors = []string{err.Error()}
			results[tc.Name] = state.TestResult{
				Success: false,
				Status:  state.TestError,
				Errors:  []string{err.Error()},
			}
			continue
		}
		candidates = append(candidates, i)
	}

	if len(candidates) > 0 {
		if err := v.validateCandidates(ctx, s.ProjectPath, tests, candidates, results); err != nil {
			return workflow.PartialUpdate{}, err
		}
	}

	return workflow.PartialUpdate{
		TestClasses: tests,
		TestResults: results,
		LastAction:  "test_validated",
	}, nil
}

func (v *TestValidator) validateCandidates(ctx context.Context, projectPath string, tests []state.TestClassRecord, candidates []int, results map[string]state.TestResult) error {
	compile, err := v.runner.TestCompile(ctx, projectPath)
	if err != nil {
		return fmt.Errorf("test compilation: %w", err)
	}
	if !compile.Success {
		output := compile.Stdout + compile.Stderr
		errs := maven.ParseErrors(output)
		for _, i := range candidates {
			tests[i].Status = state.TestCompilationFailed
			tests[i].Errors = errs
			results[tests[i].Name] = state.TestResult{
				Success: false,
				Status:  state.TestCompilationFailed,
				Errors:  errs,
				Output:  output,
			}
		}
		v.logger.Warn("test compilation failed", slog.Int("tests", len(candidates)))
		return nil
	}

	for _, i := range candidates {
		run, err := v.runner.Test(ctx, projectPath, tests[i].Name)
		if err != nil {
			return fmt.Errorf("run test %s: %w", tests[i].Name, err)
		}
		output := run.Stdout + run.Stderr

		result := state.TestResult{Success: run.Success, Output: output}
		if metrics, ok := maven.ParseTestMetrics(output); ok && !metrics.Passed() {
			result.Success = false
		}

		if result.Success {
			result.Status = state.TestPassed
			tests[i].Status = state.TestPassed
			tests[i].Errors = nil
		} else {
			// A test-scoped run can still break compilation, e.g. when a
			// fixed test introduces a new symbol error. Keep that distinct
			// from an assertion failure so the fixer prompt says so.
			result.Status = state.TestFailed
			if maven.IsCompilationFailure(output) {
				result.Status = state.TestCompilationFailed
			}
			result.Errors = maven.ParseErrors(output)
			result.StackTraces = maven.ParseStackTraces(output)
			tests[i].Status = result.Status
			tests[i].Errors = result.Errors
		}
		results[tests[i].Name] = result

		v.logger.Info("test validated",
			slog.String("test", tests[i].Name),
			slog.Bool("passed", result.Success))
	}
	return nil
}

func (v *TestValidator) writeTestFile(tc *state.TestClassRecord) error {
	if strings.TrimSpace(tc.Content) == "" {
		return fmt.Errorf("test %s has no content", tc.Name)
	}
	if tc.FilePath == "" {
		return fmt.Errorf("test %s has no file path", tc.Name)
	}
	if err := os.MkdirAll(filepath.Dir(tc.FilePath), 0750); err != nil {
		return fmt.Errorf("create test directory: %w", err)
	}
	if err := os.WriteFile(tc.FilePath, []byte(tc.Content), 0640); err != nil {
		return fmt.Errorf("write test file: %w", err)
	}
	return nil
}
