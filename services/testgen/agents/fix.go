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
	"strings"

	"github.com/testforgelabs/testforge/services/llm"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

// maxStackTracesInPrompt caps how many traces feed the fix prompt.
const maxStackTracesInPrompt = 3

// TestFixer rewrites failing tests from their validation errors. Retry
// accounting belongs to the orchestrator, not this stage.
type TestFixer struct {
	client llm.Client
	logger *slog.Logger
}

// NewTestFixer creates the fixer.
func NewTestFixer(client llm.Client, logger *slog.Logger) *TestFixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestFixer{client: client, logger: logger}
}

// Process implements the fix_test stage.
//
// Every failed or compilation-failed test is rewritten against its
// recorded errors and stack traces and reset to status fixed for
// revalidation.
func (f *TestFixer) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	if len(s.TestClasses) == 0 {
		return workflow.PartialUpdate{}, fmt.Errorf("no tests to fix")
	}

	tests := make([]state.TestClassRecord, len(s.TestClasses))
	fixedAny := false
	for i, tc := range s.TestClasses {
		tests[i] = tc.Clone()
		if tc.Status != state.TestFailed && tc.Status != state.TestCompilationFailed && tc.Status != state.TestError {
			continue
		}
		if tc.Content == "" {
			return workflow.PartialUpdate{}, fmt.Errorf("no test content to fix for %s", tc.Name)
		}

		f.logger.Info("fixing test", slog.String("test", tc.Name))

		result := s.TestResults[tc.Name]
		fixed, err := f.fix(ctx, &tests[i], result)
		if err != nil {
			return workflow.PartialUpdate{}, err
		}
		tests[i].Content = fixed
		tests[i].Status = state.TestFixed
		fixedAny = true
	}

	if !fixedAny {
		return workflow.PartialUpdate{LastAction: "fix_test_skipped"}, nil
	}
	return workflow.PartialUpdate{
		TestClasses: tests,
		LastAction:  "test_fixed",
	}, nil
}

func (f *TestFixer) fix(ctx context.Context, tc *state.TestClassRecord, result state.TestResult) (string, error) {
	errorLines := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errorLines = append(errorLines, "- "+e)
	}

	traces := result.StackTraces
	if len(traces) > maxStackTracesInPrompt {
		traces = traces[:maxStackTracesInPrompt]
	}

	prompt := fmt.Sprintf(fixUserPromptTemplate,
		tc.Name,
		tc.TargetClass,
		tc.Content,
		strings.Join(errorLines, "\n"),
		strings.Join(traces, "\n\n"),
	)

	raw, err := f.client.GenerateWithSystem(ctx, fixSystemPrompt, prompt, llm.GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("fix test %s: %w", tc.Name, err)
	}
	fixed := stripCodeFence(raw)
	if fixed == "" {
		return "", fmt.Errorf("fix test %s: empty completion", tc.Name)
	}
	return fixed, nil
}
