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

	"github.com/testforgelabs/testforge/services/testgen/maven"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

// ProjectValidator runs the final whole-project build and test pass and
// writes the markdown summary report.
type ProjectValidator struct {
	runner *maven.Runner
	logger *slog.Logger
}

// NewProjectValidator creates the validator.
func NewProjectValidator(runner *maven.Runner, logger *slog.Logger) *ProjectValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectValidator{runner: runner, logger: logger}
}

// Process implements the project_validator stage.
func (p *ProjectValidator) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	p.logger.Info("starting project validation", slog.String("project", s.ProjectName))

	build := state.BuildInfo{
		Status:        state.BuildRunning,
		LastBuildTime: state.NowMillis(),
		Goals:         []string{"compile", "test"},
	}

	compile, err := p.runner.Compile(ctx, s.ProjectPath)
	if err != nil {
		return workflow.PartialUpdate{}, fmt.Errorf("project build: %w", err)
	}

	var metrics maven.TestMetrics
	var failing []string
	metricsFound := false
	if !compile.Success {
		build.Status = state.BuildFailed
		build.CompilationErrors = maven.ParseErrors(compile.Stdout + compile.Stderr)
	} else {
		run, err := p.runner.Test(ctx, s.ProjectPath, "")
		if err != nil {
			return workflow.PartialUpdate{}, fmt.Errorf("project test run: %w", err)
		}
		build.DurationMillis = compile.DurationMillis + run.DurationMillis

		output := run.Stdout + run.Stderr
		metrics, metricsFound = maven.ParseTestMetrics(output)
		failing = maven.FailedTests(output)

		// The banner catches failures the exit code misses, e.g. when a
		// wrapper script swallows the status.
		success := run.Success && (!metricsFound || metrics.Passed())
		if maven.BuildOutcome(output) == "failure" {
			success = false
		}
		if success {
			build.Status = state.BuildSuccess
		} else {
			build.Status = state.BuildFailed
			build.CompilationErrors = maven.ParseErrors(output)
		}
	}

	report := summaryReport(&s, build.Status, metrics, metricsFound, failing)
	return workflow.PartialUpdate{
		Build:         &build,
		SummaryReport: &report,
		LastAction:    "project_validated",
	}, nil
}

// summaryReport renders the markdown validation report.
func summaryReport(s *state.ProjectState, status state.BuildStatus, metrics maven.TestMetrics, metricsFound bool, failing []string) string {
	passed, failed := 0, 0
	for _, r := range s.TestResults {
		if r.Success {
			passed++
		} else {
			failed++
		}
	}

	var sb strings.Builder
	sb.WriteString("# Project Validation Report\n\n")
	sb.WriteString("## Overview\n")
	sb.WriteString(fmt.Sprintf("- Total Java Classes: %d\n", len(s.JavaClasses)))
	sb.WriteString(fmt.Sprintf("- Test Classes Generated: %d\n", len(s.TestClasses)))
	sb.WriteString(fmt.Sprintf("- Overall Status: %s\n", strings.ToUpper(string(status))))

	sb.WriteString("\n## Test Results\n")
	if metricsFound {
		sb.WriteString(fmt.Sprintf("- Tests Run: %d\n", metrics.Run))
		sb.WriteString(fmt.Sprintf("- Failures: %d\n", metrics.Failures))
		sb.WriteString(fmt.Sprintf("- Errors: %d\n", metrics.Errors))
		sb.WriteString(fmt.Sprintf("- Skipped: %d\n", metrics.Skipped))
	} else {
		sb.WriteString("- No test metrics reported\n")
	}
	sb.WriteString(fmt.Sprintf("- Passed Test Classes: %d\n", passed))
	sb.WriteString(fmt.Sprintf("- Failed Test Classes: %d\n", failed))
	if len(failing) > 0 {
		sb.WriteString("\n## Failing Tests\n")
		for _, id := range failing {
			sb.WriteString(fmt.Sprintf("- %s\n", id))
		}
	}

	sb.WriteString("\n## Test Classes\n")
	for _, tc := range s.TestClasses {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", tc.Name, tc.Status))
	}

	sb.WriteString("\n## Validation Summary\n")
	switch {
	case status == state.BuildSuccess && failed == 0:
		sb.WriteString("All tests passed successfully. Project is ready for deployment.\n")
	case failed > 0:
		sb.WriteString("Some tests failed. Review the errors above and fix the issues.\n")
	default:
		sb.WriteString("Validation failed. Critical issues need to be resolved.\n")
	}
	return sb.String()
}
