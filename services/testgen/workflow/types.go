// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow drives the test-generation pipeline as a finite state
// machine over named stages.
//
// # Description
//
// The orchestrator owns the control loop: it reads the current state from
// the state manager, invokes a stage collaborator, merges the returned
// partial update into a candidate state, and commits or rolls back that
// candidate before advancing. Stage collaborators never touch the state
// manager directly and never run while its lock is held.
//
// The machine is acyclic except for the single fix_test -> validate_test
// back-edge; termination follows from the strict retry counter increase
// bounded by the configured maximum.
package workflow

import (
	"context"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// Stage names one node of the pipeline state machine.
type Stage string

const (
	// StageAnalyzeProject scans the project and populates class records.
	StageAnalyzeProject Stage = "analyze_project"

	// StageClassAnalysis enriches each class record with full metadata.
	StageClassAnalysis Stage = "class_analysis"

	// StageGenerateTest produces one test class per analyzed class.
	StageGenerateTest Stage = "generate_test"

	// StageReviewTest reviews generated tests for quality issues.
	StageReviewTest Stage = "review_test"

	// StageValidateTest compiles and runs the generated tests.
	StageValidateTest Stage = "validate_test"

	// StageFixTest rewrites failing tests from errors and stack traces.
	StageFixTest Stage = "fix_test"

	// StageProjectValidator runs the final whole-project validation.
	StageProjectValidator Stage = "project_validator"

	// StageEndFailed is the graceful give-up node after retry exhaustion.
	StageEndFailed Stage = "end_failed"

	// StageEnd is the terminal pseudo-stage.
	StageEnd Stage = "end"
)

// StageFunc is one unit of pipeline work supplied by a collaborator.
//
// The function receives a private copy of the working state and returns a
// sparse update of top-level fields to replace. It must not retain or
// mutate the input beyond the call.
type StageFunc func(ctx context.Context, s state.ProjectState) (PartialUpdate, error)

// Stages bundles the collaborator functions for every non-terminal node.
type Stages struct {
	AnalyzeProject   StageFunc
	ClassAnalysis    StageFunc
	GenerateTest     StageFunc
	ReviewTest       StageFunc
	ValidateTest     StageFunc
	FixTest          StageFunc
	ProjectValidator StageFunc
}

// complete reports whether every stage function is wired.
func (s Stages) complete() bool {
	return s.AnalyzeProject != nil &&
		s.ClassAnalysis != nil &&
		s.GenerateTest != nil &&
		s.ReviewTest != nil &&
		s.ValidateTest != nil &&
		s.FixTest != nil &&
		s.ProjectValidator != nil
}

// PartialUpdate is the sparse set of top-level state fields a stage
// returns to be merged into the working state.
//
// Nil (or zero for strings) means "leave unchanged". The orchestrator is
// the single merge point: stages receive copies and never mutate shared
// lists in place.
type PartialUpdate struct {
	JavaClasses []state.JavaClassRecord
	TestClasses []state.TestClassRecord

	CurrentClass      *state.JavaClassRecord
	ClearCurrentClass bool

	Dependencies    []state.MavenDependency
	DependencyGraph map[string][]string

	Build *state.BuildInfo

	// TestResults entries are merged key-by-key into the state's map.
	TestResults map[string]state.TestResult

	HasSpring  *bool
	HasJUnit   *bool
	HasMockito *bool

	SourceDirectory string
	TestDirectory   string

	SummaryReport *string
	LastAction    string
}
