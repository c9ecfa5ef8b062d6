// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"github.com/testforgelabs/testforge/services/testgen/state"
)

// apply merges a sparse stage update into a copy of the base state.
//
// Top-level fields replace wholesale when present; TestResults entries
// merge key by key. Everything copied in is deep-cloned so the update and
// the merged state never alias.
func apply(base state.ProjectState, u PartialUpdate) state.ProjectState {
	out := base.Clone()

	if u.JavaClasses != nil {
		out.JavaClasses = make([]state.JavaClassRecord, len(u.JavaClasses))
		for i, c := range u.JavaClasses {
			out.JavaClasses[i] = c.Clone()
		}
	}

	if u.TestClasses != nil {
		out.TestClasses = make([]state.TestClassRecord, len(u.TestClasses))
		for i, tc := range u.TestClasses {
			out.TestClasses[i] = tc.Clone()
		}
	}

	if u.CurrentClass != nil {
		cc := u.CurrentClass.Clone()
		out.CurrentClass = &cc
	}
	if u.ClearCurrentClass {
		out.CurrentClass = nil
	}

	if u.Dependencies != nil {
		out.Dependencies = append([]state.MavenDependency(nil), u.Dependencies...)
	}

	if u.DependencyGraph != nil {
		out.DependencyGraph = make(map[string][]string, len(u.DependencyGraph))
		for k, v := range u.DependencyGraph {
			out.DependencyGraph[k] = append([]string(nil), v...)
		}
	}

	if u.Build != nil {
		out.Build = u.Build.Clone()
	}

	if u.TestResults != nil {
		if out.TestResults == nil {
			out.TestResults = make(map[string]state.TestResult, len(u.TestResults))
		}
		for k, v := range u.TestResults {
			out.TestResults[k] = v.Clone()
		}
	}

	if u.HasSpring != nil {
		out.HasSpring = *u.HasSpring
	}
	if u.HasJUnit != nil {
		out.HasJUnit = *u.HasJUnit
	}
	if u.HasMockito != nil {
		out.HasMockito = *u.HasMockito
	}

	if u.SourceDirectory != "" {
		out.SourceDirectory = u.SourceDirectory
	}
	if u.TestDirectory != "" {
		out.TestDirectory = u.TestDirectory
	}

	if u.SummaryReport != nil {
		out.SummaryReport = *u.SummaryReport
	}
	if u.LastAction != "" {
		out.LastAction = u.LastAction
	}

	return out
}

// mergeTestClasses folds updates into the existing list keyed by test
// name: a matching name replaces the record, a new name appends. The
// result is a fresh slice.
func mergeTestClasses(existing, updates []state.TestClassRecord) []state.TestClassRecord {
	out := make([]state.TestClassRecord, len(existing))
	for i, tc := range existing {
		out[i] = tc.Clone()
	}
	for _, u := range updates {
		replaced := false
		for i := range out {
			if out[i].Name == u.Name {
				out[i] = u.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u.Clone())
		}
	}
	return out
}

// allTestsPassed recomputes the derived flag from test class statuses and
// validation results. Stages never set this flag themselves; the
// orchestrator derives it at every merge. A state with no test classes is
// vacuously passing.
func allTestsPassed(s *state.ProjectState) bool {
	for _, tc := range s.TestClasses {
		if tc.Status != state.TestPassed {
			return false
		}
	}
	for _, r := range s.TestResults {
		if !r.Success {
			return false
		}
	}
	return true
}
