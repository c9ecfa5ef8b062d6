// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package state implements the transactional project model shared by all
// pipeline stages.
//
// # Description
//
// The package owns the ProjectState aggregate (analyzed Java classes,
// generated test classes, Maven build status), a Manager that brackets every
// mutation between snapshots, and consistency auditing against the
// filesystem the state describes.
//
// Design principles:
//   - Concrete tagged structs only, no map[string]any records
//   - Timestamps as int64 UnixMilli per project conventions
//   - Callers never receive the live state, only deep copies
package state

import (
	"time"
)

// =============================================================================
// Status Enums
// =============================================================================

// ClassStatus tracks the analysis lifecycle of a source class.
type ClassStatus string

const (
	// ClassPending indicates the class has not been analyzed yet.
	ClassPending ClassStatus = "pending"

	// ClassAnalyzed indicates analysis completed and metadata is populated.
	ClassAnalyzed ClassStatus = "analyzed"

	// ClassError indicates analysis failed; Errors carries the cause.
	ClassError ClassStatus = "error"

	// ClassStale indicates the on-disk file changed after analysis.
	ClassStale ClassStatus = "stale"
)

// TestStatus tracks the lifecycle of a generated test class.
type TestStatus string

const (
	// TestGenerated indicates the test was produced by the generation stage.
	TestGenerated TestStatus = "generated"

	// TestReviewed indicates review found no blocking comments.
	TestReviewed TestStatus = "reviewed"

	// TestNeedsFixes indicates review produced actionable comments.
	TestNeedsFixes TestStatus = "needs_fixes"

	// TestFixed indicates the fix stage rewrote the test content.
	TestFixed TestStatus = "fixed"

	// TestPassed indicates the test compiled and passed. Terminal.
	TestPassed TestStatus = "passed"

	// TestFailed indicates the test ran and failed.
	TestFailed TestStatus = "failed"

	// TestError indicates validation could not run the test.
	TestError TestStatus = "error"

	// TestCompilationFailed indicates the project did not compile with
	// the test in place.
	TestCompilationFailed TestStatus = "compilation_failed"
)

// BuildStatus tracks the outcome of the most recent Maven invocation.
type BuildStatus string

const (
	// BuildNotBuilt indicates no build has run yet.
	BuildNotBuilt BuildStatus = "not_built"

	// BuildRunning indicates a build is in flight.
	BuildRunning BuildStatus = "running"

	// BuildSuccess indicates the last build succeeded.
	BuildSuccess BuildStatus = "success"

	// BuildFailed indicates the last build failed.
	BuildFailed BuildStatus = "failed"

	// BuildError indicates the build tool itself could not run.
	BuildError BuildStatus = "error"
)

// =============================================================================
// Class Records
// =============================================================================

// AnnotationRecord is a Java annotation attached to a class, field or method.
type AnnotationRecord struct {
	Name     string            `json:"name"`
	Elements map[string]string `json:"elements,omitempty"`
}

// ParameterRecord is a single method parameter.
type ParameterRecord struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FieldRecord describes one declared field of a Java class.
type FieldRecord struct {
	Name        string             `json:"name" validate:"required"`
	Type        string             `json:"type"`
	Modifiers   []string           `json:"modifiers,omitempty"`
	IsStatic    bool               `json:"is_static,omitempty"`
	IsFinal     bool               `json:"is_final,omitempty"`
	Annotations []AnnotationRecord `json:"annotations,omitempty"`
	LineNumber  int                `json:"line_number,omitempty"`
}

// MethodRecord describes one declared method of a Java class.
type MethodRecord struct {
	Name        string             `json:"name" validate:"required"`
	ReturnType  string             `json:"return_type"`
	Parameters  []ParameterRecord  `json:"parameters,omitempty"`
	Modifiers   []string           `json:"modifiers,omitempty"`
	Annotations []AnnotationRecord `json:"annotations,omitempty"`
	Throws      []string           `json:"throws,omitempty"`
	IsAbstract  bool               `json:"is_abstract,omitempty"`
	LineNumber  int                `json:"line_number,omitempty"`
}

// ImportRecord describes one import declaration.
type ImportRecord struct {
	Name       string `json:"name"`
	IsStatic   bool   `json:"is_static,omitempty"`
	IsWildcard bool   `json:"is_wildcard,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
}

// JavaClassRecord is the analyzed view of one source class.
//
// Invariant: FilePath is never empty once Status is ClassAnalyzed. The
// Manager enforces this at the SetState boundary.
type JavaClassRecord struct {
	Name          string             `json:"name" validate:"required"`
	QualifiedName string             `json:"qualified_name,omitempty"`
	FilePath      string             `json:"file_path"`
	Package       string             `json:"package,omitempty"`
	Content       string             `json:"content,omitempty"`
	Status        ClassStatus        `json:"status"`
	Fields        []FieldRecord      `json:"fields"`
	Methods       []MethodRecord     `json:"methods"`
	Imports       []ImportRecord     `json:"imports"`
	Annotations   []AnnotationRecord `json:"annotations,omitempty"`
	Errors        []string           `json:"errors,omitempty"`

	// LastModified is the source file's mtime (UnixMilli) at analysis
	// time. Zero means unrecorded; consistency checks skip drift
	// detection for such records.
	LastModified int64 `json:"last_modified,omitempty"`
}

// Clone returns a deep copy of the record.
func (c JavaClassRecord) Clone() JavaClassRecord {
	out := c
	out.Fields = cloneFields(c.Fields)
	out.Methods = cloneMethods(c.Methods)
	out.Imports = append([]ImportRecord(nil), c.Imports...)
	out.Annotations = cloneAnnotations(c.Annotations)
	out.Errors = append([]string(nil), c.Errors...)
	return out
}

// TestClassRecord is one generated test class.
//
// Lifecycle: created by the generation stage, mutated by review, validate
// and fix stages, terminal at TestPassed or after retry exhaustion.
type TestClassRecord struct {
	Name           string     `json:"name" validate:"required"`
	FilePath       string     `json:"file_path"`
	TargetClass    string     `json:"target_class"`
	Content        string     `json:"content,omitempty"`
	Status         TestStatus `json:"status"`
	ReviewComments []string   `json:"review_comments,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
}

// Clone returns a deep copy of the record.
func (tc TestClassRecord) Clone() TestClassRecord {
	out := tc
	out.ReviewComments = append([]string(nil), tc.ReviewComments...)
	out.Errors = append([]string(nil), tc.Errors...)
	return out
}

// =============================================================================
// Build and Test Results
// =============================================================================

// MavenDependency is one dependency declared in the project POM.
type MavenDependency struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Type       string `json:"type,omitempty"`
	IsTest     bool   `json:"is_test,omitempty"`
}

// BuildInfo aggregates the most recent build outcome.
type BuildInfo struct {
	Status            BuildStatus `json:"build_status"`
	LastBuildTime     int64       `json:"last_build_time,omitempty"` // UnixMilli
	DurationMillis    int64       `json:"build_duration_ms,omitempty"`
	Goals             []string    `json:"goals,omitempty"`
	CompilationErrors []string    `json:"compilation_errors,omitempty"`
}

// Clone returns a deep copy of the build info.
func (b BuildInfo) Clone() BuildInfo {
	out := b
	out.Goals = append([]string(nil), b.Goals...)
	out.CompilationErrors = append([]string(nil), b.CompilationErrors...)
	return out
}

// TestResult is the validation outcome of one test class.
type TestResult struct {
	Success     bool       `json:"success"`
	Status      TestStatus `json:"status"`
	Errors      []string   `json:"errors,omitempty"`
	StackTraces []string   `json:"stack_traces,omitempty"`
	Output      string     `json:"output,omitempty"`
}

// Clone returns a deep copy of the result.
func (r TestResult) Clone() TestResult {
	out := r
	out.Errors = append([]string(nil), r.Errors...)
	out.StackTraces = append([]string(nil), r.StackTraces...)
	return out
}

// =============================================================================
// Project State
// =============================================================================

// ProjectState is the root aggregate driven through the pipeline.
//
// AllTestsPassed is derived, never authoritative: the orchestrator
// recomputes it from TestClasses and TestResults whenever it is compared.
type ProjectState struct {
	ProjectPath string `json:"project_path" validate:"required"`
	ProjectName string `json:"project_name" validate:"required"`

	JavaClasses  []JavaClassRecord `json:"java_classes" validate:"dive"`
	TestClasses  []TestClassRecord `json:"test_classes" validate:"dive"`
	CurrentClass *JavaClassRecord  `json:"current_class,omitempty"`

	Dependencies    []MavenDependency   `json:"dependencies"`
	DependencyGraph map[string][]string `json:"dependency_graph,omitempty"`

	Build BuildInfo `json:"build_status"`

	SourceDirectory string `json:"source_directory,omitempty"`
	TestDirectory   string `json:"test_directory,omitempty"`

	HasSpring  bool `json:"has_spring,omitempty"`
	HasJUnit   bool `json:"has_junit,omitempty"`
	HasMockito bool `json:"has_mockito,omitempty"`

	// RetryCount counts passes through the fix stage. The orchestrator
	// maintains 0 <= RetryCount <= MaxRetries.
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	TestResults    map[string]TestResult `json:"test_results,omitempty"`
	AllTestsPassed bool                  `json:"all_tests_passed"`

	SummaryReport string `json:"summary_report,omitempty"`
	LastAction    string `json:"last_action,omitempty"`
}

// Clone returns a deep copy of the state. Every boundary that hands state
// to a caller or accepts state from one goes through Clone so the live
// instance is never aliased.
func (s ProjectState) Clone() ProjectState {
	out := s

	out.JavaClasses = make([]JavaClassRecord, len(s.JavaClasses))
	for i, c := range s.JavaClasses {
		out.JavaClasses[i] = c.Clone()
	}

	out.TestClasses = make([]TestClassRecord, len(s.TestClasses))
	for i, tc := range s.TestClasses {
		out.TestClasses[i] = tc.Clone()
	}

	if s.CurrentClass != nil {
		cc := s.CurrentClass.Clone()
		out.CurrentClass = &cc
	}

	out.Dependencies = append([]MavenDependency(nil), s.Dependencies...)

	if s.DependencyGraph != nil {
		out.DependencyGraph = make(map[string][]string, len(s.DependencyGraph))
		for k, v := range s.DependencyGraph {
			out.DependencyGraph[k] = append([]string(nil), v...)
		}
	}

	out.Build = s.Build.Clone()

	if s.TestResults != nil {
		out.TestResults = make(map[string]TestResult, len(s.TestResults))
		for k, v := range s.TestResults {
			out.TestResults[k] = v.Clone()
		}
	}

	return out
}

// FindClass returns a pointer into the receiver's JavaClasses slice for
// the named class, or nil if absent.
func (s *ProjectState) FindClass(name string) *JavaClassRecord {
	for i := range s.JavaClasses {
		if s.JavaClasses[i].Name == name {
			return &s.JavaClasses[i]
		}
	}
	return nil
}

// FindTestClass returns a pointer into the receiver's TestClasses slice
// for the named test, or nil if absent.
func (s *ProjectState) FindTestClass(name string) *TestClassRecord {
	for i := range s.TestClasses {
		if s.TestClasses[i].Name == name {
			return &s.TestClasses[i]
		}
	}
	return nil
}

// NowMillis returns the current wall clock as UnixMilli.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// =============================================================================
// Clone helpers
// =============================================================================

func cloneFields(in []FieldRecord) []FieldRecord {
	out := make([]FieldRecord, len(in))
	for i, f := range in {
		out[i] = f
		out[i].Modifiers = append([]string(nil), f.Modifiers...)
		out[i].Annotations = cloneAnnotations(f.Annotations)
	}
	return out
}

func cloneMethods(in []MethodRecord) []MethodRecord {
	out := make([]MethodRecord, len(in))
	for i, m := range in {
		out[i] = m
		out[i].Parameters = append([]ParameterRecord(nil), m.Parameters...)
		out[i].Modifiers = append([]string(nil), m.Modifiers...)
		out[i].Annotations = cloneAnnotations(m.Annotations)
		out[i].Throws = append([]string(nil), m.Throws...)
	}
	return out
}

func cloneAnnotations(in []AnnotationRecord) []AnnotationRecord {
	if in == nil {
		return nil
	}
	out := make([]AnnotationRecord, len(in))
	for i, a := range in {
		out[i] = a
		if a.Elements != nil {
			out[i].Elements = make(map[string]string, len(a.Elements))
			for k, v := range a.Elements {
				out[i].Elements[k] = v
			}
		}
	}
	return out
}
