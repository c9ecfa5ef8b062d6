// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agents implements the stage collaborators invoked by the
// pipeline orchestrator. Each collaborator receives a copy of the
// working state and returns a sparse update; none of them touch the
// state manager.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/testforgelabs/testforge/services/testgen/javaparser"
	"github.com/testforgelabs/testforge/services/testgen/maven"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

// ProjectAnalyzer scans the project tree and POM to seed the state with
// class records and dependency metadata.
type ProjectAnalyzer struct {
	parser *javaparser.Parser
	logger *slog.Logger
}

// NewProjectAnalyzer creates the analyzer.
func NewProjectAnalyzer(parser *javaparser.Parser, logger *slog.Logger) *ProjectAnalyzer {
	if parser == nil {
		parser = javaparser.NewParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectAnalyzer{parser: parser, logger: logger}
}

// Process implements the analyze_project stage.
//
// # Description
//
// Walks the project for Java sources, parses each into a class record
// (per-file failures become error records, they never abort the scan),
// builds the class dependency graph, and reads the POM for dependencies
// and framework flags. A missing project directory is a hard error; a
// missing POM only logs a warning since generation can proceed without
// dependency metadata.
func (a *ProjectAnalyzer) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	if s.ProjectPath == "" {
		return workflow.PartialUpdate{}, fmt.Errorf("project path is empty")
	}
	if _, err := os.Stat(s.ProjectPath); err != nil {
		return workflow.PartialUpdate{}, fmt.Errorf("project directory: %w", err)
	}

	a.logger.Info("analyzing project", slog.String("path", s.ProjectPath))

	records, err := a.parser.AnalyzeDirectory(ctx, s.ProjectPath)
	if err != nil {
		return workflow.PartialUpdate{}, fmt.Errorf("scan project sources: %w", err)
	}

	update := workflow.PartialUpdate{
		JavaClasses:     records,
		DependencyGraph: javaparser.DependencyGraph(records),
		SourceDirectory: filepath.Join(s.ProjectPath, "src", "main", "java"),
		TestDirectory:   filepath.Join(s.ProjectPath, "src", "test", "java"),
		LastAction:      "project_analyzed",
	}

	proj, pomErr := maven.ParsePOM(s.ProjectPath)
	if pomErr != nil {
		a.logger.Warn("could not parse pom.xml, continuing without dependency metadata",
			slog.Any("error", pomErr))
	} else {
		update.Dependencies = proj.StateDependencies()
		hasSpring := proj.HasSpring()
		hasJUnit := proj.HasJUnit()
		hasMockito := proj.HasMockito()
		update.HasSpring = &hasSpring
		update.HasJUnit = &hasJUnit
		update.HasMockito = &hasMockito
	}

	a.logger.Info("project analyzed",
		slog.Int("classes", len(records)),
		slog.Int("dependencies", len(update.Dependencies)),
	)
	return update, nil
}

// ClassAnalyzer enriches a single class record with full metadata. The
// orchestrator fans these calls out in parallel, one per class, with the
// class under analysis set as CurrentClass.
type ClassAnalyzer struct {
	parser *javaparser.Parser
	logger *slog.Logger
}

// NewClassAnalyzer creates the analyzer.
func NewClassAnalyzer(parser *javaparser.Parser, logger *slog.Logger) *ClassAnalyzer {
	if parser == nil {
		parser = javaparser.NewParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassAnalyzer{parser: parser, logger: logger}
}

// Process implements the class_analysis stage for one class.
//
// A parse failure here degrades the record to status error with the
// cause attached; downstream generation skips such records.
func (a *ClassAnalyzer) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	if s.CurrentClass == nil {
		return workflow.PartialUpdate{}, fmt.Errorf("no current class to analyze")
	}
	current := s.CurrentClass.Clone()

	if current.Status == state.ClassError {
		// Already failed during the project scan; leave the record as is.
		return workflow.PartialUpdate{CurrentClass: &current}, nil
	}

	records, err := a.parser.ParseFile(ctx, current.FilePath)
	if err != nil {
		a.logger.Warn("class analysis failed",
			slog.String("class", current.Name),
			slog.Any("error", err))
		current.Status = state.ClassError
		current.Errors = append(current.Errors, err.Error())
		return workflow.PartialUpdate{CurrentClass: &current}, nil
	}

	// A file can declare several classes; keep the one under analysis.
	enriched := records[0]
	for _, r := range records {
		if r.Name == current.Name {
			enriched = r
			break
		}
	}
	enriched.Status = state.ClassAnalyzed

	a.logger.Debug("class analyzed",
		slog.String("class", enriched.Name),
		slog.Int("fields", len(enriched.Fields)),
		slog.Int("methods", len(enriched.Methods)),
	)
	return workflow.PartialUpdate{CurrentClass: &enriched}, nil
}
