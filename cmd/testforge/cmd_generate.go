// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/testforgelabs/testforge/cmd/testforge/config"
	"github.com/testforgelabs/testforge/services/llm"
	"github.com/testforgelabs/testforge/services/testgen/agents"
	"github.com/testforgelabs/testforge/services/testgen/diff"
	"github.com/testforgelabs/testforge/services/testgen/javaparser"
	"github.com/testforgelabs/testforge/services/testgen/maven"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

var (
	flagMaxRetries  int
	flagProjectName string
	flagNoSave      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <project-dir>",
	Short: "Generate and validate JUnit tests for a Maven project",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&flagMaxRetries, "max-retries", 0,
		"fix attempts per run before giving up (0 uses the config value)")
	generateCmd.Flags().StringVar(&flagProjectName, "project-name", "",
		"project name recorded in the state (default: directory name)")
	generateCmd.Flags().BoolVar(&flagNoSave, "no-save", false,
		"skip writing the state file after the run")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	projectPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Global
	manager := state.NewManager(logger.Slog())

	stages, err := buildStages(cfg)
	if err != nil {
		return err
	}
	orchestrator, err := workflow.New(manager, stages, logger.Slog())
	if err != nil {
		return err
	}

	if cfg.Pipeline.WatchSources {
		watcher, werr := state.NewWatcher(manager, logger.Slog())
		if werr != nil {
			logger.Warn("source watcher unavailable", "error", werr)
		} else {
			defer watcher.Close()
			go trackLoop(ctx, watcher, manager)
		}
	}

	name := flagProjectName
	if name == "" {
		name = filepath.Base(projectPath)
	}
	maxRetries := flagMaxRetries
	if maxRetries <= 0 {
		maxRetries = cfg.Pipeline.MaxRetries
	}

	initial := &state.ProjectState{
		ProjectPath: projectPath,
		ProjectName: name,
		MaxRetries:  maxRetries,
		Build:       state.BuildInfo{Status: state.BuildNotBuilt},
	}

	final, err := orchestrator.Run(ctx, initial)
	if err != nil {
		return err
	}

	if !flagNoSave {
		// Show what changed against the previous run before the file gets
		// overwritten.
		report, derr := diff.CompareWithSaved(manager, projectPath)
		switch {
		case derr == nil:
			cmd.Println("\nChanges since last run:")
			cmd.Print(report)
		case !errors.Is(derr, diff.ErrNoSavedState):
			logger.Warn("could not compare with saved state", "error", derr)
		}

		if err := state.SaveCurrentState(manager, projectPath); err != nil {
			logger.Warn("could not save state file", "error", err)
		}
	}

	printRunSummary(cmd, final)
	if final.Build.Status != state.BuildSuccess {
		return fmt.Errorf("test generation did not fully succeed (build status: %s)", final.Build.Status)
	}
	return nil
}

func buildStages(cfg config.TestForgeConfig) (workflow.Stages, error) {
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return workflow.Stages{}, err
	}
	var backend llm.Client = client
	if cfg.LLM.RequestsPerSecond > 0 {
		backend = llm.NewRateLimited(client, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	}

	runner := maven.NewRunner(logger.Slog(),
		maven.WithBinary(cfg.Maven.Binary),
		maven.WithTimeout(time.Duration(cfg.Maven.TimeoutSeconds)*time.Second),
	)
	parser := javaparser.NewParser()
	log := logger.Slog()

	return workflow.Stages{
		AnalyzeProject:   agents.NewProjectAnalyzer(parser, log).Process,
		ClassAnalysis:    agents.NewClassAnalyzer(parser, log).Process,
		GenerateTest:     agents.NewTestGenerator(backend, log).Process,
		ReviewTest:       agents.NewTestReviewer(backend, log).Process,
		ValidateTest:     agents.NewTestValidator(runner, log).Process,
		FixTest:          agents.NewTestFixer(backend, log).Process,
		ProjectValidator: agents.NewProjectValidator(runner, log).Process,
	}, nil
}

// trackLoop keeps the watcher in sync with classes as they get analyzed
// so edits to already-analyzed sources flip them stale mid-run.
func trackLoop(ctx context.Context, w *state.Watcher, m *state.Manager) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Track(m.GetState()); err != nil {
				return
			}
		}
	}
}

func printRunSummary(cmd *cobra.Command, s *state.ProjectState) {
	cmd.Printf("\nProject: %s\n", s.ProjectName)
	cmd.Printf("Build status: %s\n", s.Build.Status)
	cmd.Printf("Classes analyzed: %d\n", len(s.JavaClasses))
	cmd.Printf("Tests generated: %d\n", len(s.TestClasses))
	cmd.Printf("Retries used: %d/%d\n", s.RetryCount, s.MaxRetries)
	if s.SummaryReport != "" {
		cmd.Printf("\n%s\n", s.SummaryReport)
	}
}
