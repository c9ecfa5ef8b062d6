// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/testforgelabs/testforge/services/testgen/diff"
	"github.com/testforgelabs/testforge/services/testgen/state"
)

var flagDiffExport string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect saved project state",
}

var stateVerifyCmd = &cobra.Command{
	Use:   "verify <project-dir>",
	Short: "Check the saved state against the filesystem",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateVerify,
}

var stateDiffCmd = &cobra.Command{
	Use:   "diff <old-state-file> <new-state-file>",
	Short: "Compare two saved state files",
	Args:  cobra.ExactArgs(2),
	RunE:  runStateDiff,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <project-dir>",
	Short: "Summarize the saved state of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

func init() {
	stateDiffCmd.Flags().StringVar(&flagDiffExport, "export", "",
		"also write the report to this file")
	stateCmd.AddCommand(stateVerifyCmd, stateDiffCmd, stateShowCmd)
}

func loadProjectState(arg string) (*state.ProjectState, error) {
	projectPath, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	return state.LoadSavedState(projectPath)
}

func runStateVerify(cmd *cobra.Command, args []string) error {
	loaded, err := loadProjectState(args[0])
	if err != nil {
		return err
	}

	manager := state.NewManager(logger.Slog())
	if err := manager.SetState(loaded); err != nil {
		return err
	}

	report := manager.VerifyStateConsistency()
	for _, issue := range report.Issues {
		cmd.Printf("ISSUE: %s\n", issue)
	}
	for _, warning := range report.Warnings {
		cmd.Printf("warning: %s\n", warning)
	}
	if report.Consistent {
		cmd.Println("State is consistent with the filesystem.")
		return nil
	}
	return fmt.Errorf("state has %d consistency issue(s)", len(report.Issues))
}

func runStateDiff(cmd *cobra.Command, args []string) error {
	oldState, err := state.LoadState(args[0])
	if err != nil {
		return fmt.Errorf("load old state: %w", err)
	}
	newState, err := state.LoadState(args[1])
	if err != nil {
		return fmt.Errorf("load new state: %w", err)
	}

	report := diff.Diff(oldState, newState)
	cmd.Print(diff.Format(report))

	if flagDiffExport != "" {
		if err := diff.Export(report, flagDiffExport); err != nil {
			return err
		}
		cmd.Printf("Report written to %s\n", flagDiffExport)
	}
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	s, err := loadProjectState(args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Project: %s (%s)\n", s.ProjectName, s.ProjectPath)
	cmd.Printf("Build status: %s\n", s.Build.Status)
	cmd.Printf("All tests passed: %v\n", s.AllTestsPassed)
	cmd.Printf("Retries used: %d/%d\n", s.RetryCount, s.MaxRetries)
	cmd.Printf("Classes (%d):\n", len(s.JavaClasses))
	for _, c := range s.JavaClasses {
		cmd.Printf("  %-30s %s\n", c.Name, c.Status)
	}
	cmd.Printf("Tests (%d):\n", len(s.TestClasses))
	for _, tc := range s.TestClasses {
		cmd.Printf("  %-30s %s\n", tc.Name, tc.Status)
	}
	return nil
}
