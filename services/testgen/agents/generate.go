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
	"path/filepath"
	"strings"

	"github.com/testforgelabs/testforge/services/llm"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

// TestGenerator produces one JUnit test class for the class under
// generation.
type TestGenerator struct {
	client llm.Client
	logger *slog.Logger
}

// NewTestGenerator creates the generator.
func NewTestGenerator(client llm.Client, logger *slog.Logger) *TestGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestGenerator{client: client, logger: logger}
}

// Process implements the generate_test stage for one class.
//
// # Description
//
// The orchestrator calls this once per analyzed class with CurrentClass
// set. An existing test record for the same class (a regeneration pass
// after review) is replaced wholesale: the returned record carries the
// reviewer's comments into the prompt but resets status to generated.
func (g *TestGenerator) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	if s.CurrentClass == nil {
		return workflow.PartialUpdate{}, fmt.Errorf("no class to generate tests for")
	}
	current := s.CurrentClass

	g.logger.Info("generating tests", slog.String("class", current.Name))

	prompt := fmt.Sprintf(generateUserPromptTemplate,
		current.Name,
		formatFieldsForPrompt(current.Fields),
		formatMethodsForPrompt(current.Methods),
	)

	// Feed prior review comments back into regeneration.
	testName := current.Name + "Test"
	if prior := s.FindTestClass(testName); prior != nil && len(prior.ReviewComments) > 0 {
		prompt += "\n\nA previous attempt was rejected in review. Address these comments:\n- " +
			strings.Join(prior.ReviewComments, "\n- ")
	}

	raw, err := g.client.GenerateWithSystem(ctx, generateSystemPrompt, prompt, llm.GenerationParams{})
	if err != nil {
		return workflow.PartialUpdate{}, fmt.Errorf("generate test for %s: %w", current.Name, err)
	}
	content := stripCodeFence(raw)
	if content == "" {
		return workflow.PartialUpdate{}, fmt.Errorf("generate test for %s: empty completion", current.Name)
	}

	record := state.TestClassRecord{
		Name:        testName,
		FilePath:    testFilePath(s.ProjectPath, current.Package, testName),
		TargetClass: current.Name,
		Content:     content,
		Status:      state.TestGenerated,
	}

	return workflow.PartialUpdate{
		TestClasses: []state.TestClassRecord{record},
		LastAction:  "test_generated",
	}, nil
}

// testFilePath places the test under the Maven test root, mirroring the
// target's package directories.
func testFilePath(projectPath, pkg, testName string) string {
	parts := []string{projectPath, "src", "test", "java"}
	if pkg != "" {
		parts = append(parts, strings.Split(pkg, ".")...)
	}
	parts = append(parts, testName+".java")
	return filepath.Join(parts...)
}
