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

	"github.com/testforgelabs/testforge/services/llm"
	"github.com/testforgelabs/testforge/services/testgen/state"
	"github.com/testforgelabs/testforge/services/testgen/workflow"
)

// TestReviewer reviews generated tests and flags those needing rework.
type TestReviewer struct {
	client llm.Client
	logger *slog.Logger
}

// NewTestReviewer creates the reviewer.
func NewTestReviewer(client llm.Client, logger *slog.Logger) *TestReviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestReviewer{client: client, logger: logger}
}

// Process implements the review_test stage.
//
// Every test in generated state gets reviewed; any review comment flips
// the record to needs_fixes, a clean review to reviewed. Tests already
// past review keep their status.
func (r *TestReviewer) Process(ctx context.Context, s state.ProjectState) (workflow.PartialUpdate, error) {
	if len(s.TestClasses) == 0 {
		return workflow.PartialUpdate{LastAction: "review_test_skipped"}, nil
	}

	tests := make([]state.TestClassRecord, len(s.TestClasses))
	for i, tc := range s.TestClasses {
		tests[i] = tc.Clone()
		if tc.Status != state.TestGenerated {
			continue
		}

		comments, err := r.review(ctx, &tests[i])
		if err != nil {
			return workflow.PartialUpdate{}, err
		}
		tests[i].ReviewComments = comments
		if len(comments) > 0 {
			tests[i].Status = state.TestNeedsFixes
			r.logger.Info("test needs fixes",
				slog.String("test", tc.Name),
				slog.Int("comments", len(comments)))
		} else {
			tests[i].Status = state.TestReviewed
		}
	}

	return workflow.PartialUpdate{
		TestClasses: tests,
		LastAction:  "test_reviewed",
	}, nil
}

func (r *TestReviewer) review(ctx context.Context, tc *state.TestClassRecord) ([]string, error) {
	if tc.Content == "" {
		return []string{"Test content is empty"}, nil
	}

	prompt := fmt.Sprintf(reviewUserPromptTemplate, tc.Name, tc.Content)
	raw, err := r.client.GenerateWithSystem(ctx, reviewSystemPrompt, prompt, llm.GenerationParams{})
	if err != nil {
		return nil, fmt.Errorf("review test %s: %w", tc.Name, err)
	}
	return parseReviewComments(raw), nil
}
