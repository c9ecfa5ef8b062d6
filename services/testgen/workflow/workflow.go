// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

const (
	// DefaultMaxRetries is applied when the seed state carries none.
	DefaultMaxRetries = 3

	// analysisParallelism bounds concurrent per-class analysis.
	analysisParallelism = 4

	failureSummary = "Max retries reached. Test generation failed."
)

var (
	tracer = otel.Tracer("testforge/workflow")
	meter  = otel.Meter("testforge/workflow")

	metricsOnce   sync.Once
	stageLatency  metric.Float64Histogram
	stageOutcomes metric.Int64Counter
	pipelineRuns  metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		stageLatency, err = meter.Float64Histogram("workflow.stage.duration",
			metric.WithDescription("Stage execution latency"),
			metric.WithUnit("ms"))
		if err != nil {
			otel.Handle(err)
		}
		stageOutcomes, err = meter.Int64Counter("workflow.stage.outcomes",
			metric.WithDescription("Stage completions by status"))
		if err != nil {
			otel.Handle(err)
		}
		pipelineRuns, err = meter.Int64Counter("workflow.runs",
			metric.WithDescription("Pipeline runs by status"))
		if err != nil {
			otel.Handle(err)
		}
	})
}

func recordStage(ctx context.Context, stage Stage, start time.Time, err error) {
	initMetrics()
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("status", status),
	)
	if stageLatency != nil {
		stageLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}
	if stageOutcomes != nil {
		stageOutcomes.Add(ctx, 1, attrs)
	}
}

// Orchestrator drives the pipeline state machine.
//
// # Description
//
// The orchestrator is the only writer of shared state during a run. Each
// step reads a copy of the current state, invokes the stage collaborator
// with no lock held, then merges the returned partial update inside a
// transaction. A collaborator error aborts the run before any merge
// transaction is opened, so the state observed afterward is exactly the
// last committed one.
//
// Cross-cutting rules enforced here, never in stages:
//   - RetryCount increments exactly once per pass through fix_test
//   - AllTestsPassed is recomputed from test statuses at every merge
//   - the review -> generate_test edge is taken at most once per run
//
// # Thread Safety
//
// A single Run may be active at a time per orchestrator.
type Orchestrator struct {
	manager *state.Manager
	stages  Stages
	logger  *slog.Logger
}

// New creates an orchestrator over the given manager and collaborators.
func New(manager *state.Manager, stages Stages, logger *slog.Logger) (*Orchestrator, error) {
	if manager == nil {
		return nil, ErrNilManager
	}
	if !stages.complete() {
		return nil, ErrIncompleteStages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{manager: manager, stages: stages, logger: logger}, nil
}

// Run executes the pipeline from the seed state to a terminal node.
//
// Inputs:
//
//	ctx - Cancels the run between stages and inside collaborators.
//	initial - Seed state. RetryCount is reset to zero; a missing
//	          MaxRetries gets DefaultMaxRetries.
//
// Outputs:
//
//	*state.ProjectState - The final committed state. On the failure path
//	                      Build.Status is "failed" and SummaryReport
//	                      explains the retry exhaustion.
//	error - A *StageError wrapping the collaborator's error, returned
//	        with the state manager still at the last committed state.
func (o *Orchestrator) Run(ctx context.Context, initial *state.ProjectState) (*state.ProjectState, error) {
	if initial == nil {
		return nil, ErrNoInitialState
	}

	ctx, span := tracer.Start(ctx, "workflow.Run")
	defer span.End()
	start := time.Now()

	seed := initial.Clone()
	seed.RetryCount = 0
	if seed.MaxRetries <= 0 {
		seed.MaxRetries = DefaultMaxRetries
	}
	if err := o.manager.SetState(&seed); err != nil {
		return nil, err
	}

	o.logger.Info("pipeline started",
		slog.String("project", seed.ProjectName),
		slog.Int("classes", len(seed.JavaClasses)),
		slog.Int("max_retries", seed.MaxRetries),
	)

	regenerated := false
	current := StageAnalyzeProject
	for current != StageEnd {
		if err := ctx.Err(); err != nil {
			o.recordRun(ctx, span, start, err)
			return nil, err
		}
		next, err := o.step(ctx, current, &regenerated)
		if err != nil {
			o.recordRun(ctx, span, start, err)
			return nil, err
		}
		current = next
	}

	o.recordRun(ctx, span, start, nil)
	final := o.manager.GetState()
	o.logger.Info("pipeline finished",
		slog.String("project", final.ProjectName),
		slog.String("build_status", string(final.Build.Status)),
		slog.Bool("all_tests_passed", final.AllTestsPassed),
		slog.Int("retries_used", final.RetryCount),
	)
	return final, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, span trace.Span, start time.Time, err error) {
	initMetrics()
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	if pipelineRuns != nil {
		pipelineRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
	span.SetAttributes(attribute.Float64("duration_ms", float64(time.Since(start).Milliseconds())))
}

// step runs one stage and returns the next node.
func (o *Orchestrator) step(ctx context.Context, stage Stage, regenerated *bool) (Stage, error) {
	ctx, span := tracer.Start(ctx, "workflow.stage",
		trace.WithAttributes(attribute.String("stage", string(stage))))
	defer span.End()
	start := time.Now()

	snap := o.manager.GetState()
	if snap == nil {
		return StageEnd, state.ErrNoState
	}

	// Collaborators run against a private copy with no manager lock held.
	update, err := o.invoke(ctx, stage, snap)
	if err != nil {
		recordStage(ctx, stage, start, err)
		span.RecordError(err)
		o.logger.Error("stage failed",
			slog.String("stage", string(stage)),
			slog.Any("error", err),
		)
		return StageEnd, &StageError{Stage: stage, Err: err}
	}

	commitErr := o.manager.ExecuteWithRollback(string(stage), func() error {
		base := o.manager.GetState()
		if base == nil {
			return state.ErrNoState
		}
		merged := apply(*base, update)
		if stage == StageFixTest {
			merged.RetryCount = base.RetryCount + 1
		}
		merged.AllTestsPassed = allTestsPassed(&merged)
		return o.manager.SetState(&merged)
	})
	recordStage(ctx, stage, start, commitErr)
	if commitErr != nil {
		span.RecordError(commitErr)
		return StageEnd, &StageError{Stage: stage, Err: commitErr}
	}

	final := o.manager.GetState()
	next := o.route(stage, final, regenerated)
	o.logger.Debug("stage completed",
		slog.String("stage", string(stage)),
		slog.String("next", string(next)),
		slog.Duration("duration", time.Since(start)),
	)
	return next, nil
}

// invoke dispatches to the collaborator for the stage. end_failed is
// internal and produces its update without a collaborator.
func (o *Orchestrator) invoke(ctx context.Context, stage Stage, snap *state.ProjectState) (PartialUpdate, error) {
	switch stage {
	case StageAnalyzeProject:
		return o.stages.AnalyzeProject(ctx, *snap)
	case StageClassAnalysis:
		return o.analyzeClasses(ctx, snap)
	case StageGenerateTest:
		return o.generateTests(ctx, snap)
	case StageReviewTest:
		return o.stages.ReviewTest(ctx, *snap)
	case StageValidateTest:
		return o.stages.ValidateTest(ctx, *snap)
	case StageFixTest:
		return o.stages.FixTest(ctx, *snap)
	case StageProjectValidator:
		return o.stages.ProjectValidator(ctx, *snap)
	case StageEndFailed:
		return o.endFailed(snap), nil
	}
	return PartialUpdate{}, &StageError{Stage: stage, Err: ErrIncompleteStages}
}

// analyzeClasses fans per-class analysis out across a bounded worker
// group. Each worker sees the class under analysis as CurrentClass on its
// own copy of the state; results merge back in name order so the outcome
// is independent of completion order. Any worker error cancels the rest
// and aborts the stage.
func (o *Orchestrator) analyzeClasses(ctx context.Context, snap *state.ProjectState) (PartialUpdate, error) {
	classes := snap.JavaClasses
	results := make([]state.JavaClassRecord, len(classes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analysisParallelism)
	for i := range classes {
		i := i
		g.Go(func() error {
			view := snap.Clone()
			cc := classes[i].Clone()
			view.CurrentClass = &cc

			update, err := o.stages.ClassAnalysis(gctx, view)
			if err != nil {
				return err
			}
			if update.CurrentClass != nil {
				results[i] = update.CurrentClass.Clone()
			} else {
				results[i] = classes[i].Clone()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PartialUpdate{}, err
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })
	return PartialUpdate{
		JavaClasses:       results,
		ClearCurrentClass: true,
		LastAction:        "class_analysis_completed",
	}, nil
}

// generateTests walks analyzed classes sequentially, accumulating test
// classes keyed by generated test name. Classes that never reached
// analyzed status (errored or stale) are skipped.
func (o *Orchestrator) generateTests(ctx context.Context, snap *state.ProjectState) (PartialUpdate, error) {
	tests := mergeTestClasses(snap.TestClasses, nil)

	for i := range snap.JavaClasses {
		cls := snap.JavaClasses[i]
		if cls.Status != state.ClassAnalyzed {
			continue
		}

		view := snap.Clone()
		cc := cls.Clone()
		view.CurrentClass = &cc
		view.TestClasses = mergeTestClasses(tests, nil)

		update, err := o.stages.GenerateTest(ctx, view)
		if err != nil {
			return PartialUpdate{}, err
		}
		tests = mergeTestClasses(tests, update.TestClasses)
	}

	return PartialUpdate{
		TestClasses:       tests,
		ClearCurrentClass: true,
		LastAction:        "tests_generated",
	}, nil
}

// endFailed produces the graceful give-up update after retry exhaustion.
func (o *Orchestrator) endFailed(snap *state.ProjectState) PartialUpdate {
	build := snap.Build.Clone()
	build.Status = state.BuildFailed
	summary := failureSummary
	return PartialUpdate{
		Build:         &build,
		SummaryReport: &summary,
		LastAction:    "workflow_failed",
	}
}

// =============================================================================
// Routing
// =============================================================================

// route selects the next node after a committed stage. The topology is
// fixed; only the review and validate nodes branch.
func (o *Orchestrator) route(stage Stage, s *state.ProjectState, regenerated *bool) Stage {
	switch stage {
	case StageAnalyzeProject:
		return StageClassAnalysis
	case StageClassAnalysis:
		return StageGenerateTest
	case StageGenerateTest:
		return StageReviewTest
	case StageReviewTest:
		if shouldContinueReview(s) == StageGenerateTest && !*regenerated {
			*regenerated = true
			return StageGenerateTest
		}
		return StageValidateTest
	case StageValidateTest:
		return shouldValidate(s)
	case StageFixTest:
		return StageValidateTest
	case StageProjectValidator, StageEndFailed:
		return StageEnd
	}
	return StageEnd
}

// shouldContinueReview routes back to generation when any test still
// needs fixes, otherwise forward to validation. An empty test list goes
// forward.
func shouldContinueReview(s *state.ProjectState) Stage {
	for _, tc := range s.TestClasses {
		if tc.Status == state.TestNeedsFixes {
			return StageGenerateTest
		}
	}
	return StageValidateTest
}

// shouldValidate decides between finishing, another fix attempt, and
// giving up. AllTestsPassed was recomputed at merge time, so the decision
// never trusts a stage-reported flag.
func shouldValidate(s *state.ProjectState) Stage {
	if s.AllTestsPassed {
		return StageProjectValidator
	}
	if s.RetryCount < s.MaxRetries {
		return StageFixTest
	}
	return StageEndFailed
}
