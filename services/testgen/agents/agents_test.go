// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforgelabs/testforge/services/llm"
	"github.com/testforgelabs/testforge/services/testgen/maven"
	"github.com/testforgelabs/testforge/services/testgen/state"
)

// fakeLLM returns scripted responses in order, repeating the last one.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return f.GenerateWithSystem(ctx, "", prompt, params)
}

func (f *fakeLLM) GenerateWithSystem(ctx context.Context, system, prompt string, _ llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.prompts = append(f.prompts, prompt)
	if len(f.responses) == 0 {
		return "", nil
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

func classUnderTest() *state.JavaClassRecord {
	return &state.JavaClassRecord{
		Name:     "Calculator",
		Package:  "com.example.math",
		FilePath: "/tmp/calc/src/main/java/com/example/math/Calculator.java",
		Status:   state.ClassAnalyzed,
		Fields:   []state.FieldRecord{{Name: "history", Type: "List<Double>"}},
		Methods: []state.MethodRecord{
			{Name: "add", ReturnType: "double", Modifiers: []string{"public"},
				Parameters: []state.ParameterRecord{{Name: "a", Type: "double"}, {Name: "b", Type: "double"}}},
		},
	}
}

// =============================================================================
// Prompt helpers
// =============================================================================

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain code", "class FooTest {}", "class FooTest {}"},
		{"java fence", "```java\nclass FooTest {}\n```", "class FooTest {}"},
		{"bare fence", "```\nclass FooTest {}\n```", "class FooTest {}"},
		{"leading whitespace", "  ```java\nclass FooTest {}\n```  ", "class FooTest {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

func TestParseReviewComments(t *testing.T) {
	assert.Nil(t, parseReviewComments("No issues found"))
	assert.Nil(t, parseReviewComments("looks good"))
	assert.Nil(t, parseReviewComments(""))

	comments := parseReviewComments("Here are the review comments:\n- Missing assertion in testAdd\n2. Use AssertJ instead of JUnit assertions\n")
	require.Len(t, comments, 2)
	assert.Equal(t, "Missing assertion in testAdd", comments[0])
	assert.Equal(t, "Use AssertJ instead of JUnit assertions", comments[1])
}

func TestFormatForPrompt(t *testing.T) {
	c := classUnderTest()
	methods := formatMethodsForPrompt(c.Methods)
	assert.Contains(t, methods, "public double add(double a, double b)")
	assert.Equal(t, "No methods found", formatMethodsForPrompt(nil))

	fields := formatFieldsForPrompt(c.Fields)
	assert.Contains(t, fields, "List<Double> history")
	assert.Equal(t, "No fields found", formatFieldsForPrompt(nil))
}

// =============================================================================
// Generation
// =============================================================================

func TestGeneratorProcess(t *testing.T) {
	fake := &fakeLLM{responses: []string{"```java\nclass CalculatorTest {}\n```"}}
	g := NewTestGenerator(fake, nil)

	s := state.ProjectState{ProjectPath: "/tmp/calc", ProjectName: "calc", CurrentClass: classUnderTest()}
	update, err := g.Process(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, update.TestClasses, 1)
	tc := update.TestClasses[0]
	assert.Equal(t, "CalculatorTest", tc.Name)
	assert.Equal(t, "Calculator", tc.TargetClass)
	assert.Equal(t, state.TestGenerated, tc.Status)
	assert.Equal(t, "class CalculatorTest {}", tc.Content)
	assert.Equal(t,
		filepath.Join("/tmp/calc", "src", "test", "java", "com", "example", "math", "CalculatorTest.java"),
		tc.FilePath)

	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "Class Name: Calculator")
	assert.Contains(t, fake.prompts[0], "public double add")
}

func TestGeneratorFeedsReviewCommentsBack(t *testing.T) {
	fake := &fakeLLM{responses: []string{"class CalculatorTest {}"}}
	g := NewTestGenerator(fake, nil)

	s := state.ProjectState{
		ProjectPath:  "/tmp/calc",
		CurrentClass: classUnderTest(),
		TestClasses: []state.TestClassRecord{{
			Name:           "CalculatorTest",
			Status:         state.TestNeedsFixes,
			ReviewComments: []string{"Cover the division by zero case"},
		}},
	}
	_, err := g.Process(context.Background(), s)
	require.NoError(t, err)
	assert.Contains(t, fake.prompts[0], "Cover the division by zero case")
}

func TestGeneratorErrors(t *testing.T) {
	g := NewTestGenerator(&fakeLLM{}, nil)
	_, err := g.Process(context.Background(), state.ProjectState{})
	assert.Error(t, err, "no current class")

	boom := errors.New("backend down")
	g = NewTestGenerator(&fakeLLM{err: boom}, nil)
	_, err = g.Process(context.Background(), state.ProjectState{CurrentClass: classUnderTest()})
	assert.ErrorIs(t, err, boom)

	g = NewTestGenerator(&fakeLLM{responses: []string{"   "}}, nil)
	_, err = g.Process(context.Background(), state.ProjectState{CurrentClass: classUnderTest()})
	assert.ErrorContains(t, err, "empty completion")
}

// =============================================================================
// Review
// =============================================================================

func TestReviewerFlagsNeedsFixes(t *testing.T) {
	fake := &fakeLLM{responses: []string{"- Missing negative test cases\n- No @DisplayName annotations"}}
	r := NewTestReviewer(fake, nil)

	s := state.ProjectState{TestClasses: []state.TestClassRecord{
		{Name: "CalculatorTest", Content: "class CalculatorTest {}", Status: state.TestGenerated},
		{Name: "OrderTest", Content: "class OrderTest {}", Status: state.TestPassed},
	}}
	update, err := r.Process(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, update.TestClasses, 2)
	assert.Equal(t, state.TestNeedsFixes, update.TestClasses[0].Status)
	assert.Len(t, update.TestClasses[0].ReviewComments, 2)
	// Tests past review keep their status.
	assert.Equal(t, state.TestPassed, update.TestClasses[1].Status)
}

func TestReviewerCleanReview(t *testing.T) {
	fake := &fakeLLM{responses: []string{"No issues found"}}
	r := NewTestReviewer(fake, nil)

	s := state.ProjectState{TestClasses: []state.TestClassRecord{
		{Name: "CalculatorTest", Content: "class CalculatorTest {}", Status: state.TestGenerated},
	}}
	update, err := r.Process(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, state.TestReviewed, update.TestClasses[0].Status)
	assert.Empty(t, update.TestClasses[0].ReviewComments)
}

func TestReviewerEmptyContent(t *testing.T) {
	r := NewTestReviewer(&fakeLLM{}, nil)
	s := state.ProjectState{TestClasses: []state.TestClassRecord{
		{Name: "CalculatorTest", Status: state.TestGenerated},
	}}
	update, err := r.Process(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, state.TestNeedsFixes, update.TestClasses[0].Status)
	assert.Equal(t, []string{"Test content is empty"}, update.TestClasses[0].ReviewComments)
}

// =============================================================================
// Fix
// =============================================================================

func TestFixerRewritesFailedTests(t *testing.T) {
	fake := &fakeLLM{responses: []string{"```java\nclass CalculatorTest { /* fixed */ }\n```"}}
	f := NewTestFixer(fake, nil)

	s := state.ProjectState{
		TestClasses: []state.TestClassRecord{
			{Name: "CalculatorTest", Content: "class CalculatorTest {}", Status: state.TestFailed, TargetClass: "Calculator"},
			{Name: "OrderTest", Content: "class OrderTest {}", Status: state.TestPassed},
		},
		TestResults: map[string]state.TestResult{
			"CalculatorTest": {
				Success:     false,
				Errors:      []string{"expected:<4.0> but was:<5.0>"},
				StackTraces: []string{"org.opentest4j.AssertionFailedError\n\tat CalculatorTest.testAdd"},
			},
		},
	}
	update, err := f.Process(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, state.TestFixed, update.TestClasses[0].Status)
	assert.Contains(t, update.TestClasses[0].Content, "fixed")
	assert.Equal(t, state.TestPassed, update.TestClasses[1].Status)

	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "expected:<4.0> but was:<5.0>")
	assert.Contains(t, fake.prompts[0], "AssertionFailedError")
}

func TestFixerNothingToFix(t *testing.T) {
	f := NewTestFixer(&fakeLLM{}, nil)
	s := state.ProjectState{TestClasses: []state.TestClassRecord{
		{Name: "CalculatorTest", Content: "x", Status: state.TestPassed},
	}}
	update, err := f.Process(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, update.TestClasses)
	assert.Equal(t, "fix_test_skipped", update.LastAction)
}

func TestFixerNoTests(t *testing.T) {
	f := NewTestFixer(&fakeLLM{}, nil)
	_, err := f.Process(context.Background(), state.ProjectState{})
	assert.Error(t, err)
}

// =============================================================================
// Project analysis
// =============================================================================

func TestProjectAnalyzerProcess(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src", "main", "java", "com", "example")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "Calculator.java"),
		[]byte("package com.example;\npublic class Calculator { public int add(int a, int b) { return a + b; } }\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pom.xml"), []byte(`<project>
  <groupId>com.example</groupId><artifactId>calc</artifactId><version>1.0</version>
  <dependencies>
    <dependency><groupId>org.junit.jupiter</groupId><artifactId>junit-jupiter</artifactId><scope>test</scope></dependency>
  </dependencies>
</project>`), 0644))

	a := NewProjectAnalyzer(nil, nil)
	update, err := a.Process(context.Background(), state.ProjectState{ProjectPath: dir, ProjectName: "calc"})
	require.NoError(t, err)

	require.Len(t, update.JavaClasses, 1)
	assert.Equal(t, "Calculator", update.JavaClasses[0].Name)
	assert.Equal(t, state.ClassAnalyzed, update.JavaClasses[0].Status)
	require.Len(t, update.Dependencies, 1)
	require.NotNil(t, update.HasJUnit)
	assert.True(t, *update.HasJUnit)
	require.NotNil(t, update.HasSpring)
	assert.False(t, *update.HasSpring)
	assert.Equal(t, filepath.Join(dir, "src", "test", "java"), update.TestDirectory)
}

func TestProjectAnalyzerMissingDir(t *testing.T) {
	a := NewProjectAnalyzer(nil, nil)
	_, err := a.Process(context.Background(), state.ProjectState{ProjectPath: "/nonexistent/project"})
	assert.Error(t, err)
}

func TestClassAnalyzerEnriches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Calculator.java")
	require.NoError(t, os.WriteFile(path,
		[]byte("package com.example;\npublic class Calculator { private int count;\n public int add(int a, int b) { return a + b; } }\n"), 0644))

	a := NewClassAnalyzer(nil, nil)
	s := state.ProjectState{CurrentClass: &state.JavaClassRecord{
		Name: "Calculator", FilePath: path, Status: state.ClassPending,
	}}
	update, err := a.Process(context.Background(), s)
	require.NoError(t, err)

	require.NotNil(t, update.CurrentClass)
	assert.Equal(t, state.ClassAnalyzed, update.CurrentClass.Status)
	assert.Len(t, update.CurrentClass.Fields, 1)
	assert.Len(t, update.CurrentClass.Methods, 1)
	assert.NotZero(t, update.CurrentClass.LastModified)
}

func TestClassAnalyzerDegradesToErrorRecord(t *testing.T) {
	a := NewClassAnalyzer(nil, nil)
	s := state.ProjectState{CurrentClass: &state.JavaClassRecord{
		Name: "Ghost", FilePath: "/nonexistent/Ghost.java", Status: state.ClassPending,
	}}
	update, err := a.Process(context.Background(), s)
	require.NoError(t, err, "parse failures degrade the record, they do not abort the stage")
	require.NotNil(t, update.CurrentClass)
	assert.Equal(t, state.ClassError, update.CurrentClass.Status)
	assert.NotEmpty(t, update.CurrentClass.Errors)
}

// =============================================================================
// Validation (Maven runs go through a stand-in script)
// =============================================================================

// fakeMaven writes an executable shell script standing in for mvn and
// returns a runner bound to it.
func fakeMaven(t *testing.T, script string) *maven.Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mvn.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return maven.NewRunner(nil, maven.WithBinary(path))
}

func TestValidatorRecordsWriteFailures(t *testing.T) {
	v := NewTestValidator(maven.NewRunner(nil), nil)
	s := state.ProjectState{
		ProjectPath: t.TempDir(),
		TestClasses: []state.TestClassRecord{
			{Name: "EmptyTest", Status: state.TestGenerated}, // no content
		},
	}
	update, err := v.Process(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, state.TestError, update.TestClasses[0].Status)
	result, ok := update.TestResults["EmptyTest"]
	require.True(t, ok)
	assert.False(t, result.Success)
	assert.Equal(t, state.TestError, result.Status)
}

func TestValidatorSkipsWithoutTests(t *testing.T) {
	v := NewTestValidator(maven.NewRunner(nil), nil)
	update, err := v.Process(context.Background(), state.ProjectState{ProjectPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "validate_test_skipped", update.LastAction)
}

func TestValidatorFlagsCompilationBreakageDuringRun(t *testing.T) {
	runner := fakeMaven(t, `case "$*" in
  *test-compile*) echo "[INFO] BUILD SUCCESS" ;;
  *) echo "[ERROR] COMPILATION ERROR :"
     echo "[ERROR] /src/CalculatorTest.java:[12,8] cannot find symbol"
     exit 1 ;;
esac
`)
	dir := t.TempDir()
	v := NewTestValidator(runner, nil)
	s := state.ProjectState{
		ProjectPath: dir,
		TestClasses: []state.TestClassRecord{{
			Name:     "CalculatorTest",
			FilePath: filepath.Join(dir, "CalculatorTest.java"),
			Content:  "class CalculatorTest {}",
			Status:   state.TestFixed,
		}},
	}

	update, err := v.Process(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, state.TestCompilationFailed, update.TestClasses[0].Status)
	result := update.TestResults["CalculatorTest"]
	assert.Equal(t, state.TestCompilationFailed, result.Status)
	assert.NotEmpty(t, result.Errors)
}

func TestProjectValidatorBannerOverridesExitCode(t *testing.T) {
	// mvn wrappers sometimes swallow the exit status; the failure banner
	// still has to fail the build.
	runner := fakeMaven(t, `case "$*" in
  *" compile") echo "[INFO] BUILD SUCCESS" ;;
  *) echo "Tests run: 3, Failures: 0, Errors: 0, Skipped: 0"
     echo "[INFO] BUILD FAILURE"
     exit 0 ;;
esac
`)
	p := NewProjectValidator(runner, nil)
	update, err := p.Process(context.Background(), state.ProjectState{ProjectPath: t.TempDir()})
	require.NoError(t, err)

	require.NotNil(t, update.Build)
	assert.Equal(t, state.BuildFailed, update.Build.Status)
}

func TestProjectValidatorReportsFailingTests(t *testing.T) {
	runner := fakeMaven(t, `case "$*" in
  *" compile") echo "[INFO] BUILD SUCCESS" ;;
  *) echo "Tests run: 3, Failures: 1, Errors: 0, Skipped: 0"
     echo "[ERROR] CalculatorTest.testAdd:42 expected 2 but was 3"
     echo "[INFO] BUILD FAILURE"
     exit 1 ;;
esac
`)
	p := NewProjectValidator(runner, nil)
	update, err := p.Process(context.Background(), state.ProjectState{ProjectPath: t.TempDir()})
	require.NoError(t, err)

	require.NotNil(t, update.Build)
	assert.Equal(t, state.BuildFailed, update.Build.Status)
	require.NotNil(t, update.SummaryReport)
	assert.Contains(t, *update.SummaryReport, "## Failing Tests")
	assert.Contains(t, *update.SummaryReport, "CalculatorTest.testAdd")
}

func TestSummaryReport(t *testing.T) {
	s := &state.ProjectState{
		JavaClasses: []state.JavaClassRecord{{Name: "Calculator"}},
		TestClasses: []state.TestClassRecord{{Name: "CalculatorTest", Status: state.TestPassed}},
		TestResults: map[string]state.TestResult{"CalculatorTest": {Success: true}},
	}
	report := summaryReport(s, state.BuildSuccess, maven.TestMetrics{Run: 5}, true, nil)

	assert.Contains(t, report, "# Project Validation Report")
	assert.Contains(t, report, "Total Java Classes: 1")
	assert.Contains(t, report, "Tests Run: 5")
	assert.Contains(t, report, "CalculatorTest: passed")
	assert.Contains(t, report, "ready for deployment")
	assert.NotContains(t, report, "## Failing Tests")

	report = summaryReport(s, state.BuildFailed, maven.TestMetrics{}, false,
		[]string{"CalculatorTest.testDivide"})
	assert.Contains(t, report, "No test metrics reported")
	assert.Contains(t, report, "Critical issues")
	assert.Contains(t, report, "- CalculatorTest.testDivide")
}
