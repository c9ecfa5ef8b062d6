// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package maven

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// MAVEN OUTPUT PARSERS
// =============================================================================

// Maven output patterns.
var (
	summaryPattern = regexp.MustCompile(`Tests run: (\d+), Failures: (\d+), Errors: (\d+), Skipped: (\d+)`)
	errorLine      = regexp.MustCompile(`^\[ERROR\]\s*(.+)$`)
	compileError   = regexp.MustCompile(`\.java:\[(\d+),(\d+)\]`)
	buildFailure   = regexp.MustCompile(`^\[INFO\] BUILD FAILURE`)
	buildSuccess   = regexp.MustCompile(`^\[INFO\] BUILD SUCCESS`)
	failedTestLine = regexp.MustCompile(`^\[ERROR\]\s+(\w+)\.(\w+):?\d*\s`)
)

// TestMetrics are the aggregate counts from a surefire run.
type TestMetrics struct {
	Run      int `json:"tests_run"`
	Failures int `json:"failures"`
	Errors   int `json:"errors"`
	Skipped  int `json:"skipped"`
}

// Passed reports whether the run had no failures or errors.
func (m TestMetrics) Passed() bool {
	return m.Failures == 0 && m.Errors == 0
}

// ParseTestMetrics extracts surefire summary counts from Maven output.
//
// # Description
//
// Maven prints one "Tests run:" line per test class plus a final
// aggregate. The last match wins, which is the aggregate when present.
// The second return is false when no summary line was found, which
// usually means compilation failed before any test ran.
func ParseTestMetrics(output string) (TestMetrics, bool) {
	matches := summaryPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return TestMetrics{}, false
	}
	last := matches[len(matches)-1]
	return TestMetrics{
		Run:      mustInt(last[1]),
		Failures: mustInt(last[2]),
		Errors:   mustInt(last[3]),
		Skipped:  mustInt(last[4]),
	}, true
}

// ParseErrors extracts [ERROR] lines from Maven output, deduplicated in
// order of first appearance.
func ParseErrors(output string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range strings.Split(output, "\n") {
		m := errorLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		msg := strings.TrimSpace(m[1])
		if msg == "" || seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, msg)
	}
	return out
}

// ParseStackTraces extracts Java stack trace blocks from test output. A
// block starts at an exception line and extends through its "at" and
// "Caused by:" lines.
func ParseStackTraces(output string) []string {
	var traces []string
	var current []string

	flush := func() {
		if len(current) > 1 {
			traces = append(traces, strings.Join(current, "\n"))
		}
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "at ") && current != nil:
			current = append(current, trimmed)
		case strings.HasPrefix(trimmed, "Caused by:") && current != nil:
			current = append(current, trimmed)
		case isExceptionLine(trimmed):
			flush()
			current = []string{trimmed}
		default:
			flush()
		}
	}
	flush()
	return traces
}

// isExceptionLine matches "com.foo.BarException: message" style lines.
func isExceptionLine(line string) bool {
	i := strings.Index(line, ":")
	head := line
	if i >= 0 {
		head = line[:i]
	}
	if !strings.Contains(head, ".") {
		return false
	}
	return strings.HasSuffix(head, "Exception") ||
		strings.HasSuffix(head, "Error") ||
		strings.HasSuffix(head, "Throwable")
}

// IsCompilationFailure reports whether the output indicates the build
// broke before tests could run.
func IsCompilationFailure(output string) bool {
	if compileError.MatchString(output) {
		return true
	}
	return strings.Contains(output, "COMPILATION ERROR")
}

// FailedTests extracts "Class.method" identifiers of failing tests.
func FailedTests(output string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range strings.Split(output, "\n") {
		m := failedTestLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		id := m[1] + "." + m[2]
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// BuildOutcome classifies the overall result from Maven's banner lines.
// Returns "success", "failure", or "" when neither banner appears.
func BuildOutcome(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if buildSuccess.MatchString(line) {
			return "success"
		}
		if buildFailure.MatchString(line) {
			return "failure"
		}
	}
	return ""
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
