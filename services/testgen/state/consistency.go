// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"fmt"
	"os"
	"time"
)

// DriftTolerance is how far an on-disk mtime may deviate from the
// recorded one before a drift warning is raised.
const DriftTolerance = time.Second

// ConsistencyReport is the outcome of auditing in-memory state against
// the filesystem it describes.
type ConsistencyReport struct {
	// Consistent is true iff Issues is empty.
	Consistent bool `json:"consistent"`

	// Issues are hard problems: missing project directory or class files.
	Issues []string `json:"issues,omitempty"`

	// Warnings are soft problems: files modified since analysis.
	Warnings []string `json:"warnings,omitempty"`
}

// VerifyStateConsistency audits the current state against the filesystem.
//
// # Description
//
// Confirms the project directory exists (hard issue if not), and for
// every class record with a file path, confirms the file still exists
// (hard issue if missing). When a record carries a LastModified
// timestamp, a drift beyond DriftTolerance raises a warning, not an
// issue. Hard issues are fatal to the consistency check but not to a
// running pipeline.
func (m *Manager) VerifyStateConsistency() ConsistencyReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := ConsistencyReport{}

	if m.current == nil {
		report.Issues = append(report.Issues, "no state loaded")
		return report
	}

	if m.current.ProjectPath == "" {
		report.Issues = append(report.Issues, "state has no project path")
		return report
	}

	info, err := os.Stat(m.current.ProjectPath)
	if err != nil || !info.IsDir() {
		report.Issues = append(report.Issues,
			fmt.Sprintf("project directory does not exist: %s", m.current.ProjectPath))
		return report
	}

	for i := range m.current.JavaClasses {
		c := &m.current.JavaClasses[i]
		if c.FilePath == "" {
			continue
		}

		fi, err := os.Stat(c.FilePath)
		if err != nil {
			report.Issues = append(report.Issues,
				fmt.Sprintf("class file in state not found on filesystem: %s", c.FilePath))
			continue
		}

		if c.LastModified != 0 {
			drift := fi.ModTime().Sub(time.UnixMilli(c.LastModified))
			if drift < 0 {
				drift = -drift
			}
			if drift > DriftTolerance {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("file modified since state was cached: %s", c.FilePath))
			}
		}
	}

	report.Consistent = len(report.Issues) == 0
	return report
}
