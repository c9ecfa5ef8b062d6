// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const bannerWidth = 80

// Format renders the report as readable text.
func Format(r *Report) string {
	banner := strings.Repeat("=", bannerWidth)

	var sb strings.Builder
	sb.WriteString(banner + "\n")
	sb.WriteString("STATE DIFF REPORT\n")
	sb.WriteString(fmt.Sprintf("Timestamp: %s\n", r.Timestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Old Hash: %s\n", r.OldHash))
	sb.WriteString(fmt.Sprintf("New Hash: %s\n", r.NewHash))
	sb.WriteString(banner + "\n\n")

	sb.WriteString("SUMMARY:\n")
	sb.WriteString(fmt.Sprintf("  Changes: %d\n", len(r.Changes)))
	sb.WriteString(fmt.Sprintf("  Added: %d\n", r.Summary[string(Added)]))
	sb.WriteString(fmt.Sprintf("  Removed: %d\n", r.Summary[string(Removed)]))
	sb.WriteString(fmt.Sprintf("  Modified: %d\n", r.Summary[string(Modified)]))
	sb.WriteString(fmt.Sprintf("  Classes Changed: %d\n", r.Summary[string(ComponentClasses)+"_changed"]))
	sb.WriteString(fmt.Sprintf("  Fields Changed: %d\n", r.Summary[string(ComponentFields)+"_changed"]))
	sb.WriteString(fmt.Sprintf("  Methods Changed: %d\n", r.Summary[string(ComponentMethods)+"_changed"]))
	sb.WriteString("\n" + banner + "\n")
	sb.WriteString("CHANGES:\n\n")

	for i, c := range r.Changes {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n",
			i+1, strings.ToUpper(string(c.Type)), c.Component, c.Identifier))
		if c.Detail != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", c.Detail))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(banner + "\n")
	return sb.String()
}

// Export writes the formatted report to a file, creating parent
// directories as needed.
func Export(r *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Format(r)), 0640); err != nil {
		return fmt.Errorf("export diff report: %w", err)
	}
	return nil
}
