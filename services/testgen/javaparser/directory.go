// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package javaparser

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// skipDirs are directory names never scanned for production sources.
var skipDirs = map[string]bool{
	".git":   true,
	"target": true,
	"test":   true,
}

// AnalyzeDirectory walks root for .java sources and parses each one.
//
// # Description
//
// Per-file parse failures do not abort the walk: the file still yields a
// record with status error and the cause on its Errors list, so one
// unparseable source never blocks generation for the rest of the
// project. Records are returned in file path order. Test sources
// (anything under a "test" directory) and build output are skipped.
func (p *Parser) AnalyzeDirectory(ctx context.Context, root string) ([]state.JavaClassRecord, error) {
	var records []state.JavaClassRecord

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".java") {
			return nil
		}

		parsed, parseErr := p.ParseFile(ctx, path)
		if parseErr != nil {
			slog.Warn("failed to parse source file",
				slog.String("file", path),
				slog.Any("error", parseErr))
			name := strings.TrimSuffix(d.Name(), ".java")
			records = append(records, state.JavaClassRecord{
				Name:     name,
				FilePath: path,
				Status:   state.ClassError,
				Fields:   []state.FieldRecord{},
				Methods:  []state.MethodRecord{},
				Imports:  []state.ImportRecord{},
				Errors:   []string{parseErr.Error()},
			})
			return nil
		}
		records = append(records, parsed...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(a, b int) bool {
		if records[a].FilePath != records[b].FilePath {
			return records[a].FilePath < records[b].FilePath
		}
		return records[a].Name < records[b].Name
	})
	return records, nil
}

// DependencyGraph maps each class name to the project classes it
// references via imports or field types. Only classes present in the
// record set appear as targets.
func DependencyGraph(records []state.JavaClassRecord) map[string][]string {
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.Name] = true
	}

	graph := make(map[string][]string, len(records))
	for _, r := range records {
		seen := map[string]bool{}
		var deps []string

		add := func(name string) {
			if name != r.Name && known[name] && !seen[name] {
				seen[name] = true
				deps = append(deps, name)
			}
		}

		for _, imp := range r.Imports {
			parts := strings.Split(imp.Name, ".")
			add(parts[len(parts)-1])
		}
		for _, f := range r.Fields {
			add(baseType(f.Type))
		}
		for _, m := range r.Methods {
			add(baseType(m.ReturnType))
			for _, p := range m.Parameters {
				add(baseType(p.Type))
			}
		}

		sort.Strings(deps)
		graph[r.Name] = deps
	}
	return graph
}

// baseType strips generics and array suffixes from a type expression.
func baseType(t string) string {
	if i := strings.IndexAny(t, "<["); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
