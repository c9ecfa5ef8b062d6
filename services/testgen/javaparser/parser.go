// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package javaparser extracts class structure from Java source files
// using tree-sitter.
package javaparser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// File size limits for input validation.
const (
	// DefaultMaxFileSize is the maximum source size the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

var (
	// ErrFileTooLarge is returned when input exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidContent is returned when input is not valid UTF-8.
	ErrInvalidContent = errors.New("content is not valid UTF-8")

	// ErrNoClass is returned when a file declares no class at all.
	ErrNoClass = errors.New("no class declaration found")
)

// Option configures a Parser instance.
type Option func(*Parser)

// WithMaxFileSize sets the maximum source size the parser will accept.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// Parser extracts class metadata from Java sources.
//
// # Thread Safety
//
// Parser instances are safe for concurrent use. Each Parse call creates
// its own tree-sitter parser internally.
type Parser struct {
	maxFileSize int64
}

// NewParser creates a parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts every top-level class declared in the source.
//
// # Description
//
// Parsing is error-tolerant: syntactically broken sources still yield
// records for whatever classes tree-sitter could recover, with the
// syntax problem recorded on each record's Errors list. Hard failures
// (oversized input, invalid UTF-8, cancellation) return an error and no
// records.
//
// Inputs:
//
//	ctx - Checked before and after parsing; tree-sitter itself cannot
//	      be interrupted mid-parse.
//	content - Raw Java source bytes.
//	filePath - Recorded on each returned class record.
//
// Outputs:
//
//	[]state.JavaClassRecord - One record per top-level class or
//	                          interface, status analyzed.
//	error - ErrFileTooLarge, ErrInvalidContent, ErrNoClass, or a
//	        context error.
func (p *Parser) Parse(ctx context.Context, content []byte, filePath string) ([]state.JavaClassRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root node")
	}

	var parseErrors []string
	if root.HasError() {
		parseErrors = append(parseErrors, "source contains syntax errors")
	}

	pkg := extractPackage(root, content)
	imports := extractImports(root, content)

	var records []state.JavaClassRecord
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			rec := p.extractClass(child, content, filePath, pkg)
			rec.Imports = imports
			rec.Errors = append(rec.Errors, parseErrors...)
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, ErrNoClass
	}
	return records, nil
}

// ParseFile parses one file from disk, recording the file's mtime on
// every returned record for later staleness detection.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]state.JavaClassRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}

	records, err := p.Parse(ctx, content, path)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].LastModified = info.ModTime().UnixMilli()
		records[i].Content = string(content)
	}
	return records, nil
}

// =============================================================================
// Extraction
// =============================================================================

func (p *Parser) extractClass(node *sitter.Node, content []byte, filePath, pkg string) state.JavaClassRecord {
	rec := state.JavaClassRecord{
		FilePath: filePath,
		Package:  pkg,
		Status:   state.ClassAnalyzed,
		Fields:   []state.FieldRecord{},
		Methods:  []state.MethodRecord{},
		Imports:  []state.ImportRecord{},
	}

	if name := node.ChildByFieldName("name"); name != nil {
		rec.Name = name.Content(content)
	}
	if rec.Name != "" && pkg != "" {
		rec.QualifiedName = pkg + "." + rec.Name
	} else {
		rec.QualifiedName = rec.Name
	}
	rec.Annotations = extractAnnotations(node, content)

	body := node.ChildByFieldName("body")
	if body == nil {
		return rec
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "field_declaration":
			rec.Fields = append(rec.Fields, extractFields(member, content)...)
		case "method_declaration", "constructor_declaration":
			rec.Methods = append(rec.Methods, extractMethod(member, content))
		}
	}
	return rec
}

func extractPackage(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "package_declaration" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			inner := child.NamedChild(j)
			if inner.Type() == "scoped_identifier" || inner.Type() == "identifier" {
				return inner.Content(content)
			}
		}
	}
	return ""
}

func extractImports(root *sitter.Node, content []byte) []state.ImportRecord {
	imports := []state.ImportRecord{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "import_declaration" {
			continue
		}

		imp := state.ImportRecord{LineNumber: int(child.StartPoint().Row) + 1}
		for j := 0; j < int(child.ChildCount()); j++ {
			inner := child.Child(j)
			switch inner.Type() {
			case "scoped_identifier", "identifier":
				imp.Name = inner.Content(content)
			case "static":
				imp.IsStatic = true
			case "asterisk":
				imp.IsWildcard = true
			}
		}
		if imp.Name != "" {
			imports = append(imports, imp)
		}
	}
	return imports
}

// extractFields handles the multi-declarator case: one field_declaration
// node may declare several variables of the same type.
func extractFields(node *sitter.Node, content []byte) []state.FieldRecord {
	modifiers, annotations := extractModifiers(node, content)
	fieldType := ""
	if t := node.ChildByFieldName("type"); t != nil {
		fieldType = t.Content(content)
	}

	var out []state.FieldRecord
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		name := child.ChildByFieldName("name")
		if name == nil {
			continue
		}
		out = append(out, state.FieldRecord{
			Name:        name.Content(content),
			Type:        fieldType,
			Modifiers:   modifiers,
			IsStatic:    contains(modifiers, "static"),
			IsFinal:     contains(modifiers, "final"),
			Annotations: annotations,
			LineNumber:  int(node.StartPoint().Row) + 1,
		})
	}
	return out
}

func extractMethod(node *sitter.Node, content []byte) state.MethodRecord {
	modifiers, annotations := extractModifiers(node, content)
	m := state.MethodRecord{
		Modifiers:   modifiers,
		Annotations: annotations,
		IsAbstract:  contains(modifiers, "abstract"),
		LineNumber:  int(node.StartPoint().Row) + 1,
	}

	if name := node.ChildByFieldName("name"); name != nil {
		m.Name = name.Content(content)
	}
	if t := node.ChildByFieldName("type"); t != nil {
		m.ReturnType = t.Content(content)
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			param := params.NamedChild(i)
			if param.Type() != "formal_parameter" && param.Type() != "spread_parameter" {
				continue
			}
			pr := state.ParameterRecord{}
			if t := param.ChildByFieldName("type"); t != nil {
				pr.Type = t.Content(content)
			}
			if n := param.ChildByFieldName("name"); n != nil {
				pr.Name = n.Content(content)
			}
			m.Parameters = append(m.Parameters, pr)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "throws" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			m.Throws = append(m.Throws, child.NamedChild(j).Content(content))
		}
	}
	return m
}

// extractModifiers returns plain modifiers (public, static, final, ...)
// and annotations from a declaration's modifiers node.
func extractModifiers(node *sitter.Node, content []byte) ([]string, []state.AnnotationRecord) {
	var modifiers []string
	var annotations []state.AnnotationRecord

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			inner := child.Child(j)
			switch inner.Type() {
			case "marker_annotation", "annotation":
				ann := state.AnnotationRecord{}
				if name := inner.ChildByFieldName("name"); name != nil {
					ann.Name = name.Content(content)
				}
				annotations = append(annotations, ann)
			default:
				modifiers = append(modifiers, inner.Content(content))
			}
		}
	}
	return modifiers, annotations
}

func extractAnnotations(node *sitter.Node, content []byte) []state.AnnotationRecord {
	_, annotations := extractModifiers(node, content)
	return annotations
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
