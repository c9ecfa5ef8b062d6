// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package javaparser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

const calculatorSource = `package com.example.math;

import java.util.List;
import static java.util.Objects.requireNonNull;
import java.util.function.*;

@Service
public class Calculator {
    private static final double EPSILON = 1e-9;
    private List<Double> history;
    private int count, errors;

    public Calculator(List<Double> history) {
        this.history = requireNonNull(history);
    }

    public double add(double a, double b) {
        return a + b;
    }

    protected double divide(double a, double b) throws ArithmeticException {
        if (Math.abs(b) < EPSILON) {
            throw new ArithmeticException("division by zero");
        }
        return a / b;
    }
}
`

func TestParseCalculator(t *testing.T) {
	p := NewParser()
	records, err := p.Parse(context.Background(), []byte(calculatorSource), "Calculator.java")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Calculator", rec.Name)
	assert.Equal(t, "com.example.math", rec.Package)
	assert.Equal(t, "com.example.math.Calculator", rec.QualifiedName)
	assert.Equal(t, state.ClassAnalyzed, rec.Status)
	assert.Empty(t, rec.Errors)

	require.Len(t, rec.Annotations, 1)
	assert.Equal(t, "Service", rec.Annotations[0].Name)

	// Fields: EPSILON, history, plus the multi-declarator count/errors.
	require.Len(t, rec.Fields, 4)
	epsilon := rec.Fields[0]
	assert.Equal(t, "EPSILON", epsilon.Name)
	assert.Equal(t, "double", epsilon.Type)
	assert.True(t, epsilon.IsStatic)
	assert.True(t, epsilon.IsFinal)
	assert.Equal(t, "count", rec.Fields[2].Name)
	assert.Equal(t, "errors", rec.Fields[3].Name)

	// Methods: constructor, add, divide.
	require.Len(t, rec.Methods, 3)
	add := rec.Methods[1]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, "double", add.ReturnType)
	require.Len(t, add.Parameters, 2)
	assert.Equal(t, "a", add.Parameters[0].Name)
	assert.Equal(t, "double", add.Parameters[0].Type)

	divide := rec.Methods[2]
	assert.Equal(t, "divide", divide.Name)
	assert.Equal(t, []string{"ArithmeticException"}, divide.Throws)
	assert.Contains(t, divide.Modifiers, "protected")
}

func TestParseImports(t *testing.T) {
	p := NewParser()
	records, err := p.Parse(context.Background(), []byte(calculatorSource), "Calculator.java")
	require.NoError(t, err)

	imports := records[0].Imports
	require.Len(t, imports, 3)
	assert.Equal(t, "java.util.List", imports[0].Name)
	assert.False(t, imports[0].IsStatic)
	assert.True(t, imports[1].IsStatic)
	assert.Equal(t, "java.util.Objects.requireNonNull", imports[1].Name)
	assert.True(t, imports[2].IsWildcard)
}

func TestParseSyntaxErrorStillYieldsRecord(t *testing.T) {
	src := "public class Broken {\n  public void oops( {\n}\n"
	p := NewParser()
	records, err := p.Parse(context.Background(), []byte(src), "Broken.java")
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, "Broken", records[0].Name)
	assert.Contains(t, records[0].Errors, "source contains syntax errors")
}

func TestParseNoClass(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), []byte("package com.example;\n"), "package-info.java")
	assert.ErrorIs(t, err, ErrNoClass)
}

func TestParseSizeLimit(t *testing.T) {
	p := NewParser(WithMaxFileSize(16))
	_, err := p.Parse(context.Background(), []byte(calculatorSource), "Calculator.java")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestParseInvalidUTF8(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), []byte{0xff, 0xfe, 'c', 'l', 'a', 's', 's'}, "bad.java")
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestParseFileRecordsModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Calculator.java")
	require.NoError(t, os.WriteFile(path, []byte(calculatorSource), 0644))

	p := NewParser()
	records, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotZero(t, records[0].LastModified)
	assert.Equal(t, calculatorSource, records[0].Content)
}

func TestAnalyzeDirectory(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src", "main", "java", "com", "example")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	testDir := filepath.Join(dir, "src", "test", "java")
	require.NoError(t, os.MkdirAll(testDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "Calculator.java"),
		[]byte(calculatorSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "Empty.java"),
		[]byte("package com.example;\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "CalculatorTest.java"),
		[]byte("public class CalculatorTest {}\n"), 0644))

	p := NewParser()
	records, err := p.AnalyzeDirectory(context.Background(), dir)
	require.NoError(t, err)

	// Test sources are skipped; the classless file degrades to an error
	// record instead of aborting the walk.
	require.Len(t, records, 2)
	assert.Equal(t, "Calculator", records[0].Name)
	assert.Equal(t, state.ClassAnalyzed, records[0].Status)
	assert.Equal(t, "Empty", records[1].Name)
	assert.Equal(t, state.ClassError, records[1].Status)
	assert.NotEmpty(t, records[1].Errors)
}

func TestDependencyGraph(t *testing.T) {
	records := []state.JavaClassRecord{
		{
			Name: "OrderService",
			Imports: []state.ImportRecord{
				{Name: "com.example.Repository"},
				{Name: "java.util.List"},
			},
			Fields: []state.FieldRecord{
				{Name: "cache", Type: "Cache<String>"},
			},
			Methods: []state.MethodRecord{
				{Name: "find", ReturnType: "Order", Parameters: []state.ParameterRecord{{Name: "id", Type: "long"}}},
			},
		},
		{Name: "Repository"},
		{Name: "Cache"},
		{Name: "Order"},
	}

	graph := DependencyGraph(records)
	assert.Equal(t, []string{"Cache", "Order", "Repository"}, graph["OrderService"])
	assert.Empty(t, graph["Repository"])
}
