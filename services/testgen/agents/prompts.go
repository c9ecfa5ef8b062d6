// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"fmt"
	"strings"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// =============================================================================
// PROMPTS
// =============================================================================

const generateSystemPrompt = `You are a senior Java developer specialized in writing comprehensive JUnit and Spring Boot test classes.
Generate high-quality, well-structured test code following best practices.`

const generateUserPromptTemplate = `Generate a JUnit 5 + Spring Boot test class for the following Java class:

Class Name: %s

Fields:
%s

Methods:
%s

Requirements:
1. Use JUnit 5 (Jupiter) annotations
2. Include @SpringBootTest if testing Spring components
3. Use @Mock and @InjectMocks from Mockito for dependency injection
4. Write test methods for each public method with meaningful test cases
5. Include both positive and negative test cases where applicable
6. Use AssertJ assertions for better readability
7. Add @DisplayName annotations for descriptive test names
8. Follow AAA pattern (Arrange, Act, Assert)
9. Include proper setUp/tearDown methods if needed

Generate only the Java test code without any explanations or markdown formatting.`

const reviewSystemPrompt = `You are a senior code reviewer specialized in Java testing best practices.
Review the provided test code for:
1. Code quality and readability
2. Proper use of JUnit 5 and Spring Boot annotations
3. Test coverage and completeness
4. Mock usage and dependency injection
5. Assertion quality and accuracy
6. Naming conventions
7. Potential bugs or anti-patterns
8. Performance considerations
9. Security best practices
10. Maintainability

Provide specific, actionable comments for any issues found.`

const reviewUserPromptTemplate = `Review the following test class:

Test Class Name: %s

Test Code:
%s

Provide your review as a list of specific comments. If the code follows best practices and has no issues, return an empty list.
Format each comment as a clear, actionable statement.`

const fixSystemPrompt = `You are a senior Java developer specializing in fixing failing test cases.
Analyze the errors and stack traces to understand what's wrong, then provide a corrected version of the test code.
Focus on:
1. Fixing the root cause of the failures
2. Maintaining test quality and best practices
3. Ensuring proper mocking and assertions
4. Handling edge cases properly
5. Following JUnit 5 and Spring Boot conventions`

const fixUserPromptTemplate = `Fix the following failing test class based on the errors and stack traces:

Test Class Name: %s
Target Class: %s

Current Test Code:
%s

Errors Encountered:
%s

Stack Traces:
%s

Instructions:
1. Analyze the errors and stack traces to understand the failures
2. Fix the test code to resolve all issues
3. Ensure the fixes are minimal and focused on the actual problems
4. Maintain the existing test structure and best practices
5. Provide only the corrected Java test code without any explanations or markdown formatting`

// =============================================================================
// PROMPT HELPERS
// =============================================================================

// stripCodeFence removes a surrounding markdown code fence when the model
// ignores the no-formatting instruction.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	parts := strings.Split(text, "```")
	if len(parts) < 2 {
		return text
	}
	code := parts[1]
	if strings.HasPrefix(code, "java") {
		code = code[4:]
	}
	return strings.TrimSpace(code)
}

func formatMethodsForPrompt(methods []state.MethodRecord) string {
	if len(methods) == 0 {
		return "No methods found"
	}
	lines := make([]string, 0, len(methods))
	for _, m := range methods {
		returnType := m.ReturnType
		if returnType == "" {
			returnType = "void"
		}
		params := make([]string, 0, len(m.Parameters))
		for _, p := range m.Parameters {
			params = append(params, p.Type+" "+p.Name)
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s(%s)",
			strings.Join(m.Modifiers, ", "), returnType, m.Name, strings.Join(params, ", ")))
	}
	return strings.Join(lines, "\n")
}

func formatFieldsForPrompt(fields []state.FieldRecord) string {
	if len(fields) == 0 {
		return "No fields found"
	}
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		fieldType := f.Type
		if fieldType == "" {
			fieldType = "Object"
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			strings.Join(f.Modifiers, ", "), fieldType, f.Name))
	}
	return strings.Join(lines, "\n")
}

// parseReviewComments turns free-form review text into a comment list.
// Known "all clear" phrasings and list scaffolding are dropped, bullet
// and number prefixes are stripped.
func parseReviewComments(text string) []string {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "", "no issues found", "no issues", "looks good", "no comments":
		return nil
	}

	var comments []string
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.TrimSpace(line)
		switch cleaned {
		case "", "```", "Here are the review comments:", "Comments:", "-":
			continue
		}
		cleaned = strings.TrimLeft(cleaned, "-*•0123456789. ")
		cleaned = strings.TrimSpace(cleaned)
		if cleaned != "" {
			comments = append(comments, cleaned)
		}
	}
	return comments
}
