// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diff computes structural differences between two project state
// snapshots.
//
// # Description
//
// Diff is a pure function over two states: no shared state, fully
// deterministic given its inputs. It is used by audit/export tooling and
// by the pipeline's consistency diagnostics. Change ordering is fixed
// (removed classes, added classes, then per-class field and method
// changes in sorted key order, build status last) so reports are
// reproducible.
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/testforgelabs/testforge/services/testgen/state"
)

// ChangeType classifies one structural change.
type ChangeType string

const (
	// Added indicates the entity exists only in the second state.
	Added ChangeType = "added"

	// Removed indicates the entity exists only in the first state.
	Removed ChangeType = "removed"

	// Modified indicates the entity exists in both states but differs.
	Modified ChangeType = "modified"
)

// Component identifies which part of the model a change touches.
type Component string

const (
	// ComponentClasses covers whole-class additions and removals.
	ComponentClasses Component = "classes"

	// ComponentFields covers per-class field changes.
	ComponentFields Component = "fields"

	// ComponentMethods covers per-class method changes.
	ComponentMethods Component = "methods"

	// ComponentBuildStatus covers the build status transition.
	ComponentBuildStatus Component = "build_status"
)

// Change is a single structural difference.
type Change struct {
	Type       ChangeType `json:"change_type"`
	Component  Component  `json:"component"`
	Identifier string     `json:"identifier"`
	OldValue   any        `json:"old_value,omitempty"`
	NewValue   any        `json:"new_value,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// Report is the full comparison of two states.
type Report struct {
	Timestamp time.Time      `json:"timestamp"`
	OldHash   string         `json:"old_hash"`
	NewHash   string         `json:"new_hash"`
	Changes   []Change       `json:"changes"`
	Summary   map[string]int `json:"summary"`
}

// StateHash hashes a state for diff comparison, excluding volatile
// bookkeeping fields (last action, summary report, retry count) so two
// states that differ only in bookkeeping hash equal.
func StateHash(s *state.ProjectState) string {
	if s == nil {
		return ""
	}
	clean := s.Clone()
	clean.LastAction = ""
	clean.SummaryReport = ""
	clean.RetryCount = 0

	data, err := json.Marshal(&clean)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Diff compares two states and reports every structural change.
//
// Inputs:
//
//	oldState - The baseline state. May be nil (treated as empty).
//	newState - The state to compare against. May be nil (treated as empty).
//
// Outputs:
//
//	*Report - Changes in the fixed deterministic order, with summary
//	          counts keyed by change type and component.
func Diff(oldState, newState *state.ProjectState) *Report {
	report := &Report{
		Timestamp: time.Now(),
		OldHash:   StateHash(oldState),
		NewHash:   StateHash(newState),
		Changes:   []Change{},
		Summary: map[string]int{
			string(Added):    0,
			string(Removed):  0,
			string(Modified): 0,
		},
	}

	oldClasses := classMap(oldState)
	newClasses := classMap(newState)

	for _, name := range sortedMissing(oldClasses, newClasses) {
		report.add(Change{
			Type:       Removed,
			Component:  ComponentClasses,
			Identifier: name,
			OldValue:   oldClasses[name],
			Detail:     fmt.Sprintf("class %s removed", name),
		})
	}

	for _, name := range sortedMissing(newClasses, oldClasses) {
		report.add(Change{
			Type:       Added,
			Component:  ComponentClasses,
			Identifier: name,
			NewValue:   newClasses[name],
			Detail:     fmt.Sprintf("class %s added", name),
		})
	}

	for _, name := range sortedCommon(oldClasses, newClasses) {
		oldClass, newClass := oldClasses[name], newClasses[name]
		if reflect.DeepEqual(oldClass, newClass) {
			continue
		}
		diffFields(report, name, oldClass, newClass)
		diffMethods(report, name, oldClass, newClass)
	}

	oldStatus := buildStatus(oldState)
	newStatus := buildStatus(newState)
	if oldStatus != newStatus {
		report.add(Change{
			Type:       Modified,
			Component:  ComponentBuildStatus,
			Identifier: "build_status.build_status",
			OldValue:   oldStatus,
			NewValue:   newStatus,
			Detail:     fmt.Sprintf("build status changed from %s to %s", oldStatus, newStatus),
		})
	}

	return report
}

// add appends the change and updates summary counters.
func (r *Report) add(c Change) {
	r.Changes = append(r.Changes, c)
	r.Summary[string(c.Type)]++
	r.Summary[string(c.Component)+"_changed"]++
}

func diffFields(report *Report, className string, oldClass, newClass state.JavaClassRecord) {
	oldFields := fieldMap(oldClass)
	newFields := fieldMap(newClass)

	for _, name := range sortedMissing(oldFields, newFields) {
		report.add(Change{
			Type:       Removed,
			Component:  ComponentFields,
			Identifier: className + "." + name,
			OldValue:   oldFields[name],
			Detail:     fmt.Sprintf("field %s removed from class %s", name, className),
		})
	}
	for _, name := range sortedMissing(newFields, oldFields) {
		report.add(Change{
			Type:       Added,
			Component:  ComponentFields,
			Identifier: className + "." + name,
			NewValue:   newFields[name],
			Detail:     fmt.Sprintf("field %s added to class %s", name, className),
		})
	}
	for _, name := range sortedCommon(oldFields, newFields) {
		if !reflect.DeepEqual(oldFields[name], newFields[name]) {
			report.add(Change{
				Type:       Modified,
				Component:  ComponentFields,
				Identifier: className + "." + name,
				OldValue:   oldFields[name],
				NewValue:   newFields[name],
				Detail:     fmt.Sprintf("field %s modified in class %s", name, className),
			})
		}
	}
}

func diffMethods(report *Report, className string, oldClass, newClass state.JavaClassRecord) {
	oldMethods := methodMap(oldClass)
	newMethods := methodMap(newClass)

	for _, name := range sortedMissing(oldMethods, newMethods) {
		report.add(Change{
			Type:       Removed,
			Component:  ComponentMethods,
			Identifier: className + "." + name,
			OldValue:   oldMethods[name],
			Detail:     fmt.Sprintf("method %s removed from class %s", name, className),
		})
	}
	for _, name := range sortedMissing(newMethods, oldMethods) {
		report.add(Change{
			Type:       Added,
			Component:  ComponentMethods,
			Identifier: className + "." + name,
			NewValue:   newMethods[name],
			Detail:     fmt.Sprintf("method %s added to class %s", name, className),
		})
	}
	for _, name := range sortedCommon(oldMethods, newMethods) {
		if !reflect.DeepEqual(oldMethods[name], newMethods[name]) {
			report.add(Change{
				Type:       Modified,
				Component:  ComponentMethods,
				Identifier: className + "." + name,
				OldValue:   oldMethods[name],
				NewValue:   newMethods[name],
				Detail:     fmt.Sprintf("method %s modified in class %s", name, className),
			})
		}
	}
}

// =============================================================================
// Map helpers
// =============================================================================

func classMap(s *state.ProjectState) map[string]state.JavaClassRecord {
	out := make(map[string]state.JavaClassRecord)
	if s == nil {
		return out
	}
	for _, c := range s.JavaClasses {
		out[c.Name] = c
	}
	return out
}

func fieldMap(c state.JavaClassRecord) map[string]state.FieldRecord {
	out := make(map[string]state.FieldRecord, len(c.Fields))
	for _, f := range c.Fields {
		out[f.Name] = f
	}
	return out
}

func methodMap(c state.JavaClassRecord) map[string]state.MethodRecord {
	out := make(map[string]state.MethodRecord, len(c.Methods))
	for _, m := range c.Methods {
		out[m.Name] = m
	}
	return out
}

func buildStatus(s *state.ProjectState) state.BuildStatus {
	if s == nil {
		return state.BuildNotBuilt
	}
	if s.Build.Status == "" {
		return state.BuildNotBuilt
	}
	return s.Build.Status
}

// sortedMissing returns the sorted keys of a that are absent from b.
func sortedMissing[V any](a, b map[string]V) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// sortedCommon returns the sorted keys present in both maps.
func sortedCommon[V any](a, b map[string]V) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
