// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestState builds a minimal valid state for tests.
func newTestState(t *testing.T) *ProjectState {
	t.Helper()
	return &ProjectState{
		ProjectPath: "/tmp/demo",
		ProjectName: "demo",
		JavaClasses: []JavaClassRecord{
			{
				Name:     "Calculator",
				FilePath: "/tmp/demo/src/main/java/Calculator.java",
				Status:   ClassAnalyzed,
				Fields:   []FieldRecord{},
				Methods:  []MethodRecord{},
				Imports:  []ImportRecord{},
			},
		},
		TestClasses:  []TestClassRecord{},
		Dependencies: []MavenDependency{},
		Build:        BuildInfo{Status: BuildNotBuilt},
		MaxRetries:   3,
	}
}

func TestSetStateGetStateRoundTrip(t *testing.T) {
	m := NewManager(nil)
	s := newTestState(t)

	require.NoError(t, m.SetState(s))

	got := m.GetState()
	require.NotNil(t, got)
	assert.Equal(t, *s, *got)
}

func TestGetStateReturnsCopy(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetState(newTestState(t)))

	first := m.GetState()
	first.JavaClasses[0].Name = "Mutated"
	first.ProjectName = "mutated"

	second := m.GetState()
	assert.Equal(t, "Calculator", second.JavaClasses[0].Name)
	assert.Equal(t, "demo", second.ProjectName)
}

func TestGetStateNilWhenEmpty(t *testing.T) {
	m := NewManager(nil)
	assert.Nil(t, m.GetState())
}

func TestSetStateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProjectState)
	}{
		{"missing project path", func(s *ProjectState) { s.ProjectPath = "" }},
		{"missing project name", func(s *ProjectState) { s.ProjectName = "" }},
		{"class without name", func(s *ProjectState) { s.JavaClasses[0].Name = "" }},
		{"analyzed class without file path", func(s *ProjectState) {
			s.JavaClasses[0].FilePath = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil)
			s := newTestState(t)
			tt.mutate(s)

			err := m.SetState(s)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "expected ValidationError, got %v", err)
			assert.Nil(t, m.GetState(), "failed validation must not mutate state")
		})
	}
}

func TestPendingClassMayOmitFilePath(t *testing.T) {
	m := NewManager(nil)
	s := newTestState(t)
	s.JavaClasses[0].Status = ClassPending
	s.JavaClasses[0].FilePath = ""

	assert.NoError(t, m.SetState(s))
}

func TestTransactionMonotonicity(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetState(newTestState(t)))

	const n = 5
	for i := 0; i < n; i++ {
		tx := m.BeginTransaction(fmt.Sprintf("op_%d", i))
		require.NoError(t, m.CommitTransaction(tx))
	}

	history := m.TransactionHistory(0)
	require.Len(t, history, n)
	for _, tx := range history {
		assert.True(t, tx.Success)
		require.NotNil(t, tx.After)
		assert.NotEmpty(t, tx.After.Checksum)
	}
}

func TestRollbackRestoresExactly(t *testing.T) {
	m := NewManager(nil)
	s0 := newTestState(t)
	require.NoError(t, m.SetState(s0))

	tx := m.BeginTransaction("mutate")

	s1 := newTestState(t)
	s1.ProjectName = "other"
	s1.JavaClasses = append(s1.JavaClasses, JavaClassRecord{
		Name: "Extra", FilePath: "/tmp/demo/Extra.java", Status: ClassAnalyzed,
	})
	require.NoError(t, m.SetState(s1))

	require.NoError(t, m.RollbackTransaction(tx, "test reason"))

	got := m.GetState()
	require.NotNil(t, got)
	assert.Equal(t, *s0, *got)

	history := m.TransactionHistory(0)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, "test reason", history[0].Error)
	assert.Nil(t, history[0].After)
}

func TestRollbackAgainstEmptyBeforeIsNoOp(t *testing.T) {
	m := NewManager(nil)

	tx := m.BeginTransaction("first_load")
	require.True(t, tx.Before.IsEmpty())

	require.NoError(t, m.SetState(newTestState(t)))
	require.NoError(t, m.RollbackTransaction(tx, "boom"))

	// Nothing existed before the transaction, so nothing is restored.
	assert.NotNil(t, m.GetState())
}

func TestDoubleCommitRejected(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetState(newTestState(t)))

	tx := m.BeginTransaction("op")
	require.NoError(t, m.CommitTransaction(tx))
	assert.ErrorIs(t, m.CommitTransaction(tx), ErrTransactionClosed)
	assert.ErrorIs(t, m.RollbackTransaction(tx, "late"), ErrTransactionClosed)
}

func TestExecuteWithRollbackCommitsOnSuccess(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetState(newTestState(t)))

	err := m.ExecuteWithRollback("update_name", func() error {
		s := m.GetState()
		s.ProjectName = "renamed"
		return m.SetState(s)
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", m.GetState().ProjectName)
	history := m.TransactionHistory(1)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestExecuteWithRollbackRestoresAndReraises(t *testing.T) {
	m := NewManager(nil)
	s0 := newTestState(t)
	require.NoError(t, m.SetState(s0))

	boom := errors.New("stage exploded")
	err := m.ExecuteWithRollback("failing_stage", func() error {
		s := m.GetState()
		s.ProjectName = "halfway"
		if err := m.SetState(s); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom, "the original error must re-raise unchanged")

	got := m.GetState()
	assert.Equal(t, *s0, *got, "state must revert to the pre-stage snapshot")
}

func TestSnapshotRingBounded(t *testing.T) {
	m := NewManager(nil, WithMaxSnapshots(3))
	s := newTestState(t)

	for i := 0; i < 10; i++ {
		s.RetryCount = i
		require.NoError(t, m.SetState(s))
	}

	assert.Equal(t, 3, m.SnapshotCount())

	latest, ok := m.LatestSnapshot()
	require.True(t, ok, "the most recent snapshot is always retrievable")
	assert.Equal(t, 9, latest.State.RetryCount)
	assert.Equal(t, "set_state", latest.Operation)
}

func TestSnapshotChecksumStable(t *testing.T) {
	s := newTestState(t)
	a := Checksum(s)
	b := Checksum(s)
	assert.Equal(t, a, b)

	s.JavaClasses[0].Name = "Other"
	assert.NotEqual(t, a, Checksum(s))
}

func TestInvalidateClassState(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetState(newTestState(t)))

	m.InvalidateClassState("Calculator")
	assert.Equal(t, ClassStale, m.GetState().JavaClasses[0].Status)

	// Unknown class is ignored.
	m.InvalidateClassState("Nope")
}

func TestClearState(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SetState(newTestState(t)))
	tx := m.BeginTransaction("op")
	require.NoError(t, m.CommitTransaction(tx))

	m.ClearState()

	assert.Nil(t, m.GetState())
	assert.Equal(t, 0, m.SnapshotCount())
	assert.Empty(t, m.TransactionHistory(0))
}

func TestTransactionHistoryBounded(t *testing.T) {
	m := NewManager(nil, WithMaxTransactions(2))
	require.NoError(t, m.SetState(newTestState(t)))

	for i := 0; i < 5; i++ {
		tx := m.BeginTransaction(fmt.Sprintf("op_%d", i))
		require.NoError(t, m.CommitTransaction(tx))
	}

	history := m.TransactionHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, "op_3", history[0].Operation)
	assert.Equal(t, "op_4", history[1].Operation)
}
