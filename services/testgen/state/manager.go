// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Default retention bounds.
const (
	// DefaultMaxSnapshots is the snapshot ring capacity.
	DefaultMaxSnapshots = 10

	// DefaultMaxTransactions is the transaction history capacity.
	DefaultMaxTransactions = 100
)

// validate is the shared struct validator. validator.Validate is safe for
// concurrent use and caches struct metadata, so one instance serves the
// whole package.
var validate = validator.New()

// ManagerOption configures a Manager instance.
type ManagerOption func(*Manager)

// WithMaxSnapshots sets the snapshot ring capacity.
func WithMaxSnapshots(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSnapshots = n
		}
	}
}

// WithMaxTransactions sets the transaction history capacity.
func WithMaxTransactions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxTransactions = n
		}
	}
}

// Manager owns the single live ProjectState instance.
//
// # Description
//
// Manager provides validated get/set, snapshotting with content checksums,
// transaction begin/commit/rollback, and bounded retention for both the
// snapshot ring and the transaction history. Every mutation of live state
// is bracketed by a snapshot: rollback only ever restores from a captured
// snapshot, never by replaying inverse operations.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Go has no re-entrant mutex, so
// ExecuteWithRollback composes the individually locked public methods
// instead of holding the lock across the callback. Callers must not hold
// their own reference to live state: GetState returns deep copies only.
type Manager struct {
	mu sync.Mutex

	current      *ProjectState
	snapshots    []Snapshot
	transactions []Transaction

	maxSnapshots    int
	maxTransactions int

	logger *slog.Logger
}

// NewManager creates a state manager.
//
// Inputs:
//
//	logger - Logger for structured logging. If nil, uses slog.Default().
//	opts - Optional retention configuration.
//
// Outputs:
//
//	*Manager - Ready-to-use manager with no state loaded.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		maxSnapshots:    DefaultMaxSnapshots,
		maxTransactions: DefaultMaxTransactions,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetState returns a deep copy of the current state, or nil if no state
// is loaded. Callers can never mutate history in place.
func (m *Manager) GetState() *ProjectState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	out := m.current.Clone()
	return &out
}

// SetState validates the given state, deep-copies it into the live slot,
// and records a snapshot tagged "set_state".
//
// Outputs:
//
//	error - A *ValidationError if the state is malformed. Validation
//	        failures are local: the live state is untouched.
func (m *Manager) SetState(s *ProjectState) error {
	if err := Validate(s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clone := s.Clone()
	m.current = &clone
	m.captureSnapshotLocked("set_state")
	return nil
}

// Validate checks the structural invariants of a state without touching
// the manager. Required top-level fields must be present, every class
// record must carry its required fields, and an analyzed class must have
// a file path.
func Validate(s *ProjectState) error {
	if s == nil {
		return newValidationError("state", "state must not be nil")
	}

	if err := validate.Struct(s); err != nil {
		if invalid, ok := err.(validator.ValidationErrors); ok && len(invalid) > 0 {
			first := invalid[0]
			return newValidationError(first.Namespace(), "failed %q constraint", first.Tag())
		}
		return newValidationError("state", "%v", err)
	}

	for i := range s.JavaClasses {
		c := &s.JavaClasses[i]
		if c.Status == ClassAnalyzed && c.FilePath == "" {
			return newValidationError(
				fmt.Sprintf("java_classes[%d].file_path", i),
				"analyzed class %s must have a file path", c.Name)
		}
	}
	return nil
}

// BeginTransaction captures a before snapshot of the current state (the
// empty snapshot if no state is loaded) and returns an open transaction.
func (m *Manager) BeginTransaction(operation string) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.captureSnapshotLocked(operation)
	return &Transaction{
		ID:        uuid.NewString(),
		Operation: operation,
		Before:    before,
	}
}

// CommitTransaction captures an after snapshot of the now-current state,
// marks the transaction successful, and appends it to history.
func (m *Manager) CommitTransaction(tx *Transaction) error {
	if tx == nil {
		return ErrNilTransaction
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.closed {
		return ErrTransactionClosed
	}

	after := m.captureSnapshotLocked(tx.Operation)
	tx.After = &after
	tx.Success = true
	tx.closed = true
	m.appendTransactionLocked(*tx)

	m.logger.Debug("transaction committed",
		slog.String("id", tx.ID),
		slog.String("operation", tx.Operation),
		slog.String("checksum", after.Checksum),
	)
	return nil
}

// RollbackTransaction restores the live state to the transaction's before
// snapshot and appends the failed transaction to history.
//
// # Description
//
// Restoring is a pure copy and always succeeds structurally. If the
// before snapshot captured no state (the manager was empty when the
// transaction began), the restore is a no-op. The most recent snapshot
// taken after the before snapshot is discarded when more than one exists,
// so a failed attempt does not grow the ring.
func (m *Manager) RollbackTransaction(tx *Transaction, reason string) error {
	if tx == nil {
		return ErrNilTransaction
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.closed {
		return ErrTransactionClosed
	}

	if !tx.Before.IsEmpty() {
		restored := tx.Before.State.Clone()
		m.current = &restored
	}

	tx.Success = false
	tx.Error = reason
	tx.closed = true
	m.appendTransactionLocked(*tx)

	if len(m.snapshots) > 1 {
		m.snapshots = m.snapshots[:len(m.snapshots)-1]
	}

	m.logger.Warn("transaction rolled back",
		slog.String("id", tx.ID),
		slog.String("operation", tx.Operation),
		slog.String("reason", reason),
	)
	return nil
}

// ExecuteWithRollback brackets fn in a transaction.
//
// # Description
//
// Begins a transaction, invokes fn (which is expected to call SetState),
// commits on success, and rolls back on failure. The original error is
// returned unchanged so the root cause is never lost; callers observing
// an error never see a committed transaction.
func (m *Manager) ExecuteWithRollback(operation string, fn func() error) error {
	tx := m.BeginTransaction(operation)

	if err := fn(); err != nil {
		// Rollback cannot fail on an open transaction.
		_ = m.RollbackTransaction(tx, err.Error())
		return err
	}
	return m.CommitTransaction(tx)
}

// InvalidateClassState marks the matching class record stale in place.
// No transaction is recorded; callers must re-validate afterward.
func (m *Manager) InvalidateClassState(className string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	for i := range m.current.JavaClasses {
		if m.current.JavaClasses[i].Name == className {
			m.current.JavaClasses[i].Status = ClassStale
			return
		}
	}
}

// ClearState drops live state, all snapshots, and all transaction
// history. Used between independent runs.
func (m *Manager) ClearState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	m.snapshots = nil
	m.transactions = nil
}

// Reset is an alias for ClearState.
func (m *Manager) Reset() {
	m.ClearState()
}

// LatestSnapshot returns a copy of the most recent snapshot. The most
// recent snapshot is always retrievable regardless of ring capacity.
func (m *Manager) LatestSnapshot() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.snapshots) == 0 {
		return Snapshot{}, false
	}
	return m.snapshots[len(m.snapshots)-1].Clone(), true
}

// SnapshotCount returns the number of retained snapshots.
func (m *Manager) SnapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// SnapshotsSince returns copies of all snapshots captured at or after t,
// ordered by capture time.
func (m *Manager) SnapshotsSince(t time.Time) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Snapshot
	for _, s := range m.snapshots {
		if !s.Timestamp.Before(t) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// TransactionHistory returns copies of the most recent transactions, up
// to limit. A non-positive limit returns the full retained history.
func (m *Manager) TransactionHistory(limit int) []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if limit > 0 && len(m.transactions) > limit {
		start = len(m.transactions) - limit
	}
	out := make([]Transaction, 0, len(m.transactions)-start)
	for _, tx := range m.transactions[start:] {
		out = append(out, tx.Clone())
	}
	return out
}

// captureSnapshotLocked appends a snapshot of the current state to the
// ring, evicting the oldest entry past capacity. An empty manager yields
// the empty snapshot, which is returned but not retained.
// Callers must hold m.mu.
func (m *Manager) captureSnapshotLocked(operation string) Snapshot {
	snap := newSnapshot(m.current, operation)
	if snap.IsEmpty() {
		return snap
	}

	m.snapshots = append(m.snapshots, snap)
	if len(m.snapshots) > m.maxSnapshots {
		m.snapshots = m.snapshots[1:]
	}
	return snap
}

// appendTransactionLocked appends to the bounded transaction history.
// Callers must hold m.mu.
func (m *Manager) appendTransactionLocked(tx Transaction) {
	m.transactions = append(m.transactions, tx)
	if len(m.transactions) > m.maxTransactions {
		m.transactions = m.transactions[1:]
	}
}
