// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Snapshot is an immutable capture of state at one point in time.
//
// # Description
//
// A Snapshot owns its own deep copy of the state; it is never aliased to
// the Manager's live instance. The checksum is a SHA-256 over the
// canonical JSON encoding, so two snapshots can be compared for equality
// with a string compare before any full diff.
type Snapshot struct {
	// Timestamp is the capture time.
	Timestamp time.Time `json:"timestamp"`

	// State is the captured copy. Nil when the Manager had no state at
	// capture time (the "empty snapshot").
	State *ProjectState `json:"state,omitempty"`

	// Checksum is the SHA-256 hex digest of the canonical JSON encoding
	// of State. Empty for the empty snapshot.
	Checksum string `json:"checksum"`

	// Operation labels the mutation that produced this snapshot,
	// e.g. "set_state" or a pipeline stage name.
	Operation string `json:"operation"`
}

// IsEmpty reports whether the snapshot captured no state.
func (s Snapshot) IsEmpty() bool {
	return s.State == nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.State != nil {
		st := s.State.Clone()
		out.State = &st
	}
	return out
}

// Transaction brackets one or more state mutations between a before
// snapshot and, on commit, an after snapshot.
//
// # Description
//
// A Transaction is a value object. Once committed or rolled back it is
// immutable and appended to the Manager's bounded history list.
type Transaction struct {
	// ID uniquely identifies the transaction within a process.
	ID string `json:"id"`

	// Operation labels the bracketed mutation.
	Operation string `json:"operation"`

	// Before is the snapshot captured at BeginTransaction.
	Before Snapshot `json:"before"`

	// After is the snapshot captured at CommitTransaction. Nil until
	// committed, and stays nil for rolled-back transactions.
	After *Snapshot `json:"after,omitempty"`

	// Success is true only for committed transactions.
	Success bool `json:"success"`

	// Error carries the rollback reason, if any.
	Error string `json:"error,omitempty"`

	closed bool
}

// Clone returns a deep copy of the transaction.
func (t Transaction) Clone() Transaction {
	out := t
	out.Before = t.Before.Clone()
	if t.After != nil {
		after := t.After.Clone()
		out.After = &after
	}
	return out
}

// Checksum computes the canonical content checksum of a state.
//
// Inputs:
//
//	s - The state to hash. Must not be nil.
//
// Outputs:
//
//	string - SHA-256 hex digest of the canonical JSON encoding.
//
// encoding/json sorts map keys, so the encoding is deterministic for
// identical states.
func Checksum(s *ProjectState) string {
	data, err := json.Marshal(s)
	if err != nil {
		// Marshal of ProjectState cannot fail: all fields are plain
		// data. Keep a defined value anyway.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newSnapshot captures a deep copy of the given state. A nil state
// produces the empty snapshot.
func newSnapshot(s *ProjectState, operation string) Snapshot {
	snap := Snapshot{
		Timestamp: time.Now(),
		Operation: operation,
	}
	if s != nil {
		st := s.Clone()
		snap.State = &st
		snap.Checksum = Checksum(&st)
	}
	return snap
}
