// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package state holds the process-wide shared step state: the current
// step's variables, the step counter, and the two-lock barrier that
// coordinates producers (ConnectionWorker) and the single consumer
// (Coordinator) around it.
package state

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a fully-gathered step, captured at the moment every variable
// in the schema has a non-null value. Time is the step the values belong to,
// not the step that follows it.
type Snapshot struct {
	Time int64
	Vars map[string]float64
}

// State is the shared record read and written by every ConnectionWorker and
// by the Coordinator. A plain Go map is not safe for concurrent access even
// when writers touch disjoint keys (unlike the Python multiprocessing.Manager
// proxy this design is ported from, whose dict is implicitly serialized by
// the manager process), so varsMu guards vars independently of the
// enter/exit barrier. The barrier locks still implement the rendezvous
// described by the protocol; varsMu only exists to make Go's memory model
// happy and is held for the shortest possible span.
type State struct {
	varsMu sync.RWMutex
	vars   map[string]*float64
	schema []string

	timeCounter atomic.Int64
	waiters     atomic.Int64

	// EnterLock and ExitLock implement the rendezvous barrier described in
	// the protocol: EnterLock is held only around the waiters++ counter
	// bump (or the Coordinator's reset window); ExitLock is held by the
	// Coordinator for the entire gathering phase of a step and is only
	// released during the brief window between step completion and reset,
	// letting every worker queued on it drain through one at a time.
	EnterLock sync.Mutex
	ExitLock  sync.Mutex

	// WaitTick is the sleep interval used by busy-waits (Coordinator
	// polling for completion, and for waiters to drain to zero).
	WaitTick time.Duration
}

// New creates a State for the given schema. All variables start null and
// time starts at 1, matching the lifecycle in the data model.
func New(schema []string, waitTick time.Duration) *State {
	vars := make(map[string]*float64, len(schema))
	for _, k := range schema {
		vars[k] = nil
	}
	s := &State{
		vars:     vars,
		schema:   append([]string(nil), schema...),
		WaitTick: waitTick,
	}
	s.timeCounter.Store(1)
	return s
}

// Schema returns the fixed set of variable names this state coordinates.
func (s *State) Schema() []string {
	return append([]string(nil), s.schema...)
}

// Time returns the current step counter.
func (s *State) Time() int64 {
	return s.timeCounter.Load()
}

// Waiters returns the number of workers that have crossed the enter barrier
// but not yet crossed the exit barrier for the current step.
func (s *State) Waiters() int64 {
	return s.waiters.Load()
}

// IncWaiters bumps the waiter count. Must be called while holding EnterLock.
func (s *State) IncWaiters() int64 {
	return s.waiters.Add(1)
}

// DecWaiters decrements the waiter count. Must be called while holding ExitLock.
func (s *State) DecWaiters() int64 {
	return s.waiters.Add(-1)
}

// MergeData assigns data[k] into vars[k] for every key that belongs to the
// schema, ignoring unknown keys. Concurrent callers writing distinct keys
// follow last-write-wins when they collide, per the protocol's documented
// ownership model: overlapping writes to the same key before a reset are
// not an error, the most recent write simply wins the snapshot.
func (s *State) MergeData(data map[string]float64) {
	if len(data) == 0 {
		return
	}
	s.varsMu.Lock()
	defer s.varsMu.Unlock()
	for k, v := range data {
		if _, ok := s.vars[k]; ok {
			val := v
			s.vars[k] = &val
		}
	}
}

// AllFilled reports whether every variable in the schema currently has a
// non-null value, i.e. the step is ready to be snapshotted.
func (s *State) AllFilled() bool {
	s.varsMu.RLock()
	defer s.varsMu.RUnlock()
	for _, v := range s.vars {
		if v == nil {
			return false
		}
	}
	return true
}

// Reply builds the response for a worker: the requested variables plus the
// current time. Unknown requested keys are silently omitted. Callers must
// hold ExitLock while calling this so the read is never torn by a concurrent
// reset.
func (s *State) Reply(requested []string) map[string]float64 {
	s.varsMu.RLock()
	defer s.varsMu.RUnlock()
	reply := make(map[string]float64, len(requested)+1)
	for _, k := range requested {
		if v, ok := s.vars[k]; ok && v != nil {
			reply[k] = *v
		}
	}
	reply["time"] = float64(s.timeCounter.Load())
	return reply
}

// CaptureSnapshot copies every variable's current value along with the
// current time. Callers must already hold EnterLock (so no new merge can
// start) and must have verified AllFilled so the copy is complete.
func (s *State) CaptureSnapshot() Snapshot {
	s.varsMu.RLock()
	defer s.varsMu.RUnlock()
	vars := make(map[string]float64, len(s.vars))
	for k, v := range s.vars {
		if v != nil {
			vars[k] = *v
		}
	}
	return Snapshot{Time: s.timeCounter.Load(), Vars: vars}
}

// ResetAndAdvance nulls every variable and advances the step counter.
// Callers must hold EnterLock and must have already drained Waiters() to
// zero, so no worker can be mid-read of the map being reset.
func (s *State) ResetAndAdvance() {
	s.varsMu.Lock()
	defer s.varsMu.Unlock()
	for k := range s.vars {
		s.vars[k] = nil
	}
	s.timeCounter.Add(1)
}
