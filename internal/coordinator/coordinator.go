// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package coordinator implements the single background execution unit that
// detects a fully-gathered step, snapshots it, resets State for the next
// step, and drives the Sink.
package coordinator

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/radluki/pkss-communication/internal/sink"
	"github.com/radluki/pkss-communication/internal/state"
)

// Coordinator is the exclusive writer of State.Time and of the reset that
// nulls every variable for the next step. Exactly one Coordinator runs per
// server.
type Coordinator struct {
	state *state.State
	sink  sink.Sink

	commitInterval time.Duration
	logger         *slog.Logger

	auditLogger *slog.Logger
	auditClose  io.Closer
}

// New creates a Coordinator. If auditLogger is non-nil, every committed
// snapshot is additionally logged through it (typically to a per-run audit
// file); pass nil to disable that (audit logging is diagnostic, not
// load-bearing). A non-nil auditClose is closed when Run returns.
func New(st *state.State, snk sink.Sink, commitInterval time.Duration, logger *slog.Logger, auditLogger *slog.Logger, auditClose io.Closer) *Coordinator {
	return &Coordinator{
		state:          st,
		sink:           snk,
		commitInterval: commitInterval,
		logger:         logger.With("component", "coordinator"),
		auditLogger:    auditLogger,
		auditClose:     auditClose,
	}
}

// Run executes the Coordinator's state machine until ctx is cancelled. It
// never returns due to State reaching any particular value — only ctx
// cancellation or the caller observing a fatal logic error (none are
// raised by this implementation; a schema mismatch is prevented by
// construction since State and Sink share the same schema slice) ends it.
//
// S0 Idle is represented by entering this function holding ExitLock: no
// worker may read a reply until the Coordinator has declared the first
// step complete. S1 Gathering is "every iteration where AllFilled() is
// false", during which ExitLock stays held by the Coordinator exactly as
// in S0 — workers that reach their own exit-lock wait block there, which
// is what makes scenario 3 in the boundary behaviors (a worker with only
// partial data times out rather than getting a reply) correct. ExitLock is
// released only for the S2 handoff window below, draining every worker
// already queued on it (plus any that arrive before the gate closes again)
// before the Coordinator resets State for the next step.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.auditClose != nil {
		defer c.auditClose.Close()
	}

	go c.commitLoop(ctx)

	c.state.ExitLock.Lock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !c.state.AllFilled() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.state.WaitTick):
			}
			continue
		}

		c.state.EnterLock.Lock()
		c.state.ExitLock.Unlock()

		for c.state.Waiters() != 0 {
			select {
			case <-ctx.Done():
				c.state.EnterLock.Unlock()
				return nil
			case <-time.After(c.state.WaitTick):
			}
		}

		snap := c.state.CaptureSnapshot()
		c.state.ResetAndAdvance()
		c.state.ExitLock.Lock()
		c.state.EnterLock.Unlock()

		record := snapshotToRecord(snap)
		if err := c.sink.Add(record); err != nil {
			c.logger.Error("sink add failed", "error", err, "time", snap.Time)
		}
		c.logSnapshot(snap)
	}
}

func (c *Coordinator) commitLoop(ctx context.Context) {
	ticker := time.NewTicker(c.commitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sink.Commit(); err != nil {
				c.logger.Error("sink commit failed", "error", err)
			}
		}
	}
}

func (c *Coordinator) logSnapshot(snap state.Snapshot) {
	c.logger.Debug("step committed", "time", snap.Time, "vars", len(snap.Vars))
	if c.auditLogger != nil {
		c.auditLogger.Info("step committed", "time", snap.Time, slog.Any("vars", snap.Vars))
	}
}

func snapshotToRecord(snap state.Snapshot) sink.Record {
	record := make(sink.Record, len(snap.Vars)+1)
	for k, v := range snap.Vars {
		record[k] = v
	}
	record["time"] = float64(snap.Time)
	return record
}
