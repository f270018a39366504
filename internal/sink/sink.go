// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sink implements the buffered persistence backend the Coordinator
// hands committed step snapshots to. A Sink is deliberately opaque to the
// rest of the server: it exposes add/commit/schema plus a Descriptor so the
// Coordinator — which the listener treats as running in its own execution
// context — can rebuild its Sink from plain data instead of sharing a live
// object across that boundary.
package sink

import (
	"context"
	"fmt"
	"log/slog"
)

// Record is one persisted row: a subset of Schema() plus the reserved
// "time" key, exactly as produced by state.Snapshot once the Coordinator
// has flattened it.
type Record map[string]float64

// Sink is the persistence capability the Coordinator drives. Selection
// between implementations happens at startup, based on the configured kind
// and on whether the real backend's AWS config loads (no connection to S3
// is attempted); Commit failures are logged and non-fatal.
type Sink interface {
	Schema() []string
	Add(r Record) error
	Commit() error
	Descriptor() Descriptor
}

// Descriptor is the serializable reconstruction recipe for a Sink: enough
// to call Rebuild from a fresh execution context without carrying the live
// object across it.
type Descriptor struct {
	Kind   string   `json:"kind"` // "simulator" or "s3"
	Schema []string `json:"schema"`

	Bucket string `json:"bucket,omitempty"`
	Region string `json:"region,omitempty"`
	Prefix string `json:"prefix,omitempty"`

	RateLimitBytesPerSec int64  `json:"rate_limit_bytes_per_sec,omitempty"`
	SpoolDir             string `json:"spool_dir,omitempty"`
	MaxSpoolBatches      int    `json:"max_spool_batches,omitempty"`
}

// Rebuild reconstructs a Sink from a Descriptor. A RealSink whose AWS
// client cannot be built at rebuild time falls back to a SimulatorSink
// rather than failing the Coordinator outright.
func Rebuild(ctx context.Context, d Descriptor, logger *slog.Logger) (Sink, error) {
	switch d.Kind {
	case "", "simulator":
		return NewSimulatorSink(d.Schema, logger), nil
	case "s3":
		real, err := NewRealSink(ctx, d, logger)
		if err != nil {
			logger.Error("building real sink, falling back to simulator", "error", err)
			return NewSimulatorSink(d.Schema, logger), nil
		}
		return real, nil
	default:
		return nil, fmt.Errorf("sink: unknown descriptor kind %q", d.Kind)
	}
}
