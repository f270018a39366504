// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import "log/slog"

// SimulatorSink is the mandatory no-op backend: same surface as RealSink,
// drops every record. It is the automatic choice when the real backend is
// unavailable, and the default for local development.
type SimulatorSink struct {
	schema []string
	logger *slog.Logger
}

// NewSimulatorSink creates a SimulatorSink for the given schema.
func NewSimulatorSink(schema []string, logger *slog.Logger) *SimulatorSink {
	return &SimulatorSink{
		schema: append([]string(nil), schema...),
		logger: logger.With("component", "simulator_sink"),
	}
}

// Schema returns the fixed set of variable names.
func (s *SimulatorSink) Schema() []string {
	return append([]string(nil), s.schema...)
}

// Add logs the record and drops it.
func (s *SimulatorSink) Add(r Record) error {
	s.logger.Debug("adding record to buffer", "record", r)
	return nil
}

// Commit is a no-op.
func (s *SimulatorSink) Commit() error {
	s.logger.Debug("committing buffer")
	return nil
}

// Descriptor reports this sink as a "simulator" kind.
func (s *SimulatorSink) Descriptor() Descriptor {
	return Descriptor{Kind: "simulator", Schema: s.Schema()}
}
