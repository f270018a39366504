// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SpoolWriter persists compressed snapshot batches to local disk when a
// RealSink's upload fails, so a transient outage never loses committed
// state outright. Writes are atomic — a temp file is written and fsynced,
// then renamed into place — so a crash mid-write never leaves a partial
// batch file for the archiver to pick up.
type SpoolWriter struct {
	dir        string
	maxBatches int
}

// NewSpoolWriter prepares the spool directory, creating it if absent.
func NewSpoolWriter(dir string, maxBatches int) (*SpoolWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	if maxBatches <= 0 {
		maxBatches = 20
	}
	return &SpoolWriter{dir: dir, maxBatches: maxBatches}, nil
}

// WriteBatch writes payload to a new timestamped file in the spool
// directory, then rotates away the oldest files beyond maxBatches.
func (w *SpoolWriter) WriteBatch(payload []byte) error {
	tmp, err := os.CreateTemp(w.dir, "batch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating spool temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing spool temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsyncing spool temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing spool temp file: %w", err)
	}

	timestamp := strings.ReplaceAll(time.Now().UTC().Format("2006-01-02T15-04-05.000000000"), ".", "-")
	finalPath := filepath.Join(w.dir, fmt.Sprintf("%s.ndjson.gz", timestamp))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming spool file into place: %w", err)
	}

	return Rotate(w.dir, w.maxBatches)
}

// Rotate removes spooled batch files beyond the maxBatches most recent,
// oldest first, by lexical (== chronological, given the timestamp names)
// order.
func Rotate(dir string, maxBatches int) error {
	if maxBatches <= 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading spool directory: %w", err)
	}

	var batches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ndjson.gz") {
			batches = append(batches, e.Name())
		}
	}
	sort.Strings(batches)

	if len(batches) > maxBatches {
		for _, name := range batches[:len(batches)-maxBatches] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("removing old spool file %s: %w", name, err)
			}
		}
	}

	return nil
}
