// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSpoolWriter_WriteBatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSpoolWriter(dir, 5)
	if err != nil {
		t.Fatalf("NewSpoolWriter: %v", err)
	}

	if err := w.WriteBatch([]byte("batch-1")); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 spooled file, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "batch-1" {
		t.Errorf("expected 'batch-1', got %q", data)
	}
}

func TestSpoolWriter_RotatesOldBatches(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSpoolWriter(dir, 2)
	if err != nil {
		t.Fatalf("NewSpoolWriter: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := w.WriteBatch([]byte("batch")); err != nil {
			t.Fatalf("WriteBatch %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected rotation to leave 2 files, got %d", len(entries))
	}
}

func TestRotate_NoOpWhenUnderLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "2024-01-01T00-00-00-000.ndjson.gz"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := Rotate(dir, 5); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected file to survive rotation, got %d entries", len(entries))
	}
}
