// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fanOutHandler is a slog.Handler that dispatches every record to two
// underlying handlers. Used by NewAuditLogger to write simultaneously to the
// global logger and a dedicated per-run audit file.
type fanOutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

func (h *fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	// Check Enabled() on each handler individually so DEBUG records reach
	// the audit file even when the primary handler only accepts INFO+.
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r); err != nil {
			return err
		}
	}
	// A write failure on the audit file must never take down the main log.
	if h.secondary.Enabled(ctx, r.Level) {
		_ = h.secondary.Handle(ctx, r)
	}
	return nil
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithAttrs(attrs),
		secondary: h.secondary.WithAttrs(attrs),
	}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithGroup(name),
		secondary: h.secondary.WithGroup(name),
	}
}

// NewAuditLogger creates a logger that writes to both the base (global)
// logger and a dedicated file for one coordinator run. The file is created
// at:
//
//	{auditDir}/{component}/{runID}.log
//
// It returns the enriched logger, an io.Closer that MUST be closed (defer)
// when the run ends, and the path of the created file (relative when
// auditDir is relative).
//
// If auditDir is empty, the base logger is returned unmodified (no-op).
func NewAuditLogger(baseLogger *slog.Logger, auditDir, component, runID string) (*slog.Logger, io.Closer, string, error) {
	if auditDir == "" {
		return baseLogger, io.NopCloser(nil), "", nil
	}

	dir := filepath.Join(auditDir, component)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, "", fmt.Errorf("creating audit log directory %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, runID+".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening audit log file %s: %w", logPath, err)
	}

	// The audit file always captures at DEBUG level, independent of the
	// base logger's configured level. run_id is bound directly onto the
	// file handler (rather than relying solely on the file's name) so a
	// line is self-describing once the archiver rotates or relocates the
	// file away from its original {component}/{runID}.log path.
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}).WithAttrs([]slog.Attr{slog.String("run_id", runID)})

	combined := &fanOutHandler{
		primary:   baseLogger.Handler(),
		secondary: fileHandler,
	}

	return slog.New(combined), f, logPath, nil
}

// RemoveAuditLog deletes the audit file for a run that finished cleanly.
// No-op if auditDir is empty or the file does not exist.
func RemoveAuditLog(auditDir, component, runID string) {
	if auditDir == "" {
		return
	}
	logPath := filepath.Join(auditDir, component, runID+".log")
	os.Remove(logPath)
}

// PruneAuditLogs keeps only the keep most recent audit log files under
// {auditDir}/{component}, removing the rest. run IDs are base36-encoded
// nanosecond timestamps (see cmd/pkss-server), so lexical order matches
// creation order the same way it does for sink.Rotate's timestamped spool
// batch names. The server never calls RemoveAuditLog, so every coordinator
// run leaves its file behind and the directory would otherwise accumulate
// one file per run forever; this lets the archiver bound that alongside the
// spool directory with one periodic job.
func PruneAuditLogs(auditDir, component string, keep int) error {
	if auditDir == "" || keep <= 0 {
		return nil
	}

	dir := filepath.Join(auditDir, component)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading audit log directory %s: %w", dir, err)
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, e.Name())
		}
	}
	sort.Strings(logs)

	if len(logs) <= keep {
		return nil
	}
	for _, name := range logs[:len(logs)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("removing old audit log %s: %w", name, err)
		}
	}
	return nil
}
