// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package coordinator

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/radluki/pkss-communication/internal/logging"
	"github.com/radluki/pkss-communication/internal/sink"
)

// Archiver periodically rotates the local spool directory a RealSink falls
// back to, keeping only the most recent batches on disk even if uploads
// keep failing for a long stretch. When an audit log directory is also
// configured, the same cron job prunes it down to auditKeepRuns files —
// the server never calls logging.RemoveAuditLog, so every coordinator run
// leaves its audit file behind and that directory would otherwise grow by
// one file per run forever.
type Archiver struct {
	cron          *cron.Cron
	spoolDir      string
	maxBatches    int
	auditDir      string
	auditKeepRuns int
	logger        *slog.Logger
}

// NewArchiver registers one cron job on schedule that rotates spoolDir
// down to maxBatches files and, if auditDir is non-empty, prunes its
// "coordinator" subdirectory down to auditKeepRuns files. schedule uses the
// standard five-field cron expression.
func NewArchiver(schedule, spoolDir string, maxBatches int, auditDir string, auditKeepRuns int, logger *slog.Logger) (*Archiver, error) {
	a := &Archiver{
		spoolDir:      spoolDir,
		maxBatches:    maxBatches,
		auditDir:      auditDir,
		auditKeepRuns: auditKeepRuns,
		logger:        logger.With("component", "archiver"),
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, a.rotate); err != nil {
		return nil, err
	}
	a.cron = c
	return a, nil
}

// Start begins the cron scheduler.
func (a *Archiver) Start() {
	a.logger.Info("archiver started", "spool_dir", a.spoolDir, "max_batches", a.maxBatches, "audit_dir", a.auditDir)
	a.cron.Start()
}

// Stop stops the cron scheduler, waiting for ctx or any in-flight rotation.
func (a *Archiver) Stop(ctx context.Context) {
	stopCtx := a.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		a.logger.Warn("archiver stop timed out")
	}
}

func (a *Archiver) rotate() {
	if a.spoolDir != "" {
		if err := sink.Rotate(a.spoolDir, a.maxBatches); err != nil {
			a.logger.Error("rotating spool directory", "error", err)
		}
	}
	if a.auditDir != "" {
		if err := logging.PruneAuditLogs(a.auditDir, "coordinator", a.auditKeepRuns); err != nil {
			a.logger.Error("pruning audit logs", "error", err)
		}
	}
}
