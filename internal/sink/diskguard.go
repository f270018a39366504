// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// diskFullThresholdPercent is the usage level above which the local spool
// directory is considered full: a RealSink that fails to upload a batch
// drops it (Commit returns an error) instead of spooling it to a disk this
// close to capacity.
const diskFullThresholdPercent = 90.0

// DiskGuard periodically samples free space on the spool volume so a Sink
// can decide, without blocking on a syscall per snapshot, whether it is
// safe to fall back to writing a batch to local disk.
type DiskGuard struct {
	logger *slog.Logger
	path   string
	close  chan struct{}
	wg     sync.WaitGroup

	mu           sync.RWMutex
	usagePercent float64
}

// NewDiskGuard creates a DiskGuard that watches the filesystem containing
// path. It does not start sampling until Start is called.
func NewDiskGuard(logger *slog.Logger, path string) *DiskGuard {
	return &DiskGuard{
		logger: logger.With("component", "disk_guard"),
		path:   path,
		close:  make(chan struct{}),
	}
}

// Start begins periodic sampling of disk usage.
func (g *DiskGuard) Start() {
	g.sample()
	g.wg.Add(1)
	go g.run()
}

// Stop halts sampling and waits for the background goroutine to exit.
func (g *DiskGuard) Stop() {
	close(g.close)
	g.wg.Wait()
}

// HasSpace reports whether the spool volume is below diskFullThresholdPercent
// used, based on the most recent sample.
func (g *DiskGuard) HasSpace() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.usagePercent < diskFullThresholdPercent
}

// UsagePercent returns the most recently sampled disk usage percentage.
func (g *DiskGuard) UsagePercent() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.usagePercent
}

func (g *DiskGuard) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-g.close:
			return
		case <-ticker.C:
			g.sample()
		}
	}
}

func (g *DiskGuard) sample() {
	usage, err := disk.Usage(g.path)
	if err != nil {
		g.logger.Debug("failed to sample disk usage", "path", g.path, "error", err)
		return
	}

	g.mu.Lock()
	g.usagePercent = usage.UsedPercent
	g.mu.Unlock()

	if usage.UsedPercent >= diskFullThresholdPercent {
		g.logger.Warn("spool volume nearly full", "path", g.path, "used_percent", usage.UsedPercent)
	}
}
