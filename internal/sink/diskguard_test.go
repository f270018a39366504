// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import "testing"

func TestDiskGuard_HasSpaceBeforeFirstSample(t *testing.T) {
	g := NewDiskGuard(testLogger(), t.TempDir())
	if !g.HasSpace() {
		t.Error("expected HasSpace to be true before any sample has run")
	}
}

func TestDiskGuard_StartAndStop(t *testing.T) {
	g := NewDiskGuard(testLogger(), t.TempDir())
	g.Start()
	g.Stop()

	// A real sample should have been taken synchronously by Start.
	if g.UsagePercent() < 0 {
		t.Errorf("expected a non-negative usage percent, got %v", g.UsagePercent())
	}
}
