// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package state

import (
	"sync"
	"testing"
	"time"
)

func TestNew_StartsAtTimeOneAllNull(t *testing.T) {
	s := New([]string{"a", "b"}, time.Microsecond)
	if s.Time() != 1 {
		t.Errorf("expected time 1, got %d", s.Time())
	}
	if s.AllFilled() {
		t.Error("expected fresh state to not be filled")
	}
	if s.Waiters() != 0 {
		t.Errorf("expected 0 waiters, got %d", s.Waiters())
	}
}

func TestMergeData_IgnoresUnknownKeys(t *testing.T) {
	s := New([]string{"a"}, time.Microsecond)
	s.MergeData(map[string]float64{"a": 1, "unknown": 99})
	if !s.AllFilled() {
		t.Error("expected state to be filled after assigning the only schema key")
	}
	reply := s.Reply([]string{"a", "unknown"})
	if reply["a"] != 1 {
		t.Errorf("expected a=1, got %v", reply["a"])
	}
	if _, ok := reply["unknown"]; ok {
		t.Error("expected unknown key to be omitted from reply")
	}
}

func TestMergeData_LastWriteWins(t *testing.T) {
	s := New([]string{"a"}, time.Microsecond)
	s.MergeData(map[string]float64{"a": 1})
	s.MergeData(map[string]float64{"a": 2})
	reply := s.Reply([]string{"a"})
	if reply["a"] != 2 {
		t.Errorf("expected last write (2) to win, got %v", reply["a"])
	}
}

func TestCaptureSnapshotAndResetAndAdvance(t *testing.T) {
	s := New([]string{"a", "b"}, time.Microsecond)
	s.MergeData(map[string]float64{"a": 1, "b": 2})
	if !s.AllFilled() {
		t.Fatal("expected state to be filled")
	}

	snap := s.CaptureSnapshot()
	if snap.Time != 1 {
		t.Errorf("expected snapshot time 1, got %d", snap.Time)
	}
	if snap.Vars["a"] != 1 || snap.Vars["b"] != 2 {
		t.Errorf("unexpected snapshot vars: %+v", snap.Vars)
	}

	s.ResetAndAdvance()
	if s.Time() != 2 {
		t.Errorf("expected time 2 after advance, got %d", s.Time())
	}
	if s.AllFilled() {
		t.Error("expected state to be unfilled after reset")
	}
}

func TestWaitersIncDec(t *testing.T) {
	s := New([]string{"a"}, time.Microsecond)
	s.IncWaiters()
	s.IncWaiters()
	if s.Waiters() != 2 {
		t.Fatalf("expected 2 waiters, got %d", s.Waiters())
	}
	s.DecWaiters()
	if s.Waiters() != 1 {
		t.Fatalf("expected 1 waiter, got %d", s.Waiters())
	}
}

// TestConcurrentMergeData exercises the race detector: many goroutines write
// disjoint keys concurrently, which must never trip Go's "concurrent map
// read and map write" even though the protocol itself imposes no per-key
// ordering guarantee.
func TestConcurrentMergeData(t *testing.T) {
	schema := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	s := New(schema, time.Microsecond)

	var wg sync.WaitGroup
	for i, k := range schema {
		wg.Add(1)
		go func(key string, v float64) {
			defer wg.Done()
			s.MergeData(map[string]float64{key: v})
		}(k, float64(i))
	}
	wg.Wait()

	if !s.AllFilled() {
		t.Error("expected all schema keys to be filled after concurrent merges")
	}
}
