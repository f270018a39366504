// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestThrottledWriter_ZeroBypasses(t *testing.T) {
	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), &buf, 0, 11)

	// bytesPerSec == 0 must return the original writer unwrapped.
	if _, ok := w.(*ThrottledWriter); ok {
		t.Fatal("expected original writer (bypass), got ThrottledWriter")
	}

	data := []byte("hello world")
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected %d bytes written, got %d", len(data), n)
	}
	if buf.String() != "hello world" {
		t.Errorf("expected 'hello world', got %q", buf.String())
	}
}

func TestThrottledWriter_SmallWrites(t *testing.T) {
	var buf bytes.Buffer
	// 1 MB/s — small writes should pass through without noticeable blocking.
	// Total payload (50 bytes) is well under maxBurstSize, so burst shrinks
	// to the payload size itself.
	w := NewThrottledWriter(context.Background(), &buf, 1*1024*1024, 50)

	data := []byte("small")
	for i := 0; i < 10; i++ {
		_, err := w.Write(data)
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	if buf.Len() != 50 {
		t.Errorf("expected 50 bytes written, got %d", buf.Len())
	}
}

func TestThrottledWriter_RespectsBandwidthLimit(t *testing.T) {
	var buf bytes.Buffer

	// Limit: 100 KB/s, burst is min(100KB, maxBurstSize=256KB, payload=400KB) = 100KB.
	// Writing 400 KB: burst covers ~100KB, remaining ~300KB at 100KB/s takes ~3s.
	limit := int64(100 * 1024) // 100 KB/s
	data := make([]byte, 400*1024) // 400 KB
	w := NewThrottledWriter(context.Background(), &buf, limit, len(data))
	for i := range data {
		data[i] = byte(i % 256)
	}

	start := time.Now()
	n, err := w.Write(data)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected %d bytes written, got %d", len(data), n)
	}

	// Lower bound with margin for CI jitter.
	minExpected := 2 * time.Second
	if elapsed < minExpected {
		t.Errorf("throttle too fast: wrote %d bytes in %v (limit=%d B/s, expected >= %v)",
			len(data), elapsed, limit, minExpected)
	}

	// Generous upper bound for slow CI.
	maxExpected := 8 * time.Second
	if elapsed > maxExpected {
		t.Errorf("throttle too slow: wrote %d bytes in %v (limit=%d B/s, expected <= %v)",
			len(data), elapsed, limit, maxExpected)
	}
}

func TestThrottledWriter_ContextCancellation(t *testing.T) {
	var buf bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	data := make([]byte, 100*1024) // 100 KB @ 1 KB/s would take ~100s without cancellation
	w := NewThrottledWriter(ctx, &buf, 1024, len(data)) // 1 KB/s — slow enough to cancel mid-write

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := w.Write(data)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestThrottledWriter_BurstShrinksToPayloadSize(t *testing.T) {
	var buf bytes.Buffer
	// bytesPerSec alone would allow a 256KB burst (capped at maxBurstSize),
	// but a 2KB payload should never reserve more than it will spend.
	w := NewThrottledWriter(context.Background(), &buf, 10*1024*1024, 2*1024)

	tw, ok := w.(*ThrottledWriter)
	if !ok {
		t.Fatal("expected a *ThrottledWriter")
	}
	if got := tw.limiter.Burst(); got != 2*1024 {
		t.Errorf("expected burst shrunk to payload size 2048, got %d", got)
	}
}

func TestThrottledWriter_BurstFallsBackToCeilingWhenPayloadUnknown(t *testing.T) {
	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), &buf, 10*1024*1024, 0)

	tw, ok := w.(*ThrottledWriter)
	if !ok {
		t.Fatal("expected a *ThrottledWriter")
	}
	if got := tw.limiter.Burst(); got != maxBurstSize {
		t.Errorf("expected burst at maxBurstSize ceiling, got %d", got)
	}
}

func TestThrottledWriter_NegativeBypasses(t *testing.T) {
	var buf bytes.Buffer
	w := NewThrottledWriter(context.Background(), &buf, -1, 11)

	// bytesPerSec < 0 must return the original writer unwrapped.
	if _, ok := w.(*ThrottledWriter); ok {
		t.Fatal("expected original writer (bypass), got ThrottledWriter")
	}
}
