// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package sink

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize is the upper ceiling on the rate limiter's burst (256KB),
// used whenever the payload being throttled is unknown or larger than this.
const maxBurstSize = 256 * 1024

// ThrottledWriter is an io.Writer with token-bucket rate limiting. It caps
// the write rate to bytesPerSec bytes/second.
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledWriter creates a ThrottledWriter with the given maximum
// bytes/second. A snapshot batch upload is a single, already-compressed
// buffer of known size — not an open-ended stream — so payloadSize caps the
// burst at the batch's own size rather than always reserving the full
// maxBurstSize ceiling; a small batch then never bursts past what it will
// ever spend. Pass 0 (or a size at or above maxBurstSize) to fall back to
// the fixed ceiling alone. If bytesPerSec <= 0, returns the original writer
// unwrapped (bypass) — used when a sink has no configured upload rate
// limit.
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64, payloadSize int) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}
	if payloadSize > 0 && payloadSize < burst {
		burst = payloadSize
	}

	return &ThrottledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write implements io.Writer with rate limiting, splitting writes larger
// than the burst size into chunks so tokens are consumed gradually.
func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		chunk := len(p)
		if chunk > tw.limiter.Burst() {
			chunk = tw.limiter.Burst()
		}

		if err := tw.limiter.WaitN(tw.ctx, chunk); err != nil {
			return totalWritten, err
		}

		n, err := tw.w.Write(p[:chunk])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[n:]
	}

	return totalWritten, nil
}
