// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package protocol implements the framing used between client and server:
// one JSON value per exchange over a TCP byte stream, terminated by a fixed
// sentinel and acknowledged with a single confirmation byte.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// DefaultSentinel is the end-of-message marker appended to every frame: the
// UTF-8 encoding of U+0142 ('ł'), bytes 0xC5 0x82.
const DefaultSentinel = "ł"

// DefaultAckByte is the single byte a receiver writes back once a frame has
// been parsed successfully.
const DefaultAckByte byte = 0x79 // 'y'

// DefaultChunkSize is the read buffer size used by Receive. 16 bytes is
// enough to exercise the sentinel-split edge case; larger values are fine
// and just mean fewer syscalls per frame.
const DefaultChunkSize = 16

var (
	// ErrTruncated means the peer closed the connection before a complete
	// frame (payload + sentinel) was received.
	ErrTruncated = errors.New("protocol: connection closed mid-frame")
	// ErrAckMismatch means the byte returned by the peer after a Send did
	// not match the configured acknowledgment byte.
	ErrAckMismatch = errors.New("protocol: unexpected acknowledgment byte")
)

// Config configures the wire-level details of a FrameCodec. The zero value
// is not usable directly; use New, which fills in the documented defaults
// for any zero field.
type Config struct {
	Sentinel  string
	AckByte   byte
	ChunkSize int
}

// FrameCodec carries one JSON value per exchange over a net.Conn, with an
// application-level acknowledgment so the sender knows the peer actually
// parsed the frame before it closes or reuses the connection.
type FrameCodec struct {
	sentinel  []byte
	ackByte   byte
	chunkSize int
}

// New builds a FrameCodec, defaulting any zero field of cfg to the values
// documented in the wire framing section of the protocol.
func New(cfg Config) *FrameCodec {
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	ack := cfg.AckByte
	if ack == 0 {
		ack = DefaultAckByte
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FrameCodec{
		sentinel:  []byte(sentinel),
		ackByte:   ack,
		chunkSize: chunkSize,
	}
}

// Default returns a FrameCodec using every documented default.
func Default() *FrameCodec {
	return New(Config{})
}

// Send serializes v as JSON, appends the sentinel, writes it to conn, then
// blocks for the single-byte acknowledgment and verifies it.
func (f *FrameCodec) Send(conn net.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("protocol: encoding frame: %w", err)
	}
	payload = append(payload, f.sentinel...)
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("protocol: writing frame: %w", err)
	}

	ack := make([]byte, 1)
	if _, err := io.ReadFull(conn, ack); err != nil {
		return fmt.Errorf("protocol: reading acknowledgment: %w", err)
	}
	if ack[0] != f.ackByte {
		return ErrAckMismatch
	}
	return nil
}

// Receive reads from conn until the trailing bytes equal the sentinel,
// strips it, decodes the remaining JSON into out, writes the acknowledgment
// byte, and returns.
//
// The sentinel check compares raw bytes, not decoded runes, so a partial
// multi-byte UTF-8 sequence straddling two reads never causes a spurious
// decode failure — it simply doesn't match the suffix yet and the loop reads
// more.
func (f *FrameCodec) Receive(conn net.Conn, out any) error {
	buf := make([]byte, 0, f.chunkSize*2)
	chunk := make([]byte, f.chunkSize)

	for !hasSentinelSuffix(buf, f.sentinel) {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if hasSentinelSuffix(buf, f.sentinel) {
				break
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %v", ErrTruncated, err)
			}
			return fmt.Errorf("protocol: reading frame: %w", err)
		}
	}

	payload := buf[:len(buf)-len(f.sentinel)]
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("protocol: decoding frame: %w", err)
	}

	if _, err := conn.Write([]byte{f.ackByte}); err != nil {
		return fmt.Errorf("protocol: writing acknowledgment: %w", err)
	}
	return nil
}

func hasSentinelSuffix(buf, sentinel []byte) bool {
	if len(buf) < len(sentinel) {
		return false
	}
	tail := buf[len(buf)-len(sentinel):]
	for i := range sentinel {
		if tail[i] != sentinel[i] {
			return false
		}
	}
	return true
}
