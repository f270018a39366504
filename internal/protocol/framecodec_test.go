// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package protocol

import (
	"net"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	codec := Default()

	want := Envelope{Data: map[string]float64{"a": 1, "b": 2}, Request: []string{"a", "b"}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- codec.Send(clientConn, want)
	}()

	var got Envelope
	if err := codec.Receive(serverConn, &got); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(got.Data) != len(want.Data) || got.Data["a"] != 1 || got.Data["b"] != 2 {
		t.Errorf("unexpected data: %+v", got.Data)
	}
	if len(got.Request) != 2 {
		t.Errorf("unexpected request: %+v", got.Request)
	}
}

// stepConn wraps a net.Conn and splits every Write into 1-byte writes, so
// Receive sees the sentinel's two UTF-8 bytes arrive in separate reads.
type stepConn struct {
	net.Conn
}

func (c stepConn) Write(p []byte) (int, error) {
	for _, b := range p {
		if _, err := c.Conn.Write([]byte{b}); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func TestReceive_TerminatorSplitAcrossReads(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	codec := New(Config{ChunkSize: 1}) // force many small reads

	want := Envelope{Data: map[string]float64{"a": 5}, Request: []string{"a"}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- codec.Send(stepConn{clientConn}, want)
	}()

	var got Envelope
	if err := codec.Receive(serverConn, &got); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.Data["a"] != 5 {
		t.Errorf("expected a=5, got %+v", got.Data)
	}
}

func TestSend_RejectsBadAck(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	codec := Default()

	go func() {
		// Read and discard the frame, then reply with the wrong byte.
		buf := make([]byte, 256)
		serverConn.SetReadDeadline(time.Now().Add(time.Second))
		serverConn.Read(buf)
		serverConn.Write([]byte{0x00})
	}()

	err := codec.Send(clientConn, Reply{"time": 1})
	if err != ErrAckMismatch {
		t.Fatalf("expected ErrAckMismatch, got %v", err)
	}
}

func TestReceive_TruncatedConnection(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	codec := Default()

	go func() {
		clientConn.Write([]byte(`{"data":`))
		clientConn.Close()
	}()

	var out Envelope
	err := codec.Receive(serverConn, &out)
	if err == nil {
		t.Fatal("expected an error for a truncated frame")
	}
}
