// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package listener

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBind_WritesPortFile(t *testing.T) {
	portFile := filepath.Join(t.TempDir(), "port.txt")

	l, err := Bind("127.0.0.1", 0, portFile, testLogger())
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer l.Close()

	data, err := os.ReadFile(portFile)
	if err != nil {
		t.Fatalf("reading port file: %v", err)
	}
	want := strconv.Itoa(l.Port()) + "\n"
	if string(data) != want {
		t.Errorf("expected port file %q, got %q", want, data)
	}
}

func TestBind_RetriesOnPortInUse(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer blocker.Close()

	busyPort := blocker.Addr().(*net.TCPAddr).Port

	l, err := Bind("127.0.0.1", busyPort, "", testLogger())
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer l.Close()

	if l.Port() == busyPort {
		t.Errorf("expected Bind to pick a different port than the busy one %d", busyPort)
	}
}

func TestServe_SpawnsHandlerPerConnection(t *testing.T) {
	l, err := Bind("127.0.0.1", 0, "", testLogger())
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	handled := make(chan net.Conn, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Serve(ctx, func(c net.Conn) {
		handled <- c
		c.Close()
	})

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(l.Port())))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("expected the handler to be invoked for the accepted connection")
	}

	cancel()
}
