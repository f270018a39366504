// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package worker implements the per-connection handler that merges a
// client's partial contribution into State and replies with the requested
// variables once the step they straddled has been committed.
package worker

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/radluki/pkss-communication/internal/protocol"
	"github.com/radluki/pkss-communication/internal/state"
)

// ConnectionWorker handles exactly one accepted connection, from receiving
// its envelope through sending its reply and closing the socket.
type ConnectionWorker struct {
	codec       *protocol.FrameCodec
	state       *state.State
	readTimeout time.Duration
	logger      *slog.Logger
}

// New creates a ConnectionWorker sharing codec and st with every other
// worker and the Coordinator. readTimeout bounds how long a connection may
// sit idle before a frame is fully received; zero disables the deadline.
func New(codec *protocol.FrameCodec, st *state.State, readTimeout time.Duration, logger *slog.Logger) *ConnectionWorker {
	return &ConnectionWorker{
		codec:       codec,
		state:       st,
		readTimeout: readTimeout,
		logger:      logger.With("component", "connection_worker"),
	}
}

// Handle runs the full per-connection algorithm and always closes conn
// before returning. Any I/O or decode error terminates only this worker's
// handling; it never propagates to the Listener or Coordinator.
func (w *ConnectionWorker) Handle(conn net.Conn) {
	defer conn.Close()

	if w.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			w.logger.Error("setting read deadline", "error", err)
			return
		}
	}

	var env protocol.Envelope
	if err := w.codec.Receive(conn, &env); err != nil {
		if errors.Is(err, protocol.ErrTruncated) {
			w.logger.Debug("connection closed before a full frame arrived", "error", err)
		} else {
			w.logger.Error("receiving envelope", "error", err)
		}
		return
	}

	w.state.EnterLock.Lock()
	w.state.IncWaiters()
	w.state.EnterLock.Unlock()

	counted := true
	defer func() {
		if counted {
			w.state.DecWaiters()
		}
	}()

	w.state.MergeData(env.Data)

	w.state.ExitLock.Lock()
	reply := w.state.Reply(env.Request)
	w.state.DecWaiters()
	counted = false
	w.state.ExitLock.Unlock()

	if err := w.codec.Send(conn, reply); err != nil {
		w.logger.Error("sending reply", "error", err)
		return
	}
}
