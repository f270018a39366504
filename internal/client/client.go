// Copyright (c) 2025 PKSS Communication contributors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package client implements the simulation client's single operation:
// open a TCP connection, exchange one envelope/reply pair, close.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/radluki/pkss-communication/internal/protocol"
)

// Client exchanges one envelope per call with a coordination server.
type Client struct {
	addr    string
	codec   *protocol.FrameCodec
	dialer  net.Dialer
	timeout time.Duration
}

// New creates a Client targeting addr (host:port). dialTimeout bounds the
// TCP handshake; zero uses net.Dialer's default (no timeout).
func New(addr string, dialTimeout time.Duration) *Client {
	return &Client{
		addr:    addr,
		codec:   protocol.Default(),
		dialer:  net.Dialer{Timeout: dialTimeout},
		timeout: dialTimeout,
	}
}

// Exchange opens a fresh TCP connection, sends {data, request}, waits for
// the reply, and closes the connection. A new connection is opened for
// every call rather than reusing one, avoiding any cross-exchange state
// leaking between steps.
func (c *Client) Exchange(data map[string]float64, request []string) (protocol.Reply, error) {
	conn, err := c.dialer.Dial("tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("client: dialing %s: %w", c.addr, err)
	}
	defer conn.Close()

	env := protocol.Envelope{Data: data, Request: request}
	if err := c.codec.Send(conn, env); err != nil {
		return nil, fmt.Errorf("client: sending envelope: %w", err)
	}

	var reply protocol.Reply
	if err := c.codec.Receive(conn, &reply); err != nil {
		return nil, fmt.Errorf("client: receiving reply: %w", err)
	}

	return reply, nil
}
