// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
)

// Protocol identifies the transport protocol of a connection.
type Protocol int

const (
	// TCP is a stream connection with an explicit role and status.
	TCP Protocol = iota

	// UDP is a connectionless datagram binding.
	UDP
)

// String returns a string representation of the protocol.
func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return "unknown"
	}
}

// Context contains connection metadata passed to every Handler method.
// It identifies which connection raised the event.
type Context struct {
	// ID is a unique identifier for the session raising the event: one per
	// UDP socket, one per established TCP stream. A server connection that
	// accepts successive peers carries a fresh ID for each stream.
	ID string

	// Protocol indicates the transport protocol (TCP or UDP)
	Protocol Protocol

	// LocalPort is the local port the connection is bound to.
	// Together with Protocol it is the connection's key in the driver.
	LocalPort uint16

	// Source is the peer address an event originated from. For receive
	// events it is the sender of the payload; for TCP connect events it
	// is the established remote endpoint. Empty when not applicable.
	Source string
}

// Handler defines the notification callbacks the driver raises for
// connection events. The driver holds exactly one Handler, registered at
// construction; fan-out to multiple consumers is the caller's concern.
//
// Callbacks are invoked outside the driver's internal lock, so a Handler
// may call back into the driver (for example to re-add a connection after
// a disconnect). Errors returned from callbacks are logged but do not
// affect the connection's state.
type Handler interface {
	// OnReceive is called for every payload a connection receives.
	// The payload is a fresh copy owned by the callee; the connection's
	// internal buffer is never exposed.
	OnReceive(ctx context.Context, hctx *Context, payload []byte) error

	// OnConnect is called when a pending TCP connection becomes
	// connected, before any OnReceive for that port. Never called for UDP.
	OnConnect(ctx context.Context, hctx *Context) error

	// OnDisconnect is called when a TCP connection drops: the peer closed
	// the stream, a client connect attempt failed, or a transmit hit a
	// broken pipe. It is NOT called for operator-initiated removal
	// (Remove, RemoveAll, SetRemoteHost); the caller already knows it
	// asked for those. Never called for UDP.
	OnDisconnect(ctx context.Context, hctx *Context) error
}

// NoopHandler is a Handler implementation that ignores all events.
// Useful for testing or when no event processing is needed.
type NoopHandler struct{}

var _ Handler = (*NoopHandler)(nil)

func (h *NoopHandler) OnReceive(ctx context.Context, hctx *Context, payload []byte) error {
	return nil
}

func (h *NoopHandler) OnConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnDisconnect(ctx context.Context, hctx *Context) error {
	return nil
}
