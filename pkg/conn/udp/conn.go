// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package udp

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	linkerrors "github.com/absmach/mlink/pkg/errors"
)

const (
	// MaxDatagramSize is the maximum size of a UDP datagram.
	MaxDatagramSize = 65535

	// DefaultBufferSize is the default receive buffer size in bytes.
	DefaultBufferSize = 8192
)

// Events defines the notifications a connection raises toward its owner.
type Events interface {
	// Received delivers a freshly copied datagram payload and its sender.
	Received(payload []byte, source net.Addr)

	// Failed signals an unclassified receive error. The connection is dead
	// afterwards. Datagram sockets have no peer-close signal, so this is
	// the only spontaneous termination path.
	Failed(err error)
}

// Config holds the UDP connection configuration.
type Config struct {
	// LocalAddr is the local address the socket binds to.
	LocalAddr *net.UDPAddr

	// RemoteAddr is the fixed target for Transmit.
	RemoteAddr *net.UDPAddr

	// BufferSize is the receive buffer size in bytes.
	// If 0, uses DefaultBufferSize. Capped at MaxDatagramSize.
	BufferSize int

	// Logger for connection events
	Logger *slog.Logger
}

// Conn is a single connectionless UDP socket. It is active from the moment
// Open succeeds until Close: there is no pending phase and no disconnect
// detection. Received datagrams carry their individual sender address.
type Conn struct {
	config Config
	events Events
	sock   *net.UDPConn

	mu     sync.Mutex
	closed bool
}

// Open binds the local port and starts the receive loop.
func Open(cfg Config, events Events) (*Conn, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.BufferSize > MaxDatagramSize {
		cfg.BufferSize = MaxDatagramSize
	}

	sock, err := net.ListenUDP("udp", cfg.LocalAddr)
	if err != nil {
		return nil, linkerrors.Wrap(err, "bind")
	}

	c := &Conn{
		config: cfg,
		events: events,
		sock:   sock,
	}

	go c.readLoop()

	cfg.Logger.Debug("UDP connection opened",
		slog.String("local", cfg.LocalAddr.String()),
		slog.String("remote", cfg.RemoteAddr.String()))

	return c, nil
}

// LocalPort returns the local port the socket is bound to.
func (c *Conn) LocalPort() uint16 {
	return uint16(c.config.LocalAddr.Port)
}

// Transmit sends one datagram to the configured remote address and reports
// the number of bytes the transport accepted. Send errors are propagated to
// the caller; there is no status to transition and no retry.
func (c *Conn) Transmit(payload []byte) (int, error) {
	n, err := c.sock.WriteToUDP(payload, c.config.RemoteAddr)
	if err != nil {
		return n, linkerrors.Wrap(err, "send")
	}
	return n, nil
}

// Close closes the socket, cancelling the outstanding receive. The loop does
// not restart.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.sock.Close()
}

// readLoop continuously receives datagrams into the reusable buffer, copying
// each one out with its sender address before re-arming the receive.
func (c *Conn) readLoop() {
	buffer := make([]byte, c.config.BufferSize)

	for {
		n, source, err := c.sock.ReadFromUDP(buffer)
		if err != nil {
			// Closing the socket cancels the outstanding receive.
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.mu.Lock()
			closed := c.closed
			if !closed {
				c.closed = true
				c.sock.Close()
			}
			c.mu.Unlock()
			if !closed {
				c.events.Failed(err)
			}
			return
		}

		payload := make([]byte, n)
		copy(payload, buffer[:n])
		c.events.Received(payload, source)
	}
}
