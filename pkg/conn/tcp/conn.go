// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"

	linkerrors "github.com/absmach/mlink/pkg/errors"
)

const (
	// DefaultBufferSize is the default receive buffer size in bytes.
	DefaultBufferSize = 8192
)

// Role describes how a TCP connection establishes its stream.
type Role int

const (
	// RoleUnassigned is the role of a connection that has not been started.
	RoleUnassigned Role = iota

	// RoleServer listens on the local port and accepts a peer.
	RoleServer

	// RoleClient actively dials the remote peer.
	RoleClient
)

// String returns a string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unassigned"
	}
}

// Status is the lifecycle phase of a TCP connection.
type Status int

const (
	// Disconnected means no stream exists and no operation is outstanding.
	Disconnected Status = iota

	// Pending means an accept or connect operation is outstanding.
	Pending

	// Connected means an established stream exists and the read loop is running.
	Connected
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Events defines the notifications a connection raises toward its owner.
// All methods are invoked from the connection's own goroutines, never while
// the connection's internal lock is held.
type Events interface {
	// Received delivers a freshly copied payload and its sender address.
	Received(payload []byte, source net.Addr)

	// Connected signals the pending→connected transition.
	Connected(remote net.Addr)

	// Disconnected signals that the stream dropped on its own: peer close,
	// client connect failure, or a broken pipe detected during transmit.
	// Never raised for an operator-initiated Close.
	Disconnected()

	// Failed signals an unclassified transport error the connection has no
	// policy for. The connection is dead afterwards.
	Failed(err error)
}

// Config holds the TCP connection configuration.
type Config struct {
	// LocalAddr is the local address the connection binds to. Its port is
	// the connection's identity within the driver.
	LocalAddr *net.TCPAddr

	// BufferSize is the receive buffer size in bytes.
	// If 0, uses DefaultBufferSize.
	BufferSize int

	// Logger for connection events
	Logger *slog.Logger
}

// Conn is a single TCP connection with an explicit role and status.
//
// A server-role connection owns a listener that keeps serving: when an
// accepted peer disconnects, the connection returns to pending and accepts
// the next peer on the same port without being re-added. A client-role
// connection performs one connect attempt, and collapses back to
// disconnected when the attempt fails or the established stream drops.
type Conn struct {
	config Config
	events Events

	mu       sync.Mutex
	role     Role
	status   Status
	listener net.Listener
	sock     net.Conn
	remote   net.Addr
	closed   bool
}

// New creates a new TCP connection in the disconnected state.
func New(cfg Config, events Events) *Conn {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	return &Conn{
		config: cfg,
		events: events,
	}
}

// LocalPort returns the local port the connection binds to.
func (c *Conn) LocalPort() uint16 {
	return uint16(c.config.LocalAddr.Port)
}

// Role returns the connection's current role.
func (c *Conn) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Status returns the connection's current status.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RemoteAddr returns the established peer address, or nil when not connected.
func (c *Conn) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// StartServer opens a listener on the local port with address reuse enabled
// and begins accepting asynchronously. The connection transitions to pending;
// the accept loop keeps serving new peers until Close.
func (c *Conn) StartServer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return linkerrors.ErrConnectionClosed
	}
	if c.status != Disconnected {
		return linkerrors.ErrAlreadyStarted
	}

	// Reuse the address in case a previous socket on this port is still
	// lingering in TIME_WAIT.
	lc := net.ListenConfig{Control: reuseAddr}
	listener, err := lc.Listen(context.Background(), "tcp", c.config.LocalAddr.String())
	if err != nil {
		return linkerrors.Wrap(err, "listen")
	}

	c.listener = listener
	c.role = RoleServer
	c.status = Pending

	go c.acceptLoop(listener)

	c.config.Logger.Debug("TCP server listening",
		slog.String("local", c.config.LocalAddr.String()))

	return nil
}

// StartClient binds the local port with address reuse enabled and issues one
// asynchronous connect attempt toward the remote address. The connection
// transitions to pending; a failed attempt collapses it to disconnected and
// raises the Disconnected event.
func (c *Conn) StartClient(remote *net.TCPAddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return linkerrors.ErrConnectionClosed
	}
	if c.status != Disconnected {
		return linkerrors.ErrAlreadyStarted
	}

	c.role = RoleClient
	c.status = Pending

	dialer := net.Dialer{
		LocalAddr: c.config.LocalAddr,
		Control:   reuseAddr,
	}

	go c.dial(dialer, remote)

	c.config.Logger.Debug("TCP client connecting",
		slog.String("local", c.config.LocalAddr.String()),
		slog.String("remote", remote.String()))

	return nil
}

// Transmit sends the payload over the established stream and reports the
// number of bytes the transport accepted. It fails if the connection is not
// connected. A broken pipe detected during the send drops the connection and
// raises the Disconnected event, but Transmit itself still returns nil for
// the attempted send: the write was handed to the transport before the
// failure was detected. The byte count stays accurate either way.
func (c *Conn) Transmit(payload []byte) (int, error) {
	c.mu.Lock()
	if c.status != Connected {
		c.mu.Unlock()
		return 0, linkerrors.ErrNotConnected
	}
	sock := c.sock
	c.mu.Unlock()

	n, err := sock.Write(payload)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			if c.dropStream() {
				c.events.Disconnected()
			}
		}
	}

	return n, nil
}

// Close tears the connection down synchronously: the listener and socket are
// closed, cancelling any outstanding accept, connect, or read. No Disconnected
// event is raised; closure was requested locally.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
	}
	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}
	c.remote = nil
	c.status = Disconnected
	c.role = RoleUnassigned
}

// acceptLoop serves the listener: it accepts one peer, runs the read loop on
// the established stream, and re-arms the accept when the stream drops. At
// most one operation (accept or read) is outstanding at a time.
func (c *Conn) acceptLoop(listener net.Listener) {
	for {
		sock, err := listener.Accept()
		if err != nil {
			// Closing the listener cancels the outstanding accept.
			if errors.Is(err, net.ErrClosed) || !c.alive() {
				return
			}
			// Transient accept error: the listener keeps serving.
			c.config.Logger.Debug("accept failed, re-arming",
				slog.String("local", c.config.LocalAddr.String()),
				slog.String("error", err.Error()))
			continue
		}

		if !c.established(sock) {
			// Raced with Close; the queued accept is discarded.
			return
		}

		c.readLoop(sock)

		c.mu.Lock()
		rearm := !c.closed && c.status == Pending
		c.mu.Unlock()
		if !rearm {
			return
		}
	}
}

// dial performs the client role's single connect attempt.
func (c *Conn) dial(dialer net.Dialer, remote *net.TCPAddr) {
	sock, err := dialer.Dial("tcp", remote.String())
	if err != nil {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.status = Disconnected
		c.role = RoleUnassigned
		c.mu.Unlock()

		c.config.Logger.Debug("TCP connect failed",
			slog.String("local", c.config.LocalAddr.String()),
			slog.String("remote", remote.String()),
			slog.String("error", err.Error()))

		c.events.Disconnected()
		return
	}

	if !c.established(sock) {
		return
	}

	c.readLoop(sock)
}

// established records the new stream and raises the Connected event.
// It returns false if the connection was closed while the accept or connect
// was in flight, in which case the stream is discarded.
func (c *Conn) established(sock net.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sock.Close()
		return false
	}
	c.sock = sock
	c.remote = sock.RemoteAddr()
	c.status = Connected
	c.mu.Unlock()

	c.config.Logger.Debug("TCP connection established",
		slog.String("local", c.config.LocalAddr.String()),
		slog.String("remote", sock.RemoteAddr().String()))

	c.events.Connected(sock.RemoteAddr())
	return true
}

// readLoop continuously reads the stream into the reusable receive buffer,
// copying each completed read out before delivering it. It returns when the
// stream drops or the connection is closed.
func (c *Conn) readLoop(sock net.Conn) {
	buffer := make([]byte, c.config.BufferSize)

	for {
		n, err := sock.Read(buffer)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buffer[:n])
			c.events.Received(payload, sock.RemoteAddr())
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, net.ErrClosed):
			// We closed the socket ourselves; the completion is discarded.
			return
		case peerClosed(err):
			if c.dropStream() {
				c.events.Disconnected()
			}
			return
		default:
			// An error the state machine has no policy for.
			c.fail(err)
			return
		}
	}
}

// dropStream handles a stream lost to the peer: the socket is closed and the
// status transitions according to role. A server returns to pending so its
// listener keeps serving; a client collapses to disconnected and resets its
// role. Returns false if the stream was already gone, keeping the transition
// idempotent between the read loop and a racing transmit.
func (c *Conn) dropStream() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.status != Connected {
		return false
	}

	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}
	c.remote = nil

	if c.role == RoleServer {
		c.status = Pending
	} else {
		c.status = Disconnected
		c.role = RoleUnassigned
	}

	return true
}

// fail marks the connection dead after an unclassified transport error and
// raises the Failed event. Distinct from a normal disconnect: there is no
// recovery policy for this condition.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
	}
	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}
	c.remote = nil
	c.status = Disconnected
	c.role = RoleUnassigned
	c.mu.Unlock()

	c.events.Failed(err)
}

// alive reports whether the connection has not been closed.
func (c *Conn) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// peerClosed reports whether a read error means the peer terminated the
// stream, as opposed to a local close or an unclassified failure.
func peerClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}
