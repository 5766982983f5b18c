// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/absmach/mlink/pkg/conn/tcp"
	"github.com/absmach/mlink/pkg/conn/udp"
	linkerrors "github.com/absmach/mlink/pkg/errors"
	"github.com/absmach/mlink/pkg/handler"
	"github.com/absmach/mlink/pkg/link"
	"github.com/absmach/mlink/pkg/metrics"
)

// Config holds the driver configuration.
type Config struct {
	// LocalHost is the local interface address all connections bind to.
	LocalHost string

	// RemoteHost is the remote peer all connections talk to.
	RemoteHost string

	// BufferSize is the per-connection receive buffer size in bytes.
	// If 0, connection defaults apply.
	BufferSize int

	// Logger for driver events
	Logger *slog.Logger

	// Metrics is optional Prometheus instrumentation.
	Metrics *metrics.Metrics
}

// Active is a snapshot of the driver's connection collections, split by
// protocol and TCP status. Port ordering is ascending within each list.
type Active struct {
	PendingTCP   []uint16
	ConnectedTCP []uint16
	UDP          []uint16
}

// Driver manages an arbitrary number of independently addressed TCP and UDP
// connections between one local interface and one remote host.
//
// Connections are keyed by (protocol, local port); the driver rejects a
// second connection on an occupied key. Events from individual connections
// fan out to the single Handler registered at construction, tagged with the
// connection's identity. Operator-initiated removal never raises a
// disconnect event; only transport-initiated termination does.
type Driver struct {
	config  Config
	handler handler.Handler
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	endpoints  link.Endpoints
	remoteHost string
	tcpConns   map[uint16]*tcp.Conn
	udpConns   map[uint16]*udp.Conn
}

// New creates a new driver. Resolution failure of either host is fatal: no
// driver is returned.
func New(cfg Config, h handler.Handler) (*Driver, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if h == nil {
		h = &handler.NoopHandler{}
	}

	endpoints, err := link.NewEndpoints(cfg.LocalHost, cfg.RemoteHost)
	if err != nil {
		return nil, err
	}

	return &Driver{
		config:     cfg,
		handler:    h,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		endpoints:  endpoints,
		remoteHost: cfg.RemoteHost,
		tcpConns:   make(map[uint16]*tcp.Conn),
		udpConns:   make(map[uint16]*udp.Conn),
	}, nil
}

// AddTCP adds a TCP connection on the given local port and starts it in the
// given role: a server begins listening, a client begins one connect attempt
// toward the same port on the remote host. AddTCP returns before the accept
// or connect completes; the connection is pending until then.
func (d *Driver) AddTCP(role tcp.Role, port uint16) error {
	if role != tcp.RoleServer && role != tcp.RoleClient {
		return linkerrors.New("add", "tcp", port, linkerrors.ErrInvalidInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tcpConns[port]; ok {
		return linkerrors.New("add", "tcp", port, linkerrors.ErrPortInUse)
	}

	events := &tcpEvents{driver: d, port: port, id: newConnID()}
	c := tcp.New(tcp.Config{
		LocalAddr:  d.endpoints.LocalTCP(port),
		BufferSize: d.config.BufferSize,
		Logger:     d.logger,
	}, events)
	events.conn = c

	var err error
	switch role {
	case tcp.RoleServer:
		err = c.StartServer()
	case tcp.RoleClient:
		err = c.StartClient(d.endpoints.RemoteTCP(port))
	}
	if err != nil {
		return linkerrors.New("add", "tcp", port, err)
	}

	d.tcpConns[port] = c

	if d.metrics != nil {
		d.metrics.ActiveConnections.WithLabelValues("tcp").Inc()
		d.metrics.ConnectionsTotal.WithLabelValues("tcp", role.String()).Inc()
	}

	d.logger.Info("TCP connection added",
		slog.Int("port", int(port)),
		slog.String("role", role.String()))

	return nil
}

// AddUDP adds a UDP connection on the given local port. On success the
// receive loop is already running and transmits target the same port on the
// remote host.
func (d *Driver) AddUDP(port uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.udpConns[port]; ok {
		return linkerrors.New("add", "udp", port, linkerrors.ErrPortInUse)
	}

	events := &udpEvents{driver: d, port: port, id: newConnID()}
	c, err := udp.Open(udp.Config{
		LocalAddr:  d.endpoints.LocalUDP(port),
		RemoteAddr: d.endpoints.RemoteUDP(port),
		BufferSize: d.config.BufferSize,
		Logger:     d.logger,
	}, events)
	if err != nil {
		return linkerrors.New("add", "udp", port, err)
	}
	events.conn = c

	d.udpConns[port] = c

	if d.metrics != nil {
		d.metrics.ActiveConnections.WithLabelValues("udp").Inc()
		d.metrics.ConnectionsTotal.WithLabelValues("udp", "none").Inc()
	}

	d.logger.Info("UDP connection added", slog.Int("port", int(port)))

	return nil
}

// Remove closes the connection on the given key synchronously and erases it.
// No disconnect event is raised: removal is operator-initiated, not a
// transport event.
func (d *Driver) Remove(proto handler.Protocol, port uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch proto {
	case handler.TCP:
		c, ok := d.tcpConns[port]
		if !ok {
			return linkerrors.New("remove", "tcp", port, linkerrors.ErrConnectionNotFound)
		}
		c.Close()
		delete(d.tcpConns, port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("tcp").Dec()
		}
	case handler.UDP:
		c, ok := d.udpConns[port]
		if !ok {
			return linkerrors.New("remove", "udp", port, linkerrors.ErrConnectionNotFound)
		}
		c.Close()
		delete(d.udpConns, port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("udp").Dec()
		}
	default:
		return linkerrors.New("remove", proto.String(), port, linkerrors.ErrInvalidInput)
	}

	d.logger.Info("connection removed",
		slog.String("protocol", proto.String()),
		slog.Int("port", int(port)))

	return nil
}

// RemoveAll removes every TCP and UDP connection, with the same no-event
// contract as Remove applied per entry.
func (d *Driver) RemoveAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeAllLocked()
}

// SetRemoteHost replaces the remote host. Every existing connection is torn
// down without individual disconnect events and both collections are
// emptied; callers re-add connections if desired. If the new host cannot be
// resolved, nothing is disturbed and the old host stays in effect.
func (d *Driver) SetRemoteHost(host string) error {
	remote, err := link.Resolve(host)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeAllLocked()
	d.endpoints.Remote = remote
	d.remoteHost = host

	d.logger.Info("remote host changed", slog.String("remote", host))

	return nil
}

// RemoteHost returns the current remote host.
func (d *Driver) RemoteHost() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteHost
}

// Transmit forwards the payload over the connection on the given key. For
// TCP the connection must be connected; best-effort semantics apply to a
// broken pipe detected during the send (see tcp.Conn.Transmit).
func (d *Driver) Transmit(proto handler.Protocol, port uint16, payload []byte) error {
	d.mu.Lock()
	var send func([]byte) (int, error)
	switch proto {
	case handler.TCP:
		if c, ok := d.tcpConns[port]; ok {
			send = c.Transmit
		}
	case handler.UDP:
		if c, ok := d.udpConns[port]; ok {
			send = c.Transmit
		}
	}
	d.mu.Unlock()

	if send == nil {
		return linkerrors.New("transmit", proto.String(), port, linkerrors.ErrConnectionNotFound)
	}

	// The send runs outside the driver lock: a TCP broken-pipe transition
	// re-enters the driver to erase the connection.
	n, err := send(payload)
	if d.metrics != nil && n > 0 {
		// Count what the transport accepted, not what the caller handed in:
		// a best-effort TCP send can fail mid-write and still return nil.
		d.metrics.TxBytes.WithLabelValues(proto.String()).Add(float64(n))
	}
	if err != nil {
		if d.metrics != nil {
			d.metrics.TxErrors.WithLabelValues(proto.String()).Inc()
		}
		return linkerrors.New("transmit", proto.String(), port, err)
	}

	return nil
}

// Active returns a snapshot of the current collection membership, not a live
// view.
func (d *Driver) Active() Active {
	d.mu.Lock()
	defer d.mu.Unlock()

	var a Active
	for port, c := range d.tcpConns {
		switch c.Status() {
		case tcp.Connected:
			a.ConnectedTCP = append(a.ConnectedTCP, port)
		default:
			a.PendingTCP = append(a.PendingTCP, port)
		}
	}
	for port := range d.udpConns {
		a.UDP = append(a.UDP, port)
	}

	sortPorts(a.PendingTCP)
	sortPorts(a.ConnectedTCP)
	sortPorts(a.UDP)

	return a
}

// Close removes all connections. The driver is reusable afterwards; Close
// exists for symmetry with the add operations at shutdown.
func (d *Driver) Close() {
	d.RemoveAll()
}

// removeAllLocked empties both collections. Callers hold d.mu.
func (d *Driver) removeAllLocked() {
	for port, c := range d.tcpConns {
		c.Close()
		delete(d.tcpConns, port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("tcp").Dec()
		}
	}
	for port, c := range d.udpConns {
		c.Close()
		delete(d.udpConns, port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("udp").Dec()
		}
	}
}

func sortPorts(ports []uint16) {
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
}
