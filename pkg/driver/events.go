// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"context"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/absmach/mlink/pkg/conn/tcp"
	"github.com/absmach/mlink/pkg/conn/udp"
	"github.com/absmach/mlink/pkg/handler"
)

// newConnID returns a unique identifier carried in handler contexts and
// logs. A TCP entry mints one at add time and again for every established
// stream, so each session a server's listener accepts is distinguishable.
func newConnID() string {
	return uuid.New().String()
}

// tcpEvents forwards one TCP connection's events to the driver's handler,
// tagged with the session identity. Completions are matched against the
// collection by port and connection pointer, so a completion delivered after
// the entry was removed or replaced is discarded as a normal outcome.
//
// The id field is guarded by the driver mutex: Connected rewrites it on the
// connection's loop goroutine, while a transmit-detected disconnect reads it
// from the transmitting goroutine.
type tcpEvents struct {
	driver *Driver
	conn   *tcp.Conn
	port   uint16
	id     string
}

func (e *tcpEvents) context(id string, source net.Addr) *handler.Context {
	hctx := &handler.Context{
		ID:        id,
		Protocol:  handler.TCP,
		LocalPort: e.port,
	}
	if source != nil {
		hctx.Source = source.String()
	}
	return hctx
}

func (e *tcpEvents) Received(payload []byte, source net.Addr) {
	d := e.driver

	d.mu.Lock()
	if d.tcpConns[e.port] != e.conn {
		// Already removed by the operator; the payload is discarded.
		d.mu.Unlock()
		return
	}
	id := e.id
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RxBytes.WithLabelValues("tcp").Add(float64(len(payload)))
		d.metrics.RxDatagrams.WithLabelValues("tcp").Inc()
	}

	if err := d.handler.OnReceive(context.Background(), e.context(id, source), payload); err != nil {
		d.logger.Error("receive handler error",
			slog.String("connection", id),
			slog.Int("port", int(e.port)),
			slog.String("error", err.Error()))
	}
}

func (e *tcpEvents) Connected(remote net.Addr) {
	d := e.driver

	d.mu.Lock()
	if d.tcpConns[e.port] != e.conn {
		d.mu.Unlock()
		return
	}
	// Each established stream is its own session. A server's listener can
	// serve many in sequence.
	e.id = newConnID()
	id := e.id
	d.mu.Unlock()

	if err := d.handler.OnConnect(context.Background(), e.context(id, remote)); err != nil {
		d.logger.Error("connect handler error",
			slog.String("connection", id),
			slog.Int("port", int(e.port)),
			slog.String("error", err.Error()))
	}
}

func (e *tcpEvents) Disconnected() {
	d := e.driver

	d.mu.Lock()
	if d.tcpConns[e.port] != e.conn {
		// Already removed by the operator; nothing to report.
		d.mu.Unlock()
		return
	}
	if e.conn.Status() == tcp.Disconnected {
		// Terminal: client role, or a failed client connect. A server
		// stays pending so its listener keeps serving the port.
		delete(d.tcpConns, e.port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("tcp").Dec()
		}
	}
	role := e.conn.Role()
	id := e.id
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.DisconnectsTotal.WithLabelValues(role.String()).Inc()
	}

	if err := d.handler.OnDisconnect(context.Background(), e.context(id, nil)); err != nil {
		d.logger.Error("disconnect handler error",
			slog.String("connection", id),
			slog.Int("port", int(e.port)),
			slog.String("error", err.Error()))
	}
}

func (e *tcpEvents) Failed(err error) {
	d := e.driver

	d.mu.Lock()
	stale := d.tcpConns[e.port] != e.conn
	id := e.id
	if !stale {
		delete(d.tcpConns, e.port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("tcp").Dec()
		}
	}
	d.mu.Unlock()

	if stale {
		return
	}

	if d.metrics != nil {
		d.metrics.ConnectionErrors.WithLabelValues("tcp").Inc()
	}

	// No disconnect event for this path: an unclassified transport error is
	// not a peer termination, and retrying it automatically is not a policy
	// this layer has.
	d.logger.Error("unrecoverable TCP connection error",
		slog.String("connection", id),
		slog.Int("port", int(e.port)),
		slog.String("error", err.Error()))
}

// udpEvents forwards one UDP connection's events to the driver's handler.
type udpEvents struct {
	driver *Driver
	conn   *udp.Conn
	port   uint16
	id     string
}

func (e *udpEvents) Received(payload []byte, source net.Addr) {
	d := e.driver

	d.mu.Lock()
	if d.udpConns[e.port] != e.conn {
		// Already removed by the operator; the datagram is discarded.
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RxBytes.WithLabelValues("udp").Add(float64(len(payload)))
		d.metrics.RxDatagrams.WithLabelValues("udp").Inc()
	}

	hctx := &handler.Context{
		ID:        e.id,
		Protocol:  handler.UDP,
		LocalPort: e.port,
		Source:    source.String(),
	}
	if err := d.handler.OnReceive(context.Background(), hctx, payload); err != nil {
		d.logger.Error("receive handler error",
			slog.String("connection", e.id),
			slog.Int("port", int(e.port)),
			slog.String("error", err.Error()))
	}
}

func (e *udpEvents) Failed(err error) {
	d := e.driver

	d.mu.Lock()
	stale := d.udpConns[e.port] != e.conn
	if !stale {
		delete(d.udpConns, e.port)
		if d.metrics != nil {
			d.metrics.ActiveConnections.WithLabelValues("udp").Dec()
		}
	}
	d.mu.Unlock()

	if stale {
		return
	}

	if d.metrics != nil {
		d.metrics.ConnectionErrors.WithLabelValues("udp").Inc()
	}

	d.logger.Error("unrecoverable UDP connection error",
		slog.String("connection", e.id),
		slog.Int("port", int(e.port)),
		slog.String("error", err.Error()))
}
