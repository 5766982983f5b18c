// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	linkerrors "github.com/absmach/mlink/pkg/errors"
)

type mockEvents struct {
	received     chan []byte
	connected    chan net.Addr
	disconnected chan struct{}
	failed       chan error
}

func newMockEvents() *mockEvents {
	return &mockEvents{
		received:     make(chan []byte, 16),
		connected:    make(chan net.Addr, 16),
		disconnected: make(chan struct{}, 16),
		failed:       make(chan error, 16),
	}
}

func (m *mockEvents) Received(payload []byte, source net.Addr) { m.received <- payload }
func (m *mockEvents) Connected(remote net.Addr)                { m.connected <- remote }
func (m *mockEvents) Disconnected()                            { m.disconnected <- struct{}{} }
func (m *mockEvents) Failed(err error)                         { m.failed <- err }

const eventTimeout = 2 * time.Second

func localAddr(t *testing.T, port uint16) *net.TCPAddr {
	t.Helper()
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)}
}

// freePort reserves an ephemeral port and releases it for the test to bind.
func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return uint16(port)
}

func TestClientConnectAndReceive(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create peer listener: %v", err)
	}
	defer peer.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := peer.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)
	defer c.Close()

	if c.Status() != Disconnected {
		t.Fatalf("initial status = %v, want disconnected", c.Status())
	}

	if err := c.StartClient(peer.Addr().(*net.TCPAddr)); err != nil {
		t.Fatalf("StartClient returned error: %v", err)
	}

	select {
	case <-events.connected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for connected event")
	}

	if c.Status() != Connected {
		t.Errorf("status = %v, want connected", c.Status())
	}
	if c.Role() != RoleClient {
		t.Errorf("role = %v, want client", c.Role())
	}

	var peerConn net.Conn
	select {
	case peerConn = <-accepted:
	case <-time.After(eventTimeout):
		t.Fatal("peer never accepted")
	}
	defer peerConn.Close()

	want := []byte{0x01, 0x02, 0x03}
	if _, err := peerConn.Write(want); err != nil {
		t.Fatalf("peer write failed: %v", err)
	}

	select {
	case got := <-events.received:
		if !bytes.Equal(got, want) {
			t.Errorf("received %v, want %v", got, want)
		}
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for receive event")
	}
}

func TestClientPeerClose(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create peer listener: %v", err)
	}
	defer peer.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := peer.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)
	defer c.Close()

	if err := c.StartClient(peer.Addr().(*net.TCPAddr)); err != nil {
		t.Fatalf("StartClient returned error: %v", err)
	}

	select {
	case <-events.connected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for connected event")
	}

	peerConn := <-accepted
	peerConn.Close()

	select {
	case <-events.disconnected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for disconnect event")
	}

	if c.Status() != Disconnected {
		t.Errorf("status = %v, want disconnected", c.Status())
	}
	if c.Role() != RoleUnassigned {
		t.Errorf("role = %v, want unassigned", c.Role())
	}
}

func TestClientConnectFailure(t *testing.T) {
	// Reserve a port with no listener behind it.
	port := freePort(t)

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)
	defer c.Close()

	remote := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)}
	if err := c.StartClient(remote); err != nil {
		t.Fatalf("StartClient returned error: %v", err)
	}

	select {
	case <-events.disconnected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for connect-failure disconnect")
	}

	if c.Status() != Disconnected {
		t.Errorf("status = %v, want disconnected", c.Status())
	}

	select {
	case <-events.connected:
		t.Fatal("unexpected connected event")
	default:
	}
}

func TestServerListenerSurvivesPeerCycles(t *testing.T) {
	port := freePort(t)

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, port)}, events)
	defer c.Close()

	if err := c.StartServer(); err != nil {
		t.Fatalf("StartServer returned error: %v", err)
	}
	if c.Status() != Pending {
		t.Fatalf("status = %v, want pending", c.Status())
	}

	addr := localAddr(t, port).String()
	for i := 0; i < 3; i++ {
		peer, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("cycle %d: peer dial failed: %v", i, err)
		}

		select {
		case <-events.connected:
		case <-time.After(eventTimeout):
			t.Fatalf("cycle %d: timed out waiting for connected event", i)
		}

		want := []byte{byte(i), 0xAA}
		if _, err := peer.Write(want); err != nil {
			t.Fatalf("cycle %d: peer write failed: %v", i, err)
		}
		select {
		case got := <-events.received:
			if !bytes.Equal(got, want) {
				t.Errorf("cycle %d: received %v, want %v", i, got, want)
			}
		case <-time.After(eventTimeout):
			t.Fatalf("cycle %d: timed out waiting for receive event", i)
		}

		peer.Close()

		select {
		case <-events.disconnected:
		case <-time.After(eventTimeout):
			t.Fatalf("cycle %d: timed out waiting for disconnect event", i)
		}

		// The listener keeps serving: back to pending, role retained.
		if c.Status() != Pending {
			t.Fatalf("cycle %d: status = %v, want pending", i, c.Status())
		}
		if c.Role() != RoleServer {
			t.Fatalf("cycle %d: role = %v, want server", i, c.Role())
		}
	}
}

func TestStartGuards(t *testing.T) {
	port := freePort(t)

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, port)}, events)
	defer c.Close()

	if err := c.StartServer(); err != nil {
		t.Fatalf("StartServer returned error: %v", err)
	}
	if err := c.StartServer(); !errors.Is(err, linkerrors.ErrAlreadyStarted) {
		t.Errorf("second StartServer = %v, want ErrAlreadyStarted", err)
	}
	if err := c.StartClient(localAddr(t, port)); !errors.Is(err, linkerrors.ErrAlreadyStarted) {
		t.Errorf("StartClient while active = %v, want ErrAlreadyStarted", err)
	}
}

func TestTransmitNotConnected(t *testing.T) {
	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)
	defer c.Close()

	if _, err := c.Transmit([]byte{0x01}); !errors.Is(err, linkerrors.ErrNotConnected) {
		t.Errorf("Transmit = %v, want ErrNotConnected", err)
	}
}

func TestTransmit(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create peer listener: %v", err)
	}
	defer peer.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := peer.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)
	defer c.Close()

	if err := c.StartClient(peer.Addr().(*net.TCPAddr)); err != nil {
		t.Fatalf("StartClient returned error: %v", err)
	}
	select {
	case <-events.connected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for connected event")
	}

	want := []byte("hello over the stream")
	n, err := c.Transmit(want)
	if err != nil {
		t.Fatalf("Transmit returned error: %v", err)
	}
	if n != len(want) {
		t.Errorf("Transmit accepted %d bytes, want %d", n, len(want))
	}

	peerConn := <-accepted
	defer peerConn.Close()

	got := make([]byte, len(want))
	peerConn.SetReadDeadline(time.Now().Add(eventTimeout))
	if _, err := io.ReadFull(peerConn, got); err != nil {
		t.Fatalf("peer read failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("peer received %q, want %q", got, want)
	}
}

func TestTransmitBrokenPipe(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create peer listener: %v", err)
	}
	defer peer.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := peer.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)
	defer c.Close()

	if err := c.StartClient(peer.Addr().(*net.TCPAddr)); err != nil {
		t.Fatalf("StartClient returned error: %v", err)
	}
	select {
	case <-events.connected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for connected event")
	}

	// Reset the stream instead of closing it gracefully.
	peerConn := <-accepted
	peerConn.(*net.TCPConn).SetLinger(0)
	peerConn.Close()

	// Drive sends into the dying stream. Every attempted send returns nil:
	// best-effort semantics hold whether the write or the read loop detects
	// the drop first.
	payload := []byte{0xAB, 0xCD}
	deadline := time.Now().Add(eventTimeout)
	for c.Status() == Connected {
		if time.Now().After(deadline) {
			t.Fatal("connection never collapsed after peer reset")
		}
		if _, err := c.Transmit(payload); err != nil {
			// The collapse landed between the status check and the send.
			if !errors.Is(err, linkerrors.ErrNotConnected) {
				t.Fatalf("Transmit during collapse = %v, want nil or ErrNotConnected", err)
			}
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-events.disconnected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for disconnect event")
	}

	if c.Status() != Disconnected {
		t.Errorf("status = %v, want disconnected", c.Status())
	}

	// Exactly one disconnect even though the read loop and the transmit
	// path race to detect the same drop, and no failure event: a reset
	// stream is a peer termination.
	select {
	case <-events.disconnected:
		t.Fatal("duplicate disconnect event")
	case err := <-events.failed:
		t.Fatalf("unexpected failure event: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	n, err := c.Transmit(payload)
	if !errors.Is(err, linkerrors.ErrNotConnected) {
		t.Errorf("Transmit after collapse = %v, want ErrNotConnected", err)
	}
	if n != 0 {
		t.Errorf("Transmit after collapse accepted %d bytes, want 0", n)
	}
}

func TestCloseRaisesNoEvent(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create peer listener: %v", err)
	}
	defer peer.Close()

	go func() {
		conn, err := peer.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	events := newMockEvents()
	c := New(Config{LocalAddr: localAddr(t, 0)}, events)

	if err := c.StartClient(peer.Addr().(*net.TCPAddr)); err != nil {
		t.Fatalf("StartClient returned error: %v", err)
	}
	select {
	case <-events.connected:
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for connected event")
	}

	c.Close()

	if c.Status() != Disconnected {
		t.Errorf("status = %v, want disconnected", c.Status())
	}

	// Local close is not a transport event.
	select {
	case <-events.disconnected:
		t.Fatal("unexpected disconnect event after local close")
	case <-events.failed:
		t.Fatal("unexpected failure event after local close")
	case <-time.After(200 * time.Millisecond):
	}
}
