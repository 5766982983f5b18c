// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the interface that links the connection driver to
// application logic.
//
// # Architecture Overview
//
// The Handler interface is the single outward boundary of the driver. When a
// connection receives data, establishes a TCP stream, or loses one, the driver
// calls the corresponding Handler method, tagging the event with the
// connection's identity (protocol and local port) via the Context struct.
//
// # Data Flow
//
//	Socket completion → Connection → Driver (tags event) → Handler
//
// # Handler Methods
//
//   - OnReceive: a payload arrived on a connection
//   - OnConnect: a pending TCP connection became connected
//   - OnDisconnect: a connected or pending TCP connection dropped
//
// Operator-initiated teardown (Remove, RemoveAll, SetRemoteHost) raises no
// OnDisconnect: the distinction between "the peer went away" and "we were told
// to close" is part of the contract.
//
// # Context
//
// The Context struct carries connection metadata across all handler calls:
//   - ID: unique session identifier, minted per UDP socket and per
//     established TCP stream
//   - Protocol: tcp or udp
//   - LocalPort: the connection's key within its protocol
//   - Source: peer address the event originated from
//
// # Implementation
//
// Applications implement the Handler interface to consume driver events. The
// NoopHandler provides a pass-through implementation for testing or when no
// event processing is needed.
package handler
