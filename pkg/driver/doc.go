// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package driver implements the mlink connection-management engine.
//
// # Overview
//
// A Driver owns an arbitrary number of independently addressed TCP and UDP
// connections between one local interface and one remote host. Connections
// are keyed by (protocol, local port); the driver holds one collection per
// protocol and exposes add, remove, transmit, and query operations over
// them.
//
// # Architecture
//
//	┌────────────┐  AddTCP/AddUDP/Remove/Transmit  ┌────────┐
//	│ Collaborator│ ───────────────────────────────→│ Driver │
//	│  (Handler)  │ ←─────────────────────────────── │        │
//	└────────────┘   OnReceive/OnConnect/OnDisconnect└───┬────┘
//	                                                     │ owns
//	                                      ┌──────────────┴───────────────┐
//	                                      │ tcp.Conn ... per local port  │
//	                                      │ udp.Conn ... per local port  │
//	                                      └──────────────────────────────┘
//
// # Control Flow
//
//  1. A command mutates the collection (create or destroy a connection) or
//     forwards bytes to one
//  2. The connection performs the transport operation asynchronously
//  3. The completion raises the connection's internal event
//  4. The driver tags the event with (protocol, local port) and relays it to
//     the Handler
//
// # Concurrency
//
// The driver's mutex exclusively guards both collections; only driver
// operations mutate membership. Each connection runs at most one outstanding
// transport operation, so per-connection completions are strictly ordered.
// Completions carry the connection's identity and are matched against the
// collection before acting, so a completion racing an explicit removal finds
// its entry gone and is discarded as a normal outcome. Handler callbacks run
// outside the driver lock and may call back into the driver.
//
// # Removal Semantics
//
// Remove, RemoveAll, and SetRemoteHost close sockets synchronously and never
// raise OnDisconnect: the caller asked for the teardown. Only
// transport-initiated termination (peer close, failed client connect, broken
// pipe during transmit) raises OnDisconnect.
package driver
