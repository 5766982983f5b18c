// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tcp implements a single role-aware TCP connection for mlink.
//
// # Overview
//
// A connection binds one local port and talks to one peer at a time. Its role
// decides how the stream is established: a server listens and accepts, a
// client dials. Its status tracks the lifecycle explicitly:
//
//	disconnected ── StartServer/StartClient ──→ pending
//	pending ── accept/connect succeeds ──→ connected
//	pending ── client connect fails ──→ disconnected
//	connected ── peer closes (server role) ──→ pending (listener keeps serving)
//	connected ── peer closes (client role) ──→ disconnected
//	any ── Close ──→ disconnected (no event)
//
// # Connection Flow (server role)
//
//  1. StartServer opens a listener with SO_REUSEADDR and returns immediately
//  2. The accept loop accepts one peer
//  3. Events.Connected fires, then the read loop runs
//  4. When the peer disconnects, Events.Disconnected fires and the accept
//     loop re-arms: a new peer can connect without any restart
//  5. Transient accept errors re-arm the accept rather than tearing down
//
// # Connection Flow (client role)
//
//  1. StartClient binds the local port and dials asynchronously
//  2. On success, Events.Connected fires and the read loop runs
//  3. On failure, the connection collapses to disconnected and
//     Events.Disconnected fires
//
// # Error Discrimination
//
// The read loop distinguishes three classes of completion error:
//
//   - net.ErrClosed: we closed the socket ourselves; discarded silently
//   - io.EOF, ECONNRESET, ECONNABORTED: the peer terminated the stream;
//     surfaced as Events.Disconnected
//   - anything else: unclassified; surfaced as Events.Failed and the
//     connection is dead
//
// A broken pipe during Transmit is detected opportunistically and treated as
// a peer termination, but the Transmit call itself still succeeds for the
// attempted send.
//
// # Buffering
//
// Each connection owns one fixed receive buffer, reused across reads. Every
// delivered payload is a fresh copy, so the buffer is safe to reuse the
// moment the copy is made.
package tcp
