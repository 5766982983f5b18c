// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package udp implements a single connectionless UDP socket for mlink.
//
// # Overview
//
// A connection binds one local port and is active for its whole lifetime:
// there is no handshake, no pending phase, and no disconnect detection,
// because datagram sockets carry no connection concept.
//
// # Packet Flow
//
//  1. Open binds the local port and starts the receive loop
//  2. Each received datagram is copied out of the reusable buffer and
//     delivered with its individual sender address
//  3. Transmit sends datagrams to the fixed remote address
//  4. Close cancels the outstanding receive; the loop does not restart
//
// # Error Handling
//
// A receive completion with any error other than a local close is
// unclassified (for example ICMP port-unreachable surfaced as a receive
// error on some platforms). The connection raises Events.Failed and is dead
// afterwards; this layer does not attempt to classify or recover from such
// errors.
package udp
