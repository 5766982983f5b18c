// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package tcp

import "syscall"

// reuseAddr is a no-op on platforms without SO_REUSEADDR semantics.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
