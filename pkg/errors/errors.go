// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package errors provides structured error handling for mlink.
package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// ErrPortInUse indicates a connection already exists on the requested key.
	ErrPortInUse = errors.New("port already in use")

	// ErrConnectionNotFound indicates no connection exists on the requested key.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrNotConnected indicates a TCP connection is not in the connected state.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyStarted indicates a TCP connection is not in the disconnected state.
	ErrAlreadyStarted = errors.New("connection already started")

	// ErrResolveFailure indicates a host address could not be resolved.
	ErrResolveFailure = errors.New("address resolution failed")

	// ErrInvalidInput indicates invalid input data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionClosed indicates the connection was closed.
	ErrConnectionClosed = errors.New("connection closed")
)

// LinkError wraps an error with connection context.
type LinkError struct {
	Op       string // Operation that failed
	Protocol string // Protocol (tcp, udp)
	Port     uint16 // Local port of the connection
	Err      error  // Underlying error
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	if e.Protocol != "" {
		return fmt.Sprintf("%s %s:%d: %v", e.Op, e.Protocol, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *LinkError) Unwrap() error {
	return e.Err
}

// New creates a new LinkError.
func New(op, protocol string, port uint16, err error) error {
	if err == nil {
		return nil
	}
	return &LinkError{
		Op:       op,
		Protocol: protocol,
		Port:     port,
		Err:      err,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
