// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package link

import (
	"errors"
	"testing"

	linkerrors "github.com/absmach/mlink/pkg/errors"
)

func TestResolveLiteral(t *testing.T) {
	ip, err := Resolve("127.0.0.1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ip.String() != "127.0.0.1" {
		t.Errorf("Resolve = %s, want 127.0.0.1", ip)
	}
}

func TestResolveEmpty(t *testing.T) {
	if _, err := Resolve(""); err == nil {
		t.Fatal("expected error for empty host")
	}
}

func TestResolveFailure(t *testing.T) {
	// .invalid is reserved and never resolves.
	_, err := Resolve("no-such-host.invalid")
	if err == nil {
		t.Fatal("expected error for unresolvable host")
	}
	if !errors.Is(err, linkerrors.ErrResolveFailure) {
		t.Errorf("expected ErrResolveFailure, got %v", err)
	}
}

func TestEndpointsAddrs(t *testing.T) {
	e, err := NewEndpoints("127.0.0.1", "127.0.0.2")
	if err != nil {
		t.Fatalf("NewEndpoints returned error: %v", err)
	}

	if got := e.LocalTCP(4000).String(); got != "127.0.0.1:4000" {
		t.Errorf("LocalTCP = %s, want 127.0.0.1:4000", got)
	}
	if got := e.RemoteTCP(4000).String(); got != "127.0.0.2:4000" {
		t.Errorf("RemoteTCP = %s, want 127.0.0.2:4000", got)
	}
	if got := e.LocalUDP(5000).String(); got != "127.0.0.1:5000" {
		t.Errorf("LocalUDP = %s, want 127.0.0.1:5000", got)
	}
	if got := e.RemoteUDP(5000).String(); got != "127.0.0.2:5000" {
		t.Errorf("RemoteUDP = %s, want 127.0.0.2:5000", got)
	}
}

func TestNewEndpointsFailure(t *testing.T) {
	if _, err := NewEndpoints("no-such-host.invalid", "127.0.0.1"); err == nil {
		t.Fatal("expected error for unresolvable local host")
	}
	if _, err := NewEndpoints("127.0.0.1", "no-such-host.invalid"); err == nil {
		t.Fatal("expected error for unresolvable remote host")
	}
}
