// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package link provides the endpoint model shared by all connections: the
// local and remote host addresses and the construction of per-port
// transport addresses from them.
package link

import (
	"fmt"
	"net"

	"github.com/absmach/mlink/pkg/errors"
)

// Resolve resolves a host name or literal IP to a single IP address.
// The first resolved address is used when a name maps to several.
func Resolve(host string) (net.IP, error) {
	if host == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrResolveFailure, host)
	}
	return ips[0], nil
}

// Endpoints holds the resolved local and remote host addresses shared by
// every connection under one driver.
type Endpoints struct {
	Local  net.IP
	Remote net.IP
}

// NewEndpoints resolves both hosts. Resolution failure of either is an
// error; no partial result is returned.
func NewEndpoints(localHost, remoteHost string) (Endpoints, error) {
	local, err := Resolve(localHost)
	if err != nil {
		return Endpoints{}, errors.Wrap(err, "local host")
	}
	remote, err := Resolve(remoteHost)
	if err != nil {
		return Endpoints{}, errors.Wrap(err, "remote host")
	}
	return Endpoints{Local: local, Remote: remote}, nil
}

// LocalTCP returns the local TCP address for the given port.
func (e Endpoints) LocalTCP(port uint16) *net.TCPAddr {
	return &net.TCPAddr{IP: e.Local, Port: int(port)}
}

// RemoteTCP returns the remote TCP address for the given port.
func (e Endpoints) RemoteTCP(port uint16) *net.TCPAddr {
	return &net.TCPAddr{IP: e.Remote, Port: int(port)}
}

// LocalUDP returns the local UDP address for the given port.
func (e Endpoints) LocalUDP(port uint16) *net.UDPAddr {
	return &net.UDPAddr{IP: e.Local, Port: int(port)}
}

// RemoteUDP returns the remote UDP address for the given port.
func (e Endpoints) RemoteUDP(port uint16) *net.UDPAddr {
	return &net.UDPAddr{IP: e.Remote, Port: int(port)}
}
