// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mlink provides environment-driven configuration for the mlink
// connection driver.
package mlink

import (
	"github.com/caarlos0/env/v11"
)

// Config holds the process configuration, populated from the environment.
type Config struct {
	// Addressing
	LocalHost  string `env:"LOCAL_HOST"  envDefault:"0.0.0.0"`
	RemoteHost string `env:"REMOTE_HOST" envDefault:"127.0.0.1"`

	// BufferSize is the per-connection receive buffer size in bytes.
	BufferSize int `env:"BUFFER_SIZE" envDefault:"8192"`

	// Initial connections, comma separated local ports.
	TCPServerPorts []uint16 `env:"TCP_SERVER_PORTS" envSeparator:","`
	TCPClientPorts []uint16 `env:"TCP_CLIENT_PORTS" envSeparator:","`
	UDPPorts       []uint16 `env:"UDP_PORTS"        envSeparator:","`

	// Observability
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	HealthPort  int    `env:"HEALTH_PORT"  envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`
}

// NewConfig loads the configuration from the environment with the given
// options (typically a prefix).
func NewConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
