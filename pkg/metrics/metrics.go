// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for mlink.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the connection driver.
type Metrics struct {
	// Connection metrics
	ActiveConnections *prometheus.GaugeVec
	ConnectionsTotal  *prometheus.CounterVec
	DisconnectsTotal  *prometheus.CounterVec
	ConnectionErrors  *prometheus.CounterVec

	// Traffic metrics
	RxBytes     *prometheus.CounterVec
	TxBytes     *prometheus.CounterVec
	RxDatagrams *prometheus.CounterVec
	TxErrors    *prometheus.CounterVec
}

// New creates a new Metrics instance with all counters and gauges, registered
// on the default registerer.
func New(namespace string) *Metrics {
	return NewWith(namespace, prometheus.DefaultRegisterer)
}

// NewWith creates a new Metrics instance registered on the given registerer.
func NewWith(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "mlink"
	}

	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently active connections",
			},
			[]string{"protocol"},
		),
		ConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of connections added",
			},
			[]string{"protocol", "role"},
		),
		DisconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "disconnects_total",
				Help:      "Total number of spontaneous TCP disconnects",
			},
			[]string{"role"},
		),
		ConnectionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_errors_total",
				Help:      "Total number of unclassified connection failures",
			},
			[]string{"protocol"},
		),
		RxBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rx_bytes_total",
				Help:      "Total bytes received",
			},
			[]string{"protocol"},
		),
		TxBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_bytes_total",
				Help:      "Total bytes transmitted",
			},
			[]string{"protocol"},
		),
		RxDatagrams: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rx_messages_total",
				Help:      "Total receive completions delivered",
			},
			[]string{"protocol"},
		),
		TxErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_errors_total",
				Help:      "Total number of transmit errors",
			},
			[]string{"protocol"},
		),
	}
}
