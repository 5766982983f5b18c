// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/absmach/mlink"
	"github.com/absmach/mlink/examples/simple"
	"github.com/absmach/mlink/pkg/conn/tcp"
	"github.com/absmach/mlink/pkg/driver"
	"github.com/absmach/mlink/pkg/health"
	"github.com/absmach/mlink/pkg/link"
	"github.com/absmach/mlink/pkg/metrics"
)

const envPrefix = "MLINK_"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := mlink.NewConfig(env.Options{Prefix: envPrefix})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Warn("no .env file found, using environment variables")
	}

	m := metrics.New("mlink")
	h := simple.New(logger)

	drv, err := driver.New(driver.Config{
		LocalHost:  cfg.LocalHost,
		RemoteHost: cfg.RemoteHost,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
		Metrics:    m,
	}, h)
	if err != nil {
		logger.Error("failed to create driver", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer drv.RemoveAll()

	logger.Info("mlink driver started",
		slog.String("local", cfg.LocalHost),
		slog.String("remote", cfg.RemoteHost))

	// Pre-add connections from the environment.
	for _, port := range cfg.TCPServerPorts {
		if err := drv.AddTCP(tcp.RoleServer, port); err != nil {
			logger.Warn("TCP server connection not added",
				slog.Int("port", int(port)), slog.String("error", err.Error()))
		}
	}
	for _, port := range cfg.TCPClientPorts {
		if err := drv.AddTCP(tcp.RoleClient, port); err != nil {
			logger.Warn("TCP client connection not added",
				slog.Int("port", int(port)), slog.String("error", err.Error()))
		}
	}
	for _, port := range cfg.UDPPorts {
		if err := drv.AddUDP(port); err != nil {
			logger.Warn("UDP connection not added",
				slog.Int("port", int(port)), slog.String("error", err.Error()))
		}
	}

	// Health endpoints
	checker := health.NewChecker(10 * time.Second)
	checker.Register("remote_host", func(ctx context.Context) error {
		_, err := link.Resolve(drv.RemoteHost())
		return err
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", checker.HTTPHandler())
	healthMux.HandleFunc("/live", health.LivenessHandler())
	g.Go(func() error {
		return serveHTTP(ctx, fmt.Sprintf(":%d", cfg.HealthPort), healthMux, logger)
	})

	// Metrics endpoint
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	g.Go(func() error {
		return serveHTTP(ctx, fmt.Sprintf(":%d", cfg.MetricsPort), metricsMux, logger)
	})

	// Signal handler
	g.Go(func() error {
		return stopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("mlink service terminated with error: %s", err))
	} else {
		logger.Info("mlink service stopped")
	}
}

func setupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

func serveHTTP(ctx context.Context, addr string, mux http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP server started", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-c:
		logger.Info("received shutdown signal")
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
