// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config assembles runtime configuration from environment
// variables. Every knob has a working default so the daemon starts
// with no environment at all.
package config

import (
	"time"
)

// Config carries all runtime settings for the daemon.
type Config struct {
	// BindAddress is the gRPC listen address. Loopback by default; the
	// bridge is a per-host sidecar, not a public service.
	BindAddress string
	// Port is the gRPC listen port. 0 asks the kernel for a free port,
	// which is then announced on stdout.
	Port int

	// DefaultSessionTTL applies to sessions created without an explicit
	// TTL.
	DefaultSessionTTL time.Duration
	// SessionSweepInterval is the period of the expired-session sweeper.
	SessionSweepInterval time.Duration
	// ObserverSweepInterval is the period of the dead-observer sweeper.
	ObserverSweepInterval time.Duration

	// WatchBufferSize bounds each watch stream's event sink.
	WatchBufferSize int
	// HeartbeatInterval is the watch stream idle heartbeat period.
	HeartbeatInterval time.Duration

	// OpsListen enables the operational HTTP endpoint (health, metrics,
	// debug) when non-empty.
	OpsListen string
	// LogLevel is a zerolog level name (trace, debug, info, warn, error).
	LogLevel string

	// OTLPEndpoint enables trace export when non-empty. Uses the
	// standard OTEL_EXPORTER_OTLP_ENDPOINT variable.
	OTLPEndpoint string
	// TraceSampleRate is the trace sampling ratio, 0.0 to 1.0.
	TraceSampleRate float64
}

// FromEnv builds a Config from the process environment.
func FromEnv() Config {
	return Config{
		BindAddress:           ParseString("GRPC_BIND_ADDRESS", "127.0.0.1"),
		Port:                  ParseInt("GRPC_PORT", 0),
		DefaultSessionTTL:     ParseDuration("SESSION_DEFAULT_TTL", 3600*time.Second),
		SessionSweepInterval:  ParseDuration("SESSION_SWEEP_INTERVAL", 60*time.Second),
		ObserverSweepInterval: ParseDuration("OBSERVER_SWEEP_INTERVAL", 30*time.Second),
		WatchBufferSize:       ParseInt("WATCH_BUFFER_SIZE", 64),
		HeartbeatInterval:     ParseDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		OpsListen:             ParseString("OPS_LISTEN", ""),
		LogLevel:              ParseString("LOG_LEVEL", "info"),
		OTLPEndpoint:          ParseString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRate:       ParseFloat("TRACE_SAMPLE_RATE", 1.0),
	}
}
