// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"net"
	"strconv"

	"github.com/ManuGH/varbridge/internal/config"
	"github.com/ManuGH/varbridge/internal/log"
)

// PerformStartupChecks validates the configuration before the daemon
// binds any listener. A failure here is fatal and should abort startup.
func PerformStartupChecks(cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if cfg.BindAddress != "" {
		if ip := net.ParseIP(cfg.BindAddress); ip == nil {
			return fmt.Errorf("invalid bind address %q", cfg.BindAddress)
		}
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}

	if cfg.OpsListen != "" {
		_, port, err := net.SplitHostPort(cfg.OpsListen)
		if err != nil {
			return fmt.Errorf("invalid ops listen address %q: %w", cfg.OpsListen, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid ops listen port %q in %q", port, cfg.OpsListen)
		}
	}

	if cfg.DefaultSessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", cfg.DefaultSessionTTL)
	}
	if cfg.WatchBufferSize <= 0 {
		return fmt.Errorf("watch buffer size must be positive, got %d", cfg.WatchBufferSize)
	}
	if cfg.SessionSweepInterval <= 0 || cfg.ObserverSweepInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}

	logger.Info().Msg("All startup checks passed")
	return nil
}
