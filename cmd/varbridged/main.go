// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/varbridge/internal/config"
	"github.com/ManuGH/varbridge/internal/daemon"
	"github.com/ManuGH/varbridge/internal/health"
	vblog "github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/telemetry"
	"github.com/ManuGH/varbridge/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg := config.FromEnv()

	vblog.Configure(vblog.Config{
		Level:   cfg.LogLevel,
		Service: "varbridge",
	})
	logger := vblog.WithComponent("main")

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().Err(err).Msg("startup checks failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTLPEndpoint != "",
		ServiceName:    "varbridge",
		ServiceVersion: version.Version,
		Endpoint:       cfg.OTLPEndpoint,
		SamplingRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	app := daemon.NewApp(cfg, version.Version)
	app.ReadyFunc = func(addr net.Addr) {
		// Single unbuffered line on stdout; parents parse this to learn
		// the ephemeral port. Everything else logs to stderr.
		port := addr.(*net.TCPAddr).Port
		fmt.Fprintf(os.Stdout, "GRPC_READY:%d\n", port)
	}

	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("built", version.Date).
		Msg("varbridge starting")

	if err := app.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}

	logger.Info().Msg("varbridge stopped")
}
