// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon owns the long-lived runtime lifecycle: the gRPC
// listener, the ops endpoint, and the background sweepers. Everything
// stops via context; a fatal error in any subsystem brings the whole
// process down through the errgroup.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/ManuGH/varbridge/internal/config"
	"github.com/ManuGH/varbridge/internal/health"
	"github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/observer"
	"github.com/ManuGH/varbridge/internal/ops"
	"github.com/ManuGH/varbridge/internal/rpc"
	"github.com/ManuGH/varbridge/internal/rpc/wire"
	"github.com/ManuGH/varbridge/internal/store"
)

// App wires the store, observer manager and servers into one runnable
// unit.
type App struct {
	cfg       config.Config
	store     *store.Store
	observers *observer.Manager
	checks    *health.Manager
	grpcCheck *health.GRPCChecker
	logger    zerolog.Logger

	// ReadyFunc is invoked once with the bound gRPC address, after the
	// listener is up and before Serve starts accepting. Parent processes
	// use it to learn the ephemeral port.
	ReadyFunc func(addr net.Addr)
}

// NewApp assembles the daemon from configuration. The store and
// observer manager are constructed and cross-wired here.
func NewApp(cfg config.Config, version string) *App {
	st := store.New(store.Options{DefaultTTL: cfg.DefaultSessionTTL})
	obs := observer.NewManager(st, observer.Options{
		SinkCapacity:     cfg.WatchBufferSize,
		LivenessInterval: cfg.ObserverSweepInterval,
	})
	st.SetNotifier(obs)

	checks := health.NewManager(version)
	grpcCheck := health.NewGRPCChecker()
	checks.RegisterChecker(grpcCheck)
	checks.RegisterChecker(health.NewStoreChecker(st.SessionCount))

	return &App{
		cfg:       cfg,
		store:     st,
		observers: obs,
		checks:    checks,
		grpcCheck: grpcCheck,
		logger:    log.WithComponent("daemon"),
	}
}

// Store exposes the session store, for tests.
func (a *App) Store() *store.Store { return a.store }

// Observers exposes the observer manager, for tests.
func (a *App) Observers() *observer.Manager { return a.observers }

// Run starts all subsystems and blocks until ctx is cancelled or a
// fatal error occurs. On cancellation the gRPC server drains gracefully
// before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a.store == nil {
		return ErrMissingStore
	}
	if a.observers == nil {
		return ErrMissingObservers
	}

	g, ctx := errgroup.WithContext(ctx)

	// Background sweepers.
	sweeper := &store.Sweeper{Store: a.store, Interval: a.cfg.SessionSweepInterval}
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.observers.Run(ctx)
		return nil
	})

	// Ops endpoint is optional.
	if a.cfg.OpsListen != "" {
		opsSrv := ops.NewServer(a.cfg.OpsListen, a.store, a.observers, a.checks)
		g.Go(func() error {
			return opsSrv.Run(ctx)
		})
	}

	// gRPC listener. Port 0 binds an ephemeral port which ReadyFunc
	// announces to the parent.
	addr := net.JoinHostPort(a.cfg.BindAddress, strconv.Itoa(a.cfg.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrListenFailed, addr, err)
	}

	// Tracing sits outside recovery so a recovered panic still closes
	// its span as a failed RPC.
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(rpc.TraceUnary(), rpc.RecoverUnary()),
		grpc.ChainStreamInterceptor(rpc.TraceStream(), rpc.RecoverStream()),
	)
	handler := rpc.NewServer(a.store, a.observers, rpc.Options{
		HeartbeatInterval: a.cfg.HeartbeatInterval,
	})
	wire.RegisterVarBridgeServer(srv, handler)

	a.grpcCheck.SetServing(lis.Addr().String())
	a.logger.Info().Str("addr", lis.Addr().String()).Msg("bridge listening")

	if a.ReadyFunc != nil {
		a.ReadyFunc(lis.Addr())
	}

	g.Go(func() error {
		<-ctx.Done()
		a.grpcCheck.SetStopped()
		srv.GracefulStop()
		return nil
	})
	g.Go(func() error {
		return srv.Serve(lis)
	})

	err = g.Wait()
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
