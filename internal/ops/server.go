// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ops exposes the operational HTTP surface: liveness and
// readiness probes, Prometheus metrics, and debug introspection of
// sessions and watchers. It is off by default and never serves the
// bridge protocol itself.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/varbridge/internal/health"
	"github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/observer"
	"github.com/ManuGH/varbridge/internal/store"
)

// Server is the operational HTTP endpoint.
type Server struct {
	addr      string
	store     *store.Store
	observers *observer.Manager
	checks    *health.Manager
	logger    zerolog.Logger
}

// NewServer wires the ops surface over the store and observer manager.
func NewServer(addr string, st *store.Store, obs *observer.Manager, checks *health.Manager) *Server {
	return &Server{
		addr:      addr,
		store:     st,
		observers: obs,
		checks:    checks,
		logger:    log.WithComponent("ops"),
	}
}

// Router builds the chi router for the ops surface.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(600, time.Minute))

	r.Get("/healthz", s.checks.ServeHealth)
	r.Get("/readyz", s.checks.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debug", func(r chi.Router) {
		r.Get("/sessions", s.handleSessions)
		r.Get("/watchers", s.handleWatchers)
	})

	return r
}

// Run serves until ctx is cancelled, then drains with a short timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("ops endpoint listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.store.ListSessions()
	s.writeJSON(w, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleWatchers(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID != "" {
		s.writeJSON(w, map[string]any{
			"session_id": sessionID,
			"watchers":   s.observers.ListWatchers(sessionID),
		})
		return
	}
	out := make(map[string][]observer.WatcherInfo)
	for _, info := range s.store.ListSessions() {
		if ws := s.observers.ListWatchers(info.ID); len(ws) > 0 {
			out[info.ID] = ws
		}
	}
	s.writeJSON(w, map[string]any{
		"count":    s.observers.Count(),
		"watchers": out,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode debug response")
	}
}
