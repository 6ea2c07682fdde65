// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"time"

	"github.com/ManuGH/varbridge/internal/log"
)

// DefaultSweepInterval is how often the TTL sweeper scans sessions.
const DefaultSweepInterval = 60 * time.Second

// Sweeper performs background TTL eviction. Lazy checks on access keep
// the store correct on their own; the sweep exists so dead sessions and
// their observers do not stay resident until someone touches them.
type Sweeper struct {
	Store    *Store
	Interval time.Duration
}

// Run starts the sweeper loop. It periodically calls SweepOnce on a ticker.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.L()
	logger.Info().Dur("interval", interval).Msg("session sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce performs exactly one sweep pass. Deterministic and suitable
// for unit testing.
func (s *Sweeper) SweepOnce() int {
	now := s.Store.now()

	s.Store.mu.RLock()
	candidates := make([]string, 0)
	for id, sess := range s.Store.sessions {
		sess.mu.Lock()
		if sess.expired(now) {
			candidates = append(candidates, id)
		}
		sess.mu.Unlock()
	}
	s.Store.mu.RUnlock()

	evicted := 0
	for _, id := range candidates {
		if s.Store.evictIfExpired(id, now) {
			evicted++
		}
	}
	if evicted > 0 {
		logger := log.L()
		logger.Info().Int("count", evicted).Msg("sweep removed expired sessions")
	}
	return evicted
}
