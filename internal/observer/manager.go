// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package observer implements the watch engine: a concurrent registry of
// observers per (session, variable), atomic stream registration with
// initial snapshots, filtered asynchronous fan-out and liveness cleanup.
//
// Observers hold weak references only (session id + variable id) plus
// their own sink and liveness handles; they never retain pointers into
// store records.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/metrics"
	"github.com/ManuGH/varbridge/internal/store"
)

// DefaultLivenessInterval is the backstop sweep for dead observers.
const DefaultLivenessInterval = 30 * time.Second

// Handle identifies a registered observer.
type Handle string

// Filter is an optional predicate over (old, new). Returning false
// drops the event for that observer. A panicking filter counts as drop.
type Filter func(old, new any) bool

type observer struct {
	handle         Handle
	sessionID      string
	varIDs         map[string]struct{}
	filter         Filter
	includeInitial bool
	sink           *Sink
	liveness       context.Context
	registeredAt   time.Time
}

type varKey struct {
	sessionID string
	varID     string
}

// Manager is the two-level observer index. It implements store.Notifier.
type Manager struct {
	mu        sync.RWMutex
	byVar     map[varKey]map[Handle]*observer
	bySession map[string]map[Handle]*observer
	observers map[Handle]*observer

	store    *store.Store
	sinkCap  int
	interval time.Duration
	logger   zerolog.Logger
}

// Options configures a Manager.
type Options struct {
	// SinkCapacity bounds each observer's outbound buffer (0 = 64).
	SinkCapacity int
	// LivenessInterval is the backstop sweep period (0 = 30s).
	LivenessInterval time.Duration
}

// NewManager creates a manager bound to the store it observes.
func NewManager(st *store.Store, opts Options) *Manager {
	interval := opts.LivenessInterval
	if interval <= 0 {
		interval = DefaultLivenessInterval
	}
	return &Manager{
		byVar:     make(map[varKey]map[Handle]*observer),
		bySession: make(map[string]map[Handle]*observer),
		observers: make(map[Handle]*observer),
		store:     st,
		sinkCap:   opts.SinkCapacity,
		interval:  interval,
		logger:    log.WithComponent("observer"),
	}
}

// WatchRequest describes one watch registration.
type WatchRequest struct {
	SessionID string
	// Identifiers are names, var ids or `*` patterns. Unknowns resolve
	// to nothing and are not errors.
	Identifiers    []string
	Filter         Filter
	IncludeInitial bool
	// Liveness is the caller-owned cancellation handle; when it ends the
	// observer is removed by the next sweep at the latest.
	Liveness context.Context
}

// Watch atomically registers an observer and, when requested, queues one
// initial event per watched variable into the sink before any update
// can be observed. Registration and snapshot happen under the session
// lock, so there is no window in which a mutation could be missed or
// delivered out of order relative to the snapshot.
func (m *Manager) Watch(req WatchRequest) (Handle, *Sink, error) {
	liveness := req.Liveness
	if liveness == nil {
		liveness = context.Background()
	}
	obs := &observer{
		handle:         Handle(uuid.NewString()),
		sessionID:      req.SessionID,
		varIDs:         make(map[string]struct{}),
		filter:         req.Filter,
		includeInitial: req.IncludeInitial,
		sink:           NewSink(m.sinkCap),
		liveness:       liveness,
		registeredAt:   time.Now(),
	}

	err := m.store.WatchRegister(req.SessionID, req.Identifiers, func(snaps []store.Variable) {
		m.mu.Lock()
		for _, v := range snaps {
			obs.varIDs[v.ID] = struct{}{}
			key := varKey{sessionID: req.SessionID, varID: v.ID}
			if m.byVar[key] == nil {
				m.byVar[key] = make(map[Handle]*observer)
			}
			m.byVar[key][obs.handle] = obs
		}
		if m.bySession[req.SessionID] == nil {
			m.bySession[req.SessionID] = make(map[Handle]*observer)
		}
		m.bySession[req.SessionID][obs.handle] = obs
		m.observers[obs.handle] = obs
		m.mu.Unlock()

		if req.IncludeInitial {
			for _, v := range snaps {
				obs.sink.enqueueUnbounded(Event{
					Initial: true,
					Update: store.Update{
						Kind:       store.UpdateValue,
						SessionID:  req.SessionID,
						VariableID: v.ID,
						Name:       v.Name,
						Type:       v.Type,
						Old:        nil,
						New:        v.Value,
						Version:    v.Version,
						Metadata:   v.Metadata,
						Timestamp:  v.LastUpdatedAt,
					},
				})
			}
		}
	})
	if err != nil {
		return "", nil, err
	}

	metrics.ObserversActive.Set(float64(m.Count()))
	m.logger.Debug().
		Str(log.FieldSessionID, req.SessionID).
		Str(log.FieldObserverID, string(obs.handle)).
		Int("variables", len(obs.varIDs)).
		Msg("observer registered")
	return obs.handle, obs.sink, nil
}

// Unwatch removes an observer and closes its sink. Idempotent.
func (m *Manager) Unwatch(handle Handle) {
	m.mu.Lock()
	obs, ok := m.observers[handle]
	if ok {
		m.removeLocked(obs)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	obs.sink.Close()
	metrics.ObserversActive.Set(float64(m.Count()))
	m.logger.Debug().Str(log.FieldObserverID, string(handle)).Msg("observer removed")
}

// removeLocked unlinks an observer from all indexes. Callers hold m.mu.
func (m *Manager) removeLocked(obs *observer) {
	delete(m.observers, obs.handle)
	if set := m.bySession[obs.sessionID]; set != nil {
		delete(set, obs.handle)
		if len(set) == 0 {
			delete(m.bySession, obs.sessionID)
		}
	}
	for varID := range obs.varIDs {
		key := varKey{sessionID: obs.sessionID, varID: varID}
		if set := m.byVar[key]; set != nil {
			delete(set, obs.handle)
			if len(set) == 0 {
				delete(m.byVar, key)
			}
		}
	}
}

// Count returns the number of registered observers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}

// WatcherInfo is the introspection view of one observer.
type WatcherInfo struct {
	Handle       Handle    `json:"handle"`
	SessionID    string    `json:"session_id"`
	VariableIDs  []string  `json:"variable_ids"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ListWatchers returns the observers registered for a session.
func (m *Manager) ListWatchers(sessionID string) []WatcherInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.bySession[sessionID]
	out := make([]WatcherInfo, 0, len(set))
	for _, obs := range set {
		ids := make([]string, 0, len(obs.varIDs))
		for id := range obs.varIDs {
			ids = append(ids, id)
		}
		out = append(out, WatcherInfo{
			Handle:       obs.handle,
			SessionID:    obs.sessionID,
			VariableIDs:  ids,
			RegisteredAt: obs.registeredAt,
		})
	}
	return out
}

// Notify fans one store event out to the observers of its variable.
// Called by the store under the session lock; per-observer enqueue never
// blocks, so a slow sink cannot stall the mutation or its siblings.
func (m *Manager) Notify(u store.Update) {
	key := varKey{sessionID: u.SessionID, varID: u.VariableID}
	m.mu.RLock()
	targets := make([]*observer, 0, len(m.byVar[key]))
	for _, obs := range m.byVar[key] {
		targets = append(targets, obs)
	}
	m.mu.RUnlock()

	for _, obs := range targets {
		if obs.liveness.Err() != nil {
			continue
		}
		if u.Kind == store.UpdateValue && !m.passFilter(obs, u) {
			continue
		}
		obs.sink.Enqueue(Event{Update: u})
		metrics.EventsDispatchedTotal.Inc()
	}
}

// passFilter applies the observer filter; a panic counts as drop.
func (m *Manager) passFilter(obs *observer, u store.Update) (pass bool) {
	if obs.filter == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().
				Str(log.FieldObserverID, string(obs.handle)).
				Str(log.FieldVariableID, u.VariableID).
				Interface("panic", r).
				Msg("observer filter panicked, dropping event")
			metrics.IncEventDrop("filter_panic")
			pass = false
		}
	}()
	if !obs.filter(u.Old, u.New) {
		metrics.IncEventDrop("filtered")
		return false
	}
	return true
}

// TeardownSession removes all observers of a session. TTL evictions
// deliver a session-expired event before the sink closes.
func (m *Manager) TeardownSession(sessionID string, expired bool, at time.Time) {
	m.mu.Lock()
	set := m.bySession[sessionID]
	targets := make([]*observer, 0, len(set))
	for _, obs := range set {
		targets = append(targets, obs)
		m.removeLocked(obs)
	}
	m.mu.Unlock()

	for _, obs := range targets {
		if expired {
			obs.sink.Enqueue(Event{Update: store.Update{
				Kind:      store.UpdateSessionExpired,
				SessionID: sessionID,
				Timestamp: at,
			}})
		}
		obs.sink.Close()
	}
	if len(targets) > 0 {
		metrics.ObserversActive.Set(float64(m.Count()))
		m.logger.Debug().
			Str(log.FieldSessionID, sessionID).
			Int("observers", len(targets)).
			Bool("expired", expired).
			Msg("session observers torn down")
	}
}

// Run starts the liveness sweeper, the backstop that removes observers
// whose liveness handle has died without an explicit Unwatch.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("observer liveness sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce()
		}
	}
}

// SweepOnce removes observers with dead liveness handles. Deterministic
// and suitable for unit testing.
func (m *Manager) SweepOnce() int {
	m.mu.Lock()
	var dead []*observer
	for _, obs := range m.observers {
		if obs.liveness.Err() != nil {
			dead = append(dead, obs)
			m.removeLocked(obs)
		}
	}
	m.mu.Unlock()

	for _, obs := range dead {
		obs.sink.Close()
	}
	if len(dead) > 0 {
		metrics.ObserversActive.Set(float64(m.Count()))
		m.logger.Debug().Int("count", len(dead)).Msg("liveness sweep removed dead observers")
	}
	return len(dead)
}

var _ store.Notifier = (*Manager)(nil)
