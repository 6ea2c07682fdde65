// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store implements the session-scoped variable registry: typed
// variables with constraint validation, monotonic per-variable versions,
// TTL-managed sessions and update event emission.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/varbridge/internal/log"
	"github.com/ManuGH/varbridge/internal/metrics"
	"github.com/ManuGH/varbridge/internal/vartype"
)

// DefaultSessionTTL applies when a session is created without an
// explicit TTL.
const DefaultSessionTTL = 3600 * time.Second

// Store is the single authoritative mutator of variable state. A
// store-level RWMutex guards the session map; each session carries its
// own mutex so mutations on distinct sessions do not contend.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	defaultTTL time.Duration
	notifier   Notifier
	now        func() time.Time
	logger     zerolog.Logger
}

// Options configures a Store.
type Options struct {
	// DefaultTTL applies to sessions created without an explicit TTL.
	// Zero means DefaultSessionTTL.
	DefaultTTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates an empty store.
func New(opts Options) *Store {
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions:   make(map[string]*session),
		defaultTTL: ttl,
		notifier:   nopNotifier{},
		now:        now,
		logger:     log.WithComponent("store"),
	}
}

// SetNotifier attaches the observer manager. Must be called before the
// store starts serving requests.
func (st *Store) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	st.notifier = n
}

// CreateSession creates a session with the given TTL (0 = default).
// Creating an existing live session is not an error: it reports
// created=false and leaves the session untouched.
func (st *Store) CreateSession(id string, ttl time.Duration) (bool, error) {
	if id == "" {
		return false, E(KindValidationFailed, "session id must not be empty")
	}
	if ttl <= 0 {
		ttl = st.defaultTTL
	}
	now := st.now()

	st.mu.Lock()
	if existing, ok := st.sessions[id]; ok {
		existing.mu.Lock()
		alive := !existing.expired(now)
		existing.mu.Unlock()
		if alive {
			st.mu.Unlock()
			return false, nil
		}
		// Expired but not yet swept: evict, then recreate below.
		delete(st.sessions, id)
		st.mu.Unlock()
		st.finishEviction(id, now)
		st.mu.Lock()
		// Teardown ran unlocked; a concurrent create may have already
		// rebuilt the session. That session wins, with everything it
		// holds by now.
		if _, ok := st.sessions[id]; ok {
			st.mu.Unlock()
			return false, nil
		}
	}
	st.sessions[id] = newSession(id, ttl, now)
	st.mu.Unlock()

	metrics.SessionsCreatedTotal.Inc()
	metrics.SessionsLive.Set(float64(st.SessionCount()))
	st.logger.Debug().Str(log.FieldSessionID, id).Dur("ttl", ttl).Msg("session created")
	return true, nil
}

// DeleteSession removes a session with all its variables and tears down
// its observers.
func (st *Store) DeleteSession(id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	if !ok {
		return E(KindSessionNotFound, "session %q", id)
	}
	st.notifier.TeardownSession(id, false, st.now())
	metrics.SessionsLive.Set(float64(st.SessionCount()))
	st.logger.Debug().Str(log.FieldSessionID, id).Msg("session deleted")
	return nil
}

// TouchSession updates the session's last-activity time. Every other
// operation touches implicitly; this is the explicit form.
func (st *Store) TouchSession(id string) error {
	return st.withSession(id, func(*session) error { return nil })
}

// SessionCount returns the number of resident sessions (including ones
// pending lazy eviction).
func (st *Store) SessionCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// ListSessions returns introspection views of all resident sessions.
func (st *Store) ListSessions() []SessionInfo {
	st.mu.RLock()
	sessions := make([]*session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, s.info())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// withSession runs fn with the session locked and touched. Expired
// sessions are lazily evicted and reported as SessionExpired.
func (st *Store) withSession(id string, fn func(*session) error) error {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return E(KindSessionNotFound, "session %q", id)
	}

	now := st.now()
	s.mu.Lock()
	if s.expired(now) {
		s.mu.Unlock()
		st.evictIfExpired(id, now)
		return E(KindSessionExpired, "session %q", id)
	}
	s.touch(now)
	err := fn(s)
	s.mu.Unlock()
	return err
}

// evictIfExpired removes the session if it is still resident and still
// expired, then runs observer teardown. Safe to race with other ops.
func (st *Store) evictIfExpired(id string, now time.Time) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return false
	}
	s.mu.Lock()
	expired := s.expired(now)
	s.mu.Unlock()
	if !expired {
		st.mu.Unlock()
		return false
	}
	delete(st.sessions, id)
	st.mu.Unlock()
	st.finishEviction(id, now)
	return true
}

func (st *Store) finishEviction(id string, now time.Time) {
	st.notifier.TeardownSession(id, true, now)
	metrics.SessionsExpiredTotal.Inc()
	metrics.SessionsLive.Set(float64(st.SessionCount()))
	st.logger.Info().Str(log.FieldSessionID, id).Msg("session expired")
}

// RegisterVariable allocates a variable in the session. The session is
// created implicitly on first use with the default TTL.
func (st *Store) RegisterVariable(sessionID, name string, typ vartype.Type, initial any, constraints map[string]any, md map[string]string, optimizing bool) (Variable, error) {
	if name == "" {
		return Variable{}, E(KindValidationFailed, "variable name must not be empty")
	}
	if !vartype.IsValidType(typ) {
		return Variable{}, E(KindInvalidType, "unknown type %q", string(typ))
	}

	// Implicit first-use creation.
	st.mu.RLock()
	_, exists := st.sessions[sessionID]
	st.mu.RUnlock()
	if !exists {
		if _, err := st.CreateSession(sessionID, 0); err != nil {
			return Variable{}, err
		}
	}

	var out Variable
	err := st.withSession(sessionID, func(s *session) error {
		if _, taken := s.names[name]; taken {
			return E(KindAlreadyExists, "variable %q", name)
		}
		value, err := vartype.Validate(typ, initial)
		if err != nil {
			return wrapTypeError(err)
		}
		if err := vartype.ValidateConstraints(typ, value, constraints); err != nil {
			return wrapTypeError(err)
		}
		now := st.now()
		v := &Variable{
			ID:            newVariableID(name),
			Name:          name,
			Type:          typ,
			Value:         value,
			Constraints:   constraints,
			Metadata:      cloneMetadata(md),
			Version:       0,
			CreatedAt:     now,
			LastUpdatedAt: now,
			Optimizing:    optimizing,
		}
		s.vars[v.ID] = v
		s.names[name] = v.ID
		out = v.snapshot()
		return nil
	})
	if err != nil {
		return Variable{}, err
	}
	metrics.VariablesRegisteredTotal.WithLabelValues(string(typ)).Inc()
	return out, nil
}

// GetVariable returns a snapshot by name or var_id.
func (st *Store) GetVariable(sessionID, identifier string) (Variable, error) {
	var out Variable
	err := st.withSession(sessionID, func(s *session) error {
		v, ok := s.resolve(identifier)
		if !ok {
			return E(KindNotFound, "variable %q", identifier)
		}
		out = v.snapshot()
		return nil
	})
	return out, err
}

// UpdateVariable re-validates the new value against the variable's type
// and constraints. On success the version advances by exactly one,
// metadata merges, and one update event is emitted with the new version.
// On failure nothing changes.
func (st *Store) UpdateVariable(sessionID, identifier string, raw any, md map[string]string) (Variable, error) {
	var out Variable
	err := st.withSession(sessionID, func(s *session) error {
		v, ok := s.resolve(identifier)
		if !ok {
			return E(KindNotFound, "variable %q", identifier)
		}
		value, err := vartype.Validate(v.Type, raw)
		if err != nil {
			return wrapTypeError(err)
		}
		if err := vartype.ValidateConstraints(v.Type, value, v.Constraints); err != nil {
			return wrapTypeError(err)
		}
		st.applyUpdate(s, v, value, md)
		out = v.snapshot()
		return nil
	})
	if err != nil {
		metrics.IncUpdateResult(string(KindOf(err)))
		return Variable{}, err
	}
	metrics.IncUpdateResult("ok")
	return out, nil
}

// applyUpdate commits a validated value. Callers hold the session lock,
// which is what makes version computation and event emission atomic.
func (st *Store) applyUpdate(s *session, v *Variable, value any, md map[string]string) {
	old := v.Value
	now := st.now()
	v.Value = value
	v.mergeMetadata(md)
	v.Version++
	if now.After(v.LastUpdatedAt) {
		v.LastUpdatedAt = now
	}
	st.notifier.Notify(Update{
		Kind:       UpdateValue,
		SessionID:  s.id,
		VariableID: v.ID,
		Name:       v.Name,
		Type:       v.Type,
		Old:        old,
		New:        value,
		Version:    v.Version,
		Metadata:   cloneMetadata(v.Metadata),
		Timestamp:  now,
	})
}

// ListVariables returns name-sorted snapshots matching the `*` wildcard
// pattern. Empty pattern lists all.
func (st *Store) ListVariables(sessionID, pattern string) ([]Variable, error) {
	var out []Variable
	err := st.withSession(sessionID, func(s *session) error {
		out = s.list(pattern)
		return nil
	})
	return out, err
}

// DeleteVariable removes a variable and emits a deletion event to its
// observers.
func (st *Store) DeleteVariable(sessionID, identifier string) error {
	return st.withSession(sessionID, func(s *session) error {
		v, ok := s.resolve(identifier)
		if !ok {
			return E(KindNotFound, "variable %q", identifier)
		}
		delete(s.vars, v.ID)
		delete(s.names, v.Name)
		st.notifier.Notify(Update{
			Kind:       UpdateDeleted,
			SessionID:  s.id,
			VariableID: v.ID,
			Name:       v.Name,
			Type:       v.Type,
			Old:        v.Value,
			New:        nil,
			Version:    v.Version,
			Metadata:   cloneMetadata(v.Metadata),
			Timestamp:  st.now(),
		})
		return nil
	})
}

// BatchGet is the result of GetVariables: found records keyed by the
// requested identifier plus the identifiers that did not resolve.
// Partial success is normal.
type BatchGet struct {
	Found   map[string]Variable
	Missing []string
}

// GetVariables resolves a set of identifiers in one pass.
func (st *Store) GetVariables(sessionID string, identifiers []string) (BatchGet, error) {
	out := BatchGet{Found: make(map[string]Variable, len(identifiers))}
	err := st.withSession(sessionID, func(s *session) error {
		for _, ident := range identifiers {
			if v, ok := s.resolve(ident); ok {
				out.Found[ident] = v.snapshot()
			} else {
				out.Missing = append(out.Missing, ident)
			}
		}
		return nil
	})
	if err != nil {
		return BatchGet{}, err
	}
	return out, nil
}

// BatchItem is one per-key outcome of a non-atomic batch update.
type BatchItem struct {
	Variable Variable
	Err      *Error
}

// UpdateVariables applies a batch of updates. Atomic batches validate
// everything against the consistent pre-state first and apply nothing on
// any failure, reporting per-key reasons. Non-atomic batches attempt
// each key independently; relative order between keys is unspecified,
// but each successful key advances its version by exactly one.
func (st *Store) UpdateVariables(sessionID string, values map[string]any, atomic bool, md map[string]string) (map[string]BatchItem, error) {
	results := make(map[string]BatchItem, len(values))
	err := st.withSession(sessionID, func(s *session) error {
		if atomic {
			return st.updateAtomic(s, values, md, results)
		}
		for ident, raw := range values {
			results[ident] = st.updateOne(s, ident, raw, md)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (st *Store) updateOne(s *session, identifier string, raw any, md map[string]string) BatchItem {
	v, ok := s.resolve(identifier)
	if !ok {
		metrics.IncUpdateResult(string(KindNotFound))
		return BatchItem{Err: E(KindNotFound, "variable %q", identifier)}
	}
	value, err := vartype.Validate(v.Type, raw)
	if err == nil {
		err = vartype.ValidateConstraints(v.Type, value, v.Constraints)
	}
	if err != nil {
		werr := wrapTypeError(err)
		metrics.IncUpdateResult(string(werr.Kind))
		return BatchItem{Err: werr}
	}
	st.applyUpdate(s, v, value, md)
	metrics.IncUpdateResult("ok")
	return BatchItem{Variable: v.snapshot()}
}

func (st *Store) updateAtomic(s *session, values map[string]any, md map[string]string, results map[string]BatchItem) error {
	type staged struct {
		ident string
		v     *Variable
		value any
	}
	stages := make([]staged, 0, len(values))
	failures := make(map[string]string)

	for ident, raw := range values {
		v, ok := s.resolve(ident)
		if !ok {
			failures[ident] = E(KindNotFound, "variable %q", ident).Error()
			continue
		}
		value, err := vartype.Validate(v.Type, raw)
		if err == nil {
			err = vartype.ValidateConstraints(v.Type, value, v.Constraints)
		}
		if err != nil {
			failures[ident] = wrapTypeError(err).Error()
			continue
		}
		stages = append(stages, staged{ident: ident, v: v, value: value})
	}

	// Two batch keys aliasing one variable (its name and its var_id)
	// would apply twice and advance the version by 2. Reject every key
	// involved so the outcome does not depend on map iteration order.
	byID := make(map[string]int, len(stages))
	for _, stg := range stages {
		byID[stg.v.ID]++
	}
	for _, stg := range stages {
		if byID[stg.v.ID] > 1 {
			failures[stg.ident] = E(KindValidationFailed,
				"identifier %q aliases another key of this batch", stg.ident).Error()
		}
	}

	if len(failures) > 0 {
		metrics.IncUpdateResult(string(KindValidationFailed))
		return &Error{
			Kind:    KindValidationFailed,
			Msg:     "atomic batch rejected",
			Details: failures,
		}
	}

	for _, stg := range stages {
		st.applyUpdate(s, stg.v, stg.value, md)
		results[stg.ident] = BatchItem{Variable: stg.v.snapshot()}
		metrics.IncUpdateResult("ok")
	}
	return nil
}

// WatchRegister resolves identifiers (names, var ids or `*` patterns)
// to snapshots and invokes register while the session lock is still
// held. Update events are emitted under that same lock, so an observer
// inserted by register can never miss a mutation that is not already in
// its snapshot, and never sees one the snapshot already contains.
// Identifiers that resolve to nothing are not errors.
func (st *Store) WatchRegister(sessionID string, identifiers []string, register func(snaps []Variable)) error {
	return st.withSession(sessionID, func(s *session) error {
		seen := make(map[string]struct{})
		var snaps []Variable
		add := func(v Variable) {
			if _, dup := seen[v.ID]; dup {
				return
			}
			seen[v.ID] = struct{}{}
			snaps = append(snaps, v)
		}
		for _, ident := range identifiers {
			if strings.Contains(ident, "*") {
				for _, v := range s.list(ident) {
					add(v)
				}
				continue
			}
			if v, ok := s.resolve(ident); ok {
				add(v.snapshot())
			}
		}
		register(snaps)
		return nil
	})
}

// wrapTypeError maps vartype failures onto the store taxonomy.
func wrapTypeError(err error) *Error {
	switch {
	case errors.Is(err, vartype.ErrInvalidType):
		return E(KindInvalidType, "%s", trimTypeErr(err, vartype.ErrInvalidType))
	case errors.Is(err, vartype.ErrConstraint):
		return E(KindConstraintViolation, "%s", trimTypeErr(err, vartype.ErrConstraint))
	default:
		return E(KindValidationFailed, "%s", trimTypeErr(err, vartype.ErrValidation))
	}
}

// trimTypeErr strips the sentinel's own prefix so the store prefix is
// not doubled in wire strings.
func trimTypeErr(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func cloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
