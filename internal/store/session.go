// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// session is a TTL-scoped namespace holding variables. All field access
// happens under mu; the store only keeps the map entry itself under its
// own lock.
type session struct {
	mu sync.Mutex

	id             string
	createdAt      time.Time
	lastActivityAt time.Time
	ttl            time.Duration

	vars  map[string]*Variable // var_id -> record
	names map[string]string    // name -> var_id
}

func newSession(id string, ttl time.Duration, now time.Time) *session {
	return &session{
		id:             id,
		createdAt:      now,
		lastActivityAt: now,
		ttl:            ttl,
		vars:           make(map[string]*Variable),
		names:          make(map[string]string),
	}
}

// touch records activity. Callers hold s.mu.
func (s *session) touch(now time.Time) {
	if now.After(s.lastActivityAt) {
		s.lastActivityAt = now
	}
}

// expired reports whether the session has outlived its TTL. Callers hold s.mu.
func (s *session) expired(now time.Time) bool {
	return now.Sub(s.lastActivityAt) > s.ttl
}

// resolve maps an identifier (name or var_id) to the record. Callers hold s.mu.
func (s *session) resolve(identifier string) (*Variable, bool) {
	if v, ok := s.vars[identifier]; ok {
		return v, true
	}
	if id, ok := s.names[identifier]; ok {
		return s.vars[id], true
	}
	return nil, false
}

// list returns name-sorted snapshots of variables matching pattern.
// An empty pattern matches everything; `*` is the only wildcard.
// Callers hold s.mu.
func (s *session) list(pattern string) []Variable {
	match := matchAll
	if pattern != "" && pattern != "*" {
		match = compileWildcard(pattern)
	}
	out := make([]Variable, 0, len(s.vars))
	for _, v := range s.vars {
		if match(v.Name) {
			out = append(out, v.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func matchAll(string) bool { return true }

// compileWildcard turns a `*` glob into an anchored matcher.
func compileWildcard(pattern string) func(string) bool {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return func(name string) bool { return name == pattern }
	}
	return re.MatchString
}

// SessionInfo is the introspection view of a session.
type SessionInfo struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	TTL            time.Duration `json:"ttl"`
	VariableCount  int           `json:"variable_count"`
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:             s.id,
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivityAt,
		TTL:            s.ttl,
		VariableCount:  len(s.vars),
	}
}
