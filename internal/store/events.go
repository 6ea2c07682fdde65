// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"time"

	"github.com/ManuGH/varbridge/internal/vartype"
)

// UpdateKind distinguishes the event classes emitted by the store.
type UpdateKind string

const (
	// UpdateValue is a successful value mutation.
	UpdateValue UpdateKind = "value"
	// UpdateDeleted marks the removal of a variable.
	UpdateDeleted UpdateKind = "deleted"
	// UpdateSessionExpired marks TTL eviction of the owning session.
	UpdateSessionExpired UpdateKind = "session_expired"
)

// Update is the event emitted on every successful mutation. Two updates
// to the same variable are strictly ordered by Version; order between
// distinct variables is unspecified.
type Update struct {
	Kind       UpdateKind
	SessionID  string
	VariableID string
	Name       string
	Type       vartype.Type
	Old        any
	New        any
	Version    int64
	Metadata   map[string]string
	Timestamp  time.Time
}

// Notifier receives store events. The store calls it while holding the
// owning session's lock, so implementations must enqueue without
// blocking (the observer manager uses bounded per-sink buffers).
type Notifier interface {
	// Notify delivers one mutation event.
	Notify(u Update)
	// TeardownSession removes all observers of a session. When expired is
	// true the teardown is a TTL eviction and observers receive a
	// session-expired event first.
	TeardownSession(sessionID string, expired bool, at time.Time)
}

// nopNotifier is used until a real observer manager is attached.
type nopNotifier struct{}

func (nopNotifier) Notify(Update) {}

func (nopNotifier) TeardownSession(string, bool, time.Time) {}
