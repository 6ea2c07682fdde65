// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingStore is returned when an app is created without a store.
	ErrMissingStore = errors.New("store is required")

	// ErrMissingObservers is returned when an app is created without an observer manager.
	ErrMissingObservers = errors.New("observer manager is required")

	// ErrListenFailed is returned when the gRPC listener cannot bind.
	ErrListenFailed = errors.New("listener failed to bind")
)
