// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/varbridge/internal/config"
)

func TestHealthAlwaysHealthyWithoutCheckers(t *testing.T) {
	m := NewManager("test")
	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestReadyReflectsCheckers(t *testing.T) {
	m := NewManager("test")
	grpc := NewGRPCChecker()
	m.RegisterChecker(grpc)

	// Not serving yet: not ready.
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)

	grpc.SetServing("127.0.0.1:50051")
	resp = m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "127.0.0.1:50051", resp.Checks["grpc"].Message)

	grpc.SetStopped()
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
}

func TestStoreChecker(t *testing.T) {
	c := NewStoreChecker(func() int { return 3 })
	result := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "sessions live: 3", result.Message)

	unwired := NewStoreChecker(nil)
	assert.Equal(t, StatusUnhealthy, unwired.Check(context.Background()).Status)
}

func TestServeReadyStatusCodes(t *testing.T) {
	m := NewManager("test")
	grpc := NewGRPCChecker()
	m.RegisterChecker(grpc)

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	grpc.SetServing("127.0.0.1:1")
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
}

func TestServeHealthVerbose(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewStoreChecker(func() int { return 0 }))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=true", nil))
	assert.Equal(t, 200, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "v1", resp.Version)
	assert.Contains(t, resp.Checks, "store")
}

func TestPerformStartupChecks(t *testing.T) {
	valid := config.Config{
		BindAddress:           "127.0.0.1",
		Port:                  0,
		DefaultSessionTTL:     time.Hour,
		SessionSweepInterval:  time.Minute,
		ObserverSweepInterval: 30 * time.Second,
		WatchBufferSize:       64,
	}
	require.NoError(t, PerformStartupChecks(valid))

	t.Run("bad bind address", func(t *testing.T) {
		cfg := valid
		cfg.BindAddress = "not-an-ip"
		assert.Error(t, PerformStartupChecks(cfg))
	})

	t.Run("bad ops listen", func(t *testing.T) {
		cfg := valid
		cfg.OpsListen = "no-port"
		assert.Error(t, PerformStartupChecks(cfg))
	})

	t.Run("zero ttl", func(t *testing.T) {
		cfg := valid
		cfg.DefaultSessionTTL = 0
		assert.Error(t, PerformStartupChecks(cfg))
	})

	t.Run("zero buffer", func(t *testing.T) {
		cfg := valid
		cfg.WatchBufferSize = 0
		assert.Error(t, PerformStartupChecks(cfg))
	})
}
