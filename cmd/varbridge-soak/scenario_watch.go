// Package main - watch ordering scenario and smoke check.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// droppedKey mirrors the bridge's overflow metadata key.
const droppedKey = "varbridge.dropped"

// runSmoke performs a single session round trip.
func runSmoke(cfg Config, client *bridgeClient) ScenarioResult {
	result := ScenarioResult{
		Name:         "connectivity",
		Pass:         true,
		Observations: map[string]int64{"requests": 2},
		Failures:     []Failure{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionID := fmt.Sprintf("soak-smoke-%d", cfg.Seed)
	if err := client.createSession(ctx, sessionID); err != nil {
		result.Failures = append(result.Failures, Failure{
			Time: time.Now(), RuleID: "SMOKE_CREATE", Message: err.Error(),
		})
		result.Pass = false
		return result
	}
	if err := client.deleteSession(ctx, sessionID); err != nil {
		result.Failures = append(result.Failures, Failure{
			Time: time.Now(), RuleID: "SMOKE_DELETE", Message: err.Error(),
		})
		result.Pass = false
	}
	return result
}

// runWatchOrdering streams one session's updates while a writer churns
// its variables, and verifies the consumer-side ordering contract: per
// variable, versions are strictly increasing, and any gap is explained
// by a dropped-count annotation on the event that follows the overflow.
func runWatchOrdering(cfg Config, client *bridgeClient, rng *rand.Rand) ScenarioResult {
	result := ScenarioResult{
		Name:         "watch_ordering",
		Pass:         true,
		Observations: make(map[string]int64),
		Failures:     []Failure{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+30*time.Second)
	defer cancel()

	sessionID := fmt.Sprintf("soak-watch-%d", cfg.Seed)
	if err := client.createSession(ctx, sessionID); err != nil {
		result.Failures = append(result.Failures, Failure{
			Time: time.Now(), RuleID: "WATCH_SESSION_CREATE", Message: err.Error(),
		})
		result.Pass = false
		return result
	}
	defer func() { _ = client.deleteSession(context.Background(), sessionID) }()

	varIDs := make([]string, 0, cfg.VarsPerSession)
	for v := 0; v < cfg.VarsPerSession; v++ {
		varID, err := client.registerFloat(ctx, sessionID, fmt.Sprintf("watch.v%d", v), 0)
		if err != nil {
			result.Failures = append(result.Failures, Failure{
				Time: time.Now(), RuleID: "WATCH_REGISTER", Message: err.Error(),
			})
			result.Pass = false
			return result
		}
		varIDs = append(varIDs, varID)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	stream, err := client.watch(watchCtx, sessionID, varIDs)
	if err != nil {
		result.Failures = append(result.Failures, Failure{
			Time: time.Now(), RuleID: "WATCH_OPEN", Message: err.Error(),
		})
		result.Pass = false
		return result
	}

	// Consumer: track the last seen version per variable.
	type counts struct {
		events  int64
		drops   int64
		gaps    int64
		inverts int64
	}
	done := make(chan counts, 1)
	go func() {
		var c counts
		lastSeen := make(map[string]int64)
		// Drops are reported per sink, not per variable: a version gap on
		// one variable may be announced on another variable's event. The
		// budget reconciles gaps against announced drops across the stream.
		var dropBudget int64
		for {
			u, err := stream.Recv()
			if err != nil {
				done <- c
				return
			}
			if u.VariableId == "" {
				continue // heartbeat
			}
			c.events++
			if raw, ok := u.Metadata[droppedKey]; ok {
				dropped, _ := strconv.ParseInt(raw, 10, 64)
				c.drops += dropped
				dropBudget += dropped
			}
			prev := lastSeen[u.VariableId]
			version := int64(u.Version)
			if version <= prev {
				c.inverts++
			} else if gap := version - prev - 1; gap > 0 {
				if gap <= dropBudget {
					dropBudget -= gap
				} else {
					c.gaps++
				}
			}
			lastSeen[u.VariableId] = version
		}
	}()

	// Writer: unpaced updates to force at least intermittent overflow.
	fmt.Printf("[Watch] %d variables, %s of traffic\n", len(varIDs), cfg.Duration)
	deadline := time.Now().Add(cfg.Duration)
	var sent int64
	for time.Now().Before(deadline) && ctx.Err() == nil {
		varID := varIDs[rng.Intn(len(varIDs))]
		if _, err := client.updateFloat(ctx, sessionID, varID, rng.Float64()); err == nil {
			sent++
		}
	}

	// Let the stream drain, then close it.
	time.Sleep(500 * time.Millisecond)
	stopWatch()
	c := <-done

	if c.inverts > 0 {
		result.Failures = append(result.Failures, Failure{
			Time:    time.Now(),
			RuleID:  "WATCH_VERSION_INVERSION",
			Message: fmt.Sprintf("%d events arrived at or below the previous version", c.inverts),
		})
	}
	if c.gaps > 0 {
		result.Failures = append(result.Failures, Failure{
			Time:    time.Now(),
			RuleID:  "WATCH_UNEXPLAINED_GAP",
			Message: fmt.Sprintf("%d version gaps without a dropped-count annotation", c.gaps),
		})
	}

	result.Observations["updates_sent"] = sent
	result.Observations["events_received"] = c.events
	result.Observations["events_dropped"] = c.drops
	result.Pass = len(result.Failures) == 0

	fmt.Printf("[Watch] done: %d sent, %d received, %d dropped, pass=%v\n",
		sent, c.events, c.drops, result.Pass)
	return result
}
