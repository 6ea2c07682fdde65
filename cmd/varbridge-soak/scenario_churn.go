// Package main - update churn scenario.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// runChurn hammers every variable of every session with sequential
// updates for the configured duration, then checks that each final
// stored version equals the number of updates that succeeded. A
// mismatch means a lost or double-counted mutation.
func runChurn(cfg Config, client *bridgeClient, rng *rand.Rand) ScenarioResult {
	result := ScenarioResult{
		Name:         "update_churn",
		Pass:         true,
		Observations: make(map[string]int64),
		Failures:     []Failure{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+30*time.Second)
	defer cancel()

	type target struct {
		sessionID string
		varID     string
		applied   int64
	}

	var targets []*target
	for s := 0; s < cfg.Sessions; s++ {
		sessionID := fmt.Sprintf("soak-churn-%d-%d", cfg.Seed, s)
		if err := client.createSession(ctx, sessionID); err != nil {
			result.Failures = append(result.Failures, Failure{
				Time:    time.Now(),
				RuleID:  "CHURN_SESSION_CREATE",
				Message: err.Error(),
			})
			result.Pass = false
			return result
		}
		defer func(id string) { _ = client.deleteSession(context.Background(), id) }(sessionID)

		for v := 0; v < cfg.VarsPerSession; v++ {
			varID, err := client.registerFloat(ctx, sessionID, fmt.Sprintf("churn.v%d", v), 0)
			if err != nil {
				result.Failures = append(result.Failures, Failure{
					Time:    time.Now(),
					RuleID:  "CHURN_REGISTER",
					Message: err.Error(),
				})
				result.Pass = false
				return result
			}
			targets = append(targets, &target{sessionID: sessionID, varID: varID})
		}
	}

	fmt.Printf("[Churn] %d targets, %s of traffic\n", len(targets), cfg.Duration)

	var updates, errs atomic.Int64
	var failMu sync.Mutex
	deadline := time.Now().Add(cfg.Duration)

	var wg sync.WaitGroup
	for _, tg := range targets {
		wg.Add(1)
		// Per-worker generator: *rand.Rand is not safe for concurrent use.
		workerRng := rand.New(rand.NewSource(rng.Int63()))
		go func(tg *target, rng *rand.Rand) {
			defer wg.Done()
			for time.Now().Before(deadline) && ctx.Err() == nil {
				version, err := client.updateFloat(ctx, tg.sessionID, tg.varID, rng.Float64())
				if err != nil {
					errs.Add(1)
					continue
				}
				updates.Add(1)
				tg.applied++
				if int64(version) != tg.applied {
					failMu.Lock()
					result.Failures = append(result.Failures, Failure{
						Time:    time.Now(),
						RuleID:  "CHURN_VERSION_SKIP",
						Message: fmt.Sprintf("%s/%s: version %d after %d updates", tg.sessionID, tg.varID, version, tg.applied),
					})
					failMu.Unlock()
					return
				}
				time.Sleep(cfg.UpdateInterval)
			}
		}(tg, workerRng)
	}
	wg.Wait()

	// Final read-back: stored version must match the applied count.
	for _, tg := range targets {
		version, err := client.getVersion(ctx, tg.sessionID, tg.varID)
		if err != nil {
			result.Failures = append(result.Failures, Failure{
				Time:    time.Now(),
				RuleID:  "CHURN_READBACK",
				Message: err.Error(),
			})
			continue
		}
		if int64(version) != tg.applied {
			result.Failures = append(result.Failures, Failure{
				Time:    time.Now(),
				RuleID:  "CHURN_FINAL_VERSION",
				Message: fmt.Sprintf("%s/%s: stored version %d, applied %d", tg.sessionID, tg.varID, version, tg.applied),
			})
		}
	}

	result.Observations["targets"] = int64(len(targets))
	result.Observations["updates"] = updates.Load()
	result.Observations["errors"] = errs.Load()
	result.Pass = len(result.Failures) == 0

	fmt.Printf("[Churn] done: %d updates, %d errors, pass=%v\n", updates.Load(), errs.Load(), result.Pass)
	return result
}
