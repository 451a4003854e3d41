package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openscale/jobforge/internal/domain/model"
	"github.com/openscale/jobforge/internal/engine"
)

// builtinHandlers returns the job types this binary ships with. Deployments
// embedding jobforge as a library register their own handlers through
// bootstrap.ServiceDeps.
func builtinHandlers() map[string]engine.Handler {
	return map[string]engine.Handler{
		"noop":  engine.HandlerFunc(noopChunk),
		"sleep": engine.HandlerFunc(sleepChunk),
	}
}

// noopChunk accepts every item without side effects. Useful for queue smoke
// tests and load generation.
func noopChunk(_ context.Context, _ *model.Job, items []json.RawMessage) ([]engine.ItemResult, error) {
	results := make([]engine.ItemResult, 0, len(items))
	for i := range items {
		results = append(results, engine.ItemResult{Index: i, Outcome: engine.OutcomeSucceeded})
	}
	return results, nil
}

type sleepItem struct {
	Millis int `json:"millis"`
}

const maxSleepPerItem = 10 * time.Second

// sleepChunk pauses per item to exercise lease refresh, cancellation and
// progress reporting under controlled latency.
func sleepChunk(ctx context.Context, _ *model.Job, items []json.RawMessage) ([]engine.ItemResult, error) {
	results := make([]engine.ItemResult, 0, len(items))
	for i, item := range items {
		var req sleepItem
		if err := json.Unmarshal(item, &req); err != nil {
			results = append(results, engine.ItemResult{
				Index:   i,
				Outcome: engine.OutcomeErrored,
				Reason:  "invalid sleep item: " + err.Error(),
			})
			continue
		}

		d := time.Duration(req.Millis) * time.Millisecond
		if d < 0 {
			d = 0
		}
		if d > maxSleepPerItem {
			d = maxSleepPerItem
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-time.After(d):
		}

		results = append(results, engine.ItemResult{Index: i, Outcome: engine.OutcomeSucceeded})
	}
	return results, nil
}
