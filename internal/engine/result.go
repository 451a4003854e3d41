package engine

import (
	"encoding/json"

	"github.com/openscale/jobforge/internal/domain/model"
)

// itemError records why a single scope item errored. Index is the item's
// absolute position within the job's scope.
type itemError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// resultSummary is the JSON document persisted as a completed job's result.
type resultSummary struct {
	Succeeded       int         `json:"succeeded"`
	Skipped         int         `json:"skipped"`
	Errored         int         `json:"errored"`
	Errors          []itemError `json:"errors,omitempty"`
	ErrorsTruncated bool        `json:"errors_truncated,omitempty"`
}

// newResultSummary seeds counts from already-persisted progress so a job
// resumed after requeue reports totals over its whole scope. Per-item error
// reasons from the prior claim are not recoverable and are omitted.
func newResultSummary(p model.Progress) *resultSummary {
	return &resultSummary{
		Succeeded: p.Succeeded,
		Skipped:   p.Skipped,
		Errored:   p.Errored,
	}
}

// addChunk folds one chunk's handler results into the summary and returns
// the per-outcome tallies. offset is the chunk's starting position within
// the scope. Items the handler did not report on count as errored.
func (s *resultSummary) addChunk(offset int, items []json.RawMessage, results []ItemResult) (succeeded, skipped, errored int) {
	seen := make([]bool, len(items))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(items) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		switch r.Outcome {
		case OutcomeSucceeded:
			succeeded++
		case OutcomeSkipped:
			skipped++
		default:
			errored++
			s.recordError(offset+r.Index, r.Reason)
		}
	}
	for i, ok := range seen {
		if !ok {
			errored++
			s.recordError(offset+i, "no result reported for item")
		}
	}

	s.Succeeded += succeeded
	s.Skipped += skipped
	s.Errored += errored
	return succeeded, skipped, errored
}

func (s *resultSummary) recordError(index int, reason string) {
	if len(s.Errors) >= maxResultErrors {
		s.ErrorsTruncated = true
		return
	}
	s.Errors = append(s.Errors, itemError{Index: index, Reason: reason})
}

// resultHasErrors reports whether a persisted result carries item errors.
func resultHasErrors(raw json.RawMessage) bool {
	var s resultSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s.Errored > 0
}
