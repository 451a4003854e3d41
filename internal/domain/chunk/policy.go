// Package chunk implements the policy that splits a job's scope into
// bounded, ordered chunks. Chunks are ephemeral: they are recomputed from
// the job's persisted progress on every claim and never stored.
package chunk

import "encoding/json"

// DefaultSize bounds per-chunk memory and sets the progress-persistence
// cadence. 100 items keeps progress fresh without excessive write
// amplification.
const DefaultSize = 100

// Policy splits scopes into fixed-size chunks.
type Policy struct {
	size int
}

// NewPolicy constructs a Policy; non-positive sizes fall back to DefaultSize.
func NewPolicy(size int) Policy {
	if size <= 0 {
		size = DefaultSize
	}
	return Policy{size: size}
}

// Size returns the configured chunk size.
func (p Policy) Size() int { return p.size }

// Split returns the ordered chunks covering items. The final chunk may be
// smaller than the configured size. A nil or empty scope yields no chunks.
func (p Policy) Split(items []json.RawMessage) [][]json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]json.RawMessage, 0, (len(items)+p.size-1)/p.size)
	for start := 0; start < len(items); start += p.size {
		end := start + p.size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Remaining returns the chunks covering the unprocessed tail of a scope.
// processed counts items already folded into the job's progress; resuming a
// reconciled job re-chunks from there rather than from the exact prior
// chunk boundary.
func (p Policy) Remaining(items []json.RawMessage, processed int) [][]json.RawMessage {
	if processed < 0 {
		processed = 0
	}
	if processed >= len(items) {
		return nil
	}
	return p.Split(items[processed:])
}

// Count returns how many chunks a scope of n items produces.
func (p Policy) Count(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + p.size - 1) / p.size
}
