package chunk

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scopeOf(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(fmt.Sprintf(`"item-%d"`, i))
	}
	return items
}

func TestPolicy_Split(t *testing.T) {
	p := NewPolicy(100)

	chunks := p.Split(scopeOf(250))
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)

	// Order is preserved across chunk boundaries.
	assert.Equal(t, json.RawMessage(`"item-100"`), chunks[1][0])
	assert.Equal(t, json.RawMessage(`"item-249"`), chunks[2][49])
}

func TestPolicy_SplitEdgeCases(t *testing.T) {
	p := NewPolicy(100)

	assert.Nil(t, p.Split(nil))
	assert.Nil(t, p.Split([]json.RawMessage{}))
	assert.Len(t, p.Split(scopeOf(1)), 1)
	assert.Len(t, p.Split(scopeOf(100)), 1)
	assert.Len(t, p.Split(scopeOf(101)), 2)
}

func TestPolicy_Remaining(t *testing.T) {
	p := NewPolicy(100)
	items := scopeOf(250)

	// Resume mid-scope: 250 items with 120 already processed re-chunks the
	// tail as 100 + 30.
	chunks := p.Remaining(items, 120)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 30)
	assert.Equal(t, json.RawMessage(`"item-120"`), chunks[0][0])

	assert.Nil(t, p.Remaining(items, 250))
	assert.Nil(t, p.Remaining(items, 300))
	assert.Len(t, p.Remaining(items, -5), 3)
}

func TestPolicy_Count(t *testing.T) {
	p := NewPolicy(100)
	assert.Equal(t, 0, p.Count(0))
	assert.Equal(t, 1, p.Count(1))
	assert.Equal(t, 3, p.Count(250))
}

func TestNewPolicy_Default(t *testing.T) {
	assert.Equal(t, DefaultSize, NewPolicy(0).Size())
	assert.Equal(t, DefaultSize, NewPolicy(-1).Size())
	assert.Equal(t, 25, NewPolicy(25).Size())
}
