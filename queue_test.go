package evloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoPushDrainAllPreservesOrder(t *testing.T) {
	var q fifo[int]
	q.push(1)
	q.push(2)
	q.push(3)
	got := q.drainAll()
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, q.empty(), "queue not empty after drainAll")
}

func TestFifoDrainAllDuringDrainDoesNotSeeItemsPushedMidIteration(t *testing.T) {
	var q fifo[int]
	q.push(1)
	batch := q.drainAll()
	// simulate a consumer pushing a new item while iterating the drained batch
	q.push(2)
	require.Equal(t, []int{1}, batch, "mid-iteration pushes must not appear in the already-drained batch")

	next := q.drainAll()
	assert.Equal(t, []int{2}, next)
}

func TestFifoPopOneFIFOOrder(t *testing.T) {
	var q fifo[string]
	q.push("a")
	q.push("b")

	v, ok := q.popOne()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = q.popOne()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = q.popOne()
	assert.False(t, ok, "popOne() on empty queue returned ok=true")
}
