package avoidance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridQueryFindsOverlappingCells(t *testing.T) {
	g := NewGrid(2)
	g.Add(1, 0, 0, 0.5)
	g.Add(2, 5, 5, 0.5)

	ids := g.Query(0, 0, 1)
	assert.Equal(t, []int{1}, ids)
}

func TestGridQueryDedupsIDsSpanningMultipleCells(t *testing.T) {
	g := NewGrid(1)
	g.Add(1, 0.9, 0.9, 1.5) // radius 1.5 spans several 1-unit cells

	ids := g.Query(0, 0, 3)
	assert.Equal(t, []int{1}, ids)
}

func TestGridClearRemovesAllEntries(t *testing.T) {
	g := NewGrid(2)
	g.Add(1, 0, 0, 0.5)
	g.Clear()
	assert.Empty(t, g.Query(0, 0, 10))
}
