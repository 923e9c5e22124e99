package ppeprep

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(NormalizedBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}))
	assert.InDelta(t, 0.5, Distance(NormalizedBox{CX: 0.5, CY: 0}), 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), Distance(NormalizedBox{CX: 0, CY: 0}), 1e-12)
	// The box size does not matter.
	assert.Equal(t, Distance(NormalizedBox{CX: 0.2, CY: 0.7, W: 0.1, H: 0.1}),
		Distance(NormalizedBox{CX: 0.2, CY: 0.7, W: 0.9, H: 0.3}))
}

func TestRank(t *testing.T) {
	boxes := []NormalizedBox{
		{ClassID: 0, CX: 0.9, CY: 0.9},
		{ClassID: 1, CX: 0.5, CY: 0.5},
		{ClassID: 2, CX: 0.6, CY: 0.5},
		{ClassID: 3, CX: 0, CY: 0},
	}

	ranked := Rank(boxes)
	require.Len(t, ranked, len(boxes))
	var order []int
	for _, r := range ranked {
		order = append(order, r.Box.ClassID)
	}
	assert.Equal(t, []int{1, 2, 0, 3}, order)
	assert.Equal(t, 0.0, ranked[0].Distance)
}

func TestRankIsStable(t *testing.T) {
	// Four boxes at the same distance, mirrored around the center.
	boxes := []NormalizedBox{
		{ClassID: 0, CX: 0.75, CY: 0.5},
		{ClassID: 1, CX: 0.5, CY: 0.5},
		{ClassID: 2, CX: 0.25, CY: 0.5},
		{ClassID: 3, CX: 0.5, CY: 0.75},
		{ClassID: 4, CX: 0.5, CY: 0.25},
	}

	ranked := Rank(boxes)
	var order []int
	for _, r := range ranked {
		order = append(order, r.Box.ClassID)
	}
	assert.Equal(t, []int{1, 0, 2, 3, 4}, order)
}

func TestRankProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	boxes := make([]NormalizedBox, 200)
	for i := range boxes {
		boxes[i] = NormalizedBox{ClassID: i, CX: rng.Float64(), CY: rng.Float64(), W: 0.1, H: 0.1}
	}

	ranked := Rank(boxes)
	require.Len(t, ranked, len(boxes))

	seen := make(map[int]bool, len(boxes))
	for i, r := range ranked {
		if i > 0 {
			assert.LessOrEqual(t, ranked[i-1].Distance, r.Distance)
		}
		assert.Equal(t, Distance(r.Box), r.Distance)
		assert.Equal(t, boxes[r.Box.ClassID], r.Box)
		seen[r.Box.ClassID] = true
	}
	assert.Len(t, seen, len(boxes), "ranking must be a permutation of the input")
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}
