package ppeprep

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// cropCenter is the center of any crop in normalized coordinates.
var cropCenter = []float64{0.5, 0.5}

// RankedBox is a box paired with its distance to the center of the crop it belongs to.
type RankedBox struct {
	Distance float64
	Box      NormalizedBox
}

// Distance is the Euclidean distance of the box center from the crop center (0.5, 0.5).
func Distance(b NormalizedBox) float64 {
	return floats.Distance([]float64{b.CX, b.CY}, cropCenter, 2)
}

// Rank orders boxes by ascending Distance. Boxes with equal distance keep their input order.
func Rank(boxes []NormalizedBox) []RankedBox {
	ranked := make([]RankedBox, len(boxes))
	for i, b := range boxes {
		ranked[i] = RankedBox{Distance: Distance(b), Box: b}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})

	return ranked
}
