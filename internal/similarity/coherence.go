package similarity

import (
	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Coherence returns 1 minus the mean absolute difference of the two
// relation matrices, clamped to [0,1] (§4.2).
func Coherence(a, b *semvector.MultiLayerVector) float64 {
	total := 0.0
	cells := 0
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			total += abs(a.Relation[i][j] - b.Relation[i][j])
			cells++
		}
	}
	if cells == 0 {
		return 0
	}
	meanAbsDiff := total / float64(cells)
	return clamp01(1 - meanAbsDiff)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
