package similarity

import (
	"gonum.org/v1/gonum/stat"

	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Latent reduces each layer vector by averaging adjacent pairs, correlates
// the reduced vectors, maps [-1,1] to [0,1], and weight-sums (§4.2).
func Latent(a, b *semvector.MultiLayerVector) float64 {
	return weightedSum(func(k semvector.Kind) float64 {
		return latentLayer(a.Layer(k), b.Layer(k))
	})
}

func latentLayer(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	ra := reduceAdjacentPairs(a)
	rb := reduceAdjacentPairs(b)
	if len(ra) < 2 || len(rb) < 2 || len(ra) != len(rb) {
		return 0
	}
	if isConstant(ra) || isConstant(rb) {
		return 0
	}
	corr := stat.Correlation(ra, rb, nil)
	if corr < -1 {
		corr = -1
	}
	if corr > 1 {
		corr = 1
	}
	return (corr + 1) / 2
}

// reduceAdjacentPairs averages adjacent components, producing a vector of
// length floor(n/2) (§4.2).
func reduceAdjacentPairs(v []float32) []float64 {
	n := len(v) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (float64(v[2*i]) + float64(v[2*i+1])) / 2
	}
	return out
}

func isConstant(v []float64) bool {
	if len(v) == 0 {
		return true
	}
	first := v[0]
	for _, x := range v[1:] {
		if x != first {
			return false
		}
	}
	return true
}
