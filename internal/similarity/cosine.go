package similarity

import (
	"gonum.org/v1/gonum/floats"

	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Cosine computes the per-layer cosine similarity, weight-summed with the
// fixed layer weights (§4.2). A zero-norm layer (no token matched during
// vectorization) contributes 0 for that layer rather than NaN.
func Cosine(a, b *semvector.MultiLayerVector) float64 {
	return weightedSum(func(k semvector.Kind) float64 {
		return cosineLayer(a.Layer(k), b.Layer(k))
	})
}

func cosineLayer(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	af := toFloat64(a)
	bf := toFloat64(b)
	na := floats.Norm(af, 2)
	nb := floats.Norm(bf, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	dot := floats.Dot(af, bf)
	cos := dot / (na * nb)
	if cos < 0 {
		cos = 0
	}
	if cos > 1 {
		cos = 1
	}
	return cos
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
