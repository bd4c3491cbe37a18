// Package similarity implements the four similarity calculators (C5):
// cosine, tree (discretized edit distance), latent (reduced-dim
// correlation), and coherence (relation-matrix agreement).
package similarity

import (
	"github.com/blueberrycongee/semcache/internal/semvector"
)

// LayerWeights gives the fixed per-layer weighting used by cosine, tree and
// latent (§4.2): subject/attribute/style/composition/emotion.
var LayerWeights = map[semvector.Kind]float64{
	semvector.Subject:     0.30,
	semvector.Attribute:   0.25,
	semvector.Style:       0.20,
	semvector.Composition: 0.15,
	semvector.Emotion:     0.10,
}

// Metrics holds the four scalars in [0,1] that feed the uncertainty
// quantifier and ensemble model (spec §3 SimilarityMetrics).
type Metrics struct {
	Cosine    float64
	Tree      float64
	Latent    float64
	Coherence float64
}

// AsSlice returns the four metrics in a fixed order, used wherever the
// ensemble/uncertainty code needs them as an ordered vector.
func (m Metrics) AsSlice() [4]float64 {
	return [4]float64{m.Cosine, m.Tree, m.Latent, m.Coherence}
}

// Compute runs all four similarity calculators between a and b. Every
// calculator absorbs degenerate inputs (zero norm, empty vectors) to 0
// rather than panicking (§4.2).
func Compute(a, b *semvector.MultiLayerVector) Metrics {
	if a == nil || b == nil {
		return Metrics{}
	}
	return Metrics{
		Cosine:    Cosine(a, b),
		Tree:      Tree(a, b),
		Latent:    Latent(a, b),
		Coherence: Coherence(a, b),
	}
}

// weightedSum applies the fixed layer weights to a per-layer scoring
// function and returns the weighted total, clamped to [0,1].
func weightedSum(score func(k semvector.Kind) float64) float64 {
	total := 0.0
	for k, w := range LayerWeights {
		total += w * clamp01(score(k))
	}
	return clamp01(total)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
