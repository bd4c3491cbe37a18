package uncertainty

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blueberrycongee/semcache/internal/similarity"
)

func TestQuantify_AllEqualMetricsYieldLowUncertainty(t *testing.T) {
	m := similarity.Metrics{Cosine: 0.8, Tree: 0.8, Latent: 0.8, Coherence: 0.8}
	r := Quantify(m)

	assert.InDelta(t, 0, r.Variance, 1e-9)
	assert.InDelta(t, 0, r.Range, 1e-9)
	assert.InDelta(t, 1-r.Uncertainty, r.Confidence, 1e-9)
	assert.LessOrEqual(t, r.Uncertainty, 0.4)
}

func TestQuantify_DivergentMetricsYieldHigherUncertainty(t *testing.T) {
	agree := Quantify(similarity.Metrics{Cosine: 0.9, Tree: 0.9, Latent: 0.9, Coherence: 0.9})
	disagree := Quantify(similarity.Metrics{Cosine: 0.1, Tree: 0.9, Latent: 0.1, Coherence: 0.9})

	assert.Greater(t, disagree.Uncertainty, agree.Uncertainty)
}

func TestQuantify_ContributionSharesSumToOne(t *testing.T) {
	m := similarity.Metrics{Cosine: 0.2, Tree: 0.9, Latent: 0.4, Coherence: 0.6}
	r := Quantify(m)

	total := 0.0
	for _, v := range r.Contribution {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}
