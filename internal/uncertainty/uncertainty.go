// Package uncertainty implements the uncertainty quantifier (C6): variance,
// range, and entropy over the four similarity metrics, combined into a
// single uncertainty/confidence pair plus per-metric contribution shares.
package uncertainty

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/blueberrycongee/semcache/internal/similarity"
)

// Report is the spec's UncertaintyReport (§3): u in [0,1], the underlying
// statistics, and each metric's share of total deviation from the mean.
type Report struct {
	Uncertainty  float64
	Confidence   float64
	Mean         float64
	Variance     float64
	StdDev       float64
	Range        float64
	Contribution map[string]float64
}

const numBins = 10

// Quantify computes the uncertainty report for m (§4.3).
func Quantify(m similarity.Metrics) Report {
	values := m.AsSlice()
	slice := values[:]

	mean := stat.Mean(slice, nil)
	variance := populationVariance(slice, mean)
	stddev := math.Sqrt(variance)

	lo, hi := slice[0], slice[0]
	for _, v := range slice {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	rng := hi - lo

	entropy := histogramEntropy(slice, numBins)

	u := (math.Min(1, variance*4) + rng + entropy) / 3
	u = clamp01(u)

	names := []string{"cosine", "tree", "latent", "coherence"}
	contribution := make(map[string]float64, 4)
	totalAbsDev := 0.0
	absDevs := make([]float64, len(slice))
	for i, v := range slice {
		absDevs[i] = math.Abs(v - mean)
		totalAbsDev += absDevs[i]
	}
	for i, name := range names {
		if totalAbsDev == 0 {
			contribution[name] = 0
			continue
		}
		contribution[name] = absDevs[i] / totalAbsDev
	}

	return Report{
		Uncertainty:  u,
		Confidence:   1 - u,
		Mean:         mean,
		Variance:     variance,
		StdDev:       stddev,
		Range:        rng,
		Contribution: contribution,
	}
}

func populationVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// histogramEntropy computes the Shannon entropy of a numBins-bin histogram
// of values in [0,1], normalized by log2(numBins) so the result lies in
// [0,1] (§4.3).
func histogramEntropy(values []float64, bins int) float64 {
	counts := make([]int, bins)
	for _, v := range values {
		b := int(v * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
	}

	n := float64(len(values))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(float64(bins))
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
