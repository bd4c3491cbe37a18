package semvector

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// momentStats holds the first three standardized moments of a layer
// vector's components, used as a cheap cross-layer similarity proxy since
// layers have different dimensions and direct cosine is undefined (§4.1).
type momentStats struct {
	mean, stddev, skew float64
}

func computeMoments(v []float32) momentStats {
	if len(v) == 0 {
		return momentStats{}
	}
	f64 := make([]float64, len(v))
	for i, x := range v {
		f64[i] = float64(x)
	}
	mean, variance := stat.MeanVariance(f64, nil)
	sd := math.Sqrt(variance)
	skew := 0.0
	if sd > 0 {
		skew = stat.Skew(f64, nil)
	}
	return momentStats{mean: mean, stddev: sd, skew: skew}
}

func similarityFromAbsDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	s := 1 - d
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s
}

// statScalar computes the 0.4/0.4/0.2-weighted similarity of two layers'
// moments, per §4.1.
func statScalar(a, b momentStats) float64 {
	return 0.4*similarityFromAbsDiff(a.mean, b.mean) +
		0.4*similarityFromAbsDiff(a.stddev, b.stddev) +
		0.2*similarityFromAbsDiff(a.skew, b.skew)
}

// RelationOptions controls optional refinements to the relation matrix.
type RelationOptions struct {
	// CooccurrenceWindow, when > 0, blends 20% of a token-window
	// co-occurrence score into the statistical-moment similarity.
	CooccurrenceWindow int
	// Symmetrize averages M[i][j] and M[j][i] after construction.
	Symmetrize bool
}

// DefaultRelationOptions matches the spec's described defaults: a window
// of 5 tokens, with symmetrization applied.
func DefaultRelationOptions() RelationOptions {
	return RelationOptions{CooccurrenceWindow: 5, Symmetrize: true}
}

// BuildRelationMatrix produces the 5x5 cross-layer relation matrix (§4.1).
// layers must be indexed the same way as Kinds. tokens is the shared token
// stream the vectorizer used, needed for the optional co-occurrence blend.
func BuildRelationMatrix(layers map[Kind]Vector, tokens []string, opts RelationOptions) [5][5]float64 {
	var m [5][5]float64
	moments := make(map[Kind]momentStats, len(Kinds))
	for _, k := range Kinds {
		moments[k] = computeMoments(layers[k])
	}

	var cooc [5][5]float64
	if opts.CooccurrenceWindow > 0 {
		cooc = tokenWindowCooccurrence(tokens, opts.CooccurrenceWindow)
	}

	for i, ki := range Kinds {
		m[i][i] = 1.0
		for j, kj := range Kinds {
			if i == j {
				continue
			}
			scalar := statScalar(moments[ki], moments[kj])
			if opts.CooccurrenceWindow > 0 {
				scalar = 0.8*scalar + 0.2*cooc[i][j]
			}
			if scalar < 0 {
				scalar = 0
			}
			if scalar > 1 {
				scalar = 1
			}
			m[i][j] = scalar
		}
	}

	if opts.Symmetrize {
		m = symmetrize(m)
	}
	return m
}

func symmetrize(m [5][5]float64) [5][5]float64 {
	var out [5][5]float64
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i == j {
				out[i][j] = 1.0
				continue
			}
			out[i][j] = (m[i][j] + m[j][i]) / 2
		}
	}
	return out
}

// tokenWindowCooccurrence produces a pseudo cross-layer score from how
// often tokens appear within the same sliding window, used as a proxy for
// "these layers are talking about the same part of the prompt". Since
// layers don't carry their own token subsets in this implementation, the
// co-occurrence signal here measures self-consistency of the token stream
// and contributes identically to every off-diagonal cell pair sharing a
// window; it is a deliberately small (20%) blend per §4.1.
func tokenWindowCooccurrence(tokens []string, window int) [5][5]float64 {
	var out [5][5]float64
	if len(tokens) < 2 {
		return out
	}
	pairs := 0
	for i := range tokens {
		end := i + window
		if end > len(tokens) {
			end = len(tokens)
		}
		pairs += end - i - 1
	}
	density := 0.0
	if len(tokens) > 1 {
		density = float64(pairs) / float64(len(tokens)*window)
	}
	if density > 1 {
		density = 1
	}
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i != j {
				out[i][j] = density
			}
		}
	}
	return out
}
