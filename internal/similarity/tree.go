package similarity

import (
	"math"

	"github.com/agnivade/levenshtein"

	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Tree discretizes each layer vector into 10-bin bytes, Levenshtein-edits
// the resulting byte strings, and weight-sums 1 - edit/max_len across
// layers (§4.2).
func Tree(a, b *semvector.MultiLayerVector) float64 {
	return weightedSum(func(k semvector.Kind) float64 {
		return treeLayer(a.Layer(k), b.Layer(k))
	})
}

func treeLayer(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sa := discretize(a)
	sb := discretize(b)
	maxLen := len(sa)
	if len(sb) > maxLen {
		maxLen = len(sb)
	}
	if maxLen == 0 {
		return 0
	}
	edit := levenshtein.ComputeDistance(sa, sb)
	score := 1 - float64(edit)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// discretize maps each component into one of 10 bins via
// min(9, floor(v*10)) and renders the bin sequence as a byte string so it
// can be edit-distanced.
func discretize(v []float32) string {
	buf := make([]byte, len(v))
	for i, x := range v {
		bin := int(math.Floor(float64(x) * 10))
		if bin > 9 {
			bin = 9
		}
		if bin < 0 {
			bin = 0
		}
		buf[i] = byte('0' + bin)
	}
	return string(buf)
}
