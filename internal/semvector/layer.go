// Package semvector implements the multi-layer prompt vectorizer (C2-C4):
// five semantic layer encoders and the cross-layer relation matrix they
// feed into a MultiLayerVector.
package semvector

import (
	"regexp"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/blueberrycongee/semcache/pkg/embedtable"
)

// Kind is one of the five fixed semantic layers a prompt is projected into.
type Kind string

const (
	Subject     Kind = "subject"
	Attribute   Kind = "attribute"
	Style       Kind = "style"
	Composition Kind = "composition"
	Emotion     Kind = "emotion"
)

// Kinds lists all layers in a stable order, used anywhere layers are
// iterated deterministically (relation matrix indices, weighted sums).
var Kinds = []Kind{Subject, Attribute, Style, Composition, Emotion}

// Dimension returns the fixed vector width for kind, per spec §3.
func Dimension(kind Kind) int {
	switch kind {
	case Subject:
		return 128
	case Attribute:
		return 96
	case Style:
		return 64
	case Composition:
		return 48
	case Emotion:
		return 32
	default:
		return 0
	}
}

// keywordWeights gives a per-layer table of tokens that matter more than
// the fallback weight of 1.0 when aggregating that layer's vector. A real
// deployment would load this from configuration; a small built-in table
// keeps the core usable standalone.
var keywordWeights = map[Kind]map[string]float64{
	Subject:     {"a": 0.5, "an": 0.5, "the": 0.5},
	Attribute:   {"very": 1.5, "extremely": 1.8},
	Style:       {"style": 1.8, "art": 1.5, "painting": 1.5, "photo": 1.5},
	Composition: {"wide": 1.3, "close-up": 1.3, "angle": 1.3, "shot": 1.2},
	Emotion:     {"happy": 1.5, "sad": 1.5, "dark": 1.3, "bright": 1.3},
}

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases prompt, replaces non-alphanumerics with spaces, and
// splits on whitespace. Shared by every layer encoder so all five see the
// same token stream (§4.1).
func Tokenize(prompt string) []string {
	normalized := nonAlphaNum.ReplaceAllString(strings.ToLower(prompt), " ")
	fields := strings.Fields(normalized)
	return fields
}

func weightFor(kind Kind, token string) float64 {
	if w, ok := keywordWeights[kind][token]; ok {
		return w
	}
	return 1.0
}

// EncodeLayer aggregates the per-token embeddings for kind into a single
// L2-normalized vector. Returns the zero vector when no token in tokens is
// known to table for this layer (§4.1: "nearest-neighbor callers must
// treat cosine as 0 in that case").
func EncodeLayer(table embedtable.Table, kind Kind, tokens []string) []float32 {
	dim := Dimension(kind)
	sum := make([]float64, dim)
	totalWeight := 0.0

	for _, tok := range tokens {
		vec, ok := table.Get(embedtable.Layer(kind), tok)
		if !ok {
			continue
		}
		w := weightFor(kind, tok)
		totalWeight += w
		n := len(vec)
		if n > dim {
			n = dim
		}
		for i := 0; i < n; i++ {
			sum[i] += w * float64(vec[i])
		}
	}

	out := make([]float32, dim)
	if totalWeight == 0 {
		return out // zero vector: no token matched
	}
	for i := range sum {
		out[i] = float32(sum[i] / totalWeight)
	}
	return l2Normalize(out)
}

// l2Normalize returns v scaled to unit L2 norm, or the zero vector
// unchanged (avoids division by zero; cosine against it is defined as 0
// by the caller, never NaN).
func l2Normalize(v []float32) []float32 {
	f64 := make([]float64, len(v))
	for i, x := range v {
		f64[i] = float64(x)
	}
	norm := floats.Norm(f64, 2)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Vector is a single layer's normalized embedding.
type Vector = []float32

// MultiLayerVector is the immutable output of vectorization: five
// normalized layer vectors, the 5x5 cross-layer relation matrix, and the
// timestamp it was produced. Owned thereafter by the cache item that
// carries it (spec §3).
type MultiLayerVector struct {
	Layers    map[Kind]Vector
	Relation  [5][5]float64
	Timestamp time.Time
}

// Layer returns the vector for kind, or nil if this vector predates that
// layer (should not happen in practice; defensive against partial data).
func (m *MultiLayerVector) Layer(kind Kind) Vector {
	return m.Layers[kind]
}

// indexOf maps a Kind to its row/column in the 5x5 relation matrix.
func indexOf(kind Kind) int {
	for i, k := range Kinds {
		if k == kind {
			return i
		}
	}
	return -1
}
