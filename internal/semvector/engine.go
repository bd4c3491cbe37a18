package semvector

import (
	"time"

	"github.com/blueberrycongee/semcache/pkg/embedtable"
)

// Engine composes the per-layer encoders and relation-matrix calculator
// into a single MultiLayerVector (C4).
type Engine struct {
	table embedtable.Table
	opts  RelationOptions
}

// NewEngine creates a vectorization engine backed by table.
func NewEngine(table embedtable.Table, opts RelationOptions) *Engine {
	return &Engine{table: table, opts: opts}
}

// Vectorize tokenizes prompt once and runs it through all five layer
// encoders plus the relation-matrix calculator (C2-C4). The returned
// vector is immutable; callers that need a mutable copy must clone it.
func (e *Engine) Vectorize(prompt string) *MultiLayerVector {
	tokens := Tokenize(prompt)

	layers := make(map[Kind]Vector, len(Kinds))
	for _, k := range Kinds {
		layers[k] = EncodeLayer(e.table, k, tokens)
	}

	return &MultiLayerVector{
		Layers:    layers,
		Relation:  BuildRelationMatrix(layers, tokens, e.opts),
		Timestamp: time.Now(),
	}
}
