package semvector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blueberrycongee/semcache/pkg/embedtable"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("A Cat, on the WINDOWSILL!!")
	assert.Equal(t, []string{"a", "cat", "on", "the", "windowsill"}, got)
}

func TestEncodeLayer_NoMatchReturnsZeroVector(t *testing.T) {
	table := embedtable.NewInMemory()
	out := EncodeLayer(table, Subject, []string{"unknown", "tokens"})
	assert.Len(t, out, Dimension(Subject))
	for _, x := range out {
		assert.Zero(t, x)
	}
}

func TestEncodeLayer_L2Normalized(t *testing.T) {
	table := embedtable.NewInMemory()
	table.Put(embedtable.Layer(Subject), "cat", vecOf(Dimension(Subject), 1, 2, 3))
	table.Put(embedtable.Layer(Subject), "dog", vecOf(Dimension(Subject), 4, 5, 6))

	out := EncodeLayer(table, Subject, []string{"cat", "dog"})

	var sumSq float64
	for _, x := range out {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-6)
}

func vecOf(dim int, first ...float32) []float32 {
	out := make([]float32, dim)
	copy(out, first)
	return out
}
