package semvector

import (
	"time"

	json "github.com/goccy/go-json"
)

// wireVector is the JSON-friendly shape of a MultiLayerVector: map keys
// must be strings for JSON, and the relation matrix is flattened to a
// slice-of-slices since Go's [5][5]float64 marshals fine but a fixed-size
// array is less forgiving to hand-author fixtures against.
type wireVector struct {
	Layers    map[Kind][]float32 `json:"layers"`
	Relation  [][]float64        `json:"relation"`
	Timestamp time.Time          `json:"timestamp"`
}

// ToJSON serializes v losslessly (up to float32 precision) for export or
// snapshotting.
func ToJSON(v *MultiLayerVector) ([]byte, error) {
	w := wireVector{
		Layers:    v.Layers,
		Relation:  make([][]float64, 5),
		Timestamp: v.Timestamp,
	}
	for i := range v.Relation {
		w.Relation[i] = append([]float64(nil), v.Relation[i][:]...)
	}
	return json.Marshal(w)
}

// FromJSON reconstructs a MultiLayerVector previously produced by ToJSON.
func FromJSON(data []byte) (*MultiLayerVector, error) {
	var w wireVector
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	out := &MultiLayerVector{
		Layers:    make(map[Kind]Vector, len(w.Layers)),
		Timestamp: w.Timestamp,
	}
	for k, v := range w.Layers {
		out.Layers[k] = v
	}
	for i := 0; i < 5 && i < len(w.Relation); i++ {
		for j := 0; j < 5 && j < len(w.Relation[i]); j++ {
			out.Relation[i][j] = w.Relation[i][j]
		}
	}
	return out, nil
}
