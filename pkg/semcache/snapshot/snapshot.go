// Package snapshot serializes cache state — items plus the ensemble and
// threshold learned parameters — for durability across process restarts,
// an explicit exception to the core's "no durability guarantees" Non-goal
// (§1): the core itself stays in-memory-only, but a host that wants
// warm-start durability can opt into plain-io or S3-backed snapshots.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/ensemble"
	"github.com/blueberrycongee/semcache/internal/semvector"
	"github.com/blueberrycongee/semcache/internal/threshold"
)

// Payload is the full exported state of a cache.
type Payload struct {
	Items     []ItemWire          `json:"items"`
	Ensemble  ensemble.Parameters `json:"ensemble"`
	Threshold threshold.Pair      `json:"threshold"`
	ExportedAt time.Time          `json:"exported_at"`
}

// ItemWire is the JSON-friendly shape of a CacheItem: the vector is
// flattened through semvector's lossless wire format.
type ItemWire struct {
	ID                   string             `json:"id"`
	Vector               []byte             `json:"vector"` // semvector.ToJSON output, nested
	Payload              []byte             `json:"payload"`
	Metadata             cachemodel.Metadata `json:"metadata"`
	AccessCount          int64              `json:"access_count"`
	LastAccess           time.Time          `json:"last_access"`
	GenerationDifficulty float64            `json:"generation_difficulty"`
	Tier                 cachemodel.Tier    `json:"tier"`
}

// ToPayload converts live items and component parameters into the
// serializable shape.
func ToPayload(items []*cachemodel.CacheItem, params ensemble.Parameters, pair threshold.Pair, now time.Time) (Payload, error) {
	wire := make([]ItemWire, 0, len(items))
	for _, item := range items {
		vecJSON, err := semvector.ToJSON(item.Vector)
		if err != nil {
			return Payload{}, fmt.Errorf("snapshot: marshal vector for item %s: %w", item.ID, err)
		}
		wire = append(wire, ItemWire{
			ID:                   item.ID,
			Vector:               vecJSON,
			Payload:              item.Payload,
			Metadata:             item.Metadata,
			AccessCount:          item.AccessCount,
			LastAccess:           item.LastAccess,
			GenerationDifficulty: item.GenerationDifficulty,
			Tier:                 item.Tier,
		})
	}
	return Payload{Items: wire, Ensemble: params, Threshold: pair, ExportedAt: now}, nil
}

// Items reconstructs live CacheItems from a Payload.
func (p Payload) Items() ([]*cachemodel.CacheItem, error) {
	out := make([]*cachemodel.CacheItem, 0, len(p.Items))
	for _, w := range p.Items {
		vec, err := semvector.FromJSON(w.Vector)
		if err != nil {
			return nil, fmt.Errorf("snapshot: unmarshal vector for item %s: %w", w.ID, err)
		}
		out = append(out, &cachemodel.CacheItem{
			ID:                   w.ID,
			Vector:               vec,
			Payload:              w.Payload,
			Metadata:             w.Metadata,
			AccessCount:          w.AccessCount,
			LastAccess:           w.LastAccess,
			GenerationDifficulty: w.GenerationDifficulty,
			Tier:                 w.Tier,
		})
	}
	return out, nil
}

// Write serializes payload to w as JSON.
func Write(w io.Writer, payload Payload) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

// Read deserializes a Payload previously produced by Write.
func Read(r io.Reader) (Payload, error) {
	var payload Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return Payload{}, fmt.Errorf("snapshot: decode payload: %w", err)
	}
	return payload, nil
}

// Bytes serializes payload to an in-memory buffer, convenient for the S3
// store below which needs an io.Reader plus a known length.
func Bytes(payload Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
