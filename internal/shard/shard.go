// Package shard implements semantic sharding (C12): items are routed to
// shards by a sign/hash projection of their subject layer over fixed
// random hyperplanes, and top-k queries fan out only to nearby shards.
package shard

import (
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Options configures the shard manager.
type Options struct {
	NumShards int // default 8
	// HammingCutoff bounds how many hamming bits of routing distance a
	// shard may be from the query and still be searched (default 2).
	HammingCutoff int
}

// DefaultOptions gives the spec's documented defaults (§4.8, §6).
func DefaultOptions() Options {
	return Options{NumShards: 8, HammingCutoff: 2}
}

// Result is one (id, cosine, per-layer score) hit returned by Search.
type Result struct {
	ID         string
	Cosine     float64
	LayerScore map[semvector.Kind]float64
}

// entry is the shard index's lightweight copy of an item: an id and the
// per-layer vectors needed for scoring. The index never owns full items
// (§3 ownership notes).
type entry struct {
	id     string
	layers map[semvector.Kind]semvector.Vector
}

type bucket struct {
	mu      sync.RWMutex
	members map[string]*entry
}

// Manager routes items to shards and answers top-k similarity queries by
// scanning only shards whose routing hash is within HammingCutoff bits of
// the query's (§4.8).
type Manager struct {
	opts       Options
	hyperplanes [][]float64 // one per routing bit, fixed at construction
	buckets    []*bucket
	locations  sync.Map // id -> shard index, for O(1) Remove
}

// bitsFor returns ceil(log2(numShards)) — the routing hash width.
func bitsFor(numShards int) int {
	bits := 0
	for (1 << bits) < numShards {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return bits
}

// New creates a Manager with opts.NumShards buckets and a fixed set of
// random hyperplanes over the subject layer's 128 dims, seeded
// deterministically so routing is stable across process runs given the
// same dimension.
func New(opts Options) *Manager {
	if opts.NumShards <= 0 {
		opts.NumShards = 8
	}
	if opts.HammingCutoff <= 0 {
		opts.HammingCutoff = 2
	}
	bits := bitsFor(opts.NumShards)
	dim := semvector.Dimension(semvector.Subject)

	rng := rand.New(rand.NewSource(42))
	hyperplanes := make([][]float64, bits)
	for i := range hyperplanes {
		plane := make([]float64, dim)
		for j := range plane {
			plane[j] = rng.NormFloat64()
		}
		hyperplanes[i] = plane
	}

	buckets := make([]*bucket, opts.NumShards)
	for i := range buckets {
		buckets[i] = &bucket{members: make(map[string]*entry)}
	}

	return &Manager{opts: opts, hyperplanes: hyperplanes, buckets: buckets}
}

// routingHash projects the subject layer onto each hyperplane and takes
// the sign bits, then reduces modulo the number of shards.
func (m *Manager) routingHash(subject semvector.Vector) int {
	if len(subject) == 0 {
		return 0
	}
	f64 := toFloat64(subject)
	hash := 0
	for i, plane := range m.hyperplanes {
		if floats.Dot(f64, plane[:len(f64)]) >= 0 {
			hash |= 1 << i
		}
	}
	return hash % len(m.buckets)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Insert adds id/vector to the shard its subject layer routes to.
func (m *Manager) Insert(id string, layers map[semvector.Kind]semvector.Vector) {
	idx := m.routingHash(layers[semvector.Subject])
	b := m.buckets[idx]
	b.mu.Lock()
	b.members[id] = &entry{id: id, layers: layers}
	b.mu.Unlock()
	m.locations.Store(id, idx)
}

// Remove deletes id from whichever shard holds it.
func (m *Manager) Remove(id string) {
	v, ok := m.locations.Load(id)
	if !ok {
		return
	}
	idx := v.(int)
	b := m.buckets[idx]
	b.mu.Lock()
	delete(b.members, id)
	b.mu.Unlock()
	m.locations.Delete(id)
}

// SearchOptions bounds a Search call.
type SearchOptions struct {
	TopK int
}

// Search finds the top-k candidates across all shards within
// HammingCutoff bits of the query's routing hash, running a linear cosine
// scan within each eligible shard and merging local top-k lists (§4.8).
// Eligible shards are scanned independently, in parallel — no shared
// mutable state crosses shard boundaries during the scan.
func (m *Manager) Search(query map[semvector.Kind]semvector.Vector, opts SearchOptions) []Result {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	queryIdx := m.routingHash(query[semvector.Subject])
	bits := bitsFor(len(m.buckets))

	var wg sync.WaitGroup
	perShard := make([][]Result, len(m.buckets))

	for i, b := range m.buckets {
		if hammingDistance(i, queryIdx, bits) > m.opts.HammingCutoff {
			continue
		}
		wg.Add(1)
		go func(i int, b *bucket) {
			defer wg.Done()
			perShard[i] = scanBucket(b, query, opts.TopK)
		}(i, b)
	}
	wg.Wait()

	var merged []Result
	for _, r := range perShard {
		merged = append(merged, r...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Cosine > merged[j].Cosine })
	if len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}
	return merged
}

func scanBucket(b *bucket, query map[semvector.Kind]semvector.Vector, topK int) []Result {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]Result, 0, len(b.members))
	for _, e := range b.members {
		layerScores := make(map[semvector.Kind]float64, len(semvector.Kinds))
		total := 0.0
		for _, k := range semvector.Kinds {
			score := cosine(toFloat64(query[k]), toFloat64(e.layers[k]))
			layerScores[k] = score
			total += layerWeight(k) * score
		}
		results = append(results, Result{ID: e.id, Cosine: total, LayerScore: layerScores})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Cosine > results[j].Cosine })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func layerWeight(k semvector.Kind) float64 {
	switch k {
	case semvector.Subject:
		return 0.30
	case semvector.Attribute:
		return 0.25
	case semvector.Style:
		return 0.20
	case semvector.Composition:
		return 0.15
	case semvector.Emotion:
		return 0.10
	default:
		return 0
	}
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(floats.Dot(a, b) / (na * nb))
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

func hammingDistance(a, b, bits int) int {
	x := a ^ b
	count := 0
	for i := 0; i < bits; i++ {
		if x&(1<<i) != 0 {
			count++
		}
	}
	return count
}
