// Package ensemble implements the weighted-linear-plus-sigmoid similarity
// predictor (C7) and its online minibatch SGD trainer.
package ensemble

import (
	"math"
	"math/rand"
	"sync"

	"github.com/blueberrycongee/semcache/internal/similarity"
)

// Parameters are the spec's EnsembleParameters (§3): four non-negative
// weights summing to 1, a bias, and an L2 regularization coefficient.
type Parameters struct {
	Weights [4]float64 // cosine, tree, latent, coherence
	Bias    float64
	L2      float64
}

// DefaultParameters gives an even starting split across the four metrics.
func DefaultParameters() Parameters {
	return Parameters{
		Weights: [4]float64{0.25, 0.25, 0.25, 0.25},
		Bias:    0,
		L2:      0.01,
	}
}

// Sample is one labelled training example: the four similarity metrics and
// the ground-truth label in [0,1] (usually 1.0/0.0 from explicit feedback).
type Sample struct {
	Metrics     similarity.Metrics
	GroundTruth float64
}

const (
	maxSamples       = 1000
	defaultBatchSize = 32
	defaultLR        = 0.01
)

// Model predicts similarity via a sigmoid of a weighted linear combination
// of the four metrics, and refines its weights from labelled feedback via
// online minibatch SGD (§4.4). Safe for concurrent use: readers take a
// snapshot of the current parameters, writers publish a new Parameters
// value atomically under a lock (per the "parameter hot-swap" design
// note — optimize() never exposes a partially updated state).
type Model struct {
	mu     sync.RWMutex
	params Parameters

	sampleMu sync.Mutex
	samples  []Sample

	learningRate float64
	batchSize    int
	rng          *rand.Rand
}

// NewModel creates a model with the given starting parameters.
func NewModel(params Parameters) *Model {
	return &Model{
		params:       params,
		learningRate: defaultLR,
		batchSize:    defaultBatchSize,
		rng:          rand.New(rand.NewSource(1)),
	}
}

// WithLearningRate overrides the default learning rate (0.01).
func (m *Model) WithLearningRate(lr float64) *Model {
	m.learningRate = lr
	return m
}

// WithBatchSize overrides the default minibatch size (32).
func (m *Model) WithBatchSize(n int) *Model {
	m.batchSize = n
	return m
}

// Parameters returns a copy of the current parameters.
func (m *Model) Parameters() Parameters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// SetParameters atomically republishes params, e.g. when restoring a
// snapshot exported by an earlier process.
func (m *Model) SetParameters(params Parameters) {
	m.mu.Lock()
	m.params = params
	m.mu.Unlock()
}

// Predict returns sigmoid(sum(w_i * metric_i) + bias) for the weights
// normalized to sum to 1 (§4.4).
func (m *Model) Predict(metrics similarity.Metrics) float64 {
	p := m.Parameters()
	return predict(p, metrics.AsSlice())
}

func predict(p Parameters, values [4]float64) float64 {
	w := normalizeWeights(p.Weights)
	z := p.Bias
	for i, wi := range w {
		z += wi * values[i]
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func normalizeWeights(w [4]float64) [4]float64 {
	sum := 0.0
	for _, x := range w {
		sum += x
	}
	if sum == 0 {
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	var out [4]float64
	for i, x := range w {
		out[i] = x / sum
	}
	return out
}

// Observe appends a labelled sample to the bounded training buffer,
// dropping the oldest entry on overflow (spec §5: bounded queues of 1000).
func (m *Model) Observe(s Sample) {
	m.sampleMu.Lock()
	defer m.sampleMu.Unlock()
	m.samples = append(m.samples, s)
	if len(m.samples) > maxSamples {
		m.samples = m.samples[len(m.samples)-maxSamples:]
	}
}

// Optimize runs one minibatch SGD step over the last <=1000 samples and
// atomically publishes the updated parameters. Idempotent and safe to run
// concurrently with Predict/Observe (§5).
func (m *Model) Optimize() {
	batch := m.sampleBatch()
	if len(batch) == 0 {
		return
	}

	current := m.Parameters()
	w := normalizeWeights(current.Weights)

	var gradW [4]float64
	gradB := 0.0

	for _, s := range batch {
		values := s.Metrics.AsSlice()
		yhat := predict(current, values)
		errTerm := yhat - s.GroundTruth
		delta := errTerm * yhat * (1 - yhat)
		for i, v := range values {
			gradW[i] += delta * v
		}
		gradB += delta
	}

	n := float64(len(batch))
	for i := range gradW {
		gradW[i] = gradW[i]/n + current.L2*w[i]
	}
	gradB /= n

	var newW [4]float64
	for i := range w {
		newW[i] = w[i] - m.learningRate*gradW[i]
		if newW[i] < 0 {
			newW[i] = 0
		}
	}
	newW = normalizeWeights(newW)
	newBias := current.Bias - m.learningRate*gradB

	updated := Parameters{Weights: newW, Bias: newBias, L2: current.L2}

	m.mu.Lock()
	m.params = updated
	m.mu.Unlock()
}

func (m *Model) sampleBatch() []Sample {
	m.sampleMu.Lock()
	defer m.sampleMu.Unlock()

	n := len(m.samples)
	if n == 0 {
		return nil
	}
	size := m.batchSize
	if size > n {
		size = n
	}
	idx := m.rng.Perm(n)[:size]
	batch := make([]Sample, size)
	for i, j := range idx {
		batch[i] = m.samples[j]
	}
	return batch
}

// Evaluate computes MSE and an accuracy defined as the fraction of samples
// with |yhat-y| < 0.1, over the samples currently buffered (§4.4).
func (m *Model) Evaluate() (mse, accuracy float64) {
	m.sampleMu.Lock()
	samples := append([]Sample(nil), m.samples...)
	m.sampleMu.Unlock()

	if len(samples) == 0 {
		return 0, 0
	}

	params := m.Parameters()
	correct := 0
	sqErrSum := 0.0
	for _, s := range samples {
		yhat := predict(params, s.Metrics.AsSlice())
		diff := yhat - s.GroundTruth
		sqErrSum += diff * diff
		if math.Abs(diff) < 0.1 {
			correct++
		}
	}
	n := float64(len(samples))
	return sqErrSum / n, float64(correct) / n
}
