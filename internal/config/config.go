// Package config provides the recognized configuration options for the
// semantic cache core (§6), loaded from YAML with hot-reload support —
// adapted from the teacher's config-management shape, trimmed to just the
// options this core recognizes (no CLI flags, env layering, or remote
// fetch; those remain the embedding host's concern).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every recognized option from spec §6, all optional with
// documented defaults.
type Config struct {
	MemoryLimit           float64           `yaml:"memory_limit"`
	LayerDimensions       map[string]int    `yaml:"layer_dimensions"`
	SimilarityLayerWeights map[string]float64 `yaml:"similarity_layer_weights"`
	Thresholds            ThresholdConfig   `yaml:"thresholds"`
	Decision              DecisionConfig    `yaml:"decision"`
	Storage               StorageConfig     `yaml:"storage"`
	Prefetch               PrefetchConfig    `yaml:"prefetch"`
	Promotion              PromotionConfig   `yaml:"promotion"`
	Ensemble               EnsembleConfig    `yaml:"ensemble"`
	ColdOverflow           ColdOverflowConfig `yaml:"cold_overflow"`
	Tracing                TracingConfig      `yaml:"tracing"`
}

// ColdOverflowConfig configures the optional Redis-backed spill target for
// items evicted out of the cold tier entirely (§4.7). Disabled by default:
// without it, a cold-tier eviction simply drops the item, matching the
// spec's memory-only baseline.
type ColdOverflowConfig struct {
	Enable    bool   `yaml:"enable"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures the optional OTLP trace exporter around decide
// calls. Disabled by default, matching the spec's "no required external
// observability" stance.
type TracingConfig struct {
	Enable      bool    `yaml:"enable"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

type ThresholdConfig struct {
	HitCut  float64 `yaml:"hit_cut"`
	DiffCut float64 `yaml:"diff_cut"`
}

type DecisionConfig struct {
	UncertaintyThreshold float64 `yaml:"uncertainty_threshold"`
}

type StorageConfig struct {
	NumShards        int            `yaml:"num_shards"`
	LevelCapacities  map[string]int64 `yaml:"level_capacities"`
}

type PrefetchConfig struct {
	Enable              bool    `yaml:"enable"`
	MaxItems            int     `yaml:"max_items"`
	ProbabilityThreshold float64 `yaml:"probability_threshold"`
}

type PromotionConfig struct {
	Threshold int64 `yaml:"threshold"`
}

type EnsembleConfig struct {
	LearningRate   float64 `yaml:"learning_rate"`
	BatchSize      int     `yaml:"batch_size"`
	Regularization float64 `yaml:"regularization"`
}

// Default returns the spec's documented defaults (§6).
func Default() Config {
	return Config{
		MemoryLimit: 0.92,
		LayerDimensions: map[string]int{
			"subject": 128, "attribute": 96, "style": 64, "composition": 48, "emotion": 32,
		},
		SimilarityLayerWeights: map[string]float64{
			"subject": 0.30, "attribute": 0.25, "style": 0.20, "composition": 0.15, "emotion": 0.10,
		},
		Thresholds: ThresholdConfig{HitCut: 0.85, DiffCut: 0.65},
		Decision:   DecisionConfig{UncertaintyThreshold: 0.3},
		Storage: StorageConfig{
			NumShards: 8,
			LevelCapacities: map[string]int64{
				"L1": 100 * 1 << 20, "L2": 500 * 1 << 20, "L3": 2 * 1 << 30, "cold": 10 * 1 << 30,
			},
		},
		Prefetch:  PrefetchConfig{Enable: true, MaxItems: 5, ProbabilityThreshold: 0.6},
		Promotion: PromotionConfig{Threshold: 10},
		Ensemble:  EnsembleConfig{LearningRate: 0.01, BatchSize: 32, Regularization: 0.01},
		ColdOverflow: ColdOverflowConfig{
			Enable: false, Addr: "localhost:6379", Namespace: "semcache:cold",
		},
		Tracing: TracingConfig{
			Enable: false, Endpoint: "localhost:4317", ServiceName: "semcache", SampleRate: 1.0, Insecure: true,
		},
	}
}

// Load reads YAML config from path over Default(), so fields absent from
// the file keep their default values, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants the spec documents (§3, §6) and
// clamps rather than rejects where the spec calls for clamping.
func (c *Config) Validate() error {
	if c.MemoryLimit <= 0 || c.MemoryLimit > 1 {
		c.MemoryLimit = 0.92
	}
	if c.Decision.UncertaintyThreshold < 0.2 || c.Decision.UncertaintyThreshold > 0.5 {
		c.Decision.UncertaintyThreshold = 0.3
	}
	if c.Thresholds.HitCut < c.Thresholds.DiffCut+0.05 {
		return fmt.Errorf("thresholds.hit_cut must be >= diff_cut + 0.05, got hit_cut=%.2f diff_cut=%.2f",
			c.Thresholds.HitCut, c.Thresholds.DiffCut)
	}
	if c.Storage.NumShards <= 0 {
		c.Storage.NumShards = 8
	}
	if c.Prefetch.MaxItems <= 0 {
		c.Prefetch.MaxItems = 5
	}
	if c.Ensemble.BatchSize <= 0 {
		c.Ensemble.BatchSize = 32
	}
	return nil
}
