// Package redisbackend provides an optional Redis-backed store for the
// cold tier (§4.7): items that fall out of L3 can be serialized out to
// Redis instead of dropped outright, giving a deployment a cheap way to
// keep cold items recoverable without the full S3 snapshot machinery.
// Adapted from the host application's Redis cache client
// (caches/redis/redis.go), trimmed to the get/set/delete surface the cold
// tier needs and keyed by item id instead of a request cache key.
package redisbackend

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/semcache/internal/cachemodel"
	"github.com/blueberrycongee/semcache/internal/semvector"
)

// Config configures the Redis client backing the cold tier.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Namespace    string
	DefaultTTL   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig mirrors the host application's Redis cache defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Namespace:    "semcache:cold",
		DefaultTTL:   0, // cold items persist until explicitly evicted
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store is a Redis-backed overflow for the cold tier. It is not a
// storage.Tier replacement — the façade decides when to spill a demoted
// item here instead of dropping it, and when to rehydrate on a miss.
type Store struct {
	client    goredis.UniversalClient
	namespace string
	ttl       time.Duration
}

// New connects to Redis per cfg and verifies connectivity with Ping.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisbackend: ping: %w", err)
	}

	return &Store{client: client, namespace: cfg.Namespace, ttl: cfg.DefaultTTL}, nil
}

// NewWithClient wraps an already-constructed client, used by tests to
// inject a miniredis-backed client.
func NewWithClient(client goredis.UniversalClient, namespace string, ttl time.Duration) *Store {
	return &Store{client: client, namespace: namespace, ttl: ttl}
}

func (s *Store) key(id string) string {
	if s.namespace == "" {
		return id
	}
	return s.namespace + ":" + id
}

// wireItem is the JSON shape an item is spilled to Redis as.
type wireItem struct {
	ID                   string              `json:"id"`
	Vector               []byte              `json:"vector"`
	Payload              []byte              `json:"payload"`
	Metadata             cachemodel.Metadata `json:"metadata"`
	AccessCount          int64               `json:"access_count"`
	LastAccess           time.Time           `json:"last_access"`
	GenerationDifficulty float64             `json:"generation_difficulty"`
}

// Put spills item to Redis under its id.
func (s *Store) Put(ctx context.Context, item *cachemodel.CacheItem) error {
	vecJSON, err := semvector.ToJSON(item.Vector)
	if err != nil {
		return fmt.Errorf("redisbackend: marshal vector: %w", err)
	}
	w := wireItem{
		ID:                   item.ID,
		Vector:               vecJSON,
		Payload:              item.Payload,
		Metadata:             item.Metadata,
		AccessCount:          item.AccessCount,
		LastAccess:           item.LastAccess,
		GenerationDifficulty: item.GenerationDifficulty,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("redisbackend: marshal item: %w", err)
	}
	if err := s.client.Set(ctx, s.key(item.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisbackend: set: %w", err)
	}
	return nil
}

// Get rehydrates an item previously spilled via Put. ok is false on a
// cache miss (no error raised for absence, matching storage.Store.Lookup).
func (s *Store) Get(ctx context.Context, id string) (*cachemodel.CacheItem, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redisbackend: get: %w", err)
	}

	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false, fmt.Errorf("redisbackend: unmarshal item: %w", err)
	}
	vec, err := semvector.FromJSON(w.Vector)
	if err != nil {
		return nil, false, fmt.Errorf("redisbackend: unmarshal vector: %w", err)
	}
	return &cachemodel.CacheItem{
		ID:                   w.ID,
		Vector:               vec,
		Payload:              w.Payload,
		Metadata:             w.Metadata,
		AccessCount:          w.AccessCount,
		LastAccess:           w.LastAccess,
		GenerationDifficulty: w.GenerationDifficulty,
		Tier:                 cachemodel.Cold,
	}, true, nil
}

// Delete removes id from Redis. Idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redisbackend: del: %w", err)
	}
	return nil
}

// Ping checks connectivity, used by the façade's health report.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
