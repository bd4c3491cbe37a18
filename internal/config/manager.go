package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/semcache/internal/observability"
)

// Manager handles configuration loading and file-watch hot-reload. It
// uses an atomic pointer swap so a reload never exposes a torn Config to
// a concurrent reader (§7: "a requested tier is missing" and other
// config anomalies are logged, never fatal; this is the mechanism that
// keeps in-flight readers safe while that happens).
type Manager struct {
	config      atomic.Pointer[Config]
	path        string
	watcher     *fsnotify.Watcher
	onChange    []func(*Config)
	logger      *observability.Logger
	checksum    atomic.Value
	loadedAt    atomic.Value
	reloadCount atomic.Uint64
}

// NewManager loads path once and wraps it in a Manager. logger defaults
// to a no-op logger when nil.
func NewManager(path string, logger *observability.Logger) (*Manager, error) {
	if logger == nil {
		logger = observability.Noop()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{path: path, logger: logger}
	if err := m.storeConfig(&cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the current configuration. Safe to call concurrently from
// multiple goroutines; never observes a partially written Config.
func (m *Manager) Get() *Config {
	return m.config.Load()
}

// OnChange registers a callback invoked, in registration order, after
// every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.onChange = append(m.onChange, fn)
}

// Status contains the active configuration's reload metadata.
type Status struct {
	Path        string    `json:"path"`
	Checksum    string    `json:"checksum"`
	LoadedAt    time.Time `json:"loaded_at"`
	ReloadCount uint64    `json:"reload_count"`
}

// Status returns metadata about the active configuration.
func (m *Manager) Status() Status {
	status := Status{Path: m.path, ReloadCount: m.reloadCount.Load()}
	if v, ok := m.checksum.Load().(string); ok {
		status.Checksum = v
	}
	if v, ok := m.loadedAt.Load().(time.Time); ok {
		status.LoadedAt = v
	}
	return status
}

const debounceDelay = 500 * time.Millisecond

// Watch starts watching the config file for writes and debounces rapid
// changes before reloading. Stops when ctx is canceled.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return err
	}

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := m.Reload(); err != nil {
						m.logger.Error("failed to reload config, keeping current", "error", err, "path", m.path)
					}
				})
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)
		}
	}
}

// Reload re-reads the config file and, on success, atomically publishes
// it and notifies every OnChange listener.
func (m *Manager) Reload() error {
	cfg, err := Load(m.path)
	if err != nil {
		return err
	}
	if err := m.storeConfig(&cfg); err != nil {
		return err
	}
	m.logger.Info("configuration reloaded", "path", m.path, "reload_count", m.reloadCount.Load())
	for _, fn := range m.onChange {
		fn(&cfg)
	}
	return nil
}

// Close stops the file watcher, when one is running.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

func (m *Manager) storeConfig(cfg *Config) error {
	checksum, err := configChecksum(cfg)
	if err != nil {
		return err
	}
	m.config.Store(cfg)
	m.checksum.Store(checksum)
	m.loadedAt.Store(time.Now().UTC())
	m.reloadCount.Add(1)
	return nil
}

func configChecksum(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
