package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig holds the limits that can change at runtime without a
// restart. Everything else requires a redeploy.
type DynamicConfig struct {
	Limits   Limits   `yaml:"limits"`
	Relay    Relay    `yaml:"relay"`
	Metadata Metadata `yaml:"metadata"`
}

// Limits holds runtime-tunable persistence limits.
type Limits struct {
	MaxContentBytes   int           `yaml:"maxContentBytes"`
	SnapshotWindow    time.Duration `yaml:"snapshotWindow"`
	VersionsPageLimit int           `yaml:"versionsPageLimit"`
}

// Relay holds runtime-tunable sync relay settings.
type Relay struct {
	MaxRoomConnections int `yaml:"maxRoomConnections"`
	SendBufferSize     int `yaml:"sendBufferSize"`
}

// Metadata identifies a configuration revision.
type Metadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// Watcher watches a YAML file for runtime configuration changes. Invalid
// updates are rejected and the previous configuration stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	current  *DynamicConfig
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewWatcher loads the initial file and prepares the watcher.
func NewWatcher(configPath string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadDynamicConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	// Watch the directory too; editors and configmap mounts replace the file
	// with a rename.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		logger.Warn("failed to watch config directory", zap.Error(err))
	}

	return &Watcher{
		path:    configPath,
		watcher: watcher,
		current: current,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes.
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	next, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("failed to reload configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = next
	handlers := append([]func(*DynamicConfig){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded",
		zap.String("version", next.Metadata.Version),
		zap.Int("max_content_bytes", next.Limits.MaxContentBytes),
		zap.Duration("snapshot_window", next.Limits.SnapshotWindow),
	)
	for _, handler := range handlers {
		go handler(next)
	}
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(handler func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the active dynamic configuration.
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg DynamicConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := validateDynamicConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Metadata.Version == "" {
		cfg.Metadata.Version = "1"
	}
	cfg.Metadata.UpdatedAt = time.Now()
	return &cfg, nil
}

func validateDynamicConfig(cfg *DynamicConfig) error {
	if cfg.Limits.MaxContentBytes <= 0 {
		return fmt.Errorf("maxContentBytes must be positive")
	}
	if cfg.Limits.SnapshotWindow < 0 {
		return fmt.Errorf("snapshotWindow cannot be negative")
	}
	if cfg.Limits.VersionsPageLimit < 0 {
		return fmt.Errorf("versionsPageLimit cannot be negative")
	}
	if cfg.Relay.SendBufferSize < 0 {
		return fmt.Errorf("sendBufferSize cannot be negative")
	}
	return nil
}
