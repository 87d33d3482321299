// Package config loads the daemon's settings: a viper.Viper instance
// bound to a YAML file plus environment overrides, with an fsnotify
// watcher that re-parses on write. It is ambient plumbing rather than
// an engine responsibility — cmd/memoryd is the only caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/memoryd/engine/internal/cache"
	"github.com/memoryd/engine/internal/effectiveness"
	"github.com/memoryd/engine/internal/engine"
	"github.com/memoryd/engine/internal/extraction"
	"github.com/memoryd/engine/internal/telemetry"
)

// Config is the daemon's top-level settings document, unmarshaled
// from YAML keys named by the mapstructure tags below: storage.dsn,
// engine.quality_threshold, engine.cache_capacity_per_family, and so
// on.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig configures the durable backend's connection pool. Busy
// timeout is not a field here: internal/storage.SQLiteConnString reads
// it straight from the MEMORYD_LOCK_TIMEOUT environment variable.
type StorageConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	PreparedLRUSize int    `mapstructure:"prepared_lru_size"`
}

// EngineConfig configures the in-process engine: quality gate,
// cache, effectiveness decay, and async extraction queue depth.
type EngineConfig struct {
	QualityThreshold    float64 `mapstructure:"quality_threshold"`
	CacheCapacity       int     `mapstructure:"cache_capacity_per_family"`
	DecayIntervalDays   int     `mapstructure:"decay_interval_days"`
	MinEffectiveness    float64 `mapstructure:"min_effectiveness"`
	ExtractionQueueSize int     `mapstructure:"extraction_queue_size"`
	ExtractionWorkers   int     `mapstructure:"extraction_workers"`
}

// LogConfig configures internal/telemetry's logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures internal/telemetry's meter provider.
type MetricsConfig struct {
	StdoutExport bool `mapstructure:"stdout_export"`
}

// Default returns the baseline configuration used when no file is
// present, mirroring each component's own DefaultConfig().
func Default() Config {
	ecache := cache.DefaultConfig()
	eeff := effectiveness.DefaultConfig()
	equeue := extraction.DefaultConfig()
	return Config{
		Storage: StorageConfig{
			DSN:             "memoryd.db",
			MaxOpenConns:    8,
			PreparedLRUSize: 128,
		},
		Engine: EngineConfig{
			QualityThreshold:    engine.DefaultConfig().QualityThreshold,
			CacheCapacity:       ecache.CapacityPerFamily,
			DecayIntervalDays:   eeff.DecayIntervalDays,
			MinEffectiveness:    eeff.MinEffectiveness,
			ExtractionQueueSize: equeue.MaxQueueSize,
			ExtractionWorkers:   equeue.WorkerCount,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Loader wraps a viper.Viper bound to a YAML config file, with an
// optional fsnotify watch loop that calls back on change: an ad hoc
// `viper.New()` + `SetConfigFile`/`SetConfigType("yaml")` read, and a
// fsnotify.NewWatcher loop for reacting to file writes.
type Loader struct {
	v    *viper.Viper
	path string

	mu  sync.RWMutex
	cur Config
}

// NewLoader builds a Loader over path, applying env overrides under
// the MEMORYD_ prefix to keys the file sets (MEMORYD_STORAGE_DSN
// overrides storage.dsn).
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("memoryd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{v: v, path: path, cur: Default()}
	return l
}

// Load reads path, merging onto the defaults. A missing file is not
// an error: Load returns Default() and makes it the loader's current
// configuration rather than failing startup over an absent file.
func (l *Loader) Load() (Config, error) {
	cfg := Default()
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			l.mu.Lock()
			l.cur = cfg
			l.mu.Unlock()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", l.path, err)
	}
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.cur = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Watch starts an fsnotify watcher on the config file's directory and
// calls onChange with the freshly reloaded Config every time the file
// is written, debounced by 100ms to absorb editors that write in
// multiple syscalls. It runs until stop is closed.
func (l *Loader) Watch(onChange func(Config), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(l.path) || !event.Has(fsnotify.Write) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					if cfg, err := l.Load(); err == nil {
						onChange(cfg)
					}
				})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
