// Package config loads the bridge's tunables from a YAML file with
// environment-variable overrides, and can watch the file for changes.
//
// Defaults mirror the constants spec.md's "Open questions" flag as
// hard-coded in the original source; this rewrite exposes them as
// configuration, as the spec's design notes recommend.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime-tunable constant of the LRM bridge.
type Config struct {
	// ReloadRequeryThreshold is how long a negative reload-capability
	// result is cached before a start action re-queries the agent's
	// meta-data (§4.2). Default 9s.
	ReloadRequeryThreshold time.Duration `yaml:"reload_requery_threshold"`

	// ReconnectMaxAttempts bounds retries on the initial executor
	// connection before raising an FSM error (§4.8). Default 30.
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`

	// ReconnectBaseDelay is the initial backoff delay between
	// reconnect attempts.
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`

	// StartDelayAckThreshold: an operation whose start-delay
	// exceeds this is direct-acked immediately rather than stalling
	// the transition (§4.6 step 7). Default 5m.
	StartDelayAckThreshold time.Duration `yaml:"start_delay_ack_threshold"`

	// CIBUpdateCallbackTimeout bounds how long the bridge waits
	// before logging a CIB update as failed-to-land (§4.7 step 3).
	// Default 60s.
	CIBUpdateCallbackTimeout time.Duration `yaml:"cib_update_callback_timeout"`

	// FeatureSetReloadThreshold is the minimum DC peer feature-set
	// version that is considered "reload aware" (§4.5).
	FeatureSetReloadThreshold string `yaml:"feature_set_reload_threshold"`

	// LogLevel controls the structured logger's verbosity.
	LogLevel string `yaml:"log_level"`
}

// Default returns the bridge's default configuration.
func Default() *Config {
	return &Config{
		ReloadRequeryThreshold:    9 * time.Second,
		ReconnectMaxAttempts:      30,
		ReconnectBaseDelay:        500 * time.Millisecond,
		StartDelayAckThreshold:    5 * time.Minute,
		CIBUpdateCallbackTimeout:  60 * time.Second,
		FeatureSetReloadThreshold: "3.0.9",
		LogLevel:                 "info",
	}
}

// Load reads path (if non-empty and present) and layers LRMBRIDGE_*
// environment overrides on top of it, starting from Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LRMBRIDGE_RELOAD_REQUERY_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReloadRequeryThreshold = d
		}
	}
	if v := os.Getenv("LRMBRIDGE_RECONNECT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReconnectMaxAttempts = n
		}
	}
	if v := os.Getenv("LRMBRIDGE_RECONNECT_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconnectBaseDelay = d
		}
	}
	if v := os.Getenv("LRMBRIDGE_START_DELAY_ACK_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StartDelayAckThreshold = d
		}
	}
	if v := os.Getenv("LRMBRIDGE_CIB_UPDATE_CALLBACK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CIBUpdateCallbackTimeout = d
		}
	}
	if v := os.Getenv("LRMBRIDGE_FEATURE_SET_RELOAD_THRESHOLD"); v != "" {
		cfg.FeatureSetReloadThreshold = v
	}
	if v := os.Getenv("LRMBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Watcher reloads Config from disk whenever the backing file changes
// and publishes the new value to subscribers.
type Watcher struct {
	path string
	mu   sync.RWMutex
	cur  *Config
	fw   *fsnotify.Watcher
	subs []func(*Config)
}

// NewWatcher loads path once and arms an fsnotify watch on it. If path
// is empty, the watcher holds the default configuration and never fires.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, cur: cfg}
	if path == "" {
		return w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w.fw = fw
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// OnChange registers fn to be called with the new configuration
// whenever the watched file changes and reloads successfully.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Close stops the underlying fsnotify watch, if any.
func (w *Watcher) Close() error {
	if w.fw == nil {
		return nil
	}
	return w.fw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				continue
			}
			w.mu.Lock()
			w.cur = cfg
			subs := append([]func(*Config){}, w.subs...)
			w.mu.Unlock()
			for _, fn := range subs {
				fn(cfg)
			}
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}
