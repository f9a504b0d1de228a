// Package config loads and live-reloads the discovery engine's
// configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the standalone CLI/daemon's own listen behavior,
// where applicable (no HTTP server ships in this module; kept for parity
// with the operator-facing options the teacher exposes).
type ServerConfig struct {
	Environment string `yaml:"environment" json:"environment"`
}

// DatabaseConfig selects and configures the C7 store backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" json:"driver"` // "postgres" | "sqlite"
	DSN          string `yaml:"dsn" json:"dsn"`
	SQLitePath   string `yaml:"sqlite_path" json:"sqlite_path"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
}

// ObservabilityConfig controls metrics/tracing emission.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" json:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr" json:"metrics_addr"`
	TracingEnabled bool   `yaml:"tracing_enabled" json:"tracing_enabled"`
	ServiceName    string `yaml:"service_name" json:"service_name"`
}

// CacheConfig selects and configures the C8 result-cache backend.
type CacheConfig struct {
	Backend   string `yaml:"backend" json:"backend"` // "memory" | "redis"
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	RedisDB   int    `yaml:"redis_db" json:"redis_db"`
	TTLSeconds int   `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// DiscoveryOptions is the closed, explicit field set consumed by C8
// (spec.md §9 Open Question — explicit over implicit defaults).
type DiscoveryOptions struct {
	MaxDepth            int      `yaml:"max_depth" json:"max_depth"`
	ConcurrentWorkers   int      `yaml:"concurrent_workers" json:"concurrent_workers"`
	RateLimitSeconds    float64  `yaml:"rate_limit_seconds" json:"rate_limit_seconds"`
	TimeoutSeconds      int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	RespectRobots       bool     `yaml:"respect_robots" json:"respect_robots"`
	UserAgent           string   `yaml:"user_agent" json:"user_agent"`
	LanguagePreference  string   `yaml:"language_preference" json:"language_preference"`
	CulturalContext     string   `yaml:"cultural_context" json:"cultural_context"`
	SmartScoring        bool     `yaml:"smart_scoring" json:"smart_scoring"`
	ExtractionMethods   []string `yaml:"extraction_methods" json:"extraction_methods"`
	ConfidenceThreshold string   `yaml:"confidence_threshold" json:"confidence_threshold"`
	OCREnabled          bool     `yaml:"ocr_enabled" json:"ocr_enabled"`
	PDFEnabled          bool     `yaml:"pdf_enabled" json:"pdf_enabled"`
	ValidationLevel     string   `yaml:"validation_level" json:"validation_level"`
	ValidationRateLimit float64  `yaml:"validation_rate_limit_seconds" json:"validation_rate_limit_seconds"`
}

// Config is the root configuration object.
type Config struct {
	Server        ServerConfig         `yaml:"server" json:"server"`
	Database      DatabaseConfig       `yaml:"database" json:"database"`
	Observability ObservabilityConfig  `yaml:"observability" json:"observability"`
	Discovery     DiscoveryOptions     `yaml:"discovery" json:"discovery"`
	Cache         CacheConfig          `yaml:"cache" json:"cache"`
	Environment   string               `yaml:"environment" json:"environment"`
}

func defaults() Config {
	return Config{
		Server:      ServerConfig{Environment: "development"},
		Database:    DatabaseConfig{Driver: "sqlite", SQLitePath: "./discovery.db", MaxOpenConns: 20, MaxIdleConns: 5},
		Observability: ObservabilityConfig{MetricsEnabled: true, MetricsAddr: ":9090", ServiceName: "contact-discovery-engine"},
		Cache:       CacheConfig{Backend: "memory", TTLSeconds: 3600},
		Environment: "development",
		Discovery: DiscoveryOptions{
			MaxDepth: 2, ConcurrentWorkers: 5, RateLimitSeconds: 1.0, TimeoutSeconds: 15,
			RespectRobots: true, UserAgent: "ContactDiscoveryBot/1.0", LanguagePreference: "de",
			CulturalContext: "german", SmartScoring: true,
			ExtractionMethods: []string{"email", "phone", "form", "social_media"},
			ConfidenceThreshold: "low", ValidationLevel: "standard", ValidationRateLimit: 2.0,
		},
	}
}

// Load reads .env (if present) via godotenv, then a YAML config file (if
// path is non-empty), then overlays environment variables — mirroring the
// teacher's getEnvAsXxx layering order, but with unknown YAML keys treated
// as a load-time error instead of silently ignored.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISCOVERY_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DISCOVERY_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DISCOVERY_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("DISCOVERY_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Discovery.MaxDepth = n
		}
	}
	if v := os.Getenv("DISCOVERY_RATE_LIMIT_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Discovery.RateLimitSeconds = f
		}
	}
	if v := os.Getenv("DISCOVERY_USER_AGENT"); v != "" {
		cfg.Discovery.UserAgent = v
	}
	if v := os.Getenv("DISCOVERY_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
}

// Watcher live-reloads DiscoveryOptions from a YAML file on change and
// serves the latest options through Current. cmd/discoveryd does not create
// a Watcher, so a running engine keeps the options it was built with.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	current DiscoveryOptions
}

// NewWatcher starts watching path and seeds the current options from cfg.
func NewWatcher(path string, initial DiscoveryOptions, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := fw.Add(path); err != nil {
			fw.Close()
			return nil, err
		}
	}
	w := &Watcher{watcher: fw, path: path, logger: logger, current: initial}
	if path != "" {
		go w.run()
	}
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed", zap.Error(err), zap.String("path", w.path))
				continue
			}
			w.mu.Lock()
			w.current = cfg.Discovery
			w.mu.Unlock()
			w.logger.Info("discovery options reloaded", zap.String("path", w.path))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Current returns the most recently loaded DiscoveryOptions.
func (w *Watcher) Current() DiscoveryOptions {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Close() error { return w.watcher.Close() }
