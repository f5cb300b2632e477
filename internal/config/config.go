// Package config provides configuration management for golfctl and char-golfd.
// Configuration is loaded from YAML files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Version is the current config schema version.
const Version = "1"

// Engine names, re-exported for config files and flags.
const (
	EngineTruncate = backend.EngineTruncate
	EngineGolf     = backend.EngineGolf
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Default file paths.
const (
	GlobalConfigDir   = ".config/golf"
	GlobalConfigFile  = "config.yaml"
	ProjectConfigFile = ".golf.yaml"
)

// Default values.
const (
	DefaultEngine       = EngineTruncate
	DefaultMode         = shorten.NameWithPunctuation
	DefaultListen       = ":8080"
	DefaultHealthListen = ":8081"
	DefaultReadTimeout  = "15s"
	DefaultWriteTimeout = "15s"
	DefaultMaxBodyBytes = 1 << 20
	DefaultCacheTTL     = "1h"
	DefaultCacheDir     = ".golf-cache"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = LogFormatJSON
)

// Environment variable names.
const (
	EnvBudget       = "GOLF_BUDGET"
	EnvMinLength    = "GOLF_MIN_LENGTH"
	EnvMode         = "GOLF_MODE"
	EnvEngine       = "GOLF_ENGINE"
	EnvMatchCase    = "GOLF_MATCH_CASE"
	EnvListen       = "GOLF_LISTEN"
	EnvHealthListen = "GOLF_HEALTH_LISTEN"
	EnvCacheTTL     = "GOLF_CACHE_TTL"
	EnvCacheDir     = "GOLF_CACHE_DIR"
	EnvCacheEnabled = "GOLF_CACHE_ENABLED"
	EnvLogLevel     = "GOLF_LOG_LEVEL"
	EnvLogFormat    = "GOLF_LOG_FORMAT"
	EnvServer       = "GOLF_SERVER"
)

// Config represents the complete configuration.
type Config struct {
	Version string        `yaml:"version" json:"version"`
	Shorten ShortenConfig `yaml:"shorten" json:"shorten"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// ShortenConfig holds engine settings.
type ShortenConfig struct {
	Budget    int    `yaml:"budget" json:"budget"`
	MinLength int    `yaml:"min_length" json:"min_length"`
	Mode      string `yaml:"mode" json:"mode"`
	Engine    string `yaml:"engine" json:"engine"`
	// MatchCase restricts the golf engine to case-preserving compositions.
	MatchCase bool `yaml:"match_case" json:"match_case"`
}

// ServerConfig holds daemon settings. URL is the daemon the CLI talks to
// when set; empty means shorten locally.
type ServerConfig struct {
	Listen       string `yaml:"listen" json:"listen"`
	HealthListen string `yaml:"health_listen" json:"health_listen"`
	ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" json:"max_body_bytes"`
	URL          string `yaml:"url" json:"url"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	TTL     string `yaml:"ttl" json:"ttl"`
	Dir     string `yaml:"dir" json:"dir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidEngine = errors.New("invalid engine: must be 'truncate' or 'golf'")
	ErrInvalidMode   = shorten.ErrInvalidMode
)

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version: Version,
		Shorten: ShortenConfig{
			Budget:    shorten.DefaultBudget,
			MinLength: shorten.DefaultMinLength,
			Mode:      DefaultMode,
			Engine:    DefaultEngine,
		},
		Server: ServerConfig{
			Listen:       DefaultListen,
			HealthListen: DefaultHealthListen,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DefaultCacheTTL,
			Dir:     DefaultCacheDir,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadOptions configures config loading behavior.
type LoadOptions struct {
	// ExplicitPath overrides config discovery (--config flag).
	ExplicitPath string
	// SkipGlobal skips loading global config (~/.config/golf/config.yaml).
	SkipGlobal bool
	// SkipProject skips loading project config (.golf.yaml).
	SkipProject bool
	// SkipEnv skips environment variable overrides.
	SkipEnv bool
}

// Load loads configuration with the following precedence (highest to lowest):
// 1. Environment variables
// 2. Project config (.golf.yaml, searched up to the git root)
// 3. Global config (~/.config/golf/config.yaml)
// 4. Built-in defaults
//
// If ExplicitPath is set, it replaces both global and project configs.
func Load(opts LoadOptions) (*Config, error) {
	cfg := New()

	if !opts.SkipGlobal && opts.ExplicitPath == "" {
		globalPath, err := globalConfigPath()
		if err == nil {
			if loadErr := loadFile(cfg, globalPath); loadErr != nil && !os.IsNotExist(loadErr) {
				return nil, fmt.Errorf("load global config: %w", loadErr)
			}
		}
	}

	if !opts.SkipProject && opts.ExplicitPath == "" {
		projectPath, err := discoverProjectConfig()
		if err == nil {
			if loadErr := loadFile(cfg, projectPath); loadErr != nil && !os.IsNotExist(loadErr) {
				return nil, fmt.Errorf("load project config: %w", loadErr)
			}
		}
	}

	if opts.ExplicitPath != "" {
		if err := loadFile(cfg, opts.ExplicitPath); err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.ExplicitPath, err)
		}
	}

	if !opts.SkipEnv {
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile reads and unmarshals a YAML config file into cfg.
// Fields not present in the file retain their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Config path from trusted source
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), nil
}

// discoverProjectConfig walks up from CWD looking for .golf.yaml.
// Stops at git root or filesystem root.
func discoverProjectConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// applyEnvOverrides applies environment variable overrides to config.
// Malformed numbers and booleans are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvBudget); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvBudget, v, err)
		}
		cfg.Shorten.Budget = n
	}
	if v := os.Getenv(EnvMinLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvMinLength, v, err)
		}
		cfg.Shorten.MinLength = n
	}
	if v := os.Getenv(EnvMode); v != "" {
		cfg.Shorten.Mode = strings.ToLower(v)
	}
	if v := os.Getenv(EnvEngine); v != "" {
		cfg.Shorten.Engine = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMatchCase); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvMatchCase, v, err)
		}
		cfg.Shorten.MatchCase = b
	}

	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv(EnvHealthListen); v != "" {
		cfg.Server.HealthListen = v
	}
	if v := os.Getenv(EnvServer); v != "" {
		cfg.Server.URL = v
	}

	if v := os.Getenv(EnvCacheTTL); v != "" {
		cfg.Cache.TTL = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv(EnvCacheEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvCacheEnabled, v, err)
		}
		cfg.Cache.Enabled = b
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}

	return nil
}

// CLIOverrides contains values from CLI flags that override config.
// Zero values are not applied; MatchCase is only applied when true.
type CLIOverrides struct {
	Budget    int
	MinLength *int
	Mode      string
	Engine    string
	MatchCase bool
	Server    string
}

// ApplyCLIOverrides applies CLI flag values to config (highest priority).
func (cfg *Config) ApplyCLIOverrides(o CLIOverrides) {
	if o.Budget != 0 {
		cfg.Shorten.Budget = o.Budget
	}
	if o.MinLength != nil {
		cfg.Shorten.MinLength = *o.MinLength
	}
	if o.Mode != "" {
		cfg.Shorten.Mode = strings.ToLower(o.Mode)
	}
	if o.Engine != "" {
		cfg.Shorten.Engine = strings.ToLower(o.Engine)
	}
	if o.MatchCase {
		cfg.Shorten.MatchCase = true
	}
	if o.Server != "" {
		cfg.Server.URL = o.Server
	}
}

// Validate checks the configuration for errors.
func (cfg *Config) Validate() error {
	if cfg.Shorten.Budget < 1 {
		return fmt.Errorf("%w: shorten.budget must be at least 1, got %d", ErrInvalidConfig, cfg.Shorten.Budget)
	}
	if cfg.Shorten.MinLength < 0 {
		return fmt.Errorf("%w: shorten.min_length must not be negative, got %d", ErrInvalidConfig, cfg.Shorten.MinLength)
	}
	if cfg.Shorten.MinLength > cfg.Shorten.Budget {
		return fmt.Errorf("%w: shorten.min_length %d exceeds budget %d",
			ErrInvalidConfig, cfg.Shorten.MinLength, cfg.Shorten.Budget)
	}
	if _, err := shorten.ParseMode(cfg.Shorten.Mode); err != nil {
		return err
	}
	switch cfg.Shorten.Engine {
	case EngineTruncate, EngineGolf:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidEngine, cfg.Shorten.Engine)
	}

	for name, v := range map[string]string{
		"server.read_timeout":  cfg.Server.ReadTimeout,
		"server.write_timeout": cfg.Server.WriteTimeout,
		"cache.ttl":            cfg.Cache.TTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%w: invalid %s %q: %w", ErrInvalidConfig, name, v, err)
		}
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: server.max_body_bytes must be positive", ErrInvalidConfig)
	}

	switch cfg.Log.Format {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("%w: log.format must be 'json' or 'console', got %q", ErrInvalidConfig, cfg.Log.Format)
	}

	return nil
}

// ShortenMode returns the configured mode. Call Validate first; an
// unparseable mode falls back to WithPunctuation.
func (cfg *Config) ShortenMode() shorten.Mode {
	m, err := shorten.ParseMode(cfg.Shorten.Mode)
	if err != nil {
		return shorten.WithPunctuation
	}
	return m
}

// Shortener returns a truncation shortener for the configured budget.
func (cfg *Config) Shortener() shorten.Shortener {
	return shorten.New(cfg.Shorten.Budget, cfg.Shorten.MinLength)
}

var (
	defaultCacheTTLDuration     = mustParseDuration(DefaultCacheTTL)
	defaultReadTimeoutDuration  = mustParseDuration(DefaultReadTimeout)
	defaultWriteTimeoutDuration = mustParseDuration(DefaultWriteTimeout)
)

func mustParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic("invalid default duration: " + s)
	}
	return d
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// CacheTTLDuration returns the cache TTL, or the default if unset or invalid.
func (cfg *Config) CacheTTLDuration() time.Duration {
	return durationOr(cfg.Cache.TTL, defaultCacheTTLDuration)
}

// ReadTimeoutDuration returns the server read timeout.
func (cfg *Config) ReadTimeoutDuration() time.Duration {
	return durationOr(cfg.Server.ReadTimeout, defaultReadTimeoutDuration)
}

// WriteTimeoutDuration returns the server write timeout.
func (cfg *Config) WriteTimeoutDuration() time.Duration {
	return durationOr(cfg.Server.WriteTimeout, defaultWriteTimeoutDuration)
}

// String returns the config as YAML.
func (cfg *Config) String() string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("config error: %v", err)
	}
	return string(data)
}

// SaveGlobal writes the config to the global config file.
func (cfg *Config) SaveGlobal() error {
	path, err := globalConfigPath()
	if err != nil {
		return fmt.Errorf("get global config path: %w", err)
	}
	return cfg.SaveTo(path)
}

// SaveTo writes the config to the specified path, creating parent
// directories if needed.
func (cfg *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// DiscoveredPaths returns which config files were found.
// Returns empty strings for paths that don't exist or can't be determined.
func DiscoveredPaths() (global, project string) {
	globalPath, err := globalConfigPath()
	if err == nil {
		if _, statErr := os.Stat(globalPath); statErr == nil {
			global = globalPath
		}
	}
	projectPath, err := discoverProjectConfig()
	if err == nil {
		project = projectPath
	}
	return global, project
}
