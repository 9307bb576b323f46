// Package config provides configuration management for the composer CLI.
//
// Settings are layered from built-in defaults, composer.yaml, COMPOSER_
// environment variables and command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/querycomposer/internal/composer"
	"github.com/leapstack-labs/querycomposer/internal/keymap"
	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/textsync"
)

// Config holds all CLI configuration options.
type Config struct {
	StatePath     string            `koanf:"state_path"`
	Environment   string            `koanf:"environment"`
	DefaultEngine string            `koanf:"default_engine"`
	Verbose       bool              `koanf:"verbose"`
	OutputFormat  string            `koanf:"output"`
	MaxRows       int               `koanf:"max_rows"`
	Keymap        keymap.Keys       `koanf:"keymap"`
	Timing        TimingConfig      `koanf:"timing"`
	Engines       []registry.Engine `koanf:"engines"`
	UDFLanguages  []string          `koanf:"udf_languages"`
	Server        ServerConfig      `koanf:"server"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// TimingConfig holds the composer's debounce and throttle windows.
type TimingConfig struct {
	Debounce    time.Duration `koanf:"debounce"`
	RunThrottle time.Duration `koanf:"run_throttle"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr  string `koanf:"addr"`
	Watch bool   `koanf:"watch"`
	// SessionSecret signs browser preference cookies.
	SessionSecret string `koanf:"session_secret" json:"-"`
}

// Default configuration values.
const (
	DefaultStateFile = ".composer/state.db"
	DefaultEnv       = "default"
	DefaultOutput    = "auto" // Auto-detect: TTY=table, non-TTY=markdown
	DefaultMaxRows   = 1000
	DefaultAddr      = ":8765"
)

// Config file names, in lookup order.
var configFileNames = []string{"composer.yaml", "composer.yml"}

// DefaultEngines is used when no engines are configured: a scratch
// in-memory SQLite database.
func DefaultEngines() []registry.Engine {
	return []registry.Engine{
		{ID: "sqlite", Name: "SQLite (memory)", Language: "sqlite", Driver: "sqlite", DSN: ":memory:"},
	}
}

// Defaults returns the configuration used when nothing is loaded.
func Defaults() *Config {
	return &Config{
		StatePath:    DefaultStateFile,
		Environment:  DefaultEnv,
		OutputFormat: DefaultOutput,
		MaxRows:      DefaultMaxRows,
		Keymap:       keymap.DefaultKeys(),
		Timing: TimingConfig{
			Debounce:    textsync.DefaultDelay,
			RunThrottle: composer.DefaultRunThrottle,
		},
		Engines:      DefaultEngines(),
		UDFLanguages: append([]string(nil), composer.DefaultUDFLanguages...),
		Server:       ServerConfig{Addr: DefaultAddr, Watch: true},
	}
}
