package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/querycomposer/internal/executor"
)

// outputFormats lists the accepted values of the output setting.
var outputFormats = []string{"auto", "table", "json", "csv", "md", "markdown"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if !slices.Contains(outputFormats, strings.ToLower(c.OutputFormat)) {
		return fmt.Errorf("invalid output format %q\nAvailable formats: %v", c.OutputFormat, outputFormats)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative")
	}
	if c.Timing.Debounce < 0 || c.Timing.RunThrottle < 0 {
		return fmt.Errorf("timing values must not be negative")
	}
	if err := c.Keymap.Validate(); err != nil {
		return fmt.Errorf("keymap: %w", err)
	}

	seen := make(map[string]bool, len(c.Engines))
	for i, e := range c.Engines {
		if e.ID == "" {
			return fmt.Errorf("engines[%d]: id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("engines[%d]: duplicate engine id %q", i, e.ID)
		}
		seen[e.ID] = true
		if _, ok := executor.Driver(e.Driver); !ok {
			return fmt.Errorf("engines[%d]: %w", i, &executor.UnknownDriverError{Driver: e.Driver, Available: executor.ListDrivers()})
		}
		if _, err := executor.SetupStatements(e.Driver, e.Options); err != nil {
			return fmt.Errorf("engines[%d]: %w", i, err)
		}
	}

	if c.DefaultEngine != "" && !seen[c.DefaultEngine] {
		return fmt.Errorf("default_engine %q is not a configured engine", c.DefaultEngine)
	}
	return nil
}
