package executor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DuckDBOptions holds DuckDB engine options.
type DuckDBOptions struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply when connecting (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// PostgresOptions holds Postgres engine options.
type PostgresOptions struct {
	SearchPath       string `mapstructure:"search_path"`
	StatementTimeout string `mapstructure:"statement_timeout"`
}

// SQLiteOptions holds SQLite engine options.
type SQLiteOptions struct {
	Pragmas map[string]string `mapstructure:"pragmas"`
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// decodeOptions decodes raw engine options into out. Unknown keys are an
// error so typos in composer.yaml do not go unnoticed.
func decodeOptions(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// SetupStatements returns the statements run on a fresh connection to apply
// an engine's options. Drivers without options accept none.
func SetupStatements(driver string, raw map[string]any) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var (
		stmts []string
		err   error
	)
	switch driver {
	case "duckdb":
		var opts DuckDBOptions
		if err = decodeOptions(raw, &opts); err == nil {
			stmts, err = duckDBSetup(opts)
		}
	case "postgres":
		var opts PostgresOptions
		if err = decodeOptions(raw, &opts); err == nil {
			stmts = postgresSetup(opts)
		}
	case "sqlite":
		var opts SQLiteOptions
		if err = decodeOptions(raw, &opts); err == nil {
			stmts, err = sqliteSetup(opts)
		}
	default:
		err = fmt.Errorf("driver does not take options")
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s options: %w", driver, err)
	}
	return stmts, nil
}

func duckDBSetup(opts DuckDBOptions) ([]string, error) {
	var stmts []string
	for _, ext := range opts.Extensions {
		if !identPattern.MatchString(ext) {
			return nil, fmt.Errorf("invalid extension name %q", ext)
		}
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}
	settings, err := assignments(opts.Settings, func(k, v string) string {
		return fmt.Sprintf("SET %s = %s", k, quote(v))
	})
	if err != nil {
		return nil, err
	}
	return append(stmts, settings...), nil
}

func postgresSetup(opts PostgresOptions) []string {
	var stmts []string
	if opts.SearchPath != "" {
		stmts = append(stmts, "SET search_path TO "+opts.SearchPath)
	}
	if opts.StatementTimeout != "" {
		stmts = append(stmts, "SET statement_timeout = "+quote(opts.StatementTimeout))
	}
	return stmts
}

func sqliteSetup(opts SQLiteOptions) ([]string, error) {
	return assignments(opts.Pragmas, func(k, v string) string {
		return fmt.Sprintf("PRAGMA %s = %s", k, quote(v))
	})
}

// assignments renders settings in key order, rejecting keys that are not
// plain identifiers.
func assignments(settings map[string]string, render func(k, v string) string) ([]string, error) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		if !identPattern.MatchString(k) {
			return nil, fmt.Errorf("invalid setting name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stmts := make([]string, 0, len(keys))
	for _, k := range keys {
		stmts = append(stmts, render(k, settings[k]))
	}
	return stmts, nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
