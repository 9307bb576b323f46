package config

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "xxxxx"

var dsnPasswordPattern = regexp.MustCompile(`(?i)(password=)('[^']*'|\S+)`)

// Effective returns the configuration as nested maps keyed like composer.yaml,
// with credentials redacted.
func (c *Config) Effective() map[string]any {
	engines := make([]map[string]any, 0, len(c.Engines))
	for _, e := range c.Engines {
		engine := map[string]any{
			"id":       e.ID,
			"name":     e.Name,
			"language": e.Language,
			"driver":   e.Driver,
			"dsn":      RedactDSN(e.DSN),
			"order":    e.OrderIndex,
		}
		if len(e.Options) > 0 {
			engine["options"] = e.Options
		}
		engines = append(engines, engine)
	}

	secret := ""
	if c.Server.SessionSecret != "" {
		secret = redacted
	}

	return map[string]any{
		"state_path":     c.StatePath,
		"environment":    c.Environment,
		"default_engine": c.DefaultEngine,
		"verbose":        c.Verbose,
		"output":         c.OutputFormat,
		"max_rows":       c.MaxRows,
		"keymap": map[string]any{
			"run_query":     c.Keymap.RunQuery,
			"change_engine": c.Keymap.ChangeEngine,
		},
		"timing": map[string]any{
			"debounce":     c.Timing.Debounce.String(),
			"run_throttle": c.Timing.RunThrottle.String(),
		},
		"engines":       engines,
		"udf_languages": c.UDFLanguages,
		"server": map[string]any{
			"addr":           c.Server.Addr,
			"watch":          c.Server.Watch,
			"session_secret": secret,
		},
	}
}

// RedactDSN hides the password in a URL or key=value connection string.
func RedactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
	}
	return dsnPasswordPattern.ReplaceAllString(dsn, "${1}"+redacted)
}
