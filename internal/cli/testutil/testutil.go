// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/querycomposer/internal/cli/config"
	"github.com/leapstack-labs/querycomposer/internal/testutil"
	"github.com/spf13/cobra"
)

// SetupTestConfig returns defaults pointed at a fresh state database in a
// temp dir. Runs are not throttled and output is markdown.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.StatePath = filepath.Join(t.TempDir(), "state.db")
	cfg.ProjectRoot = filepath.Dir(cfg.StatePath)
	cfg.OutputFormat = "markdown"
	cfg.Timing.RunThrottle = 0
	return cfg
}

// Result holds the captured output of a command run.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// ExecuteCommand runs cmd with args, cfg and a test logger in its context,
// and stdin as input. Output is captured.
func ExecuteCommand(t *testing.T, cfg *config.Config, cmd *cobra.Command, stdin string, args ...string) Result {
	t.Helper()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))

	ctx := context.WithValue(context.Background(), config.LoggerKey(), testutil.NewTestLogger(t))
	ctx = config.WithConfig(ctx, cfg)

	err := cmd.ExecuteContext(ctx)
	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
