package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/querycomposer/internal/textrange"
	"github.com/spf13/cobra"
)

// readInput returns text from args, a file ("-" for stdin) or piped stdin.
// ok is false when no input was given.
func readInput(cmd *cobra.Command, args []string, file string) (text string, ok bool, err error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), true, nil
	case file == "-":
		return readAll(cmd.InOrStdin())
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), true, nil
	}

	// Piped input only; a terminal on stdin means "no input"
	in := cmd.InOrStdin()
	if f, isFile := in.(*os.File); isFile && isTerminal(f) {
		return "", false, nil
	}
	return readAll(in)
}

func readAll(r io.Reader) (string, bool, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", false, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(content) == 0 {
		return "", false, nil
	}
	return string(content), true, nil
}

// parseRange parses "from:to" rune offsets.
func parseRange(s string) (textrange.Range, error) {
	from, to, found := strings.Cut(s, ":")
	if !found {
		return textrange.Range{}, fmt.Errorf("invalid range %q (want from:to)", s)
	}
	f, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return textrange.Range{}, fmt.Errorf("invalid range start %q", from)
	}
	t, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return textrange.Range{}, fmt.Errorf("invalid range end %q", to)
	}
	return textrange.New(f, t), nil
}
