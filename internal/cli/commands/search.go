package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/querycomposer/internal/search"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
	"github.com/spf13/cobra"
)

// SearchOptions holds options for the search command.
type SearchOptions struct {
	search.Options
	Replace    string
	HasReplace bool
	Matches    []int
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search PATTERN",
		Short: "Find and replace in the query buffer",
		Long: `Search the query buffer and optionally replace the matches.

Matches are listed with their character ranges. With --replace every match
is replaced; --match limits the replacement to the listed match numbers.`,
		Example: `  # Find all mentions of a table
  composer search events

  # Regex, case sensitive
  composer search --regex --case-sensitive 'user_[0-9]+'

  # Rename a column everywhere, whole words only
  composer search --word uid --replace user_id

  # Replace only the first and third match
  composer search uid --replace user_id --match 1,3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HasReplace = cmd.Flags().Changed("replace")
			return runSearch(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.CaseSensitive, "case-sensitive", "c", false, "Match case")
	cmd.Flags().BoolVarP(&opts.UseRegex, "regex", "r", false, "Treat PATTERN as a regular expression")
	cmd.Flags().BoolVarP(&opts.WholeWord, "word", "w", false, "Match whole words only")
	cmd.Flags().StringVar(&opts.Replace, "replace", "", "Replace matches with this text")
	cmd.Flags().IntSliceVar(&opts.Matches, "match", nil, "Replace only these match numbers (1-based)")

	return cmd
}

func runSearch(cmd *cobra.Command, pattern string, opts *SearchOptions) error {
	app, cleanup, err := NewApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	session := app.Session
	res, err := session.Search(pattern, opts.Options)
	if err != nil {
		return err
	}

	if !opts.HasReplace {
		return renderMatches(app, res)
	}

	if len(opts.Matches) == 0 {
		if err := session.ReplaceAll(opts.Replace); err != nil {
			return err
		}
		app.Renderer.Success("Replaced %d matches", len(res.Ranges))
		return nil
	}

	ranges := make([]textrange.Range, 0, len(opts.Matches))
	for _, n := range opts.Matches {
		if n < 1 || n > len(res.Ranges) {
			return fmt.Errorf("no match #%d (%d matches)", n, len(res.Ranges))
		}
		ranges = append(ranges, res.Ranges[n-1])
	}
	if err := session.Replace(ranges, opts.Replace); err != nil {
		return err
	}
	app.Renderer.Success("Replaced %d of %d matches", len(ranges), len(res.Ranges))
	return nil
}

func renderMatches(app *App, res *search.Result) error {
	if len(res.Ranges) == 0 {
		app.Renderer.Muted("No matches for %q", res.Query)
		return nil
	}
	headers := []string{"#", "from", "to", "line", "col", "match"}
	return app.Renderer.Table(headers, matchRows(res.Snapshot, res.Ranges))
}

// matchRows describes each range with its 1-based line and column.
func matchRows(text string, ranges []textrange.Range) [][]any {
	runes := []rune(text)
	rows := make([][]any, 0, len(ranges))
	for i, r := range ranges {
		line, col := position(runes, r.From)
		rows = append(rows, []any{i + 1, r.From, r.To, line, col, string(runes[r.From:r.To])})
	}
	return rows
}

// position converts a rune offset to a 1-based line and column.
func position(runes []rune, offset int) (line, col int) {
	line, col = 1, 1
	for _, r := range runes[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

// describeRanges formats ranges for status messages.
func describeRanges(ranges []textrange.Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}
