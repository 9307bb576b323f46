package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/querycomposer/internal/notifier"
	"github.com/leapstack-labs/querycomposer/internal/search"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
	"github.com/spf13/cobra"
)

const continuationPrompt = "    ...> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive composer",
		Long: `Start an interactive composer session.

SQL typed at the prompt replaces the query buffer and runs once it ends with
a semicolon. Dot commands edit, search and run the buffer; type .help for the
list.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runREPL(cmd, app)
		},
	}
}

// repl executes input lines against a composer session.
type repl struct {
	app *App
	out io.Writer
	// mu serializes output from commands and notices.
	mu      sync.Mutex
	pending strings.Builder
}

func newREPL(app *App, out io.Writer) *repl {
	return &repl{app: app, out: out}
}

func runREPL(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()

	// Setup history file (project-local)
	var historyFile string
	if app.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(app.Cfg.StatePath), "composer_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(app),
		HistoryFile:     historyFile,
		AutoComplete:    newDotCompleter(app),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := newREPL(app, rl.Stdout())
	stopNotices := r.watchNotices()
	defer stopNotices()

	r.printf("Query composer (environment: %s, state: %s)\n", app.Cfg.Environment, app.Cfg.StatePath)
	r.printf("Type .help for commands, .quit to exit\n\n")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.pending.Reset()
			rl.SetPrompt(promptFor(app))
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		quit := r.handleLine(ctx, line)
		if quit {
			break
		}
		if r.pending.Len() > 0 {
			rl.SetPrompt(continuationPrompt)
		} else {
			rl.SetPrompt(promptFor(app))
		}
	}
	return nil
}

func promptFor(app *App) string {
	return app.Session.EngineID() + "> "
}

// watchNotices prints session notices until the returned func is called.
func (r *repl) watchNotices() func() {
	n := r.app.Session.Notifier()
	ch := n.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for notice := range ch {
			r.notice(notice)
		}
	}()
	return func() {
		n.Unsubscribe(ch)
		<-done
	}
}

func (r *repl) notice(notice notifier.Notice) {
	style := r.app.Renderer.Styles().Notice(notice.Level)
	r.printf("%s\n", style.Render(notice.Message))
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func (r *repl) errorf(err error) {
	r.printf("%s\n", r.app.Renderer.Styles().Error.Render("Error: "+err.Error()))
}

// handleLine processes one input line and reports whether to quit.
func (r *repl) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	// Handle dot-commands
	if r.pending.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		quit, err := r.dotCommand(ctx, trimmed)
		if err != nil {
			r.errorf(err)
		}
		return quit
	}

	// Accumulate multi-line SQL until semicolon
	r.pending.WriteString(line)
	if !strings.HasSuffix(trimmed, ";") {
		r.pending.WriteString("\n")
		return false
	}

	text := r.pending.String()
	r.pending.Reset()

	r.app.Session.Edit(text)
	r.app.Session.SetSelection(nil)
	if err := r.run(ctx); err != nil {
		r.errorf(err)
	}
	return false
}

func (r *repl) run(ctx context.Context) error {
	id, err := r.app.Session.Run(ctx)
	if err != nil {
		return err
	}
	err = waitAndRender(ctx, r.app, id, 0)
	if errors.Is(err, errExecutionFailed) {
		return nil
	}
	return err
}

func (r *repl) dotCommand(ctx context.Context, line string) (bool, error) {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	session := r.app.Session

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true, nil

	case ".help":
		printREPLHelp(r.out)

	case ".show":
		r.showBuffer()

	case ".run":
		return false, r.run(ctx)

	case ".engine":
		if len(args) == 0 {
			r.printf("%s\n", session.EngineID())
			return false, nil
		}
		selected := session.SelectEngine(args[0])
		if selected != args[0] {
			r.app.Renderer.Warning("Unknown engine %q, using %s", args[0], selected)
		}

	case ".engines":
		return false, renderEngines(r.app)

	case ".select":
		if len(args) == 1 && args[0] == "off" {
			session.SetSelection(nil)
			return false, nil
		}
		if len(args) != 1 {
			return false, errors.New("usage: .select FROM:TO | .select off")
		}
		sel, err := parseRange(args[0])
		if err != nil {
			return false, err
		}
		if n := textrange.Length(session.Buffer()); !sel.Within(n) {
			return false, &search.InvalidRangeError{Range: sel, Length: n, Reason: "outside the query"}
		}
		session.SetSelection(&sel)
		r.printf("Selected %q\n", textrange.Slice(session.Buffer(), sel))

	case ".search":
		return false, r.search(rest)

	case ".replace":
		return false, r.replace(args)

	case ".format":
		if err := session.Format(); err != nil {
			return false, err
		}
		r.showBuffer()

	case ".clear":
		session.Clear()

	case ".close":
		session.CloseExecution()

	case ".doc":
		path, err := session.CreateDocument(ctx)
		if err != nil {
			return false, err
		}
		r.printf("%s\n", path)

	case ".udf":
		if len(args) != 1 {
			return false, errors.New("usage: .udf FILE")
		}
		script, err := os.ReadFile(args[0])
		if err != nil {
			return false, fmt.Errorf("failed to read file: %w", err)
		}
		return false, session.InsertUDF(string(script))

	case ".keys":
		return false, renderKeys(r.app)

	case ".key":
		if len(args) != 1 {
			return false, errors.New("usage: .key KEY")
		}
		before := session.ExecutionID()
		if !session.Keymap().Dispatch(args[0]) {
			return false, fmt.Errorf("key %q is not bound", args[0])
		}
		if id := session.ExecutionID(); id != "" && id != before {
			err := waitAndRender(ctx, r.app, id, 0)
			if errors.Is(err, errExecutionFailed) {
				return false, nil
			}
			return false, err
		}

	case ".history":
		execs, err := r.app.Store.RecentExecutions(ctx, 10)
		if err != nil {
			return false, err
		}
		return false, renderHistory(r.app, execs)

	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
	return false, nil
}

// showBuffer prints the buffer with line numbers, the selection and the
// active matches.
func (r *repl) showBuffer() {
	session := r.app.Session
	text := session.Buffer()
	if text == "" {
		r.printf("(empty)\n")
		return
	}
	for i, line := range strings.Split(text, "\n") {
		r.printf("%3d | %s\n", i+1, line)
	}
	if sel := session.Selection(); sel != nil {
		r.printf("selection: %s\n", sel)
	}
	if m := session.Matches(); m != nil {
		r.printf("matches for %q: %s\n", m.Query, describeRanges(m.Ranges))
	}
}

// search parses ".search [-c] [-r] [-w] PATTERN" or ".search off".
func (r *repl) search(rest string) error {
	if rest == "off" {
		r.app.Session.ClearSearch()
		return nil
	}

	var opts search.Options
	for {
		flag, tail, _ := strings.Cut(rest, " ")
		switch flag {
		case "-c":
			opts.CaseSensitive = true
		case "-r":
			opts.UseRegex = true
		case "-w":
			opts.WholeWord = true
		default:
			if rest == "" {
				return errors.New("usage: .search [-c] [-r] [-w] PATTERN | .search off")
			}
			res, err := r.app.Session.Search(rest, opts)
			if err != nil {
				return err
			}
			return renderMatches(r.app, res)
		}
		rest = strings.TrimSpace(tail)
	}
}

// replace handles ".replace TEXT [N...]".
func (r *repl) replace(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: .replace TEXT [MATCH...]")
	}
	session := r.app.Session
	replacement := args[0]
	if replacement == `""` {
		replacement = ""
	}

	if len(args) == 1 {
		return session.ReplaceAll(replacement)
	}

	matches := session.Matches()
	if matches == nil {
		return errors.New("no active search (use .search first)")
	}
	ranges := make([]textrange.Range, 0, len(args)-1)
	for _, a := range args[1:] {
		var n int
		if _, err := fmt.Sscanf(a, "%d", &n); err != nil || n < 1 || n > len(matches.Ranges) {
			return fmt.Errorf("no match #%s (%d matches)", a, len(matches.Ranges))
		}
		ranges = append(ranges, matches.Ranges[n-1])
	}
	return session.Replace(ranges, replacement)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                      Show this help message
  .show                      Show the query buffer
  .run                       Run the buffer, or the statements under the selection
  .select FROM:TO | off      Set or clear the selection (character offsets)
  .engine [ID]               Show or select the engine
  .engines                   List engines
  .search [-c] [-r] [-w] P   Search the buffer (case sensitive, regex, whole word)
  .search off                Clear the search
  .replace TEXT [N...]       Replace all matches, or only match numbers N
  .format                    Format the buffer
  .clear                     Empty the buffer
  .close                     Dismiss the current execution
  .doc                       Create a data document
  .udf FILE                  Prepend a UDF script
  .keys                      List key bindings
  .key KEY                   Press a bound key (e.g. Alt-2)
  .history                   List recent executions
  .quit / .exit              Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;) and replace the buffer
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

// newDotCompleter creates a readline completer for dot commands.
func newDotCompleter(app *App) *readline.PrefixCompleter {
	engines := func(string) []string {
		var ids []string
		for _, e := range app.Engines.List() {
			ids = append(ids, e.ID)
		}
		return ids
	}
	keys := func(string) []string {
		return app.Session.Keymap().Keys()
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".show"),
		readline.PcItem(".run"),
		readline.PcItem(".select", readline.PcItem("off")),
		readline.PcItem(".engine", readline.PcItemDynamic(engines)),
		readline.PcItem(".engines"),
		readline.PcItem(".search", readline.PcItem("off")),
		readline.PcItem(".replace"),
		readline.PcItem(".format"),
		readline.PcItem(".clear"),
		readline.PcItem(".close"),
		readline.PcItem(".doc"),
		readline.PcItem(".udf"),
		readline.PcItem(".keys"),
		readline.PcItem(".key", readline.PcItemDynamic(keys)),
		readline.PcItem(".history"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
