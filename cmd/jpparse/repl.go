package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/sandrolain/gojmespath"
)

const (
	replPrompt    = "jp> "
	replRawPrompt = "jp(raw)> "
)

// replCommands are the meta commands understood by the REPL.
var replCommands = []string{
	":raw", ":projected", ":format", ":color", ":stats", ":purge", ":functions", ":help",
}

// replCommand creates the "repl" subcommand.
func replCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive prompt printing the tree of each expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(a, cmd.OutOrStdout())
		},
	}
}

// session holds the REPL display settings.
type session struct {
	app    *app
	raw    bool
	format outputFormat
	color  bool
}

func newSession(a *app) *session {
	return &session{app: a, format: formatTree}
}

func (s *session) prompt() string {
	if s.raw {
		return replRawPrompt
	}
	return replPrompt
}

// handle processes one input line. It reports false when the session
// should end.
func (s *session) handle(out io.Writer, input string) bool {
	line := strings.TrimSpace(input)
	switch {
	case line == "":
		return true
	case line == "exit" || line == "quit":
		return false
	case strings.HasPrefix(line, ":"):
		s.command(out, line)
		return true
	}

	node, err := s.app.tree(line, s.raw)
	if err != nil {
		printError(out, err)
		return true
	}
	if err := render(out, node, s.format, s.color); err != nil {
		fmt.Fprintln(out, "error:", err)
	}
	return true
}

func (s *session) command(out io.Writer, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":raw":
		s.raw = true
		fmt.Fprintln(out, "showing grammar trees")
	case ":projected":
		s.raw = false
		fmt.Fprintln(out, "showing projected trees")
	case ":format":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: :format sexpr|tree|json")
			return
		}
		f, err := parseFormat(fields[1])
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		s.format = f
	case ":color":
		s.color = !s.color
		fmt.Fprintf(out, "color %t\n", s.color)
	case ":stats":
		st := s.app.compiler.Stats()
		fmt.Fprintf(out, "entries %d/%d, hits %d, misses %d, evictions %d\n",
			st.Len, st.Capacity, st.Hits, st.Misses, st.Evictions)
	case ":purge":
		s.app.compiler.Purge()
		fmt.Fprintln(out, "cache purged")
	case ":functions":
		_ = listFunctions(out, s.app.registry, false)
	case ":help":
		fmt.Fprintln(out, "Enter an expression to print its tree. Commands:")
		fmt.Fprintln(out, "  :raw | :projected     toggle the projection rewrite")
		fmt.Fprintln(out, "  :format FORMAT        sexpr, tree or json")
		fmt.Fprintln(out, "  :color                toggle colored trees")
		fmt.Fprintln(out, "  :stats | :purge       inspect or empty the cache")
		fmt.Fprintln(out, "  :functions            list function signatures")
		fmt.Fprintln(out, "  exit                  leave")
	default:
		fmt.Fprintf(out, "unknown command %s, try :help\n", fields[0])
	}
}

// complete returns completions for the word under the cursor: commands
// after a colon, function names otherwise.
func (s *session) complete(line string) []string {
	i := strings.LastIndexAny(line, " .|[({,&")
	head, word := line[:i+1], line[i+1:]

	var candidates []string
	if strings.HasPrefix(line, ":") && i < 0 {
		candidates = replCommands
	} else if word != "" {
		candidates = s.app.registry.Names()
	}

	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, word) {
			out = append(out, head+c)
		}
	}
	return out
}

func runRepl(a *app, out io.Writer) error {
	s := newSession(a)

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	historyFile := filepath.Join(os.TempDir(), ".jpparse_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "jpparse %s (max depth %d, cache %d), type :help for commands\n",
		gojmespath.Version(), a.cfg.MaxDepth, a.cfg.CacheSize)
	for {
		input, err := line.Prompt(s.prompt())
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if !s.handle(out, input) {
			return nil
		}
	}
}
