package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/sandrolain/gojmespath"
	"github.com/sandrolain/gojmespath/pkg/functions"
	"github.com/sandrolain/gojmespath/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries the state shared by every subcommand once the configuration
// has been loaded.
type app struct {
	configPath string
	verbose    bool

	cfg      *Config
	logger   *slog.Logger
	registry *functions.Registry
	compiler *gojmespath.Compiler
}

// setup loads the configuration and builds the logger and compiler.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.registry = reg
	a.compiler = gojmespath.NewCompiler(cfg.CompilerOptions(reg, a.logger)...)
	a.logger.Debug("configuration loaded", "path", a.configPath, "functions", reg.Len())
	return nil
}

// tree returns the raw or projected tree of an expression.
func (a *app) tree(expr string, raw bool) (*types.ASTNode, error) {
	if raw {
		return a.compiler.Parse(expr)
	}
	compiled, err := a.compiler.Compile(expr)
	if err != nil {
		return nil, err
	}
	return compiled.AST(), nil
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "jpparse",
		Short:         "Parse JMESPath expressions and inspect their syntax trees",
		SilenceUsage:  true,
		SilenceErrors: true, // printed by main, with a caret line
		Version:       gojmespath.Version(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		parseCommand(a),
		checkCommand(a),
		functionsCommand(a),
		replCommand(a),
	)

	return root
}

// parseCommand creates the "parse" subcommand.
func parseCommand(a *app) *cobra.Command {
	var (
		raw    bool
		format string
		color  bool
	)

	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Print the syntax tree of an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			node, err := a.tree(args[0], raw)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), node, f, color)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the grammar tree without the projection rewrite")
	cmd.Flags().StringVarP(&format, "format", "f", "sexpr", `Output format: "sexpr", "tree" or "json"`)
	cmd.Flags().BoolVar(&color, "color", false, "Colorize tree output")
	return cmd
}

// checkCommand creates the "check" subcommand.
func checkCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse every expression of a file, one per line",
		Long: "Parse every non-empty line of a file that does not start with '#'.\n" +
			"Use - to read from standard input. Exits non-zero if any line fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			return a.check(cmd.OutOrStdout(), args[0], in)
		},
	}
}

// check compiles each expression read from in and reports failures to w.
func (a *app) check(w io.Writer, name string, in io.Reader) error {
	var (
		total, failed int
		lineNo        int
	)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		total++
		if _, err := a.compiler.Compile(line); err != nil {
			failed++
			fmt.Fprintf(w, "%s:%d: %v\n", name, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	fmt.Fprintf(w, "%d expressions, %d failed\n", total, failed)
	a.logger.Debug("check finished", "file", name, "total", total, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d expressions failed", failed, total)
	}
	return nil
}

// functionsCommand creates the "functions" subcommand.
func functionsCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the function signatures used for arity checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFunctions(cmd.OutOrStdout(), a.registry, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print signatures as JSON")
	return cmd
}

func listFunctions(w io.Writer, reg *functions.Registry, asJSON bool) error {
	sigs := reg.Signatures()
	if asJSON {
		out := make([]map[string]interface{}, len(sigs))
		for i, s := range sigs {
			out[i] = map[string]interface{}{
				"name":     s.Name,
				"args":     s.Arity.Args,
				"variadic": s.Arity.Variadic,
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	for _, s := range sigs {
		if _, err := fmt.Fprintf(w, "%-16s %s\n", s.Name, s.Arity); err != nil {
			return err
		}
	}
	return nil
}

// outputFormat selects how a tree is printed.
type outputFormat string

const (
	formatSexpr outputFormat = "sexpr"
	formatTree  outputFormat = "tree"
	formatJSON  outputFormat = "json"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatSexpr, formatTree, formatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q: use \"sexpr\", \"tree\" or \"json\"", s)
	}
}

// render writes node to w in the requested format.
func render(w io.Writer, node *types.ASTNode, format outputFormat, color bool) error {
	switch format {
	case formatTree:
		var style *types.TreeStyle
		if color {
			style = colorStyle()
		}
		return types.WriteTree(w, node, style)
	case formatJSON:
		data, err := json.MarshalIndent(types.ToMap(node), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		_, err := fmt.Fprintln(w, types.Sexpr(node))
		return err
	}
}

func colorStyle() *types.TreeStyle {
	nodeType := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	payload := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	branch := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	return &types.TreeStyle{
		Type:    func(s string) string { return nodeType.Render(s) },
		Payload: func(s string) string { return payload.Render(s) },
		Branch:  func(s string) string { return branch.Render(s) },
	}
}

// printError writes err to w, followed by a caret line under the offending
// token when the error carries a position.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "error:", err)
	var perr *types.Error
	if errors.As(err, &perr) {
		if ptr := perr.Pointer(); ptr != "" {
			fmt.Fprintln(w, ptr)
		}
	}
}
