// Package parser implements the JMESPath grammar.
//
// The parser uses a hand-written Pratt (top down operator precedence)
// approach whose binding-power table is declared in one place and checked
// for consistency at start-up, see [TableDiagnostics].
//
// # Architecture
//
// The parser consists of three main components:
//   - Lexer: Tokenizes the input expression into a stream of tokens
//   - Parser: Builds the raw Abstract Syntax Tree (AST) from tokens and
//     validates function arity against a signature table
//   - Compile: Runs the projection transform over the raw tree
//
// # Example
//
//	raw, err := parser.Parse("foo[*].bar | baz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	expr, err := parser.Compile("foo[*].bar | baz")
//	fmt.Println(expr.AST())
//	// (pipe (projection (field foo) (subexpression (identity) (field bar))) (field baz))
package parser

import (
	"log/slog"

	"github.com/sandrolain/gojmespath/pkg/functions"
	"github.com/sandrolain/gojmespath/pkg/transform"
	"github.com/sandrolain/gojmespath/pkg/types"
)

// DefaultMaxDepth is the nesting limit applied when WithMaxDepth is not used.
const DefaultMaxDepth = 256

// defaultFunctions is the signature table used when WithFunctions is not set.
var defaultFunctions = functions.Builtins()

// Parse parses a JMESPath expression and returns the raw AST.
//
// The raw tree mirrors the grammar: wildcards and filters appear as index
// expressions and no projection nodes are present. Use Compile (or
// transform.Project) to obtain the explicit-projection tree.
//
// Example:
//
//	node, err := parser.Parse("a.b")
//	if err != nil {
//	    var perr *types.Error
//	    if errors.As(err, &perr) {
//	        fmt.Printf("Parse error at position %d\n", perr.Position)
//	    }
//	    return
//	}
func Parse(query string, opts ...CompileOption) (*types.ASTNode, error) {
	p := NewParser(query, opts...)
	return p.Parse()
}

// Compile parses a JMESPath expression, applies the projection transform and
// returns the resulting Expression.
func Compile(query string, opts ...CompileOption) (*types.Expression, error) {
	p := NewParser(query, opts...)
	node, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return types.NewExpression(transform.Project(node, p.opts.Transform...), query), nil
}

// CompileOption configures compilation behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth limits the height of the parsed tree. Each nested
	// sub-expression counts one level, as does each chained operator.
	MaxDepth int
	// Functions is the signature table used for arity validation.
	Functions functions.Table
	// Logger receives debug records for failed parses.
	Logger *slog.Logger
	// Transform configures the projection transform run by Compile.
	Transform []transform.Option
}

// WithMaxDepth sets the maximum parsing depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

// WithFunctions sets the function-signature table.
func WithFunctions(table functions.Table) CompileOption {
	return func(opts *CompileOptions) {
		opts.Functions = table
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CompileOption {
	return func(opts *CompileOptions) {
		opts.Logger = logger
	}
}

// WithTransformOptions configures the projection transform run by Compile.
func WithTransformOptions(topts ...transform.Option) CompileOption {
	return func(opts *CompileOptions) {
		opts.Transform = append(opts.Transform, topts...)
	}
}
