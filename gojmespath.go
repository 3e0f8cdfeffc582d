// Package gojmespath provides a Go front end for JMESPath expressions.
//
// It parses JMESPath query text into an abstract syntax tree and rewrites
// that tree so the language's implicit projections (wildcards, filters and
// flattens that apply the rest of a chain to every element of a collection)
// appear as explicit Projection and ValueProjection nodes. The resulting
// tree is what an evaluator walks.
//
// # Quick Start
//
//	// Raw grammar tree
//	raw, err := gojmespath.Parse("people[*].name")
//
//	// Parse + project, memoized in a process-wide cache
//	expr, err := gojmespath.Compile("people[*].name")
//	fmt.Println(expr.AST())
//	// (projection (field people) (subexpression (identity) (field name)))
//
//	// Private cache and custom function table
//	reg := functions.Builtins()
//	_ = reg.Register(functions.Signature{Name: "upper", Arity: functions.Fixed(1)})
//	c := gojmespath.NewCompiler(gojmespath.WithFunctions(reg), gojmespath.WithCacheSize(64))
//	expr, err = c.Compile("upper(name)")
//
// # More Information
//
// For detailed documentation, see:
//   - Parser: github.com/sandrolain/gojmespath/pkg/parser
//   - Transform: github.com/sandrolain/gojmespath/pkg/transform
//   - Cache: github.com/sandrolain/gojmespath/pkg/cache
//   - Functions: github.com/sandrolain/gojmespath/pkg/functions
//   - Types: github.com/sandrolain/gojmespath/pkg/types
package gojmespath

import (
	"fmt"
	"log/slog"

	"github.com/sandrolain/gojmespath/pkg/cache"
	"github.com/sandrolain/gojmespath/pkg/functions"
	"github.com/sandrolain/gojmespath/pkg/parser"
	"github.com/sandrolain/gojmespath/pkg/transform"
	"github.com/sandrolain/gojmespath/pkg/types"
)

// Version returns the current version of gojmespath.
func Version() string {
	return "v0.1.0-dev"
}

// defaultCompiler backs the package-level Compile, MustCompile and Purge.
var defaultCompiler = NewCompiler()

// Parse parses a JMESPath expression and returns its raw AST, without the
// projection rewrite and without caching.
func Parse(query string) (*types.ASTNode, error) {
	return parser.Parse(query)
}

// Project applies the projection rewrite to a raw AST. The input is not
// modified.
func Project(ast *types.ASTNode) *types.ASTNode {
	return transform.Project(ast)
}

// Compile parses and projects a JMESPath expression. Results are memoized
// in a process-wide cache keyed by the expression text.
//
// The returned Expression is immutable and safe for concurrent use.
//
// Example:
//
//	expr, err := gojmespath.Compile("reservations[*].instances[*].state")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Compile(query string) (*types.Expression, error) {
	return defaultCompiler.Compile(query)
}

// MustCompile is like Compile but panics if the expression cannot be compiled.
// It simplifies safe initialization of global variables.
func MustCompile(query string) *types.Expression {
	expr, err := Compile(query)
	if err != nil {
		panic(fmt.Sprintf("gojmespath: Compile(%q): %v", query, err))
	}
	return expr
}

// Purge empties the process-wide expression cache.
func Purge() {
	defaultCompiler.Purge()
}

// Option configures a Compiler.
type Option func(*options)

type options struct {
	cacheSize int
	maxDepth  int
	functions functions.Table
	logger    *slog.Logger
	transform []transform.Option
}

// WithCacheSize bounds the number of cached expressions.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithMaxDepth sets the parser nesting limit.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithFunctions sets the function-signature table used for arity checks.
func WithFunctions(table functions.Table) Option {
	return func(o *options) {
		o.functions = table
	}
}

// WithLogger sets the logger shared by the parser and the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransformOptions configures the projection rewrite.
func WithTransformOptions(opts ...transform.Option) Option {
	return func(o *options) {
		o.transform = append(o.transform, opts...)
	}
}

// Compiler compiles expressions through its own cache and configuration.
// It is safe for concurrent use.
type Compiler struct {
	cache *cache.Cache
	opts  []parser.CompileOption
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...Option) *Compiler {
	o := options{
		cacheSize: cache.DefaultCapacity,
		maxDepth:  parser.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var copts []cache.Option
	popts := []parser.CompileOption{
		parser.WithMaxDepth(o.maxDepth),
		parser.WithTransformOptions(o.transform...),
	}
	if o.functions != nil {
		popts = append(popts, parser.WithFunctions(o.functions))
	}
	if o.logger != nil {
		popts = append(popts, parser.WithLogger(o.logger))
		copts = append(copts, cache.WithLogger(o.logger))
	}

	return &Compiler{
		cache: cache.New(o.cacheSize, copts...),
		opts:  popts,
	}
}

// Compile returns the cached Expression for query, compiling it on a miss.
// Errors are not cached.
func (c *Compiler) Compile(query string) (*types.Expression, error) {
	return c.cache.GetOrCompile(query, func() (*types.Expression, error) {
		return parser.Compile(query, c.opts...)
	})
}

// Parse returns the raw AST of query using the compiler's configuration.
func (c *Compiler) Parse(query string) (*types.ASTNode, error) {
	return parser.Parse(query, c.opts...)
}

// Purge empties the compiler's cache.
func (c *Compiler) Purge() {
	c.cache.Purge()
}

// Stats reports the compiler's cache counters.
func (c *Compiler) Stats() cache.Stats {
	return c.cache.Stats()
}
