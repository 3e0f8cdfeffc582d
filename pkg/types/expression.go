// Package types defines the core type system for gojmespath.
//
// This package contains type definitions for:
//   - ASTNode: Abstract Syntax Tree nodes and their arity contract
//   - Expression: a parsed and projected JMESPath expression
//   - Error: structured errors with kinds and codes
//   - Rendering helpers: s-expression, indented tree and JSON forms
package types

// Expression represents a compiled JMESPath expression: the source text and
// its projected AST.
//
// An Expression is immutable once built and is safe for concurrent use by
// multiple goroutines, which is what allows a single instance to be shared
// through the parse-result cache.
type Expression struct {
	ast    *ASTNode
	source string
}

// NewExpression creates a new Expression from an AST.
func NewExpression(ast *ASTNode, source string) *Expression {
	return &Expression{
		ast:    ast,
		source: source,
	}
}

// AST returns the Abstract Syntax Tree of the expression.
func (e *Expression) AST() *ASTNode {
	return e.ast
}

// Source returns the original source code of the expression.
func (e *Expression) Source() string {
	return e.source
}

// String returns a string representation of the expression.
func (e *Expression) String() string {
	return e.source
}
