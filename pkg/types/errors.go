package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an expression error. Every user-facing failure of
// parsing belongs to exactly one kind.
type ErrorKind uint8

const (
	KindLexical ErrorKind = iota + 1
	KindSyntax
	KindIncomplete
	KindArity
	KindVariadicArity
	KindUnknownFunction
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindLexical:
		return "lexical error"
	case KindSyntax:
		return "syntax error"
	case KindIncomplete:
		return "incomplete expression"
	case KindArity:
		return "arity error"
	case KindVariadicArity:
		return "variadic arity error"
	case KindUnknownFunction:
		return "unknown function"
	default:
		return "error"
	}
}

// ErrorCode represents a gojmespath error code.
type ErrorCode string

// Error codes.
const (
	// L01xx: Lexical errors
	ErrUnknownCharacter    ErrorCode = "L0101"
	ErrUnterminatedQuote   ErrorCode = "L0102"
	ErrUnterminatedLiteral ErrorCode = "L0103"
	ErrInvalidLiteral      ErrorCode = "L0104"
	ErrInvalidIdentifier   ErrorCode = "L0105"
	ErrIncompleteOperator  ErrorCode = "L0106"

	// S02xx: Syntax errors
	ErrSyntaxError      ErrorCode = "S0201"
	ErrExpectedToken    ErrorCode = "S0202"
	ErrInvalidNumber    ErrorCode = "S0203"
	ErrUnexpectedEnd    ErrorCode = "S0204"
	ErrNestingTooDeep   ErrorCode = "S0205"
	ErrInvalidBracket   ErrorCode = "S0206"
	ErrMisplacedCurrent ErrorCode = "S0207"

	// T04xx: Function errors
	ErrArgumentCountMismatch ErrorCode = "T0410"
	ErrTooFewArguments       ErrorCode = "T0411"
	ErrUndefinedFunction     ErrorCode = "T0412"
)

// Kind returns the kind an error code belongs to.
func (c ErrorCode) Kind() ErrorKind {
	switch {
	case c == ErrUnexpectedEnd:
		return KindIncomplete
	case c == ErrArgumentCountMismatch:
		return KindArity
	case c == ErrTooFewArguments:
		return KindVariadicArity
	case c == ErrUndefinedFunction:
		return KindUnknownFunction
	case strings.HasPrefix(string(c), "L"):
		return KindLexical
	default:
		return KindSyntax
	}
}

// Error represents a structured expression error.
//
// Position is the byte offset of the offending token in Expression, or -1
// when there is no offending token (incomplete expressions, arity errors
// raised without position information).
type Error struct {
	Kind        ErrorKind
	Code        ErrorCode
	Message     string
	Position    int
	Token       string
	TokenType   string
	Expression  string
	Suggestions []string
	Err         error
}

// NewError creates a new error whose kind is derived from code.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Kind:     code.Kind(),
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Position >= 0 {
		fmt.Fprintf(&b, "%s at position %d: %s", e.Code, e.Position, e.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	if e.Expression != "" {
		fmt.Fprintf(&b, " in %q", e.Expression)
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token, tokenType string) *Error {
	e.Token = token
	e.TokenType = tokenType
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// WithExpression attaches the source expression the error refers to.
func (e *Error) WithExpression(expr string) *Error {
	e.Expression = expr
	return e
}

// Pointer renders the expression with a caret under the offending byte.
// It returns an empty string when the error has no position or expression.
func (e *Error) Pointer() string {
	if e.Position < 0 || e.Expression == "" || e.Position > len(e.Expression) {
		return ""
	}
	return e.Expression + "\n" + strings.Repeat(" ", e.Position) + "^"
}

// IsKind reports whether err (or any error it wraps) is an *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// InternalError reports a broken tree invariant. It is raised with panic by
// the projection transform and never returned as a user-facing error.
type InternalError struct {
	Node    *ASTNode
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("internal error at %s node (position %d): %s", e.Node.Type, e.Node.Position, e.Message)
	}
	return "internal error: " + e.Message
}
