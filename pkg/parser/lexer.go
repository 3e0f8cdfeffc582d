package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/sandrolain/gojmespath/pkg/types"
)

const eof = -1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Lexer converts a JMESPath expression into a sequence of tokens.
// The implementation is based on Rob Pike's "Lexical Scanning in Go" technique.
type Lexer struct {
	input   string // Input string being scanned
	length  int    // Length of input string
	start   int    // Start position of current token
	current int    // Current position in input
	width   int    // Width of last rune read
	err     error  // First error encountered
}

// NewLexer creates a new lexer from the provided input string.
// The input is tokenized by successive calls to the Next method.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		length: len(input),
	}
}

// Tokenize scans the whole input. It stops at the first lexical error and
// returns it as a *types.Error; the returned slice then holds the tokens
// read so far. On success the last token is TokenEOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		t := l.Next()
		if t.Type == TokenError {
			return tokens, l.Error()
		}
		tokens = append(tokens, t)
		if t.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token from the input.
// When the end of the input is reached, Next returns TokenEOF for all
// subsequent calls. After a lexical error Next returns TokenError and
// Error reports the cause.
func (l *Lexer) Next() Token {
	if l.err != nil {
		return Token{Type: TokenError, Position: l.start}
	}
	l.skipWhitespace()

	ch := l.nextRune()
	if ch == eof {
		return l.eof()
	}

	// Check for two-character symbols first (e.g., ||, <=, [?)
	if rts := lookupSymbol2(ch); rts != nil {
		for _, rt := range rts {
			if l.acceptRune(rt.r) {
				return l.newToken(rt.tt)
			}
		}
	}

	// Check for single-character symbols
	if tt := lookupSymbol1(ch); tt > 0 {
		return l.newToken(tt)
	}

	switch {
	case ch == '=' || ch == '!':
		return l.error(types.ErrIncompleteOperator, fmt.Sprintf("Incomplete operator %q", ch))
	case ch == '"':
		return l.scanQuotedIdent()
	case ch == '\'':
		return l.scanRawString()
	case ch == '`':
		return l.scanLiteral()
	case ch == '-' || isDigit(ch):
		l.backup()
		return l.scanNumber()
	case isIdentStart(ch):
		l.backup()
		return l.scanIdent()
	default:
		return l.error(types.ErrUnknownCharacter, fmt.Sprintf("Unknown character %q", ch))
	}
}

// Error returns the first error encountered during lexing, if any.
func (l *Lexer) Error() error {
	return l.err
}

// scanQuotedIdent reads a double-quoted identifier. The opening quote has
// already been consumed. The content is decoded as a JSON string.
func (l *Lexer) scanQuotedIdent() Token {
	if !l.scanDelimited('"') {
		return l.error(types.ErrUnterminatedQuote, "Unterminated quoted identifier")
	}
	t := l.newToken(TokenQuotedIdent)
	var name string
	if err := json.UnmarshalFromString(t.Text, &name); err != nil {
		return l.errorAt(types.ErrInvalidIdentifier, fmt.Sprintf("Invalid quoted identifier: %v", err), t)
	}
	t.Value = name
	return t
}

// scanRawString reads a single-quoted raw string. Only \' is an escape.
func (l *Lexer) scanRawString() Token {
	if !l.scanDelimited('\'') {
		return l.error(types.ErrUnterminatedQuote, "Unterminated raw string literal")
	}
	t := l.newToken(TokenRawString)
	t.Value = strings.ReplaceAll(t.Text[1:len(t.Text)-1], `\'`, `'`)
	return t
}

// scanLiteral reads a backtick-delimited JSON literal. \` escapes a backtick.
func (l *Lexer) scanLiteral() Token {
	if !l.scanDelimited('`') {
		return l.error(types.ErrUnterminatedLiteral, "Unterminated JSON literal")
	}
	t := l.newToken(TokenLiteral)
	t.Value = strings.ReplaceAll(t.Text[1:len(t.Text)-1], "\\`", "`")

	var value interface{}
	if err := json.UnmarshalFromString(t.Value, &value); err != nil {
		return l.errorAt(types.ErrInvalidLiteral, fmt.Sprintf("Invalid JSON literal: %v", err), t)
	}
	t.Literal = value
	return t
}

// scanDelimited consumes runes up to and including the closing delimiter.
// A backslash escapes the following rune. It reports false on end of input.
func (l *Lexer) scanDelimited(delim rune) bool {
	for {
		switch l.nextRune() {
		case delim:
			return true
		case '\\':
			if l.nextRune() == eof {
				return false
			}
		case eof:
			return false
		}
	}
}

// scanNumber reads an integer: -?[0-9]+
func (l *Lexer) scanNumber() Token {
	l.acceptRune('-')
	if !l.acceptAll(isDigit) {
		return l.error(types.ErrUnknownCharacter, "Unknown character '-'")
	}
	return l.newToken(TokenNumber)
}

// scanIdent reads an unquoted identifier: [A-Za-z_][A-Za-z0-9_]*
func (l *Lexer) scanIdent() Token {
	l.accept(isIdentStart)
	l.acceptAll(isIdentPart)
	return l.newToken(TokenUnquotedIdent)
}

// Helper methods

func (l *Lexer) eof() Token {
	return Token{
		Type:     TokenEOF,
		Position: l.current,
	}
}

func (l *Lexer) error(code types.ErrorCode, message string) Token {
	return l.errorAt(code, message, l.newToken(TokenError))
}

func (l *Lexer) errorAt(code types.ErrorCode, message string, t Token) Token {
	t.Type = TokenError
	l.err = types.NewError(code, message, t.Position).WithToken(t.Text, TokenError.String())
	return t
}

func (l *Lexer) newToken(tt TokenType) Token {
	text := l.input[l.start:l.current]
	t := Token{
		Type:     tt,
		Value:    text,
		Text:     text,
		Position: l.start,
	}
	l.width = 0
	l.start = l.current
	return t
}

func (l *Lexer) nextRune() rune {
	if l.current >= l.length {
		l.width = 0
		return eof
	}

	r, w := utf8.DecodeRuneInString(l.input[l.current:])
	l.width = w
	l.current += w
	return r
}

func (l *Lexer) backup() {
	l.current -= l.width
}

func (l *Lexer) ignore() {
	l.start = l.current
}

func (l *Lexer) acceptRune(r rune) bool {
	return l.accept(func(c rune) bool {
		return c == r
	})
}

func (l *Lexer) accept(isValid func(rune) bool) bool {
	if isValid(l.nextRune()) {
		return true
	}
	l.backup()
	return false
}

func (l *Lexer) acceptAll(isValid func(rune) bool) bool {
	var matched bool
	for l.accept(isValid) {
		matched = true
	}
	return matched
}

func (l *Lexer) skipWhitespace() {
	l.acceptAll(isWhitespace)
	l.ignore()
}

// Character classification functions

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
