package parser

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Identifiers and literals
	TokenUnquotedIdent // foo
	TokenQuotedIdent   // "foo bar"
	TokenLiteral       // `{"a": 1}`
	TokenRawString     // 'foo'
	TokenNumber        // 42, -1

	// Grouping symbols
	TokenBracketOpen  // [
	TokenFilter       // [?
	TokenBracketClose // ]
	TokenBraceOpen    // {
	TokenBraceClose   // }
	TokenParenOpen    // (
	TokenParenClose   // )

	// Basic symbols
	TokenDot     // .
	TokenStar    // *
	TokenComma   // ,
	TokenColon   // :
	TokenCurrent // @
	TokenExpref  // &

	// Operators
	TokenPipe // |
	TokenOr   // ||

	// Comparison operators
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenEqual        // ==
	TokenNotEqual     // !=
)

// String returns a string representation of the token type.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "(eof)"
	case TokenError:
		return "(error)"
	case TokenUnquotedIdent:
		return "(unquoted_identifier)"
	case TokenQuotedIdent:
		return "(quoted_identifier)"
	case TokenLiteral:
		return "(literal)"
	case TokenRawString:
		return "(raw_string)"
	case TokenNumber:
		return "(number)"
	case TokenBracketOpen:
		return "["
	case TokenFilter:
		return "[?"
	case TokenBracketClose:
		return "]"
	case TokenBraceOpen:
		return "{"
	case TokenBraceClose:
		return "}"
	case TokenParenOpen:
		return "("
	case TokenParenClose:
		return ")"
	case TokenDot:
		return "."
	case TokenStar:
		return "*"
	case TokenComma:
		return ","
	case TokenColon:
		return ":"
	case TokenCurrent:
		return "@"
	case TokenExpref:
		return "&"
	case TokenPipe:
		return "|"
	case TokenOr:
		return "||"
	case TokenLess:
		return "<"
	case TokenLessEqual:
		return "<="
	case TokenGreater:
		return ">"
	case TokenGreaterEqual:
		return ">="
	case TokenEqual:
		return "=="
	case TokenNotEqual:
		return "!="
	default:
		return "(unknown)"
	}
}

// IsComparator reports whether the token is one of the filter comparators.
func (tt TokenType) IsComparator() bool {
	switch tt {
	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual, TokenEqual, TokenNotEqual:
		return true
	default:
		return false
	}
}

// Token represents a lexical token in a JMESPath expression.
//
// For quoted identifiers, literals and raw strings Value holds the decoded
// content; Text always holds the raw source slice the token was read from.
type Token struct {
	Type     TokenType   // Type of the token
	Value    string      // Decoded value of the token
	Text     string      // Raw source text of the token
	Position int         // Starting byte offset in the input string
	Literal  interface{} // Decoded JSON value for TokenLiteral
}

// symbols1 maps single-character symbols to token types.
var symbols1 = [...]TokenType{
	'[': TokenBracketOpen,
	']': TokenBracketClose,
	'{': TokenBraceOpen,
	'}': TokenBraceClose,
	'(': TokenParenOpen,
	')': TokenParenClose,
	'.': TokenDot,
	'*': TokenStar,
	',': TokenComma,
	':': TokenColon,
	'@': TokenCurrent,
	'&': TokenExpref,
	'|': TokenPipe,
	'<': TokenLess,
	'>': TokenGreater,
}

// runeTokenType pairs a rune with its corresponding token type.
type runeTokenType struct {
	r  rune
	tt TokenType
}

// symbols2 maps two-character symbol sequences to token types.
// The key is the first character of the sequence.
var symbols2 = [...][]runeTokenType{
	'[': {{'?', TokenFilter}},
	'|': {{'|', TokenOr}},
	'<': {{'=', TokenLessEqual}},
	'>': {{'=', TokenGreaterEqual}},
	'=': {{'=', TokenEqual}},
	'!': {{'=', TokenNotEqual}},
}

const (
	symbol1Count = rune(len(symbols1))
	symbol2Count = rune(len(symbols2))
)

// lookupSymbol1 returns the token type for a single-character symbol.
// Returns 0 if the rune is not a valid symbol.
func lookupSymbol1(r rune) TokenType {
	if r < 0 || r >= symbol1Count {
		return 0
	}
	return symbols1[r]
}

// lookupSymbol2 returns possible two-character symbol completions.
// Returns nil if the rune cannot start a two-character symbol.
func lookupSymbol2(r rune) []runeTokenType {
	if r < 0 || r >= symbol2Count {
		return nil
	}
	return symbols2[r]
}
