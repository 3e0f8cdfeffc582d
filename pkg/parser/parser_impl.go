package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/sandrolain/gojmespath/pkg/functions"
	"github.com/sandrolain/gojmespath/pkg/types"
)

// Parser implements a recursive descent parser for JMESPath expressions.
// It uses Pratt's "Top Down Operator Precedence" algorithm to handle
// operator precedence correctly.
type Parser struct {
	lexer   *Lexer
	input   string
	current Token
	next    Token
	depth   int
	arena   *types.NodeArena
	opts    CompileOptions
}

// NewParser creates a new parser for the given input string.
func NewParser(input string, opts ...CompileOption) *Parser {
	options := CompileOptions{
		MaxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxDepth <= 0 {
		options.MaxDepth = DefaultMaxDepth
	}
	if options.Functions == nil {
		options.Functions = defaultFunctions
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	p := &Parser{
		lexer: NewLexer(input),
		input: input,
		arena: types.NewNodeArena(),
		opts:  options,
	}

	// Prime the current and lookahead tokens
	p.advance()
	p.advance()

	return p
}

// Parse parses the entire expression and returns the root AST node.
// Every returned error is a *types.Error carrying the source expression.
func (p *Parser) Parse() (*types.ASTNode, error) {
	node, err := p.parseExpression(0)
	if err == nil && p.current.Type != TokenEOF {
		err = p.unexpected()
	}
	if err != nil {
		var perr *types.Error
		if errors.As(err, &perr) {
			perr.WithExpression(p.input)
		}
		p.opts.Logger.Debug("parse failed", "expression", p.input, "error", err)
		return nil, err
	}
	return node, nil
}

// assoc is the associativity of a precedence level.
type assoc uint8

const (
	assocLeft assoc = iota + 1
	assocRight
)

// level groups tokens sharing a binding power.
type level struct {
	name   string
	bp     int
	assoc  assoc
	tokens []TokenType
}

// levels is the binding-power table of every token with a left
// denotation, loosest binding first. Comparators are not listed: they only
// appear inside a filter, where they end the left operand.
var levels = []level{
	{name: "pipe", bp: 10, assoc: assocLeft, tokens: []TokenType{TokenPipe}},
	{name: "or", bp: 20, assoc: assocLeft, tokens: []TokenType{TokenOr}},
	{name: "dot", bp: 30, assoc: assocRight, tokens: []TokenType{TokenDot}},
	{name: "bracket", bp: 40, assoc: assocRight, tokens: []TokenType{TokenBracketOpen, TokenFilter}},
}

// infixFunc builds the node for an infix token whose left operand is left.
type infixFunc func(p *Parser, left *types.ASTNode) (*types.ASTNode, error)

var (
	precedence    map[TokenType]int
	associativity map[TokenType]assoc
	diagnostics   []string
	leds          map[TokenType]infixFunc
)

func init() {
	leds = map[TokenType]infixFunc{
		TokenDot:         (*Parser).parseDot,
		TokenBracketOpen: (*Parser).parseIndexExpression,
		TokenFilter:      (*Parser).parseFilterExpression,
		TokenPipe: func(p *Parser, left *types.ASTNode) (*types.ASTNode, error) {
			return p.parseBinaryOp(left, types.NodePipe)
		},
		TokenOr: func(p *Parser, left *types.ASTNode) (*types.ASTNode, error) {
			return p.parseBinaryOp(left, types.NodeOr)
		},
	}
	precedence, associativity, diagnostics = buildPrecedence(levels, leds)
}

// buildPrecedence flattens the level table and reports every inconsistency
// that would make the grammar ambiguous: a token declared on two levels, two
// levels sharing a binding power, levels out of order, a level without
// associativity, or a mismatch between the table and the infix rules.
func buildPrecedence(table []level, infix map[TokenType]infixFunc) (map[TokenType]int, map[TokenType]assoc, []string) {
	var (
		prec  = make(map[TokenType]int)
		assoc = make(map[TokenType]assoc)
		diags []string
		seen  = make(map[int]string)
	)
	for i, lv := range table {
		if other, ok := seen[lv.bp]; ok {
			diags = append(diags, fmt.Sprintf("levels %s and %s share binding power %d", other, lv.name, lv.bp))
		}
		seen[lv.bp] = lv.name
		if i > 0 && lv.bp <= table[i-1].bp {
			diags = append(diags, fmt.Sprintf("level %s does not bind tighter than %s", lv.name, table[i-1].name))
		}
		if lv.assoc != assocLeft && lv.assoc != assocRight {
			diags = append(diags, fmt.Sprintf("level %s has no associativity", lv.name))
		}
		for _, tt := range lv.tokens {
			if _, ok := prec[tt]; ok {
				diags = append(diags, fmt.Sprintf("token %s declared on more than one level", tt))
				continue
			}
			if _, ok := infix[tt]; !ok {
				diags = append(diags, fmt.Sprintf("token %s has a binding power but no infix rule", tt))
			}
			prec[tt] = lv.bp
			assoc[tt] = lv.assoc
		}
	}
	for tt := range infix {
		if _, ok := prec[tt]; !ok {
			diags = append(diags, fmt.Sprintf("infix token %s has no binding power", tt))
		}
	}
	sort.Strings(diags)
	return prec, assoc, diags
}

// TableDiagnostics returns the ambiguity diagnostics found while building
// the precedence table. It is empty for a well-formed grammar.
func TableDiagnostics() []string {
	return append([]string(nil), diagnostics...)
}

// getPrecedence returns the left binding power of a token, 0 for tokens
// that cannot continue an expression.
func (p *Parser) getPrecedence(tt TokenType) int {
	return precedence[tt]
}

// rightBindingPower returns the minimum binding power of the right operand
// of a binary operator.
func rightBindingPower(tt TokenType) int {
	if associativity[tt] == assocRight {
		return precedence[tt] - 1
	}
	return precedence[tt]
}

// advance moves to the next token.
func (p *Parser) advance() {
	p.current = p.next
	p.next = p.lexer.Next()
}

// expect checks if the current token matches the expected type and advances.
func (p *Parser) expect(tt TokenType) error {
	if p.current.Type != tt {
		if p.current.Type == TokenEOF || p.current.Type == TokenError {
			return p.unexpected()
		}
		return p.error(types.ErrExpectedToken, fmt.Sprintf("Expected %s but got %s", tt, p.current.Text))
	}
	p.advance()
	return nil
}

// error creates a parser error located at the current token.
func (p *Parser) error(code types.ErrorCode, message string) error {
	return types.NewError(code, message, p.current.Position).
		WithToken(p.current.Text, p.current.Type.String())
}

// unexpected classifies the current token as the cause of a failure:
// lexical errors pass through, end of input is an incomplete expression,
// anything else is a syntax error.
func (p *Parser) unexpected() error {
	switch p.current.Type {
	case TokenError:
		return p.lexer.Error()
	case TokenEOF:
		return types.NewError(types.ErrUnexpectedEnd, "Unexpected end of expression", -1)
	case TokenCurrent:
		return p.error(types.ErrMisplacedCurrent, "'@' is only valid as a function argument")
	default:
		return p.error(types.ErrSyntaxError, fmt.Sprintf("Unexpected token: %s", p.current.Text))
	}
}

func (p *Parser) node(nodeType types.NodeType, pos int, children ...*types.ASTNode) *types.ASTNode {
	return p.arena.Alloc(nodeType, pos, children...)
}

// parseExpression parses an expression with operator precedence.
// rbp is the right binding power (minimum precedence).
//
// depth tracks the height of the tree being built: one level per nested
// call and one per infix step, since every infix node puts the tree built
// so far one level further down.
func (p *Parser) parseExpression(rbp int) (*types.ASTNode, error) {
	base := p.depth
	defer func() { p.depth = base }()
	if err := p.descend(); err != nil {
		return nil, err
	}

	// Parse prefix expression (nud - null denotation)
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	// Parse infix expressions while precedence allows (led - left denotation)
	for rbp < p.getPrecedence(p.current.Type) {
		if err := p.descend(); err != nil {
			return nil, err
		}
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// descend adds one level to the current depth and fails once MaxDepth is
// exceeded.
func (p *Parser) descend() error {
	p.depth++
	if p.depth > p.opts.MaxDepth {
		return p.error(types.ErrNestingTooDeep, fmt.Sprintf("Expression nested deeper than %d levels", p.opts.MaxDepth))
	}
	return nil
}

// parsePrefix parses a prefix expression (nud - null denotation).
func (p *Parser) parsePrefix() (*types.ASTNode, error) {
	token := p.current

	switch token.Type {
	case TokenUnquotedIdent:
		if p.next.Type == TokenParenOpen {
			return p.parseFunction()
		}
		return p.parseField()
	case TokenQuotedIdent:
		return p.parseField()
	case TokenStar:
		// A bare * projects the values of the current node
		p.advance()
		return p.node(types.NodeIndexExpression, token.Position,
			p.node(types.NodeIdentity, token.Position),
			p.node(types.NodeWildcardValues, token.Position)), nil
	case TokenBracketOpen:
		return p.parseBracketPrefix()
	case TokenFilter:
		spec, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		return p.node(types.NodeIndexExpression, token.Position,
			p.node(types.NodeIdentity, token.Position), spec), nil
	case TokenBraceOpen:
		return p.parseMultiDict()
	case TokenLiteral:
		node := p.node(types.NodeLiteral, token.Position)
		node.Value = token.Literal
		p.advance()
		return node, nil
	case TokenRawString:
		node := p.node(types.NodeLiteral, token.Position)
		node.Value = token.Value
		p.advance()
		return node, nil
	default:
		return nil, p.unexpected()
	}
}

// parseInfix parses an infix expression (led - left denotation).
func (p *Parser) parseInfix(left *types.ASTNode) (*types.ASTNode, error) {
	led, ok := leds[p.current.Type]
	if !ok {
		return nil, p.unexpected()
	}
	return led(p, left)
}

// parseIndexExpression parses a bracket specifier applied to left.
func (p *Parser) parseIndexExpression(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	spec, err := p.parseBracketSpec()
	if err != nil {
		return nil, err
	}
	return p.node(types.NodeIndexExpression, pos, left, spec), nil
}

// parseFilterExpression parses a filter applied to left.
func (p *Parser) parseFilterExpression(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	spec, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	return p.node(types.NodeIndexExpression, pos, left, spec), nil
}

// parseField parses a quoted or unquoted identifier.
func (p *Parser) parseField() (*types.ASTNode, error) {
	node := p.node(types.NodeField, p.current.Position)
	node.StrValue = p.current.Value
	p.advance()
	return node, nil
}

// parseBinaryOp parses a pipe or or-expression.
func (p *Parser) parseBinaryOp(left *types.ASTNode, nodeType types.NodeType) (*types.ASTNode, error) {
	op := p.current
	p.advance()

	right, err := p.parseExpression(rightBindingPower(op.Type))
	if err != nil {
		return nil, err
	}
	return p.node(nodeType, op.Position, left, right), nil
}

// parseDot parses the right-hand side of a subexpression. Only
// identifiers, multi-selects, function calls and * may follow a dot.
func (p *Parser) parseDot(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '.'

	var (
		right *types.ASTNode
		err   error
	)
	switch p.current.Type {
	case TokenUnquotedIdent:
		if p.next.Type == TokenParenOpen {
			right, err = p.parseFunction()
		} else {
			right, err = p.parseField()
		}
	case TokenQuotedIdent:
		right, err = p.parseField()
	case TokenBracketOpen:
		bracket := p.current.Position
		p.advance()
		right, err = p.parseMultiList(bracket)
	case TokenBraceOpen:
		right, err = p.parseMultiDict()
	case TokenStar:
		// a.* is sugar for an index expression over the values of a
		star := p.current.Position
		p.advance()
		return p.node(types.NodeIndexExpression, pos, left, p.node(types.NodeWildcardValues, star)), nil
	default:
		return nil, p.unexpected()
	}
	if err != nil {
		return nil, err
	}
	return p.node(types.NodeSubexpression, pos, left, right), nil
}

// parseBracketPrefix parses a '[' in prefix position: either a bare
// bracket specifier or a multi-select list.
func (p *Parser) parseBracketPrefix() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '['

	switch {
	case p.current.Type == TokenStar && p.next.Type == TokenBracketClose:
		p.advance()
		p.advance()
		return p.node(types.NodeIndexExpression, pos,
			p.node(types.NodeIdentity, pos),
			p.node(types.NodeWildcardIndex, pos)), nil
	case p.current.Type == TokenNumber:
		return p.parseIndex(pos)
	case p.current.Type == TokenBracketClose:
		p.advance()
		return p.node(types.NodeIndexExpression, pos,
			p.node(types.NodeIdentity, pos),
			p.node(types.NodeListElements, pos)), nil
	default:
		return p.parseMultiList(pos)
	}
}

// parseBracketSpec parses a bracket specifier following an expression.
func (p *Parser) parseBracketSpec() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '['

	switch p.current.Type {
	case TokenStar:
		p.advance()
		if err := p.expect(TokenBracketClose); err != nil {
			return nil, err
		}
		return p.node(types.NodeWildcardIndex, pos), nil
	case TokenNumber:
		return p.parseIndex(pos)
	case TokenBracketClose:
		p.advance()
		return p.node(types.NodeListElements, pos), nil
	case TokenEOF, TokenError:
		return nil, p.unexpected()
	default:
		return nil, p.error(types.ErrInvalidBracket, fmt.Sprintf("Expected *, a number or ] after [ but got %s", p.current.Text))
	}
}

// parseIndex parses "NUMBER ]" after an opening bracket.
func (p *Parser) parseIndex(pos int) (*types.ASTNode, error) {
	n, err := strconv.Atoi(p.current.Value)
	if err != nil {
		return nil, p.error(types.ErrInvalidNumber, fmt.Sprintf("Invalid index: %s", p.current.Value))
	}
	p.advance()
	if err := p.expect(TokenBracketClose); err != nil {
		return nil, err
	}
	node := p.node(types.NodeIndex, pos)
	node.Index = n
	return node, nil
}

// parseFilter parses "[? expression comparator expression ]".
func (p *Parser) parseFilter() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '[?'

	left, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	cmp, ok := comparators[p.current.Type]
	if !ok {
		if p.current.Type == TokenEOF || p.current.Type == TokenError {
			return nil, p.unexpected()
		}
		return nil, p.error(types.ErrExpectedToken, fmt.Sprintf("Expected comparator but got %s", p.current.Text))
	}
	p.advance()

	right, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenBracketClose); err != nil {
		return nil, err
	}

	node := p.node(types.NodeFilter, pos, left, right)
	node.Comparator = cmp
	return node, nil
}

// comparators maps comparison tokens to their dedicated comparator.
var comparators = map[TokenType]types.Comparator{
	TokenLess:         types.CmpLess,
	TokenLessEqual:    types.CmpLessEqual,
	TokenGreater:      types.CmpGreater,
	TokenGreaterEqual: types.CmpGreaterEqual,
	TokenEqual:        types.CmpEqual,
	TokenNotEqual:     types.CmpNotEqual,
}

// parseMultiList parses the items of a multi-select list. The opening
// bracket has already been consumed.
func (p *Parser) parseMultiList(pos int) (*types.ASTNode, error) {
	var items []*types.ASTNode
	for {
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		items = append(items, expr)

		if p.current.Type == TokenBracketClose {
			p.advance()
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	return p.node(types.NodeMultiList, pos, items...), nil
}

// parseMultiDict parses a multi-select hash {key: expr, ...}.
func (p *Parser) parseMultiDict() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance() // Skip '{'

	var pairs []*types.ASTNode
	for {
		key := p.current
		if key.Type != TokenUnquotedIdent && key.Type != TokenQuotedIdent {
			return nil, p.unexpected()
		}
		p.advance()

		if err := p.expect(TokenColon); err != nil {
			return nil, err
		}

		value, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}

		pair := p.node(types.NodeKeyValPair, key.Position, value)
		pair.StrValue = key.Value
		pairs = append(pairs, pair)

		if p.current.Type == TokenBraceClose {
			p.advance()
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return nil, err
		}
	}
	return p.node(types.NodeMultiDict, pos, pairs...), nil
}

// parseFunction parses a function call and validates its arity.
// Called when the current token is a name followed by '('.
func (p *Parser) parseFunction() (*types.ASTNode, error) {
	name := p.current
	p.advance() // Skip name
	p.advance() // Skip '('

	var args []*types.ASTNode
	if p.current.Type == TokenParenClose {
		p.advance()
	} else {
		for {
			arg, err := p.parseFunctionArg()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.current.Type == TokenParenClose {
				p.advance()
				break
			}
			if err := p.expect(TokenComma); err != nil {
				return nil, err
			}
		}
	}

	if err := p.checkArity(name, len(args)); err != nil {
		return nil, err
	}

	node := p.node(types.NodeFunction, name.Position, args...)
	node.StrValue = name.Value
	return node, nil
}

// parseFunctionArg parses one argument: an expression, '@', or '&expr'.
func (p *Parser) parseFunctionArg() (*types.ASTNode, error) {
	switch p.current.Type {
	case TokenCurrent:
		node := p.node(types.NodeCurrent, p.current.Position)
		p.advance()
		return node, nil
	case TokenExpref:
		pos := p.current.Position
		p.advance()
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		return p.node(types.NodeExpressionRef, pos, expr), nil
	default:
		return p.parseExpression(0)
	}
}

// checkArity looks the function up in the signature table and compares
// its arity contract with the number of arguments supplied.
func (p *Parser) checkArity(name Token, argc int) error {
	sig, ok := p.opts.Functions.Lookup(name.Value)
	if !ok {
		err := types.NewError(types.ErrUndefinedFunction, fmt.Sprintf("Unknown function: %s()", name.Value), name.Position).
			WithToken(name.Text, name.Type.String())
		if s, ok := p.opts.Functions.(functions.Suggester); ok {
			err.Suggestions = s.Suggest(name.Value)
		}
		return err
	}
	if sig.Arity.Accepts(argc) {
		return nil
	}
	if sig.Arity.Variadic {
		return types.NewError(types.ErrTooFewArguments,
			fmt.Sprintf("Expected at least %d arguments for function %s(), received %d", sig.Arity.Args, sig.Name, argc),
			name.Position).WithToken(name.Text, name.Type.String())
	}
	return types.NewError(types.ErrArgumentCountMismatch,
		fmt.Sprintf("Expected %d arguments for function %s(), received %d", sig.Arity.Args, sig.Name, argc),
		name.Position).WithToken(name.Text, name.Type.String())
}
