package parser_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"

	"github.com/sandrolain/gojmespath/pkg/functions"
	"github.com/sandrolain/gojmespath/pkg/parser"
	"github.com/sandrolain/gojmespath/pkg/transform"
	"github.com/sandrolain/gojmespath/pkg/types"
)

// Helper functions

func parseRaw(t *testing.T, input string) *types.ASTNode {
	t.Helper()
	node, err := parser.Parse(input)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", input, err)
	}
	return node
}

func parseError(t *testing.T, input string, opts ...parser.CompileOption) *types.Error {
	t.Helper()
	node, err := parser.Parse(input, opts...)
	if err == nil {
		t.Fatalf("Expected error parsing %q but got %s", input, node)
	}
	var perr *types.Error
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *types.Error parsing %q, got %T: %v", input, err, err)
	}
	return perr
}

type treeTestCase struct {
	name  string
	input string
	want  string
}

func runTreeTests(t *testing.T, tests []treeTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRaw(t, tt.input).String()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseIdentifiers(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"unquoted", "foo", "(field foo)"},
		{"quoted", `"foo"`, "(field foo)"},
		{"quoted with space", `"foo bar"`, `(field "foo bar")`},
		{"quoted with paren", `"x)"`, `(field "x)")`},
		{"quoted empty", `""`, `(field "")`},
		{"subexpression", "a.b", "(subexpression (field a) (field b))"},
		{"chain is left nested", "a.b.c", "(subexpression (subexpression (field a) (field b)) (field c))"},
		{"quoted after dot", `a."b c"`, `(subexpression (field a) (field "b c"))`},
	})
}

func TestParseLiterals(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"raw string", `'foo'`, `(literal "foo")`},
		{"raw string escaped quote", `'it\'s'`, `(literal "it's")`},
		{"json string", "`\"foo\"`", `(literal "foo")`},
		{"json number", "`1.5`", "(literal 1.5)"},
		{"json boolean", "`true`", "(literal true)"},
		{"json null", "`null`", "(literal null)"},
		{"json object", "`{\"b\": 2, \"a\": [1]}`", `(literal {"a":[1],"b":2})`},
	})
}

func TestParseBracketSpecifiers(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"index", "a[0]", "(indexexpression (field a) (index 0))"},
		{"negative index", "a[-1]", "(indexexpression (field a) (index -1))"},
		{"bare index", "[2]", "(index 2)"},
		{"wildcard", "a[*]", "(indexexpression (field a) (wildcardindex))"},
		{"bare wildcard", "[*]", "(indexexpression (identity) (wildcardindex))"},
		{"flatten", "a[]", "(indexexpression (field a) (listelements))"},
		{"bare flatten", "[]", "(indexexpression (identity) (listelements))"},
		{"value wildcard", "a.*", "(indexexpression (field a) (wildcardvalues))"},
		{"bare value wildcard", "*", "(indexexpression (identity) (wildcardvalues))"},
		{"index binds after dot chain", "a.b[0]", "(indexexpression (subexpression (field a) (field b)) (index 0))"},
		{"chained brackets", "a[0][1]", "(indexexpression (indexexpression (field a) (index 0)) (index 1))"},
		{
			"wildcard then field",
			"a[*].b",
			"(subexpression (indexexpression (field a) (wildcardindex)) (field b))",
		},
	})
}

func TestParseFilters(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"equal", "a[?b == 'x']", `(indexexpression (field a) (filterexpression == (field b) (literal "x")))`},
		{"not equal", "a[?b != c]", "(indexexpression (field a) (filterexpression != (field b) (field c)))"},
		{"less", "[?a < b]", "(indexexpression (identity) (filterexpression < (field a) (field b)))"},
		{"less equal", "a[?b <= `1`]", "(indexexpression (field a) (filterexpression <= (field b) (literal 1)))"},
		{"greater", "a[?b > `1`]", "(indexexpression (field a) (filterexpression > (field b) (literal 1)))"},
		{"greater equal", "a[?b >= `1`]", "(indexexpression (field a) (filterexpression >= (field b) (literal 1)))"},
		{
			"operands are full expressions",
			"a[?b.c >= d[0]]",
			"(indexexpression (field a) (filterexpression >= (subexpression (field b) (field c)) (indexexpression (field d) (index 0))))",
		},
		{
			"pipe inside filter",
			"a[?b | c == d]",
			"(indexexpression (field a) (filterexpression == (pipe (field b) (field c)) (field d)))",
		},
	})
}

func TestParsePrecedence(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"or binds looser than dot", "a || b.c", "(orexpression (field a) (subexpression (field b) (field c)))"},
		{"or binds looser than bracket", "a || b[0]", "(orexpression (field a) (indexexpression (field b) (index 0)))"},
		{"dot before or", "a.b || c", "(orexpression (subexpression (field a) (field b)) (field c))"},
		{"pipe binds looser than or", "a | b || c", "(pipe (field a) (orexpression (field b) (field c)))"},
		{"or before pipe", "a || b | c", "(pipe (orexpression (field a) (field b)) (field c))"},
		{"pipe is left associative", "a | b | c", "(pipe (pipe (field a) (field b)) (field c))"},
		{"or is left associative", "a || b || c", "(orexpression (orexpression (field a) (field b)) (field c))"},
		{
			"projection continues through dots",
			"a[*].b | c",
			"(pipe (subexpression (indexexpression (field a) (wildcardindex)) (field b)) (field c))",
		},
	})
}

func TestParseMultiSelect(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"list", "[a, b.c]", "(multifieldlist (field a) (subexpression (field b) (field c)))"},
		{"single item list", "[a]", "(multifieldlist (field a))"},
		{"list starting with star", "[*.a, b]", "(multifieldlist (subexpression (indexexpression (identity) (wildcardvalues)) (field a)) (field b))"},
		{"list after dot", "a.[b, c]", "(subexpression (field a) (multifieldlist (field b) (field c)))"},
		{"hash", "{x: a, y: b}", "(multifielddict (keyvalpair x (field a)) (keyvalpair y (field b)))"},
		{"hash quoted key", `{"x y": a}`, `(multifielddict (keyvalpair "x y" (field a)))`},
		{"hash after dot", "a.{x: b}", "(subexpression (field a) (multifielddict (keyvalpair x (field b))))"},
		{"nested", "{x: [a, {y: b}]}", "(multifielddict (keyvalpair x (multifieldlist (field a) (multifielddict (keyvalpair y (field b))))))"},
	})
}

func TestParseFunctions(t *testing.T) {
	runTreeTests(t, []treeTestCase{
		{"single argument", "length(a)", "(functionexpression length (field a))"},
		{"two arguments", "contains(a, 'x')", `(functionexpression contains (field a) (literal "x"))`},
		{"current node", "length(@)", "(functionexpression length (currentnode))"},
		{"after dot", "a.length(@)", "(subexpression (field a) (functionexpression length (currentnode)))"},
		{
			"expression reference",
			"sort_by(a, &b.c)",
			"(functionexpression sort_by (field a) (expressionreference (subexpression (field b) (field c))))",
		},
		{"variadic", "merge(a, b, c)", "(functionexpression merge (field a) (field b) (field c))"},
		{"nested", "length(keys(a))", "(functionexpression length (functionexpression keys (field a)))"},
		{"name without call is a field", "length", "(field length)"},
	})
}

func TestParseArity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  types.ErrorKind
		code  types.ErrorCode
	}{
		{"fixed one with two", "length(a, b)", types.KindArity, types.ErrArgumentCountMismatch},
		{"fixed one with none", "length()", types.KindArity, types.ErrArgumentCountMismatch},
		{"fixed two with one", "contains(a)", types.KindArity, types.ErrArgumentCountMismatch},
		{"fixed two with three", "contains(a, b, c)", types.KindArity, types.ErrArgumentCountMismatch},
		{"variadic with none", "merge()", types.KindVariadicArity, types.ErrTooFewArguments},
		{"variadic not_null with none", "not_null()", types.KindVariadicArity, types.ErrTooFewArguments},
		{"nested arity error", "length(contains(a))", types.KindArity, types.ErrArgumentCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseError(t, tt.input)
			if perr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s (%v)", tt.kind, perr.Kind, perr)
			}
			if perr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, perr.Code)
			}
		})
	}
}

func TestParseArityMessage(t *testing.T) {
	perr := parseError(t, "a | contains(b)")
	if perr.Position != 4 {
		t.Errorf("expected position 4, got %d", perr.Position)
	}
	if perr.Token != "contains" {
		t.Errorf("expected token contains, got %q", perr.Token)
	}
	want := "Expected 2 arguments for function contains(), received 1"
	if perr.Message != want {
		t.Errorf("expected message %q, got %q", want, perr.Message)
	}
}

func TestParseUnknownFunction(t *testing.T) {
	perr := parseError(t, "lengt(a)")
	if perr.Kind != types.KindUnknownFunction {
		t.Fatalf("expected unknown function, got %s", perr.Kind)
	}
	if !slices.Contains(perr.Suggestions, "length") {
		t.Errorf("expected length among suggestions, got %v", perr.Suggestions)
	}
	if !strings.Contains(perr.Error(), "did you mean") {
		t.Errorf("expected suggestion in message, got %q", perr.Error())
	}
}

func TestParseCustomFunctions(t *testing.T) {
	reg := functions.Builtins()
	if err := reg.Register(functions.Signature{Name: "concat", Arity: functions.AtLeast(2)}); err != nil {
		t.Fatal(err)
	}

	node, err := parser.Parse("concat(a, b, c)", parser.WithFunctions(reg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Type != types.NodeFunction || len(node.Children) != 3 {
		t.Errorf("unexpected tree %s", node)
	}

	perr := parseError(t, "concat(a)", parser.WithFunctions(reg))
	if perr.Kind != types.KindVariadicArity {
		t.Errorf("expected variadic arity error, got %s", perr.Kind)
	}

	// The default table is not affected by registrations on a copy.
	perr = parseError(t, "concat(a, b)")
	if perr.Kind != types.KindUnknownFunction {
		t.Errorf("expected unknown function with default table, got %s", perr.Kind)
	}
}

func TestParseIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"trailing dot", "foo."},
		{"open bracket", "a["},
		{"open bracket after star", "a[*"},
		{"open filter", "a[?b =="},
		{"filter without comparator", "a[?b"},
		{"open multi-select list", "[a, b"},
		{"open multi-select hash", "{a: b"},
		{"hash without value", "{a:"},
		{"open call", "length("},
		{"open call with argument", "length(a"},
		{"trailing pipe", "a |"},
		{"trailing or", "a ||"},
		{"expression reference", "sort_by(a, &"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseError(t, tt.input)
			if perr.Kind != types.KindIncomplete {
				t.Fatalf("expected incomplete expression, got %s (%v)", perr.Kind, perr)
			}
			if perr.Position != -1 {
				t.Errorf("expected no position, got %d", perr.Position)
			}
			if perr.Expression != tt.input {
				t.Errorf("expected expression %q attached, got %q", tt.input, perr.Expression)
			}
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		code     types.ErrorCode
		position int
		token    string
	}{
		{"trailing identifier", "a b", types.ErrSyntaxError, 2, "b"},
		{"double dot", "a..b", types.ErrSyntaxError, 2, "."},
		{"number after dot", "a.0", types.ErrSyntaxError, 2, "0"},
		{"index after dot", "a.[0]", types.ErrSyntaxError, 3, "0"},
		{"expression in bracket", "a[b]", types.ErrInvalidBracket, 2, "b"},
		{"wildcard expression in bracket", "a[*.b]", types.ErrExpectedToken, 3, "."},
		{"filter without comparator", "a[?b]", types.ErrExpectedToken, 4, "]"},
		{"chained comparators", "a[?b == c == d]", types.ErrExpectedToken, 10, "=="},
		{"bare current node", "@", types.ErrMisplacedCurrent, 0, "@"},
		{"current node in chain", "length(@.a)", types.ErrExpectedToken, 8, "."},
		{"comparator outside filter", "a == b", types.ErrSyntaxError, 2, "=="},
		{"empty multi-select list after dot", "a.[]", types.ErrSyntaxError, 3, "]"},
		{"hash with number key", "{1: a}", types.ErrSyntaxError, 1, "1"},
		{"hash missing colon", "{a b}", types.ErrExpectedToken, 3, "b"},
		{"unbalanced paren", "a)", types.ErrSyntaxError, 1, ")"},
		{"function on quoted name", `"length"(a)`, types.ErrSyntaxError, 8, "("},
		{"expression reference outside call", "&a", types.ErrSyntaxError, 0, "&"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseError(t, tt.input)
			if perr.Kind != types.KindSyntax {
				t.Fatalf("expected syntax error, got %s (%v)", perr.Kind, perr)
			}
			if perr.Code != tt.code {
				t.Errorf("expected code %s, got %s (%v)", tt.code, perr.Code, perr)
			}
			if perr.Position != tt.position {
				t.Errorf("expected position %d, got %d", tt.position, perr.Position)
			}
			if perr.Token != tt.token {
				t.Errorf("expected token %q, got %q", tt.token, perr.Token)
			}
		})
	}
}

func TestParseLexicalErrorPropagates(t *testing.T) {
	perr := parseError(t, "a.b ~ c")
	if perr.Kind != types.KindLexical {
		t.Fatalf("expected lexical error, got %s", perr.Kind)
	}
	if perr.Position != 4 {
		t.Errorf("expected position 4, got %d", perr.Position)
	}
	if perr.Expression != "a.b ~ c" {
		t.Errorf("expected expression attached, got %q", perr.Expression)
	}
	if got := perr.Pointer(); got != "a.b ~ c\n    ^" {
		t.Errorf("unexpected pointer %q", got)
	}
}

func TestParseMaxDepth(t *testing.T) {
	deep := strings.Repeat("[", 50) + "a" + strings.Repeat("]", 50)
	if _, err := parser.Parse(deep); err != nil {
		t.Fatalf("expected depth 50 to parse with the default limit: %v", err)
	}

	perr := parseError(t, deep, parser.WithMaxDepth(10))
	if perr.Code != types.ErrNestingTooDeep {
		t.Errorf("expected nesting error, got %s", perr.Code)
	}

	// Far deeper than any stack would allow without the guard.
	huge := strings.Repeat("[", 100000)
	perr = parseError(t, huge)
	if perr.Code != types.ErrNestingTooDeep {
		t.Errorf("expected nesting error, got %s", perr.Code)
	}
}

func TestParseMaxDepthChains(t *testing.T) {
	tests := []struct {
		name string
		op   string
	}{
		{"pipe", "a|"},
		{"or", "a||"},
		{"dot", "a."},
		{"index", "a[0]."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Left-nested chains grow the tree without nested calls.
			perr := parseError(t, strings.Repeat(tt.op, 100000)+"a[*].b")
			if perr.Code != types.ErrNestingTooDeep {
				t.Errorf("expected nesting error, got %s", perr.Code)
			}

			short := strings.Repeat(tt.op, 100) + "a[*].b"
			expr, err := parser.Compile(short)
			if err != nil {
				t.Fatalf("expected a chain of 100 to compile with the default limit: %v", err)
			}
			if err := expr.AST().Validate(); err != nil {
				t.Errorf("projected chain is invalid: %v", err)
			}
		})
	}

	perr := parseError(t, "a | b | c", parser.WithMaxDepth(3))
	if perr.Code != types.ErrNestingTooDeep {
		t.Errorf("expected nesting error, got %s", perr.Code)
	}
	if _, err := parser.Parse("a | b", parser.WithMaxDepth(3)); err != nil {
		t.Errorf("expected a single pipe to fit depth 3: %v", err)
	}
}

func TestParseDoesNotProject(t *testing.T) {
	for _, input := range []string{"a[*].b", "a.*.b", "[*]", "a[?b == c].d", "a[].b"} {
		parseRaw(t, input).Walk(func(n *types.ASTNode) bool {
			if n.Type == types.NodeProjection || n.Type == types.NodeValueProjection {
				t.Errorf("raw tree of %q contains %s", input, n.Type)
			}
			return true
		})
	}
}

func TestParseValidArity(t *testing.T) {
	for _, input := range []string{
		"a.b[0].c[*].d | {x: [e, f], y: g || h}",
		"sort_by(people, &age)[?age > `20`].name",
		"length(@) || merge(a, {b: c})",
	} {
		if err := parseRaw(t, input).Validate(); err != nil {
			t.Errorf("Validate(%q): %v", input, err)
		}
	}
}

func TestCompile(t *testing.T) {
	expr, err := parser.Compile("a[*].b | c")
	if err != nil {
		t.Fatal(err)
	}
	want := "(pipe (projection (field a) (subexpression (identity) (field b))) (field c))"
	if diff := cmp.Diff(want, expr.AST().String()); diff != "" {
		t.Errorf("Compile mismatch (-want +got):\n%s", diff)
	}
	if expr.Source() != "a[*].b | c" {
		t.Errorf("unexpected source %q", expr.Source())
	}

	expr, err = parser.Compile("a[?b == c].d", parser.WithTransformOptions(transform.WithFilterProjections(false)))
	if err != nil {
		t.Fatal(err)
	}
	want = "(subexpression (indexexpression (field a) (filterexpression == (field b) (field c))) (field d))"
	if diff := cmp.Diff(want, expr.AST().String()); diff != "" {
		t.Errorf("Compile without filter projections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := parser.Parse("foo.", parser.WithLogger(logger)); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "parse failed") || !strings.Contains(buf.String(), "foo.") {
		t.Errorf("expected debug record, got %q", buf.String())
	}
}

func TestTableDiagnostics(t *testing.T) {
	if diags := parser.TableDiagnostics(); len(diags) != 0 {
		t.Fatalf("precedence table is ambiguous: %v", diags)
	}
}
