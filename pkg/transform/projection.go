// Package transform rewrites a raw JMESPath AST into its explicit-projection
// form.
//
// The grammar produces wildcards as plain index expressions:
//
//	a[*].b.c   =>  (subexpression (subexpression (indexexpression (field a) (wildcardindex)) (field b)) (field c))
//
// while the evaluator needs the per-element scope spelled out:
//
//	a[*].b.c   =>  (projection (field a) (subexpression (subexpression (identity) (field b)) (field c)))
//
// A projection absorbs everything chained to its right until a scope
// boundary is reached. Boundaries are pipes, or-expressions, multi-selects,
// key/value pairs, function calls, filters, expression references and
// projections themselves. Filters and expression references are boundaries
// here even though the classic JMESPath boundary list leaves them out, so a
// wildcard inside [?...] or &... never projects over the enclosing
// expression.
//
// The transform is functional: the input tree is never modified, untouched
// subtrees are shared with the result, and applying it to its own output
// returns the very same tree.
package transform

import (
	"fmt"

	"github.com/sandrolain/gojmespath/pkg/types"
)

// Option configures a Transformer.
type Option func(*Transformer)

// WithFilterProjections controls whether filter brackets ([?...]) start a
// projection. Enabled by default.
func WithFilterProjections(enabled bool) Option {
	return func(t *Transformer) {
		t.filters = enabled
	}
}

// WithFlattenProjections controls whether flatten brackets ([]) start a
// projection. Enabled by default.
func WithFlattenProjections(enabled bool) Option {
	return func(t *Transformer) {
		t.flatten = enabled
	}
}

// Transformer applies the projection rewrite. The zero value is not usable;
// create one with New. A Transformer holds no per-call state and may be
// shared between goroutines.
type Transformer struct {
	filters bool
	flatten bool
}

// New creates a Transformer.
func New(opts ...Option) *Transformer {
	t := &Transformer{
		filters: true,
		flatten: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Project rewrites root with a Transformer built from opts.
//
// It panics with a *types.InternalError when the tree violates a structural
// invariant that the parser guarantees, such as a node with the wrong
// number of children.
func Project(root *types.ASTNode, opts ...Option) *types.ASTNode {
	return New(opts...).Project(root)
}

// Project returns the explicit-projection form of root. The result is root
// itself when nothing had to change.
func (t *Transformer) Project(root *types.ASTNode) *types.ASTNode {
	if root == nil {
		return nil
	}
	return t.region(root, false)
}

// segment is a closed part of a chain: the collection a projection
// iterates over, and the kind of projection.
type segment struct {
	left *types.ASTNode
	kind types.NodeType
	pos  int
}

// region transforms the subtree hanging off a boundary slot.
//
// The chain of subexpressions and index expressions starting at n is its
// spine; the first node below the spine is its base. Steps are replayed from
// the base upwards. A projecting step closes the current segment, and the
// steps above it are rebuilt on top of a fresh Identity. The segments are
// then folded right to left into nested projections, so every projection's
// right side covers exactly what followed it up to the boundary.
//
// source is set for the left slot of an existing projection: its top step
// is that projection's own filter or flatten and must not project again.
func (t *Transformer) region(n *types.ASTNode, source bool) *types.ASTNode {
	var spine []*types.ASTNode
	base := n
	for isChain(base.Type) {
		checkArity(base)
		spine = append(spine, base)
		base = base.Children[0]
	}

	acc := t.boundary(base)

	var segs []segment
	for i := len(spine) - 1; i >= 0; i-- {
		step := spine[i]
		spec := step.Children[1]

		kind, ok := t.projects(step, source && i == 0)
		if !ok {
			acc = step.WithChildren(acc, t.region(spec, false))
			continue
		}

		left := acc
		if kind == types.NodeProjection && spec.Type != types.NodeWildcardIndex {
			// Filters and flattens stay on the projected collection.
			left = step.WithChildren(acc, t.region(spec, false))
		}
		segs = append(segs, segment{left: left, kind: kind, pos: step.Position})
		acc = types.NewASTNode(types.NodeIdentity, step.Position)
	}

	for i := len(segs) - 1; i >= 0; i-- {
		acc = types.NewASTNode(segs[i].kind, segs[i].pos, segs[i].left, acc)
	}
	return acc
}

// boundary transforms a node that is not part of a spine. Each child of a
// boundary is an independent region.
func (t *Transformer) boundary(n *types.ASTNode) *types.ASTNode {
	checkArity(n)
	if len(n.Children) == 0 {
		return n
	}

	var children []*types.ASTNode
	for i, c := range n.Children {
		if c == nil {
			panic(&types.InternalError{Node: n, Message: fmt.Sprintf("nil child at slot %d", i)})
		}
		source := i == 0 && isProjection(n.Type)
		nc := t.region(c, source)
		if nc != c && children == nil {
			children = make([]*types.ASTNode, len(n.Children))
			copy(children, n.Children)
		}
		if children != nil {
			children[i] = nc
		}
	}
	if children == nil {
		return n
	}
	return n.WithChildren(children...)
}

// projects reports whether an index expression step starts a projection,
// and of which kind.
func (t *Transformer) projects(step *types.ASTNode, exempt bool) (types.NodeType, bool) {
	if step.Type != types.NodeIndexExpression {
		return "", false
	}
	spec := step.Children[1]
	if !spec.Type.IsBracketSpec() {
		panic(&types.InternalError{Node: step, Message: fmt.Sprintf("index expression with %s in bracket slot", spec.Type)})
	}
	switch spec.Type {
	case types.NodeWildcardIndex:
		return types.NodeProjection, true
	case types.NodeWildcardValues:
		return types.NodeValueProjection, true
	case types.NodeFilter:
		return types.NodeProjection, t.filters && !exempt
	case types.NodeListElements:
		return types.NodeProjection, t.flatten && !exempt
	default:
		return "", false
	}
}

func isChain(nt types.NodeType) bool {
	return nt == types.NodeSubexpression || nt == types.NodeIndexExpression
}

func isProjection(nt types.NodeType) bool {
	return nt == types.NodeProjection || nt == types.NodeValueProjection
}

func checkArity(n *types.ASTNode) {
	if n == nil {
		panic(&types.InternalError{Message: "nil node"})
	}
	if want := n.Type.Arity(); want != types.Variadic && want != len(n.Children) {
		panic(&types.InternalError{
			Node:    n,
			Message: fmt.Sprintf("expected %d children, got %d", want, len(n.Children)),
		})
	}
}
