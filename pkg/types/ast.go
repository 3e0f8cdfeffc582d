package types

import "fmt"

// NodeType identifies the type of an AST node.
type NodeType string

// AST node types. The names match the s-expression rendering produced by
// [Sexpr], so a tree can be compared against its textual form in tests.
const (
	// Leaves
	NodeField          NodeType = "field"
	NodeIdentity       NodeType = "identity"
	NodeCurrent        NodeType = "currentnode"
	NodeLiteral        NodeType = "literal"
	NodeIndex          NodeType = "index"
	NodeListElements   NodeType = "listelements"   // []
	NodeWildcardIndex  NodeType = "wildcardindex"  // [*]
	NodeWildcardValues NodeType = "wildcardvalues" // .*

	// Chained evaluation
	NodeSubexpression   NodeType = "subexpression"   // a.b
	NodeIndexExpression NodeType = "indexexpression" // a[...]
	NodePipe            NodeType = "pipe"            // a | b
	NodeOr              NodeType = "orexpression"    // a || b

	// Multi-select and functions
	NodeMultiList  NodeType = "multifieldlist"     // [a, b]
	NodeMultiDict  NodeType = "multifielddict"     // {k: a}
	NodeKeyValPair NodeType = "keyvalpair"         // k: a
	NodeFunction   NodeType = "functionexpression" // f(a, b)

	// Filters and expression references
	NodeFilter        NodeType = "filterexpression"    // [?a == b]
	NodeExpressionRef NodeType = "expressionreference" // &a

	// Introduced by the projection transform only
	NodeProjection      NodeType = "projection"
	NodeValueProjection NodeType = "valueprojection"
)

// Variadic is the arity reported for node types with an open child list.
const Variadic = -1

// Arity returns the fixed number of children a node of this type carries,
// or Variadic for multi-select and function nodes.
func (t NodeType) Arity() int {
	switch t {
	case NodeField, NodeIdentity, NodeCurrent, NodeLiteral,
		NodeIndex, NodeListElements, NodeWildcardIndex, NodeWildcardValues:
		return 0
	case NodeKeyValPair, NodeExpressionRef:
		return 1
	case NodeSubexpression, NodeIndexExpression, NodePipe, NodeOr,
		NodeFilter, NodeProjection, NodeValueProjection:
		return 2
	case NodeMultiList, NodeMultiDict, NodeFunction:
		return Variadic
	default:
		return 0
	}
}

// IsBracketSpec reports whether the type may appear as the second child of
// an index expression.
func (t NodeType) IsBracketSpec() bool {
	switch t {
	case NodeIndex, NodeListElements, NodeWildcardIndex, NodeWildcardValues, NodeFilter:
		return true
	default:
		return false
	}
}

// Comparator is the operator of a filter expression.
type Comparator uint8

const (
	CmpLess Comparator = iota + 1
	CmpLessEqual
	CmpGreater
	CmpGreaterEqual
	CmpEqual
	CmpNotEqual
)

// String returns the source form of the comparator.
func (c Comparator) String() string {
	switch c {
	case CmpLess:
		return "<"
	case CmpLessEqual:
		return "<="
	case CmpGreater:
		return ">"
	case CmpGreaterEqual:
		return ">="
	case CmpEqual:
		return "=="
	case CmpNotEqual:
		return "!="
	default:
		return "(unknown)"
	}
}

// ASTNode represents a node in the Abstract Syntax Tree.
//
// Children are ordered and their number is fixed by Type (see
// [NodeType.Arity]). Payload fields are only meaningful for the node types
// that use them:
//   - Field, KeyValPair, FunctionExpression: StrValue holds the name.
//   - Literal: Value holds the decoded JSON value.
//   - Index: Index holds the (possibly negative) position.
//   - FilterExpression: Comparator holds the operator.
type ASTNode struct {
	Type       NodeType
	Value      interface{}
	StrValue   string
	Index      int
	Comparator Comparator
	Position   int

	Children []*ASTNode
}

// NewASTNode creates a new AST node of the specified type.
// Prefer NodeArena.Alloc when parsing to reduce per-node heap allocations.
func NewASTNode(nodeType NodeType, position int, children ...*ASTNode) *ASTNode {
	return &ASTNode{
		Type:     nodeType,
		Position: position,
		Children: children,
	}
}

// Left returns the first child, or nil for leaves.
func (n *ASTNode) Left() *ASTNode {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// Right returns the second child, or nil when the node has fewer than two.
func (n *ASTNode) Right() *ASTNode {
	if len(n.Children) < 2 {
		return nil
	}
	return n.Children[1]
}

// WithChildren returns n itself when children are the same nodes as
// n.Children, and a shallow copy of n carrying children otherwise.
// It never modifies n.
func (n *ASTNode) WithChildren(children ...*ASTNode) *ASTNode {
	if len(children) == len(n.Children) {
		same := true
		for i := range children {
			if children[i] != n.Children[i] {
				same = false
				break
			}
		}
		if same {
			return n
		}
	}
	cp := *n
	cp.Children = children
	return &cp
}

// Validate checks the arity invariant on the whole tree rooted at n.
func (n *ASTNode) Validate() error {
	if n == nil {
		return fmt.Errorf("nil node")
	}
	if want := n.Type.Arity(); want != Variadic && want != len(n.Children) {
		return fmt.Errorf("%s at position %d: expected %d children, got %d",
			n.Type, n.Position, want, len(n.Children))
	}
	for _, c := range n.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls fn for n and every descendant in depth-first pre-order.
// Returning false from fn skips the children of that node.
func (n *ASTNode) Walk(fn func(*ASTNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// String returns the s-expression form of the tree.
func (n *ASTNode) String() string {
	return Sexpr(n)
}

// arenaChunkSize is the number of ASTNode values pre-allocated per arena chunk.
// Most JMESPath expressions fit in a single chunk.
const arenaChunkSize = 32

// NodeArena is a bump-pointer allocator for ASTNode values.
//
// Nodes handed out by the arena stay valid as long as any of them is
// reachable; the GC keeps the chunk alive through interior pointers.
//
// NodeArena is NOT thread-safe. Each parser owns its own arena.
type NodeArena struct {
	chunks [][]ASTNode
	pos    int
}

// NewNodeArena allocates an arena pre-warmed with one initial chunk.
func NewNodeArena() *NodeArena {
	return &NodeArena{
		chunks: [][]ASTNode{make([]ASTNode, arenaChunkSize)},
	}
}

// Alloc returns a pointer to a fresh ASTNode inside the arena with Type,
// Position and Children set.
func (a *NodeArena) Alloc(nodeType NodeType, position int, children ...*ASTNode) *ASTNode {
	if a.pos >= arenaChunkSize {
		a.chunks = append(a.chunks, make([]ASTNode, arenaChunkSize))
		a.pos = 0
	}
	n := &a.chunks[len(a.chunks)-1][a.pos]
	a.pos++
	n.Type = nodeType
	n.Position = position
	n.Children = children
	return n
}
