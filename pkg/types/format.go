package types

import (
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sexpr renders the tree rooted at n as an s-expression, e.g.
//
//	(projection (field a) (subexpression (identity) (field b)))
func Sexpr(n *ASTNode) string {
	var str strings.Builder
	writeSexpr(&str, n)
	return str.String()
}

func writeSexpr(w *strings.Builder, n *ASTNode) {
	if n == nil {
		w.WriteString("(nil)")
		return
	}
	w.WriteString("(")
	w.WriteString(string(n.Type))
	if p := payload(n); p != "" {
		w.WriteString(" ")
		w.WriteString(p)
	}
	for _, c := range n.Children {
		w.WriteString(" ")
		writeSexpr(w, c)
	}
	w.WriteString(")")
}

// payload returns the printable scalar of a node, or "" when it has none.
func payload(n *ASTNode) string {
	switch n.Type {
	case NodeField, NodeFunction, NodeKeyValPair:
		return name(n.StrValue)
	case NodeIndex:
		return strconv.Itoa(n.Index)
	case NodeFilter:
		return n.Comparator.String()
	case NodeLiteral:
		b, err := json.Marshal(n.Value)
		if err != nil {
			return "?"
		}
		return string(b)
	default:
		return ""
	}
}

// name quotes an identifier that would not read back as a single atom.
func name(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n()\"") {
		return strconv.Quote(s)
	}
	return s
}

// TreeStyle decorates the parts of an indented tree. Nil functions leave
// the text untouched.
type TreeStyle struct {
	Type    func(string) string
	Payload func(string) string
	Branch  func(string) string
}

func (s *TreeStyle) apply(fn func(string) string, str string) string {
	if s == nil || fn == nil {
		return str
	}
	return fn(str)
}

// WriteTree writes an indented, box-drawn rendering of the tree to w.
func WriteTree(w io.Writer, n *ASTNode, style *TreeStyle) error {
	var str strings.Builder
	writeTree(&str, n, "", "", style)
	_, err := io.WriteString(w, str.String())
	return err
}

func writeTree(w *strings.Builder, n *ASTNode, prefix, branch string, style *TreeStyle) {
	w.WriteString(style.apply(style.Branch, prefix+branch))
	if n == nil {
		w.WriteString("nil\n")
		return
	}
	w.WriteString(style.apply(style.Type, string(n.Type)))
	if p := payload(n); p != "" {
		w.WriteString(" ")
		w.WriteString(style.apply(style.Payload, p))
	}
	w.WriteString("\n")

	switch branch {
	case "├── ":
		prefix += "│   "
	case "└── ":
		prefix += "    "
	}
	for i, c := range n.Children {
		if i == len(n.Children)-1 {
			writeTree(w, c, prefix, "└── ", style)
		} else {
			writeTree(w, c, prefix, "├── ", style)
		}
	}
}

// ToMap converts the tree into plain maps and slices suitable for JSON
// encoding.
func ToMap(n *ASTNode) map[string]interface{} {
	if n == nil {
		return nil
	}
	m := map[string]interface{}{
		"type":     string(n.Type),
		"position": n.Position,
	}
	switch n.Type {
	case NodeField, NodeFunction, NodeKeyValPair:
		m["name"] = n.StrValue
	case NodeIndex:
		m["index"] = n.Index
	case NodeFilter:
		m["comparator"] = n.Comparator.String()
	case NodeLiteral:
		m["value"] = n.Value
	}
	if len(n.Children) > 0 {
		children := make([]interface{}, len(n.Children))
		for i, c := range n.Children {
			children[i] = ToMap(c)
		}
		m["children"] = children
	}
	return m
}
