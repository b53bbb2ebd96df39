package nlogo

import "slices"

// NodeKind distinguishes the parts of a document tree we keep.
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
	CommentNode
)

// Attr is a single attribute. Attribute order is preserved on output.
type Attr struct {
	Name  string
	Value string
}

// Node is an immutable XML node. Methods that change a node return a new
// value and leave the receiver and its children untouched, so templates
// can be shared between generated runs.
type Node struct {
	Kind     NodeKind
	Name     string
	Attrs    []Attr
	Children []Node
	Text     string
}

// Element builds an element node.
func Element(name string, attrs []Attr, children ...Node) Node {
	return Node{Kind: ElementNode, Name: name, Attrs: attrs, Children: children}
}

// Text builds a character data node.
func Text(s string) Node {
	return Node{Kind: TextNode, Text: s}
}

// Attr returns the value of the named attribute.
func (n Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// WithAttr returns a copy of n with the named attribute set, keeping its
// position when it already exists.
func (n Node) WithAttr(name, value string) Node {
	attrs := slices.Clone(n.Attrs)
	for i := range attrs {
		if attrs[i].Name == name {
			attrs[i].Value = value
			n.Attrs = attrs
			return n
		}
	}
	n.Attrs = append(attrs, Attr{Name: name, Value: value})
	return n
}

// ChildElements returns the element children named name, in order.
func (n Node) ChildElements(name string) []Node {
	var out []Node
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Without returns a copy of n with the children at the given indexes
// removed. Indexes refer to n.Children.
func (n Node) Without(indexes map[int]bool) Node {
	children := make([]Node, 0, len(n.Children))
	for i, c := range n.Children {
		if !indexes[i] {
			children = append(children, c)
		}
	}
	n.Children = children
	return n
}

// WithAppended returns a copy of n with extra children added at the end.
func (n Node) WithAppended(extra ...Node) Node {
	children := make([]Node, 0, len(n.Children)+len(extra))
	children = append(children, n.Children...)
	n.Children = append(children, extra...)
	return n
}
