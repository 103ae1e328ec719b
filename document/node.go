package document

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Kind identifies a node variant.
type Kind string

// Node variants. The set is closed: adapters that need to carry information
// outside of it use extension attributes instead of new kinds.
const (
	KindSection       Kind = "section"
	KindParagraph     Kind = "paragraph"
	KindHeading       Kind = "heading"
	KindList          Kind = "list"
	KindListItem      Kind = "list_item"
	KindTable         Kind = "table"
	KindTableRow      Kind = "table_row"
	KindTableCell     Kind = "table_cell"
	KindCodeBlock     Kind = "code_block"
	KindFigure        Kind = "figure"
	KindCaption       Kind = "caption"
	KindImage         Kind = "image"
	KindLink          Kind = "link"
	KindCitation      Kind = "citation"
	KindText          Kind = "text"
	KindEmphasis      Kind = "emphasis"
	KindStrong        Kind = "strong"
	KindFootnote      Kind = "footnote"
	KindBlockQuote    Kind = "block_quote"
	KindThematicBreak Kind = "thematic_break"
	KindMath          Kind = "math"
)

// Node attach errors.
var (
	ErrNodeHasParent = errors.New("node already has a parent")
	ErrNodeCycle     = errors.New("attaching node would create a cycle")
	ErrNilNode       = errors.New("nil node")
)

// MinHeadingLevel and MaxHeadingLevel bound KindHeading levels.
const (
	MinHeadingLevel = 1
	MaxHeadingLevel = 6
)

// Node is one element of the canonical document tree. Children are ordered;
// order is document reading order. The parent pointer is a weak back-reference
// maintained by Append; ownership flows strictly downward.
type Node struct {
	Kind Kind

	Level    int    // heading level 1-6
	Ordered  bool   // ordered vs unordered list
	Language string // code block language tag
	Src      string // image source
	Alt      string // image alt text
	Href     string // link target
	Key      string // citation or footnote key
	Text     string // raw text content
	Display  bool   // display vs inline math

	// Attrs carries format-specific extension attributes. The core never
	// interprets them; only the adapter that wrote a key reads it back.
	Attrs map[string]string

	children []*Node
	parent   *Node
}

// NewNode creates a node of the given kind.
func NewNode(kind Kind) *Node {
	return &Node{Kind: kind}
}

// NewText creates a text node.
func NewText(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// NewHeading creates a heading node, clamping the level into [1,6].
func NewHeading(level int) *Node {
	if level < MinHeadingLevel {
		level = MinHeadingLevel
	}
	if level > MaxHeadingLevel {
		level = MaxHeadingLevel
	}
	return &Node{Kind: KindHeading, Level: level}
}

// Append attaches children to n in order. A child may have at most one
// parent, and attaching an ancestor is refused to keep the tree acyclic.
func (n *Node) Append(children ...*Node) error {
	for _, c := range children {
		if c == nil {
			return ErrNilNode
		}
		if c.parent != nil {
			return ErrNodeHasParent
		}
		for a := n; a != nil; a = a.parent {
			if a == c {
				return ErrNodeCycle
			}
		}
	}
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return nil
}

// MustAppend is Append for statically-known shapes; it panics on misuse.
func (n *Node) MustAppend(children ...*Node) *Node {
	if err := n.Append(children...); err != nil {
		panic(fmt.Sprintf("document: %v", err))
	}
	return n
}

// Children returns the ordered child sequence. Callers must not mutate it.
func (n *Node) Children() []*Node {
	return n.children
}

// Parent returns the weak back-reference, nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// SetAttr records an extension attribute on the node.
func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// Attr reads an extension attribute.
func (n *Node) Attr(key string) (string, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// Walk returns a lazy, restartable sequence over the subtree rooted at n in
// document order (pre-order). Ranging twice yields the same sequence.
func (n *Node) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walk(n, yield)
	}
}

func walk(n *Node, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.children {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Path returns the index path from the root to n, e.g. "/0/2/1".
// The root's path is "/".
func (n *Node) Path() string {
	if n.parent == nil {
		return "/"
	}
	var idx []string
	for c := n; c.parent != nil; c = c.parent {
		pos := 0
		for i, sib := range c.parent.children {
			if sib == c {
				pos = i
				break
			}
		}
		idx = append(idx, strconv.Itoa(pos))
	}
	var sb strings.Builder
	for i := len(idx) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(idx[i])
	}
	return sb.String()
}

// PlainText concatenates the text content of the subtree in document order.
func (n *Node) PlainText() string {
	var sb strings.Builder
	for node := range n.Walk() {
		if node.Kind == KindText {
			sb.WriteString(node.Text)
		}
	}
	return sb.String()
}

// Clone deep-copies the subtree rooted at n. The copy has no parent.
func (n *Node) Clone() *Node {
	cp := &Node{
		Kind:     n.Kind,
		Level:    n.Level,
		Ordered:  n.Ordered,
		Language: n.Language,
		Src:      n.Src,
		Alt:      n.Alt,
		Href:     n.Href,
		Key:      n.Key,
		Text:     n.Text,
		Display:  n.Display,
	}
	if n.Attrs != nil {
		cp.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	for _, c := range n.children {
		cc := c.Clone()
		cc.parent = cp
		cp.children = append(cp.children, cc)
	}
	return cp
}

// EqualNodes reports structural equality of two subtrees. Parent pointers are
// ignored; extension attributes and child order are significant.
func EqualNodes(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind ||
		a.Level != b.Level ||
		a.Ordered != b.Ordered ||
		a.Language != b.Language ||
		a.Src != b.Src ||
		a.Alt != b.Alt ||
		a.Href != b.Href ||
		a.Key != b.Key ||
		a.Text != b.Text ||
		a.Display != b.Display {
		return false
	}
	if len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for k, v := range a.Attrs {
		if bv, ok := b.Attrs[k]; !ok || bv != v {
			return false
		}
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !EqualNodes(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
