package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCanonicalDecode indicates the canonical form could not be parsed.
var ErrCanonicalDecode = errors.New("canonical form decode failed")

// canonicalNode is the wire shape of a Node in the canonical debug form.
type canonicalNode struct {
	Kind     Kind              `json:"kind"`
	Level    int               `json:"level,omitempty"`
	Ordered  bool              `json:"ordered,omitempty"`
	Language string            `json:"language,omitempty"`
	Src      string            `json:"src,omitempty"`
	Alt      string            `json:"alt,omitempty"`
	Href     string            `json:"href,omitempty"`
	Key      string            `json:"key,omitempty"`
	Text     string            `json:"text,omitempty"`
	Display  bool              `json:"display,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []canonicalNode   `json:"children,omitempty"`
}

type canonicalDoc struct {
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Root     canonicalNode     `json:"root"`
}

// MarshalCanonical serializes a Document to its format-agnostic debug form.
// ParseCanonical of the result yields a structurally identical tree.
func MarshalCanonical(d *Document) ([]byte, error) {
	if d == nil || d.Root == nil {
		return nil, ErrNilRoot
	}
	cd := canonicalDoc{
		Title:    d.Title,
		Metadata: d.meta,
		Root:     toCanonical(d.Root),
	}
	return json.MarshalIndent(cd, "", "  ")
}

// ParseCanonical rebuilds a Document from its canonical form.
func ParseCanonical(data []byte) (*Document, error) {
	var cd canonicalDoc
	if err := json.Unmarshal(data, &cd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalDecode, err)
	}
	if cd.Root.Kind == "" {
		return nil, fmt.Errorf("%w: missing root kind", ErrCanonicalDecode)
	}
	doc, err := New(fromCanonical(cd.Root))
	if err != nil {
		return nil, err
	}
	doc.Title = cd.Title
	for k, v := range cd.Metadata {
		doc.SetMeta(k, v)
	}
	return doc, nil
}

func toCanonical(n *Node) canonicalNode {
	cn := canonicalNode{
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
		Attrs:    n.Attrs,
	}
	for _, c := range n.children {
		cn.Children = append(cn.Children, toCanonical(c))
	}
	return cn
}

func fromCanonical(cn canonicalNode) *Node {
	n := &Node{
		Kind:     cn.Kind,
		Level:    cn.Level,
		Ordered:  cn.Ordered,
		Language: cn.Language,
		Src:      cn.Src,
		Alt:      cn.Alt,
		Href:     cn.Href,
		Key:      cn.Key,
		Text:     cn.Text,
		Display:  cn.Display,
		Attrs:    cn.Attrs,
	}
	for _, cc := range cn.Children {
		child := fromCanonical(cc)
		child.parent = n
		n.children = append(n.children, child)
	}
	return n
}
