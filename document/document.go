// Package document defines the canonical, format-agnostic tree that parsers
// produce and generators consume. The tree is independent of any source or
// target markup; information a given format cannot express canonically rides
// along in per-node extension attributes.
package document

import (
	"errors"
	"sort"
	"strings"
)

// Document construction errors.
var (
	ErrNilRoot      = errors.New("document root must not be nil")
	ErrParentedRoot = errors.New("document root must not have a parent")
)

// Document is the root of a canonical tree. A Document exclusively owns its
// node tree and always has exactly one root node.
type Document struct {
	Title string
	Root  *Node

	meta map[string]string
}

// New creates a Document owning the given root node.
func New(root *Node) (*Document, error) {
	if root == nil {
		return nil, ErrNilRoot
	}
	if root.Parent() != nil {
		return nil, ErrParentedRoot
	}
	return &Document{Root: root}, nil
}

// MustNew is New for statically-known shapes; it panics on misuse.
func MustNew(root *Node) *Document {
	d, err := New(root)
	if err != nil {
		panic("document: " + err.Error())
	}
	return d
}

// SetMeta records a metadata entry. Keys are case-insensitive and unique;
// setting an existing key overwrites it.
func (d *Document) SetMeta(key, value string) {
	if d.meta == nil {
		d.meta = make(map[string]string)
	}
	d.meta[strings.ToLower(key)] = value
}

// Meta reads a metadata entry by case-insensitive key.
func (d *Document) Meta(key string) (string, bool) {
	v, ok := d.meta[strings.ToLower(key)]
	return v, ok
}

// MetaKeys returns all metadata keys in sorted order.
func (d *Document) MetaKeys() []string {
	keys := make([]string, 0, len(d.meta))
	for k := range d.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies the document, its metadata, and its node tree.
// Generators that need to transform content work on a clone; the shared
// instance handed out by the pipeline is read-only by contract.
func (d *Document) Clone() *Document {
	cp := &Document{Title: d.Title, Root: d.Root.Clone()}
	if d.meta != nil {
		cp.meta = make(map[string]string, len(d.meta))
		for k, v := range d.meta {
			cp.meta[k] = v
		}
	}
	return cp
}

// Equal reports structural equality of two documents.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Title != b.Title {
		return false
	}
	if len(a.meta) != len(b.meta) {
		return false
	}
	for k, v := range a.meta {
		if bv, ok := b.meta[k]; !ok || bv != v {
			return false
		}
	}
	return EqualNodes(a.Root, b.Root)
}
