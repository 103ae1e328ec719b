// Package tei renders the canonical document model as TEI P5 XML, the
// interchange format used by scholarly text archives.
package tei

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

const teiNamespace = "http://www.tei-c.org/ns/1.0"

// Generator renders a Document as a TEI P5 file.
type Generator struct{}

// NewGenerator creates a TEI generator.
func NewGenerator() *Generator { return &Generator{} }

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "tei-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatTEI},
		Generator: NewGenerator(),
	}
}

// Generate renders doc as TEI XML. Headings become <head type="heading-N">,
// code blocks become <quote type="code">, figures become
// <figure>/<graphic>/<figDesc>.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	w := &teiWriter{enc: enc}
	w.open("TEI", attr("xmlns", teiNamespace))
	w.writeHeader(doc)
	w.open("text")
	w.open("body")
	for _, c := range doc.Root.Children() {
		w.block(c)
	}
	w.close(3) // body, text, TEI

	if w.err != nil {
		return nil, fmt.Errorf("encoding tei: %w", w.err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("encoding tei: %w", err)
	}
	buf.WriteString("\n")

	return &quire.Artifact{
		Format: quire.FormatTEI,
		Bytes:  buf.Bytes(),
	}, nil
}

// teiWriter wraps an xml.Encoder with a stack of open elements and sticky
// error handling.
type teiWriter struct {
	enc   *xml.Encoder
	stack []xml.StartElement
	err   error
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (w *teiWriter) open(name string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	el := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := w.enc.EncodeToken(el); err != nil {
		w.err = err
		return
	}
	w.stack = append(w.stack, el)
}

func (w *teiWriter) close(n int) {
	for ; n > 0 && w.err == nil && len(w.stack) > 0; n-- {
		el := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		if err := w.enc.EncodeToken(el.End()); err != nil {
			w.err = err
		}
	}
}

func (w *teiWriter) text(s string) {
	if w.err != nil || s == "" {
		return
	}
	if err := w.enc.EncodeToken(xml.CharData(s)); err != nil {
		w.err = err
	}
}

func (w *teiWriter) element(name, content string, attrs ...xml.Attr) {
	w.open(name, attrs...)
	w.text(content)
	w.close(1)
}

func (w *teiWriter) writeHeader(doc *document.Document) {
	w.open("teiHeader")
	w.open("fileDesc")
	w.open("titleStmt")
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	w.element("title", title)
	if author, ok := doc.Meta("author"); ok {
		w.element("author", author)
	}
	w.close(1) // titleStmt
	w.open("publicationStmt")
	w.element("p", "Converted document")
	w.close(1)
	w.open("sourceDesc")
	src := "Born-digital source"
	if u, ok := doc.Meta("source_url"); ok {
		src = u
	}
	w.element("p", src)
	w.close(2) // sourceDesc, fileDesc
	w.close(1) // teiHeader
}

func (w *teiWriter) block(n *document.Node) {
	switch n.Kind {
	case document.KindSection:
		w.open("div")
		for _, c := range n.Children() {
			w.block(c)
		}
		w.close(1)

	case document.KindHeading:
		w.open("head", attr("type", "heading-"+strconv.Itoa(n.Level)))
		w.inlineChildren(n)
		w.close(1)

	case document.KindParagraph:
		w.open("p")
		w.inlineChildren(n)
		w.close(1)

	case document.KindBlockQuote:
		w.open("quote")
		for _, c := range n.Children() {
			w.block(c)
		}
		w.close(1)

	case document.KindCodeBlock:
		attrs := []xml.Attr{attr("type", "code")}
		if n.Language != "" {
			attrs = append(attrs, attr("ana", n.Language))
		}
		w.element("quote", n.Text, attrs...)

	case document.KindList:
		rend := "bulleted"
		if n.Ordered {
			rend = "numbered"
		}
		w.open("list", attr("rend", rend))
		for _, item := range n.Children() {
			w.open("item")
			w.listItem(item)
			w.close(1)
		}
		w.close(1)

	case document.KindTable:
		w.open("table")
		for _, row := range n.Children() {
			if row.Kind != document.KindTableRow {
				continue
			}
			var attrs []xml.Attr
			if _, ok := row.Attr("table.header"); ok {
				attrs = append(attrs, attr("role", "label"))
			}
			w.open("row", attrs...)
			for _, cell := range row.Children() {
				w.open("cell")
				w.inlineChildren(cell)
				w.close(1)
			}
			w.close(1)
		}
		w.close(1)

	case document.KindFigure:
		w.open("figure")
		for _, c := range n.Children() {
			switch c.Kind {
			case document.KindImage:
				w.open("graphic", attr("url", c.Src))
				w.close(1)
				if c.Alt != "" {
					w.element("figDesc", c.Alt)
				}
			case document.KindCaption:
				w.open("head")
				w.inlineChildren(c)
				w.close(1)
			default:
				w.block(c)
			}
		}
		w.close(1)

	case document.KindImage:
		w.open("figure")
		w.open("graphic", attr("url", n.Src))
		w.close(1)
		if n.Alt != "" {
			w.element("figDesc", n.Alt)
		}
		w.close(1)

	case document.KindCaption:
		w.open("head")
		w.inlineChildren(n)
		w.close(1)

	case document.KindThematicBreak:
		w.open("milestone", attr("unit", "rule"))
		w.close(1)

	case document.KindMath:
		attrs := []xml.Attr{attr("notation", "TeX")}
		if n.Display {
			attrs = append(attrs, attr("rend", "display"))
		}
		w.element("formula", n.Text, attrs...)

	case document.KindFootnote:
		w.open("note", attr("n", n.Key))
		for _, c := range n.Children() {
			w.block(c)
		}
		w.close(1)

	default:
		w.open("p")
		w.inline(n)
		w.close(1)
	}
}

// listItem renders a tight item's single paragraph inline; everything else
// keeps its block form.
func (w *teiWriter) listItem(item *document.Node) {
	children := item.Children()
	if len(children) == 1 && children[0].Kind == document.KindParagraph {
		w.inlineChildren(children[0])
		return
	}
	for _, c := range children {
		w.block(c)
	}
}

func (w *teiWriter) inlineChildren(n *document.Node) {
	for _, c := range n.Children() {
		w.inline(c)
	}
}

func (w *teiWriter) inline(n *document.Node) {
	switch n.Kind {
	case document.KindText:
		if _, ok := n.Attr("inline-code"); ok {
			w.element("code", n.Text)
			return
		}
		w.text(n.Text)
	case document.KindEmphasis:
		w.open("hi", attr("rend", "italic"))
		w.inlineChildren(n)
		w.close(1)
	case document.KindStrong:
		w.open("hi", attr("rend", "bold"))
		w.inlineChildren(n)
		w.close(1)
	case document.KindLink:
		w.open("ref", attr("target", n.Href))
		w.inlineChildren(n)
		w.close(1)
	case document.KindImage:
		w.open("graphic", attr("url", n.Src))
		w.close(1)
	case document.KindCitation:
		w.open("ref", attr("type", "bibl"), attr("target", "#"+n.Key))
		w.text("[@" + n.Key + "]")
		w.close(1)
	case document.KindFootnote:
		w.open("note", attr("n", n.Key))
		for _, c := range n.Children() {
			w.block(c)
		}
		w.close(1)
	case document.KindMath:
		w.element("formula", n.Text, attr("notation", "TeX"))
	default:
		w.inlineChildren(n)
	}
}
