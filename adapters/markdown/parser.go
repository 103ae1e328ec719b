// Package markdown parses GitHub-flavored Markdown into the canonical
// document model and renders the model back to Markdown. YAML front matter
// becomes document metadata; pandoc-style [@key] references become citation
// nodes; ```math fences become display math.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Parser reads Markdown into the canonical model.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a Parser with GFM tables and footnotes enabled.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,      // tables, strikethrough, autolinks
				extension.Footnote, // [^1] footnotes
			),
		),
	}
}

// Compile-time interface check.
var _ quire.Parser = (*Parser)(nil)

// ParserCapability declares the parser for registration.
func ParserCapability() quire.Capability {
	return quire.Capability{
		Name:    "markdown-parser",
		Kind:    quire.KindParser,
		Formats: []quire.FormatID{quire.FormatMarkdown},
		Parser:  NewParser(),
	}
}

// Parse converts Markdown content into a Document.
func (p *Parser) Parse(ctx context.Context, raw quire.RawContent) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, meta, err := splitFrontMatter(raw.Bytes)
	if err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}

	root := p.md.Parser().Parse(text.NewReader(source))

	docRoot := document.NewNode(document.KindSection)
	if err := convertChildren(root, docRoot, source); err != nil {
		return nil, err
	}

	doc, err := document.New(docRoot)
	if err != nil {
		return nil, err
	}
	for k, v := range meta {
		doc.SetMeta(k, v)
	}
	if title, ok := doc.Meta("title"); ok {
		doc.Title = title
	} else if h := firstHeading(docRoot); h != "" {
		doc.Title = h
	}
	if !raw.FetchedAt.IsZero() {
		doc.SetMeta("fetched_at", raw.FetchedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	return doc, nil
}

// splitFrontMatter strips a leading YAML front-matter block and returns the
// remaining source plus the parsed metadata with stringified values.
func splitFrontMatter(src []byte) ([]byte, map[string]string, error) {
	trimmed := bytes.TrimLeft(src, "\ufeff")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) && !bytes.HasPrefix(trimmed, []byte("---\r\n")) {
		return src, nil, nil
	}
	rest := trimmed[bytes.IndexByte(trimmed, '\n')+1:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return src, nil, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	var values map[string]any
	if err := yaml.Unmarshal(block, &values); err != nil {
		return nil, nil, err
	}
	meta := make(map[string]string, len(values))
	for k, v := range values {
		meta[k] = fmt.Sprintf("%v", v)
	}
	return body, meta, nil
}

func firstHeading(root *document.Node) string {
	for n := range root.Walk() {
		if n.Kind == document.KindHeading {
			return strings.TrimSpace(n.PlainText())
		}
	}
	return ""
}

// convertChildren maps the children of a goldmark node onto canonical nodes
// appended to parent. Adjacent plain text segments are coalesced before
// citation splitting: goldmark emits bracket characters as their own text
// segments, so a [@key] reference spans segment boundaries.
func convertChildren(n ast.Node, parent *document.Node, source []byte) error {
	var nodes []*document.Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		converted, err := convertNode(c, source)
		if err != nil {
			return err
		}
		nodes = append(nodes, converted...)
	}
	return parent.Append(coalesceText(nodes)...)
}

// coalesceText merges runs of plain text nodes and splits [@key] references
// out of the merged runs.
func coalesceText(nodes []*document.Node) []*document.Node {
	var out []*document.Node
	var run strings.Builder
	flush := func() {
		if run.Len() == 0 {
			return
		}
		out = append(out, splitCitations(run.String())...)
		run.Reset()
	}
	for _, n := range nodes {
		if n.Kind == document.KindText && len(n.Attrs) == 0 && len(n.Children()) == 0 {
			run.WriteString(n.Text)
			continue
		}
		flush()
		out = append(out, n)
	}
	flush()
	return out
}

// citationPattern matches pandoc-style [@key] references in running text.
var citationPattern = regexp.MustCompile(`\[@([A-Za-z0-9_:.#$%&+?<>~/-]+)\]`)

func convertNode(n ast.Node, source []byte) ([]*document.Node, error) {
	switch v := n.(type) {
	case *ast.Heading:
		h := document.NewHeading(v.Level)
		if err := convertChildren(v, h, source); err != nil {
			return nil, err
		}
		return []*document.Node{h}, nil

	case *ast.Paragraph:
		p := document.NewNode(document.KindParagraph)
		if err := convertChildren(v, p, source); err != nil {
			return nil, err
		}
		return []*document.Node{p}, nil

	case *ast.TextBlock:
		p := document.NewNode(document.KindParagraph)
		if err := convertChildren(v, p, source); err != nil {
			return nil, err
		}
		return []*document.Node{p}, nil

	case *ast.Blockquote:
		q := document.NewNode(document.KindBlockQuote)
		if err := convertChildren(v, q, source); err != nil {
			return nil, err
		}
		return []*document.Node{q}, nil

	case *ast.List:
		l := document.NewNode(document.KindList)
		l.Ordered = v.IsOrdered()
		if err := convertChildren(v, l, source); err != nil {
			return nil, err
		}
		return []*document.Node{l}, nil

	case *ast.ListItem:
		li := document.NewNode(document.KindListItem)
		if err := convertChildren(v, li, source); err != nil {
			return nil, err
		}
		return []*document.Node{li}, nil

	case *ast.FencedCodeBlock:
		lang := string(v.Language(source))
		content := blockLines(v, source)
		if lang == "math" {
			m := document.NewNode(document.KindMath)
			m.Text = strings.TrimRight(content, "\n")
			m.Display = true
			return []*document.Node{m}, nil
		}
		cb := document.NewNode(document.KindCodeBlock)
		cb.Language = lang
		cb.Text = content
		return []*document.Node{cb}, nil

	case *ast.CodeBlock:
		cb := document.NewNode(document.KindCodeBlock)
		cb.Text = blockLines(v, source)
		return []*document.Node{cb}, nil

	case *ast.ThematicBreak:
		return []*document.Node{document.NewNode(document.KindThematicBreak)}, nil

	case *ast.Text:
		s := string(v.Segment.Value(source))
		if v.SoftLineBreak() || v.HardLineBreak() {
			s += "\n"
		}
		return []*document.Node{document.NewText(s)}, nil

	case *ast.String:
		return []*document.Node{document.NewText(string(v.Value))}, nil

	case *ast.Emphasis:
		kind := document.KindEmphasis
		if v.Level >= 2 {
			kind = document.KindStrong
		}
		em := document.NewNode(kind)
		if err := convertChildren(v, em, source); err != nil {
			return nil, err
		}
		return []*document.Node{em}, nil

	case *ast.CodeSpan:
		t := document.NewText(string(v.Text(source)))
		t.SetAttr("inline-code", "true")
		return []*document.Node{t}, nil

	case *ast.Link:
		link := document.NewNode(document.KindLink)
		link.Href = string(v.Destination)
		if err := convertChildren(v, link, source); err != nil {
			return nil, err
		}
		return []*document.Node{link}, nil

	case *ast.AutoLink:
		url := string(v.URL(source))
		link := document.NewNode(document.KindLink)
		link.Href = url
		link.MustAppend(document.NewText(url))
		return []*document.Node{link}, nil

	case *ast.Image:
		img := document.NewNode(document.KindImage)
		img.Src = string(v.Destination)
		img.Alt = string(v.Text(source))
		return []*document.Node{img}, nil

	case *ast.RawHTML, *ast.HTMLBlock:
		// Raw HTML is opaque to the canonical model; keep it for
		// round-tripping as an extension attribute on an empty text node.
		t := document.NewText("")
		t.SetAttr("raw-html", rawHTML(n, source))
		return []*document.Node{t}, nil

	case *east.Table:
		table := document.NewNode(document.KindTable)
		if err := convertChildren(v, table, source); err != nil {
			return nil, err
		}
		return []*document.Node{table}, nil

	case *east.TableHeader:
		row := document.NewNode(document.KindTableRow)
		row.SetAttr("table.header", "true")
		if err := convertChildren(v, row, source); err != nil {
			return nil, err
		}
		return []*document.Node{row}, nil

	case *east.TableRow:
		row := document.NewNode(document.KindTableRow)
		if err := convertChildren(v, row, source); err != nil {
			return nil, err
		}
		return []*document.Node{row}, nil

	case *east.TableCell:
		cell := document.NewNode(document.KindTableCell)
		if err := convertChildren(v, cell, source); err != nil {
			return nil, err
		}
		return []*document.Node{cell}, nil

	case *east.FootnoteLink:
		ref := document.NewNode(document.KindFootnote)
		ref.Key = strconv.Itoa(v.Index)
		return []*document.Node{ref}, nil

	case *east.FootnoteList:
		var defs []*document.Node
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			nodes, err := convertNode(c, source)
			if err != nil {
				return nil, err
			}
			defs = append(defs, nodes...)
		}
		return defs, nil

	case *east.Footnote:
		def := document.NewNode(document.KindFootnote)
		def.Key = strconv.Itoa(v.Index)
		if err := convertChildren(v, def, source); err != nil {
			return nil, err
		}
		return []*document.Node{def}, nil

	case *east.Strikethrough:
		em := document.NewNode(document.KindEmphasis)
		em.SetAttr("strikethrough", "true")
		if err := convertChildren(v, em, source); err != nil {
			return nil, err
		}
		return []*document.Node{em}, nil

	default:
		// Unknown goldmark nodes degrade to their text content.
		if n.Type() == ast.TypeInline {
			return []*document.Node{document.NewText(string(n.Text(source)))}, nil
		}
		p := document.NewNode(document.KindParagraph)
		if err := convertChildren(n, p, source); err != nil {
			return nil, err
		}
		return []*document.Node{p}, nil
	}
}

// splitCitations breaks running text around [@key] references, yielding
// interleaved text and citation nodes.
func splitCitations(s string) []*document.Node {
	if s == "" {
		return nil
	}
	matches := citationPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return []*document.Node{document.NewText(s)}
	}
	var out []*document.Node
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			out = append(out, document.NewText(s[prev:m[0]]))
		}
		cite := document.NewNode(document.KindCitation)
		cite.Key = s[m[2]:m[3]]
		out = append(out, cite)
		prev = m[1]
	}
	if prev < len(s) {
		out = append(out, document.NewText(s[prev:]))
	}
	return out
}

func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

func rawHTML(n ast.Node, source []byte) string {
	switch v := n.(type) {
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			sb.Write(seg.Value(source))
		}
		return sb.String()
	case *ast.HTMLBlock:
		return blockLines(v, source)
	default:
		return ""
	}
}
