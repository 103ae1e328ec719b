// Package htmldoc converts HTML to and from the canonical document model.
// Incoming markup is sanitized before parsing; outgoing markup is a complete
// HTML5 page with server-side syntax highlighting for code blocks. The
// package also provides a direct HTML-to-Markdown transform that skips the
// canonical model entirely.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Parser reads sanitized HTML into the canonical model.
type Parser struct {
	policy *bluemonday.Policy
}

// NewParser creates a Parser with a sanitization policy that keeps document
// structure (headings, lists, tables, figures, code) and drops scripts,
// styles, and event handlers.
func NewParser() *Parser {
	p := bluemonday.UGCPolicy()
	p.AllowElements("figure", "figcaption", "section", "article", "main", "header", "footer")
	p.AllowAttrs("class").OnElements("code", "pre", "span", "div")
	p.AllowAttrs("data-key").OnElements("span", "cite")
	p.AllowAttrs("id").OnElements("sup", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6")
	return &Parser{policy: p}
}

var _ quire.Parser = (*Parser)(nil)

// ParserCapability declares the parser for registration.
func ParserCapability() quire.Capability {
	return quire.Capability{
		Name:    "html-parser",
		Kind:    quire.KindParser,
		Formats: []quire.FormatID{quire.FormatHTML},
		Parser:  NewParser(),
	}
}

// Parse sanitizes and converts HTML content into a Document. The page title
// and <meta name=...> tags become document metadata.
func (p *Parser) Parse(ctx context.Context, raw quire.RawContent) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Title and meta tags are read from the unsanitized page since the
	// policy strips <head> content.
	full, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Bytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	clean := p.policy.SanitizeBytes(raw.Bytes)
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(clean))
	if err != nil {
		return nil, fmt.Errorf("parse sanitized html: %w", err)
	}

	root := document.NewNode(document.KindSection)
	body := gq.Find("body")
	for _, sel := range body.Nodes {
		if err := convertChildren(sel, root); err != nil {
			return nil, err
		}
	}

	doc, err := document.New(root)
	if err != nil {
		return nil, err
	}

	full.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if name != "" && content != "" {
			doc.SetMeta(name, content)
		}
	})
	if title := strings.TrimSpace(full.Find("title").First().Text()); title != "" {
		doc.Title = title
	} else if h := full.Find("h1").First(); h.Length() > 0 {
		doc.Title = strings.TrimSpace(h.Text())
	}
	return doc, nil
}

func convertChildren(n *html.Node, parent *document.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodes, err := convertNode(c)
		if err != nil {
			return err
		}
		if err := parent.Append(nodes...); err != nil {
			return err
		}
	}
	return nil
}

func convertNode(n *html.Node) ([]*document.Node, error) {
	switch n.Type {
	case html.TextNode:
		s := collapseSpace(n.Data)
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return []*document.Node{document.NewText(s)}, nil
	case html.ElementNode:
		return convertElement(n)
	default:
		return nil, nil
	}
}

func convertElement(n *html.Node) ([]*document.Node, error) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		h := document.NewHeading(int(n.Data[1] - '0'))
		if err := convertChildren(n, h); err != nil {
			return nil, err
		}
		return []*document.Node{h}, nil

	case "p":
		par := document.NewNode(document.KindParagraph)
		if err := convertChildren(n, par); err != nil {
			return nil, err
		}
		return []*document.Node{par}, nil

	case "blockquote":
		q := document.NewNode(document.KindBlockQuote)
		if err := convertChildren(n, q); err != nil {
			return nil, err
		}
		return []*document.Node{q}, nil

	case "ul", "ol":
		l := document.NewNode(document.KindList)
		l.Ordered = n.Data == "ol"
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				li := document.NewNode(document.KindListItem)
				if err := convertChildren(c, li); err != nil {
					return nil, err
				}
				l.MustAppend(li)
			}
		}
		return []*document.Node{l}, nil

	case "pre":
		return []*document.Node{convertPre(n)}, nil

	case "code":
		t := document.NewText(textContent(n))
		t.SetAttr("inline-code", "true")
		return []*document.Node{t}, nil

	case "hr":
		return []*document.Node{document.NewNode(document.KindThematicBreak)}, nil

	case "br":
		return []*document.Node{document.NewText("\n")}, nil

	case "table":
		return convertTable(n)

	case "figure":
		fig := document.NewNode(document.KindFigure)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "img":
				fig.MustAppend(imageNode(c))
			case "figcaption":
				cap := document.NewNode(document.KindCaption)
				if err := convertChildren(c, cap); err != nil {
					return nil, err
				}
				fig.MustAppend(cap)
			}
		}
		return []*document.Node{fig}, nil

	case "img":
		return []*document.Node{imageNode(n)}, nil

	case "a":
		link := document.NewNode(document.KindLink)
		link.Href = attr(n, "href")
		if err := convertChildren(n, link); err != nil {
			return nil, err
		}
		return []*document.Node{link}, nil

	case "em", "i":
		em := document.NewNode(document.KindEmphasis)
		if err := convertChildren(n, em); err != nil {
			return nil, err
		}
		return []*document.Node{em}, nil

	case "strong", "b":
		st := document.NewNode(document.KindStrong)
		if err := convertChildren(n, st); err != nil {
			return nil, err
		}
		return []*document.Node{st}, nil

	case "del", "s":
		em := document.NewNode(document.KindEmphasis)
		em.SetAttr("strikethrough", "true")
		if err := convertChildren(n, em); err != nil {
			return nil, err
		}
		return []*document.Node{em}, nil

	case "cite":
		if key := attr(n, "data-key"); key != "" {
			cite := document.NewNode(document.KindCitation)
			cite.Key = key
			return []*document.Node{cite}, nil
		}
		em := document.NewNode(document.KindEmphasis)
		if err := convertChildren(n, em); err != nil {
			return nil, err
		}
		return []*document.Node{em}, nil

	case "span":
		if key := attr(n, "data-key"); key != "" && hasClass(n, "citation") {
			cite := document.NewNode(document.KindCitation)
			cite.Key = key
			return []*document.Node{cite}, nil
		}
		if hasClass(n, "math") {
			m := document.NewNode(document.KindMath)
			m.Text = strings.TrimSpace(trimMathDelims(textContent(n)))
			return []*document.Node{m}, nil
		}
		var out []*document.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nodes, err := convertNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil

	case "sup":
		if key := footnoteKey(attr(n, "id"), "fnref:"); key != "" {
			ref := document.NewNode(document.KindFootnote)
			ref.Key = key
			return []*document.Node{ref}, nil
		}
		var out []*document.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nodes, err := convertNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil

	case "div":
		if hasClass(n, "math") {
			m := document.NewNode(document.KindMath)
			m.Text = strings.TrimSpace(trimMathDelims(textContent(n)))
			m.Display = true
			return []*document.Node{m}, nil
		}
		if key := footnoteKey(attr(n, "id"), "fn:"); key != "" {
			def := document.NewNode(document.KindFootnote)
			def.Key = key
			if err := convertChildren(n, def); err != nil {
				return nil, err
			}
			return []*document.Node{def}, nil
		}
		fallthrough

	case "section", "article", "main", "header", "footer", "body", "html":
		// Structural wrappers are transparent.
		var out []*document.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nodes, err := convertNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil

	default:
		var out []*document.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nodes, err := convertNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	}
}

// convertPre turns a <pre> (optionally wrapping <code class="language-x">)
// into a code block.
func convertPre(n *html.Node) *document.Node {
	cb := document.NewNode(document.KindCodeBlock)
	inner := n
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			inner = c
			break
		}
	}
	if class := attr(inner, "class"); class != "" {
		for _, cls := range strings.Fields(class) {
			if lang, ok := strings.CutPrefix(cls, "language-"); ok {
				cb.Language = lang
				break
			}
		}
	}
	cb.Text = textContent(inner)
	return cb
}

func convertTable(n *html.Node) ([]*document.Node, error) {
	table := document.NewNode(document.KindTable)
	var walkRows func(*html.Node) error
	walkRows = func(el *html.Node) error {
		for c := el.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				if err := walkRows(c); err != nil {
					return err
				}
			case "tr":
				row := document.NewNode(document.KindTableRow)
				header := false
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode {
						continue
					}
					if cell.Data == "th" || cell.Data == "td" {
						if cell.Data == "th" {
							header = true
						}
						cn := document.NewNode(document.KindTableCell)
						if err := convertChildren(cell, cn); err != nil {
							return err
						}
						row.MustAppend(cn)
					}
				}
				if header {
					row.SetAttr("table.header", "true")
				}
				table.MustAppend(row)
			}
		}
		return nil
	}
	if err := walkRows(n); err != nil {
		return nil, err
	}
	return []*document.Node{table}, nil
}

func imageNode(n *html.Node) *document.Node {
	img := document.NewNode(document.KindImage)
	img.Src = attr(n, "src")
	img.Alt = attr(n, "alt")
	return img
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func footnoteKey(id, prefix string) string {
	if key, ok := strings.CutPrefix(id, prefix); ok {
		return key
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(el *html.Node) {
		if el.Type == html.TextNode {
			sb.WriteString(el.Data)
		}
		for c := el.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func trimMathDelims(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`\[`, `\]`}, {`\(`, `\)`}, {"$$", "$$"}, {"$", "$"}} {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) && len(s) >= len(pair[0])+len(pair[1]) {
			return s[len(pair[0]) : len(s)-len(pair[1])]
		}
	}
	return s
}

// collapseSpace squeezes runs of whitespace to single spaces, keeping one
// boundary space at each end so adjacent inline nodes do not fuse.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if len(s) > 0 && isSpace(s[0]) {
		out = " " + out
	}
	if len(s) > 1 && isSpace(s[len(s)-1]) && out != " " {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
