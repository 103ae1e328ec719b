package htmldoc

import (
	"context"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

const defaultStyle = "github"

// Generator renders the canonical model as a standalone HTML5 page with
// inline-styled syntax highlighting for code blocks.
type Generator struct {
	style string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithHighlightStyle sets the chroma style used for code blocks.
func WithHighlightStyle(name string) GeneratorOption {
	return func(g *Generator) { g.style = name }
}

// NewGenerator creates an HTML generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{style: defaultStyle}
	for _, o := range opts {
		o(g)
	}
	return g
}

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "html-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatHTML},
		Generator: NewGenerator(),
	}
}

// Generate renders doc as a complete HTML page. Every canonical node kind is
// representable in HTML, so the artifact carries no warnings.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	if doc.Title != "" {
		fmt.Fprintf(&sb, "<title>%s</title>\n", stdhtml.EscapeString(doc.Title))
	}
	for _, k := range doc.MetaKeys() {
		v, _ := doc.Meta(k)
		fmt.Fprintf(&sb, "<meta name=%q content=%q>\n",
			stdhtml.EscapeString(k), stdhtml.EscapeString(v))
	}
	sb.WriteString("</head>\n<body>\n")

	for _, c := range doc.Root.Children() {
		g.writeBlock(&sb, c)
	}

	sb.WriteString("</body>\n</html>\n")

	return &quire.Artifact{
		Format: quire.FormatHTML,
		Bytes:  []byte(sb.String()),
	}, nil
}

func (g *Generator) writeBlock(sb *strings.Builder, n *document.Node) {
	switch n.Kind {
	case document.KindSection:
		sb.WriteString("<section>\n")
		for _, c := range n.Children() {
			g.writeBlock(sb, c)
		}
		sb.WriteString("</section>\n")

	case document.KindHeading:
		fmt.Fprintf(sb, "<h%d>%s</h%d>\n", n.Level, g.inline(n), n.Level)

	case document.KindParagraph:
		fmt.Fprintf(sb, "<p>%s</p>\n", g.inline(n))

	case document.KindBlockQuote:
		sb.WriteString("<blockquote>\n")
		for _, c := range n.Children() {
			g.writeBlock(sb, c)
		}
		sb.WriteString("</blockquote>\n")

	case document.KindList:
		tag := "ul"
		if n.Ordered {
			tag = "ol"
		}
		fmt.Fprintf(sb, "<%s>\n", tag)
		for _, item := range n.Children() {
			sb.WriteString("<li>")
			g.writeListItem(sb, item)
			sb.WriteString("</li>\n")
		}
		fmt.Fprintf(sb, "</%s>\n", tag)

	case document.KindCodeBlock:
		g.writeCode(sb, n)

	case document.KindMath:
		fmt.Fprintf(sb, "<div class=\"math\">\\[%s\\]</div>\n", stdhtml.EscapeString(n.Text))

	case document.KindThematicBreak:
		sb.WriteString("<hr>\n")

	case document.KindTable:
		g.writeTable(sb, n)

	case document.KindFigure:
		sb.WriteString("<figure>\n")
		for _, c := range n.Children() {
			switch c.Kind {
			case document.KindImage:
				fmt.Fprintf(sb, "<img src=%q alt=%q>\n",
					stdhtml.EscapeString(c.Src), stdhtml.EscapeString(c.Alt))
			case document.KindCaption:
				fmt.Fprintf(sb, "<figcaption>%s</figcaption>\n", g.inline(c))
			default:
				g.writeBlock(sb, c)
			}
		}
		sb.WriteString("</figure>\n")

	case document.KindImage:
		fmt.Fprintf(sb, "<img src=%q alt=%q>\n",
			stdhtml.EscapeString(n.Src), stdhtml.EscapeString(n.Alt))

	case document.KindCaption:
		fmt.Fprintf(sb, "<figcaption>%s</figcaption>\n", g.inline(n))

	case document.KindFootnote:
		if len(n.Children()) == 0 {
			fmt.Fprintf(sb, "<sup id=\"fnref:%s\"><a href=\"#fn:%s\">%s</a></sup>\n",
				stdhtml.EscapeString(n.Key), stdhtml.EscapeString(n.Key), stdhtml.EscapeString(n.Key))
			return
		}
		fmt.Fprintf(sb, "<div class=\"footnote\" id=\"fn:%s\">\n", stdhtml.EscapeString(n.Key))
		for _, c := range n.Children() {
			g.writeBlock(sb, c)
		}
		sb.WriteString("</div>\n")

	default:
		fmt.Fprintf(sb, "<p>%s</p>\n", g.inlineNode(n))
	}
}

// writeListItem renders a tight item inline and a loose one as blocks.
func (g *Generator) writeListItem(sb *strings.Builder, item *document.Node) {
	children := item.Children()
	if len(children) == 1 && children[0].Kind == document.KindParagraph {
		sb.WriteString(g.inline(children[0]))
		return
	}
	for _, c := range children {
		g.writeBlock(sb, c)
	}
}

func (g *Generator) writeTable(sb *strings.Builder, n *document.Node) {
	sb.WriteString("<table>\n")
	for _, row := range n.Children() {
		if row.Kind != document.KindTableRow {
			continue
		}
		cellTag := "td"
		if _, ok := row.Attr("table.header"); ok {
			cellTag = "th"
		}
		sb.WriteString("<tr>")
		for _, cell := range row.Children() {
			fmt.Fprintf(sb, "<%s>%s</%s>", cellTag, g.inline(cell), cellTag)
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>\n")
}

// writeCode highlights the block with chroma when a lexer matches the
// language, falling back to a plain <pre><code> otherwise.
func (g *Generator) writeCode(sb *strings.Builder, n *document.Node) {
	lexer := lexers.Get(n.Language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(g.style)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, n.Text)
	if err == nil {
		formatter := chromahtml.New(chromahtml.WithClasses(false))
		if err := formatter.Format(sb, style, iterator); err == nil {
			sb.WriteString("\n")
			return
		}
	}

	fmt.Fprintf(sb, "<pre><code class=\"language-%s\">%s</code></pre>\n",
		stdhtml.EscapeString(n.Language), stdhtml.EscapeString(n.Text))
}

func (g *Generator) inline(n *document.Node) string {
	var sb strings.Builder
	for _, c := range n.Children() {
		sb.WriteString(g.inlineNode(c))
	}
	return strings.TrimSpace(sb.String())
}

func (g *Generator) inlineNode(n *document.Node) string {
	switch n.Kind {
	case document.KindText:
		if _, ok := n.Attr("inline-code"); ok {
			return "<code>" + stdhtml.EscapeString(n.Text) + "</code>"
		}
		return stdhtml.EscapeString(n.Text)
	case document.KindEmphasis:
		if _, ok := n.Attr("strikethrough"); ok {
			return "<del>" + g.inline(n) + "</del>"
		}
		return "<em>" + g.inline(n) + "</em>"
	case document.KindStrong:
		return "<strong>" + g.inline(n) + "</strong>"
	case document.KindLink:
		return fmt.Sprintf("<a href=%q>%s</a>", stdhtml.EscapeString(n.Href), g.inline(n))
	case document.KindImage:
		return fmt.Sprintf("<img src=%q alt=%q>",
			stdhtml.EscapeString(n.Src), stdhtml.EscapeString(n.Alt))
	case document.KindCitation:
		return fmt.Sprintf("<span class=\"citation\" data-key=%q>[@%s]</span>",
			stdhtml.EscapeString(n.Key), stdhtml.EscapeString(n.Key))
	case document.KindFootnote:
		return fmt.Sprintf("<sup id=\"fnref:%s\"><a href=\"#fn:%s\">%s</a></sup>",
			stdhtml.EscapeString(n.Key), stdhtml.EscapeString(n.Key), stdhtml.EscapeString(n.Key))
	case document.KindMath:
		return fmt.Sprintf("<span class=\"math\">\\(%s\\)</span>", stdhtml.EscapeString(n.Text))
	default:
		return g.inline(n)
	}
}
