package markdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Generator renders the canonical model as GitHub-flavored Markdown.
// Document metadata is emitted as a YAML front-matter block.
type Generator struct{}

// NewGenerator creates a Markdown generator.
func NewGenerator() *Generator { return &Generator{} }

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "markdown-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatMarkdown},
		Generator: NewGenerator(),
	}
}

// Generate renders doc as Markdown. Every canonical node kind has a Markdown
// rendering, so the artifact carries no warnings.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	if err := writeFrontMatter(&sb, doc); err != nil {
		return nil, err
	}
	w := &mdWriter{sb: &sb}
	for _, c := range doc.Root.Children() {
		w.block(c, "")
	}

	return &quire.Artifact{
		Format: quire.FormatMarkdown,
		Bytes:  []byte(strings.TrimRight(sb.String(), "\n") + "\n"),
	}, nil
}

func writeFrontMatter(sb *strings.Builder, doc *document.Document) error {
	meta := map[string]string{}
	for _, k := range doc.MetaKeys() {
		v, _ := doc.Meta(k)
		meta[k] = v
	}
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	if len(meta) == 0 {
		return nil
	}
	out, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("front matter: %w", err)
	}
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n\n")
	return nil
}

type mdWriter struct {
	sb *strings.Builder
}

// block renders one block-level node. prefix carries list/quote indentation
// for continuation lines.
func (w *mdWriter) block(n *document.Node, prefix string) {
	switch n.Kind {
	case document.KindSection:
		for _, c := range n.Children() {
			w.block(c, prefix)
		}

	case document.KindHeading:
		w.sb.WriteString(prefix)
		w.sb.WriteString(strings.Repeat("#", n.Level))
		w.sb.WriteString(" ")
		w.sb.WriteString(inline(n))
		w.sb.WriteString("\n\n")

	case document.KindParagraph:
		w.sb.WriteString(prefix)
		w.sb.WriteString(inline(n))
		w.sb.WriteString("\n\n")

	case document.KindBlockQuote:
		var inner mdWriter
		inner.sb = &strings.Builder{}
		for _, c := range n.Children() {
			inner.block(c, "")
		}
		for _, line := range strings.Split(strings.TrimRight(inner.sb.String(), "\n"), "\n") {
			w.sb.WriteString(prefix)
			w.sb.WriteString("> ")
			w.sb.WriteString(line)
			w.sb.WriteString("\n")
		}
		w.sb.WriteString("\n")

	case document.KindList:
		for i, item := range n.Children() {
			marker := "- "
			if n.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			w.listItem(item, prefix, marker)
		}
		w.sb.WriteString("\n")

	case document.KindCodeBlock:
		w.sb.WriteString(prefix)
		w.sb.WriteString("```")
		w.sb.WriteString(n.Language)
		w.sb.WriteString("\n")
		w.sb.WriteString(n.Text)
		if !strings.HasSuffix(n.Text, "\n") {
			w.sb.WriteString("\n")
		}
		w.sb.WriteString(prefix)
		w.sb.WriteString("```\n\n")

	case document.KindMath:
		w.sb.WriteString(prefix)
		w.sb.WriteString("```math\n")
		w.sb.WriteString(n.Text)
		w.sb.WriteString("\n")
		w.sb.WriteString(prefix)
		w.sb.WriteString("```\n\n")

	case document.KindThematicBreak:
		w.sb.WriteString(prefix)
		w.sb.WriteString("---\n\n")

	case document.KindTable:
		w.table(n, prefix)

	case document.KindFigure:
		for _, c := range n.Children() {
			w.block(c, prefix)
		}

	case document.KindImage:
		w.sb.WriteString(prefix)
		fmt.Fprintf(w.sb, "![%s](%s)\n\n", n.Alt, n.Src)

	case document.KindCaption:
		w.sb.WriteString(prefix)
		w.sb.WriteString("*")
		w.sb.WriteString(inline(n))
		w.sb.WriteString("*\n\n")

	case document.KindFootnote:
		if len(n.Children()) == 0 {
			// An inline reference stranded at block level.
			w.sb.WriteString(prefix)
			fmt.Fprintf(w.sb, "[^%s]\n\n", n.Key)
			return
		}
		var inner mdWriter
		inner.sb = &strings.Builder{}
		for _, c := range n.Children() {
			inner.block(c, "")
		}
		body := strings.TrimRight(inner.sb.String(), "\n")
		body = strings.ReplaceAll(body, "\n", "\n    ")
		w.sb.WriteString(prefix)
		fmt.Fprintf(w.sb, "[^%s]: %s\n\n", n.Key, body)

	default:
		// Inline node at block level: wrap as a paragraph.
		w.sb.WriteString(prefix)
		w.sb.WriteString(inlineNode(n))
		w.sb.WriteString("\n\n")
	}
}

func (w *mdWriter) listItem(item *document.Node, prefix, marker string) {
	cont := prefix + strings.Repeat(" ", len(marker))
	var inner mdWriter
	inner.sb = &strings.Builder{}
	for _, c := range item.Children() {
		inner.block(c, "")
	}
	lines := strings.Split(strings.TrimRight(inner.sb.String(), "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			w.sb.WriteString(prefix)
			w.sb.WriteString(marker)
		} else if line != "" {
			w.sb.WriteString(cont)
		}
		w.sb.WriteString(line)
		w.sb.WriteString("\n")
	}
}

func (w *mdWriter) table(n *document.Node, prefix string) {
	rows := n.Children()
	for i, row := range rows {
		if row.Kind != document.KindTableRow {
			continue
		}
		var cells []string
		for _, cell := range row.Children() {
			cells = append(cells, strings.ReplaceAll(inline(cell), "|", `\|`))
		}
		w.sb.WriteString(prefix)
		w.sb.WriteString("| ")
		w.sb.WriteString(strings.Join(cells, " | "))
		w.sb.WriteString(" |\n")
		if i == 0 {
			w.sb.WriteString(prefix)
			w.sb.WriteString("|")
			w.sb.WriteString(strings.Repeat(" --- |", len(cells)))
			w.sb.WriteString("\n")
		}
	}
	w.sb.WriteString("\n")
}

// inline renders the inline content of a container node.
func inline(n *document.Node) string {
	var sb strings.Builder
	for _, c := range n.Children() {
		sb.WriteString(inlineNode(c))
	}
	return strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
}

func inlineNode(n *document.Node) string {
	switch n.Kind {
	case document.KindText:
		if _, ok := n.Attr("inline-code"); ok {
			return "`" + n.Text + "`"
		}
		if raw, ok := n.Attr("raw-html"); ok && n.Text == "" {
			return raw
		}
		return n.Text
	case document.KindEmphasis:
		if _, ok := n.Attr("strikethrough"); ok {
			return "~~" + inline(n) + "~~"
		}
		return "*" + inline(n) + "*"
	case document.KindStrong:
		return "**" + inline(n) + "**"
	case document.KindLink:
		return fmt.Sprintf("[%s](%s)", inline(n), n.Href)
	case document.KindImage:
		return fmt.Sprintf("![%s](%s)", n.Alt, n.Src)
	case document.KindCitation:
		return "[@" + n.Key + "]"
	case document.KindFootnote:
		return "[^" + n.Key + "]"
	case document.KindMath:
		return "$" + n.Text + "$"
	default:
		return inline(n)
	}
}
