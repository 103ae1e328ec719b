// Package epub renders the canonical document model as an EPUB 3 package:
// a zip archive with the uncompressed mimetype entry first, an OCF container
// descriptor, a package document, a navigation document built from the
// heading outline, and a single XHTML content chapter.
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// Generator renders a Document as an .epub package.
type Generator struct{}

// NewGenerator creates an EPUB generator.
func NewGenerator() *Generator { return &Generator{} }

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "epub-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatEPUB},
		Cost:      2,
		Generator: NewGenerator(),
	}
}

// Generate renders doc as EPUB bytes. Remote images are referenced, not
// bundled, and surface as artifact warnings.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &xhtmlWriter{}
	chapter := w.chapter(doc)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// The mimetype entry must be first and stored uncompressed.
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("writing epub mimetype: %w", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return nil, fmt.Errorf("writing epub mimetype: %w", err)
	}

	parts := []struct {
		name, content string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", packageDocument(doc)},
		{"OEBPS/nav.xhtml", navDocument(doc)},
		{"OEBPS/chapter.xhtml", chapter},
	}
	for _, part := range parts {
		f, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("writing epub part %s: %w", part.name, err)
		}
		if _, err := f.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("writing epub part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing epub package: %w", err)
	}

	return &quire.Artifact{
		Format:   quire.FormatEPUB,
		Bytes:    buf.Bytes(),
		Warnings: w.warnings,
	}, nil
}

func packageDocument(doc *document.Document) string {
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">` + "\n")
	sb.WriteString(`<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&sb, "<dc:identifier id=\"pub-id\">urn:quire:%d</dc:identifier>\n", time.Now().UnixNano())
	fmt.Fprintf(&sb, "<dc:title>%s</dc:title>\n", escape(title))
	sb.WriteString("<dc:language>en</dc:language>\n")
	if author, ok := doc.Meta("author"); ok {
		fmt.Fprintf(&sb, "<dc:creator>%s</dc:creator>\n", escape(author))
	}
	fmt.Fprintf(&sb, `<meta property="dcterms:modified">%s</meta>`+"\n",
		time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	sb.WriteString("</metadata>\n<manifest>\n")
	sb.WriteString(`<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	sb.WriteString(`<item id="chapter" href="chapter.xhtml" media-type="application/xhtml+xml"/>` + "\n")
	sb.WriteString("</manifest>\n<spine>\n")
	sb.WriteString(`<itemref idref="chapter"/>` + "\n")
	sb.WriteString("</spine>\n</package>\n")
	return sb.String()
}

// navDocument builds the EPUB navigation document from top-level headings.
func navDocument(doc *document.Document) string {
	var sb strings.Builder
	sb.WriteString(xhtmlPreamble("Navigation"))
	sb.WriteString(`<nav epub:type="toc" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n<ol>\n")
	count := 0
	for n := range doc.Root.Walk() {
		if n.Kind != document.KindHeading {
			continue
		}
		count++
		fmt.Fprintf(&sb, `<li><a href="chapter.xhtml#h-%d">%s</a></li>`+"\n",
			count, escape(strings.TrimSpace(n.PlainText())))
	}
	if count == 0 {
		sb.WriteString(`<li><a href="chapter.xhtml">Content</a></li>` + "\n")
	}
	sb.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return sb.String()
}

func xhtmlPreamble(title string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + escape(title) + `</title></head>
<body>
`
}

type xhtmlWriter struct {
	sb       strings.Builder
	headings int
	warnings []quire.Finding
}

func (w *xhtmlWriter) warn(n *document.Node, msg string) {
	w.warnings = append(w.warnings, quire.Finding{
		Severity: quire.SeverityWarning,
		Code:     "unsupported-node",
		Message:  msg,
		NodePath: n.Path(),
	})
}

func (w *xhtmlWriter) chapter(doc *document.Document) string {
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	w.sb.WriteString(xhtmlPreamble(title))
	for _, c := range doc.Root.Children() {
		w.block(c)
	}
	w.sb.WriteString("</body>\n</html>\n")
	return w.sb.String()
}

func (w *xhtmlWriter) block(n *document.Node) {
	switch n.Kind {
	case document.KindSection:
		w.sb.WriteString("<section>\n")
		for _, c := range n.Children() {
			w.block(c)
		}
		w.sb.WriteString("</section>\n")

	case document.KindHeading:
		w.headings++
		fmt.Fprintf(&w.sb, `<h%d id="h-%d">%s</h%d>`+"\n", n.Level, w.headings, w.inline(n), n.Level)

	case document.KindParagraph:
		fmt.Fprintf(&w.sb, "<p>%s</p>\n", w.inline(n))

	case document.KindBlockQuote:
		w.sb.WriteString("<blockquote>\n")
		for _, c := range n.Children() {
			w.block(c)
		}
		w.sb.WriteString("</blockquote>\n")

	case document.KindList:
		tag := "ul"
		if n.Ordered {
			tag = "ol"
		}
		fmt.Fprintf(&w.sb, "<%s>\n", tag)
		for _, item := range n.Children() {
			w.sb.WriteString("<li>")
			children := item.Children()
			if len(children) == 1 && children[0].Kind == document.KindParagraph {
				w.sb.WriteString(w.inline(children[0]))
			} else {
				for _, c := range children {
					w.block(c)
				}
			}
			w.sb.WriteString("</li>\n")
		}
		fmt.Fprintf(&w.sb, "</%s>\n", tag)

	case document.KindCodeBlock:
		fmt.Fprintf(&w.sb, "<pre><code>%s</code></pre>\n", escape(n.Text))

	case document.KindMath:
		fmt.Fprintf(&w.sb, `<div class="math">%s</div>`+"\n", escape(n.Text))

	case document.KindThematicBreak:
		w.sb.WriteString("<hr/>\n")

	case document.KindTable:
		w.sb.WriteString("<table>\n")
		for _, row := range n.Children() {
			if row.Kind != document.KindTableRow {
				continue
			}
			cellTag := "td"
			if _, ok := row.Attr("table.header"); ok {
				cellTag = "th"
			}
			w.sb.WriteString("<tr>")
			for _, cell := range row.Children() {
				fmt.Fprintf(&w.sb, "<%s>%s</%s>", cellTag, w.inline(cell), cellTag)
			}
			w.sb.WriteString("</tr>\n")
		}
		w.sb.WriteString("</table>\n")

	case document.KindFigure:
		w.sb.WriteString("<figure>\n")
		for _, c := range n.Children() {
			switch c.Kind {
			case document.KindImage:
				w.image(c)
			case document.KindCaption:
				fmt.Fprintf(&w.sb, "<figcaption>%s</figcaption>\n", w.inline(c))
			default:
				w.block(c)
			}
		}
		w.sb.WriteString("</figure>\n")

	case document.KindImage:
		w.image(n)

	case document.KindCaption:
		fmt.Fprintf(&w.sb, "<figcaption>%s</figcaption>\n", w.inline(n))

	case document.KindFootnote:
		if len(n.Children()) == 0 {
			fmt.Fprintf(&w.sb, `<sup><a href="#fn-%s">%s</a></sup>`+"\n", escape(n.Key), escape(n.Key))
			return
		}
		fmt.Fprintf(&w.sb, `<aside id="fn-%s" epub:type="footnote" xmlns:epub="http://www.idpf.org/2007/ops">`+"\n", escape(n.Key))
		for _, c := range n.Children() {
			w.block(c)
		}
		w.sb.WriteString("</aside>\n")

	default:
		fmt.Fprintf(&w.sb, "<p>%s</p>\n", w.inlineNode(n))
	}
}

func (w *xhtmlWriter) image(n *document.Node) {
	w.warn(n, "image referenced but not bundled: "+n.Src)
	fmt.Fprintf(&w.sb, "<img src=\"%s\" alt=\"%s\"/>\n", escape(n.Src), escape(n.Alt))
}

func (w *xhtmlWriter) inline(n *document.Node) string {
	var sb strings.Builder
	for _, c := range n.Children() {
		sb.WriteString(w.inlineNode(c))
	}
	return strings.TrimSpace(sb.String())
}

func (w *xhtmlWriter) inlineNode(n *document.Node) string {
	switch n.Kind {
	case document.KindText:
		if _, ok := n.Attr("inline-code"); ok {
			return "<code>" + escape(n.Text) + "</code>"
		}
		return escape(n.Text)
	case document.KindEmphasis:
		if _, ok := n.Attr("strikethrough"); ok {
			return "<del>" + w.inline(n) + "</del>"
		}
		return "<em>" + w.inline(n) + "</em>"
	case document.KindStrong:
		return "<strong>" + w.inline(n) + "</strong>"
	case document.KindLink:
		return fmt.Sprintf(`<a href="%s">%s</a>`, escape(n.Href), w.inline(n))
	case document.KindImage:
		w.warn(n, "image referenced but not bundled: "+n.Src)
		return fmt.Sprintf(`<img src="%s" alt="%s"/>`, escape(n.Src), escape(n.Alt))
	case document.KindCitation:
		return fmt.Sprintf(`<cite data-key="%s">[@%s]</cite>`, escape(n.Key), escape(n.Key))
	case document.KindFootnote:
		return fmt.Sprintf(`<sup><a href="#fn-%s">%s</a></sup>`, escape(n.Key), escape(n.Key))
	case document.KindMath:
		return `<span class="math">` + escape(n.Text) + `</span>`
	default:
		return w.inline(n)
	}
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
