// Package docx renders the canonical document model as a minimal Office Open
// XML word-processing package. The output is a zip archive with the document
// part, content types, relationships, and core properties; styling is applied
// through direct run properties so no styles part is required.
package docx

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

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`
)

// Generator renders a Document as a .docx package.
type Generator struct{}

// NewGenerator creates a DOCX generator.
func NewGenerator() *Generator { return &Generator{} }

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "docx-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatDOCX},
		Cost:      2,
		Generator: NewGenerator(),
	}
}

// Generate renders doc as DOCX bytes. Images and math are not embedded and
// surface as artifact warnings.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &docxWriter{}
	body := w.body(doc)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name, content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"docProps/core.xml", coreProps(doc)},
		{"word/document.xml", body},
	}
	for _, part := range parts {
		f, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("writing docx part %s: %w", part.name, err)
		}
		if _, err := f.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("writing docx part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing docx package: %w", err)
	}

	return &quire.Artifact{
		Format:   quire.FormatDOCX,
		Bytes:    buf.Bytes(),
		Warnings: w.warnings,
	}, nil
}

func coreProps(doc *document.Document) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	if doc.Title != "" {
		fmt.Fprintf(&sb, "<dc:title>%s</dc:title>", xmlEscape(doc.Title))
	}
	if author, ok := doc.Meta("author"); ok {
		fmt.Fprintf(&sb, "<dc:creator>%s</dc:creator>", xmlEscape(author))
	}
	fmt.Fprintf(&sb, `<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>`,
		time.Now().UTC().Format(time.RFC3339))
	sb.WriteString("</cp:coreProperties>")
	return sb.String()
}

type docxWriter struct {
	sb       strings.Builder
	warnings []quire.Finding
}

func (w *docxWriter) warn(n *document.Node, msg string) {
	w.warnings = append(w.warnings, quire.Finding{
		Severity: quire.SeverityWarning,
		Code:     "unsupported-node",
		Message:  msg,
		NodePath: n.Path(),
	})
}

func (w *docxWriter) body(doc *document.Document) string {
	w.sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	w.sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	if doc.Title != "" {
		w.paragraph(runProps{bold: true, size: 36}, doc.Title)
	}
	for _, c := range doc.Root.Children() {
		w.block(c)
	}
	w.sb.WriteString(`<w:sectPr/></w:body></w:document>`)
	return w.sb.String()
}

// runProps are direct character formatting applied to a run.
type runProps struct {
	bold   bool
	italic bool
	strike bool
	mono   bool
	size   int // half-points; zero means inherit
}

func (w *docxWriter) block(n *document.Node) {
	switch n.Kind {
	case document.KindSection:
		for _, c := range n.Children() {
			w.block(c)
		}

	case document.KindHeading:
		sizes := map[int]int{1: 32, 2: 28, 3: 26, 4: 24, 5: 22, 6: 22}
		w.openParagraph("")
		w.inlineChildren(n, runProps{bold: true, size: sizes[n.Level]})
		w.closeParagraph()

	case document.KindParagraph:
		w.openParagraph("")
		w.inlineChildren(n, runProps{})
		w.closeParagraph()

	case document.KindBlockQuote:
		for _, c := range n.Children() {
			if c.Kind == document.KindParagraph {
				w.openParagraph("720")
				w.inlineChildren(c, runProps{italic: true})
				w.closeParagraph()
			} else {
				w.block(c)
			}
		}

	case document.KindList:
		for i, item := range n.Children() {
			marker := "• "
			if n.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			w.openParagraph("360")
			w.run(runProps{}, marker)
			w.listItem(item)
			w.closeParagraph()
		}

	case document.KindCodeBlock:
		for _, line := range strings.Split(strings.TrimRight(n.Text, "\n"), "\n") {
			w.openParagraph("")
			w.run(runProps{mono: true, size: 18}, line)
			w.closeParagraph()
		}

	case document.KindMath:
		w.warn(n, "math rendered as plain TeX source")
		w.openParagraph("")
		w.run(runProps{mono: true, size: 18}, n.Text)
		w.closeParagraph()

	case document.KindThematicBreak:
		w.sb.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr></w:pPr></w:p>`)

	case document.KindTable:
		w.table(n)

	case document.KindFigure:
		for _, c := range n.Children() {
			w.block(c)
		}

	case document.KindImage:
		w.warn(n, "image not embedded: "+n.Src)
		alt := n.Alt
		if alt == "" {
			alt = n.Src
		}
		w.openParagraph("")
		w.run(runProps{italic: true}, "[image: "+alt+"]")
		w.closeParagraph()

	case document.KindCaption:
		w.openParagraph("")
		w.inlineChildren(n, runProps{italic: true, size: 18})
		w.closeParagraph()

	case document.KindFootnote:
		if len(n.Children()) == 0 {
			return
		}
		w.openParagraph("")
		w.run(runProps{size: 16}, "["+n.Key+"] ")
		for _, c := range n.Children() {
			w.inlineChildren(c, runProps{size: 16})
		}
		w.closeParagraph()

	default:
		w.openParagraph("")
		w.inlineNode(n, runProps{})
		w.closeParagraph()
	}
}

func (w *docxWriter) listItem(item *document.Node) {
	for _, c := range item.Children() {
		if c.Kind == document.KindParagraph {
			w.inlineChildren(c, runProps{})
		} else {
			w.inlineNode(c, runProps{})
		}
	}
}

func (w *docxWriter) table(n *document.Node) {
	w.sb.WriteString(`<w:tbl><w:tblPr><w:tblBorders><w:top w:val="single" w:sz="4"/><w:bottom w:val="single" w:sz="4"/><w:left w:val="single" w:sz="4"/><w:right w:val="single" w:sz="4"/><w:insideH w:val="single" w:sz="4"/><w:insideV w:val="single" w:sz="4"/></w:tblBorders></w:tblPr>`)
	for _, row := range n.Children() {
		if row.Kind != document.KindTableRow {
			continue
		}
		_, header := row.Attr("table.header")
		w.sb.WriteString("<w:tr>")
		for _, cell := range row.Children() {
			w.sb.WriteString("<w:tc>")
			w.openParagraph("")
			w.inlineChildren(cell, runProps{bold: header})
			w.closeParagraph()
			w.sb.WriteString("</w:tc>")
		}
		w.sb.WriteString("</w:tr>")
	}
	w.sb.WriteString("</w:tbl>")
}

func (w *docxWriter) openParagraph(indent string) {
	w.sb.WriteString("<w:p>")
	if indent != "" {
		fmt.Fprintf(&w.sb, `<w:pPr><w:ind w:left="%s"/></w:pPr>`, indent)
	}
}

func (w *docxWriter) closeParagraph() {
	w.sb.WriteString("</w:p>")
}

// paragraph writes a single-run paragraph.
func (w *docxWriter) paragraph(props runProps, text string) {
	w.openParagraph("")
	w.run(props, text)
	w.closeParagraph()
}

func (w *docxWriter) inlineChildren(n *document.Node, props runProps) {
	for _, c := range n.Children() {
		w.inlineNode(c, props)
	}
}

func (w *docxWriter) inlineNode(n *document.Node, props runProps) {
	switch n.Kind {
	case document.KindText:
		if _, ok := n.Attr("inline-code"); ok {
			props.mono = true
		}
		w.run(props, n.Text)
	case document.KindEmphasis:
		if _, ok := n.Attr("strikethrough"); ok {
			props.strike = true
		} else {
			props.italic = true
		}
		w.inlineChildren(n, props)
	case document.KindStrong:
		props.bold = true
		w.inlineChildren(n, props)
	case document.KindLink:
		// Links render as underlined text with the target appended, which
		// avoids carrying a relationships part per hyperlink.
		w.inlineChildren(n, props)
		if n.Href != "" {
			w.run(runProps{size: props.size}, " ("+n.Href+")")
		}
	case document.KindImage:
		w.warn(n, "image not embedded: "+n.Src)
		w.run(runProps{italic: true}, "[image: "+n.Alt+"]")
	case document.KindCitation:
		w.run(props, "["+n.Key+"]")
	case document.KindFootnote:
		if len(n.Children()) == 0 {
			w.run(runProps{size: 16}, "["+n.Key+"]")
		}
	case document.KindMath:
		props.mono = true
		w.run(props, n.Text)
	default:
		w.inlineChildren(n, props)
	}
}

func (w *docxWriter) run(props runProps, text string) {
	if text == "" {
		return
	}
	w.sb.WriteString("<w:r>")
	var rpr strings.Builder
	if props.bold {
		rpr.WriteString("<w:b/>")
	}
	if props.italic {
		rpr.WriteString("<w:i/>")
	}
	if props.strike {
		rpr.WriteString("<w:strike/>")
	}
	if props.mono {
		rpr.WriteString(`<w:rFonts w:ascii="Courier New" w:hAnsi="Courier New"/>`)
	}
	if props.size > 0 {
		fmt.Fprintf(&rpr, `<w:sz w:val="%d"/>`, props.size)
	}
	if rpr.Len() > 0 {
		w.sb.WriteString("<w:rPr>" + rpr.String() + "</w:rPr>")
	}
	fmt.Fprintf(&w.sb, `<w:t xml:space="preserve">%s</w:t>`, xmlEscape(text))
	w.sb.WriteString("</w:r>")
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
