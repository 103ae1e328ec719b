// Package pdfgen renders the canonical document model as a styled PDF using
// gofpdf. Images are not embedded; each one is replaced by its alt text and
// reported as an artifact warning.
package pdfgen

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Generator renders a Document as PDF bytes.
type Generator struct{}

// NewGenerator creates a PDF generator.
func NewGenerator() *Generator { return &Generator{} }

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration. The cost is
// above the default so text formats win ties when both satisfy a request.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "pdf-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatPDF},
		Cost:      2,
		Generator: NewGenerator(),
	}
}

var headingSizes = map[int]float64{1: 18, 2: 15, 3: 13, 4: 12, 5: 11, 6: 10}

// Generate renders doc as a PDF. Node kinds gofpdf cannot represent
// faithfully (images, display math) degrade to text and surface as
// warnings on the artifact.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	w := &pdfWriter{pdf: pdf}

	if doc.Title != "" {
		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(0, 8, doc.Title, "", "L", false)
		pdf.Ln(4)
	}
	if src, ok := doc.Meta("source_url"); ok {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, "Source: "+src, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(6)
	}

	for _, c := range doc.Root.Children() {
		w.block(c, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}

	return &quire.Artifact{
		Format:   quire.FormatPDF,
		Bytes:    buf.Bytes(),
		Warnings: w.warnings,
	}, nil
}

type pdfWriter struct {
	pdf      *gofpdf.Fpdf
	warnings []quire.Finding
}

func (w *pdfWriter) warn(n *document.Node, msg string) {
	w.warnings = append(w.warnings, quire.Finding{
		Severity: quire.SeverityWarning,
		Code:     "unsupported-node",
		Message:  msg,
		NodePath: n.Path(),
	})
}

func (w *pdfWriter) block(n *document.Node, indent float64) {
	switch n.Kind {
	case document.KindSection:
		for _, c := range n.Children() {
			w.block(c, indent)
		}

	case document.KindHeading:
		size, ok := headingSizes[n.Level]
		if !ok {
			size = 10
		}
		w.pdf.Ln(4)
		w.pdf.SetFont("Helvetica", "B", size)
		w.cell(size*0.6, indent, plainInline(n))
		w.pdf.Ln(2)

	case document.KindParagraph:
		w.pdf.SetFont("Helvetica", "", 10)
		w.cell(5, indent, plainInline(n))
		w.pdf.Ln(3)

	case document.KindBlockQuote:
		w.pdf.SetFont("Helvetica", "I", 10)
		for _, c := range n.Children() {
			w.block(c, indent+6)
		}
		w.pdf.Ln(2)

	case document.KindList:
		w.pdf.SetFont("Helvetica", "", 10)
		for i, item := range n.Children() {
			marker := "• "
			if n.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			w.listItem(item, indent, marker)
		}
		w.pdf.Ln(3)

	case document.KindCodeBlock, document.KindMath:
		text := n.Text
		if n.Kind == document.KindMath {
			w.warn(n, "math rendered as plain TeX source")
		}
		w.pdf.Ln(2)
		w.pdf.SetFont("Courier", "", 9)
		w.pdf.SetFillColor(245, 245, 245)
		for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
			w.pdf.SetX(w.pdf.GetX() + indent)
			w.pdf.MultiCell(0, 4.5, line, "", "L", true)
		}
		w.pdf.Ln(2)

	case document.KindThematicBreak:
		w.pdf.Ln(2)
		x, y := w.pdf.GetXY()
		pageW, _ := w.pdf.GetPageSize()
		_, _, right, _ := w.pdf.GetMargins()
		w.pdf.Line(x, y, pageW-right, y)
		w.pdf.Ln(4)

	case document.KindTable:
		w.table(n, indent)

	case document.KindFigure:
		for _, c := range n.Children() {
			w.block(c, indent)
		}

	case document.KindImage:
		w.warn(n, "image not embedded: "+n.Src)
		alt := n.Alt
		if alt == "" {
			alt = n.Src
		}
		w.pdf.SetFont("Helvetica", "I", 9)
		w.cell(5, indent, "[image: "+alt+"]")
		w.pdf.Ln(2)

	case document.KindCaption:
		w.pdf.SetFont("Helvetica", "I", 9)
		w.cell(5, indent, plainInline(n))
		w.pdf.Ln(2)

	case document.KindFootnote:
		if len(n.Children()) == 0 {
			return
		}
		w.pdf.SetFont("Helvetica", "", 8)
		w.cell(4, indent, fmt.Sprintf("[%s] %s", n.Key, plainBlockText(n)))
		w.pdf.Ln(2)

	default:
		w.pdf.SetFont("Helvetica", "", 10)
		w.cell(5, indent, plainNode(n))
		w.pdf.Ln(2)
	}
}

func (w *pdfWriter) listItem(item *document.Node, indent float64, marker string) {
	children := item.Children()
	if len(children) == 1 && children[0].Kind == document.KindParagraph {
		w.cell(5, indent, marker+plainInline(children[0]))
		return
	}
	w.cell(5, indent, marker)
	for _, c := range children {
		w.block(c, indent+6)
	}
}

func (w *pdfWriter) table(n *document.Node, indent float64) {
	w.pdf.Ln(2)
	for _, row := range n.Children() {
		if row.Kind != document.KindTableRow {
			continue
		}
		style := ""
		if _, ok := row.Attr("table.header"); ok {
			style = "B"
		}
		w.pdf.SetFont("Helvetica", style, 9)
		var cells []string
		for _, cell := range row.Children() {
			cells = append(cells, plainInline(cell))
		}
		w.cell(5, indent, strings.Join(cells, "  |  "))
	}
	w.pdf.Ln(3)
}

func (w *pdfWriter) cell(height, indent float64, text string) {
	w.pdf.SetX(w.pdf.GetX() + indent)
	w.pdf.MultiCell(0, height, text, "", "L", false)
}

// plainInline flattens a container's inline content to plain text.
func plainInline(n *document.Node) string {
	var sb strings.Builder
	for _, c := range n.Children() {
		sb.WriteString(plainNode(c))
	}
	return strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
}

func plainNode(n *document.Node) string {
	switch n.Kind {
	case document.KindText:
		return n.Text
	case document.KindCitation:
		return "[" + n.Key + "]"
	case document.KindFootnote:
		if len(n.Children()) == 0 {
			return "[" + n.Key + "]"
		}
		return ""
	case document.KindMath:
		return n.Text
	case document.KindImage:
		return "[image: " + n.Alt + "]"
	case document.KindLink:
		text := plainInline(n)
		if text == "" {
			return n.Href
		}
		return text
	default:
		return plainInline(n)
	}
}

func plainBlockText(n *document.Node) string {
	var parts []string
	for _, c := range n.Children() {
		parts = append(parts, plainNode(c))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
