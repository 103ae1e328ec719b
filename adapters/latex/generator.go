// Package latex renders the canonical document model as a standalone LaTeX
// article. A "latex.preamble" metadata entry is passed through verbatim
// after the default package imports.
package latex

import (
	"context"
	"fmt"
	"strings"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Generator renders a Document as LaTeX.
type Generator struct{}

// NewGenerator creates a LaTeX generator.
func NewGenerator() *Generator { return &Generator{} }

var _ quire.Generator = (*Generator)(nil)

// GeneratorCapability declares the generator for registration.
func GeneratorCapability() quire.Capability {
	return quire.Capability{
		Name:      "latex-generator",
		Kind:      quire.KindGenerator,
		Formats:   []quire.FormatID{quire.FormatLaTeX},
		Generator: NewGenerator(),
	}
}

var sectionCommands = map[int]string{
	1: `\section`,
	2: `\subsection`,
	3: `\subsubsection`,
	4: `\paragraph`,
	5: `\subparagraph`,
	6: `\subparagraph`,
}

// Generate renders doc as a compilable LaTeX document.
func (g *Generator) Generate(ctx context.Context, doc *document.Document) (*quire.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("\\documentclass{article}\n")
	sb.WriteString("\\usepackage[utf8]{inputenc}\n")
	sb.WriteString("\\usepackage{graphicx}\n")
	sb.WriteString("\\usepackage{hyperref}\n")
	sb.WriteString("\\usepackage{amsmath}\n")
	sb.WriteString("\\usepackage{booktabs}\n")
	sb.WriteString("\\usepackage{listings}\n")
	if preamble, ok := doc.Meta("latex.preamble"); ok {
		sb.WriteString(preamble)
		sb.WriteString("\n")
	}
	if doc.Title != "" {
		fmt.Fprintf(&sb, "\\title{%s}\n", escape(doc.Title))
		if author, ok := doc.Meta("author"); ok {
			fmt.Fprintf(&sb, "\\author{%s}\n", escape(author))
		}
	}
	sb.WriteString("\\begin{document}\n")
	if doc.Title != "" {
		sb.WriteString("\\maketitle\n")
	}
	sb.WriteString("\n")

	w := &texWriter{sb: &sb}
	for _, c := range doc.Root.Children() {
		w.block(c)
	}

	sb.WriteString("\\end{document}\n")

	return &quire.Artifact{
		Format: quire.FormatLaTeX,
		Bytes:  []byte(sb.String()),
	}, nil
}

type texWriter struct {
	sb *strings.Builder
}

func (w *texWriter) block(n *document.Node) {
	switch n.Kind {
	case document.KindSection:
		for _, c := range n.Children() {
			w.block(c)
		}

	case document.KindHeading:
		cmd := sectionCommands[n.Level]
		if cmd == "" {
			cmd = `\subparagraph`
		}
		fmt.Fprintf(w.sb, "%s{%s}\n\n", cmd, w.inline(n))

	case document.KindParagraph:
		w.sb.WriteString(w.inline(n))
		w.sb.WriteString("\n\n")

	case document.KindBlockQuote:
		w.sb.WriteString("\\begin{quote}\n")
		for _, c := range n.Children() {
			w.block(c)
		}
		w.sb.WriteString("\\end{quote}\n\n")

	case document.KindList:
		env := "itemize"
		if n.Ordered {
			env = "enumerate"
		}
		fmt.Fprintf(w.sb, "\\begin{%s}\n", env)
		for _, item := range n.Children() {
			w.sb.WriteString("\\item ")
			w.listItem(item)
		}
		fmt.Fprintf(w.sb, "\\end{%s}\n\n", env)

	case document.KindCodeBlock:
		if n.Language != "" {
			fmt.Fprintf(w.sb, "\\begin{lstlisting}[language=%s]\n", escapeOptions(n.Language))
		} else {
			w.sb.WriteString("\\begin{lstlisting}\n")
		}
		w.sb.WriteString(n.Text)
		if !strings.HasSuffix(n.Text, "\n") {
			w.sb.WriteString("\n")
		}
		w.sb.WriteString("\\end{lstlisting}\n\n")

	case document.KindMath:
		w.sb.WriteString("\\[\n")
		w.sb.WriteString(n.Text)
		w.sb.WriteString("\n\\]\n\n")

	case document.KindThematicBreak:
		w.sb.WriteString("\\noindent\\hrulefill\n\n")

	case document.KindTable:
		w.table(n)

	case document.KindFigure:
		w.sb.WriteString("\\begin{figure}[h]\n\\centering\n")
		for _, c := range n.Children() {
			switch c.Kind {
			case document.KindImage:
				fmt.Fprintf(w.sb, "\\includegraphics[width=\\linewidth]{%s}\n", c.Src)
			case document.KindCaption:
				fmt.Fprintf(w.sb, "\\caption{%s}\n", w.inline(c))
			}
		}
		w.sb.WriteString("\\end{figure}\n\n")

	case document.KindImage:
		fmt.Fprintf(w.sb, "\\includegraphics[width=\\linewidth]{%s}\n\n", n.Src)

	case document.KindCaption:
		fmt.Fprintf(w.sb, "\\caption{%s}\n\n", w.inline(n))

	case document.KindFootnote:
		if len(n.Children()) == 0 {
			fmt.Fprintf(w.sb, "\\footnotemark[%s]\n\n", escape(n.Key))
			return
		}
		// Definitions render as numbered footnote text at their position.
		var inner texWriter
		inner.sb = &strings.Builder{}
		for _, c := range n.Children() {
			inner.block(c)
		}
		fmt.Fprintf(w.sb, "\\footnotetext[%s]{%s}\n\n",
			escape(n.Key), strings.TrimSpace(inner.sb.String()))

	default:
		w.sb.WriteString(w.inlineNode(n))
		w.sb.WriteString("\n\n")
	}
}

func (w *texWriter) listItem(item *document.Node) {
	children := item.Children()
	if len(children) == 1 && children[0].Kind == document.KindParagraph {
		w.sb.WriteString(w.inline(children[0]))
		w.sb.WriteString("\n")
		return
	}
	w.sb.WriteString("\n")
	for _, c := range children {
		w.block(c)
	}
}

func (w *texWriter) table(n *document.Node) {
	rows := n.Children()
	cols := 0
	for _, row := range rows {
		if len(row.Children()) > cols {
			cols = len(row.Children())
		}
	}
	if cols == 0 {
		return
	}
	fmt.Fprintf(w.sb, "\\begin{tabular}{%s}\n\\toprule\n", strings.Repeat("l", cols))
	for i, row := range rows {
		if row.Kind != document.KindTableRow {
			continue
		}
		var cells []string
		for _, cell := range row.Children() {
			cells = append(cells, w.inline(cell))
		}
		w.sb.WriteString(strings.Join(cells, " & "))
		w.sb.WriteString(" \\\\\n")
		if i == 0 {
			if _, ok := row.Attr("table.header"); ok {
				w.sb.WriteString("\\midrule\n")
			}
		}
	}
	w.sb.WriteString("\\bottomrule\n\\end{tabular}\n\n")
}

func (w *texWriter) inline(n *document.Node) string {
	var sb strings.Builder
	for _, c := range n.Children() {
		sb.WriteString(w.inlineNode(c))
	}
	return strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
}

func (w *texWriter) inlineNode(n *document.Node) string {
	switch n.Kind {
	case document.KindText:
		if _, ok := n.Attr("inline-code"); ok {
			return fmt.Sprintf("\\texttt{%s}", escape(n.Text))
		}
		return escape(n.Text)
	case document.KindEmphasis:
		if _, ok := n.Attr("strikethrough"); ok {
			return fmt.Sprintf("\\sout{%s}", w.inline(n))
		}
		return fmt.Sprintf("\\emph{%s}", w.inline(n))
	case document.KindStrong:
		return fmt.Sprintf("\\textbf{%s}", w.inline(n))
	case document.KindLink:
		return fmt.Sprintf("\\href{%s}{%s}", escapeURL(n.Href), w.inline(n))
	case document.KindImage:
		return fmt.Sprintf("\\includegraphics{%s}", n.Src)
	case document.KindCitation:
		return fmt.Sprintf("\\cite{%s}", escapeOptions(n.Key))
	case document.KindFootnote:
		if len(n.Children()) == 0 {
			return fmt.Sprintf("\\footnotemark[%s]", escape(n.Key))
		}
		var inner texWriter
		inner.sb = &strings.Builder{}
		for _, c := range n.Children() {
			inner.block(c)
		}
		return fmt.Sprintf("\\footnote{%s}", strings.TrimSpace(inner.sb.String()))
	case document.KindMath:
		return "$" + n.Text + "$"
	default:
		return w.inline(n)
	}
}

var texEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func escape(s string) string {
	return texEscaper.Replace(s)
}

// escapeURL keeps URL structure but neutralizes the characters hyperref
// treats specially.
func escapeURL(s string) string {
	return strings.NewReplacer(`%`, `\%`, `#`, `\#`).Replace(s)
}

// escapeOptions strips characters that would break a bracketed or braced
// argument list.
func escapeOptions(s string) string {
	return strings.NewReplacer("]", "", "}", "", ",", "").Replace(s)
}
