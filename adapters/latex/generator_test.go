package latex

import (
	"context"
	"strings"
	"testing"

	"github.com/quireio/quire/document"
)

func generate(t *testing.T, doc *document.Document) string {
	t.Helper()
	art, err := NewGenerator().Generate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return string(art.Bytes)
}

func buildDoc(t *testing.T, children ...*document.Node) *document.Document {
	t.Helper()
	root := document.NewNode(document.KindSection)
	root.MustAppend(children...)
	return document.MustNew(root)
}

func TestGeneratePreambleAndTitle(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t, document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("body")))
	doc.Title = "A Study"
	doc.SetMeta("author", "Ada")
	doc.SetMeta("latex.preamble", `\usepackage{siunitx}`)

	got := generate(t, doc)
	for _, want := range []string{
		`\documentclass{article}`,
		`\usepackage{booktabs}`,
		`\usepackage{siunitx}`,
		`\title{A Study}`,
		`\author{Ada}`,
		`\maketitle`,
		`\end{document}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateNoTitleNoMaketitle(t *testing.T) {
	t.Parallel()

	got := generate(t, buildDoc(t, document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("x"))))
	if strings.Contains(got, `\maketitle`) {
		t.Errorf("maketitle emitted without a title:\n%s", got)
	}
}

func TestGenerateBlocks(t *testing.T) {
	t.Parallel()

	code := document.NewNode(document.KindCodeBlock)
	code.Language = "go"
	code.Text = "x := 1\n"
	math := document.NewNode(document.KindMath)
	math.Text = "E = mc^2"
	math.Display = true
	list := document.NewNode(document.KindList)
	list.MustAppend(document.NewNode(document.KindListItem).
		MustAppend(document.NewNode(document.KindParagraph).
			MustAppend(document.NewText("first"))))

	doc := buildDoc(t,
		document.NewHeading(2).MustAppend(document.NewText("Methods")),
		code, math, list,
	)

	got := generate(t, doc)
	for _, want := range []string{
		`\subsection{Methods}`,
		"\\begin{lstlisting}[language=go]\nx := 1\n\\end{lstlisting}",
		"\\[\nE = mc^2\n\\]",
		"\\begin{itemize}\n\\item first\n\\end{itemize}",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateEscaping(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t, document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("50% of $10 & #1_a")))

	got := generate(t, doc)
	if !strings.Contains(got, `50\% of \$10 \& \#1\_a`) {
		t.Errorf("special characters not escaped:\n%s", got)
	}
}

func TestGenerateTableBooktabs(t *testing.T) {
	t.Parallel()

	header := document.NewNode(document.KindTableRow)
	header.SetAttr("table.header", "true")
	header.MustAppend(
		document.NewNode(document.KindTableCell).MustAppend(document.NewText("a")),
		document.NewNode(document.KindTableCell).MustAppend(document.NewText("b")),
	)
	body := document.NewNode(document.KindTableRow)
	body.MustAppend(
		document.NewNode(document.KindTableCell).MustAppend(document.NewText("1")),
		document.NewNode(document.KindTableCell).MustAppend(document.NewText("2")),
	)
	table := document.NewNode(document.KindTable)
	table.MustAppend(header, body)

	got := generate(t, buildDoc(t, table))
	want := "\\begin{tabular}{ll}\n\\toprule\na & b \\\\\n\\midrule\n1 & 2 \\\\\n\\bottomrule\n\\end{tabular}"
	if !strings.Contains(got, want) {
		t.Errorf("table rendering:\n%s", got)
	}
}

func TestGenerateInlineForms(t *testing.T) {
	t.Parallel()

	cite := document.NewNode(document.KindCitation)
	cite.Key = "smith2020"
	link := document.NewNode(document.KindLink)
	link.Href = "https://example.org/p#s1"
	link.MustAppend(document.NewText("site"))
	note := document.NewNode(document.KindFootnote)
	note.Key = "1"
	note.MustAppend(document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("aside")))

	doc := buildDoc(t, document.NewNode(document.KindParagraph).MustAppend(
		document.NewText("See "), cite, document.NewText(" at "), link, note,
	))

	got := generate(t, doc)
	for _, want := range []string{
		`\cite{smith2020}`,
		`\href{https://example.org/p\#s1}{site}`,
		`\footnote{aside}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
