package tei

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
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

func TestGenerateHeader(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t, document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("body")))
	doc.Title = "A Study"
	doc.SetMeta("author", "Ada")
	doc.SetMeta("source_url", "https://example.org/paper")

	got := generate(t, doc)
	for _, want := range []string{
		`xmlns="http://www.tei-c.org/ns/1.0"`,
		"<teiHeader>",
		"<title>A Study</title>",
		"<author>Ada</author>",
		"<p>https://example.org/paper</p>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateUntitledFallback(t *testing.T) {
	t.Parallel()

	got := generate(t, buildDoc(t, document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("x"))))
	if !strings.Contains(got, "<title>Untitled</title>") {
		t.Errorf("missing fallback title:\n%s", got)
	}
}

func TestGenerateBlockMapping(t *testing.T) {
	t.Parallel()

	code := document.NewNode(document.KindCodeBlock)
	code.Language = "go"
	code.Text = "x := 1"
	math := document.NewNode(document.KindMath)
	math.Text = "E = mc^2"
	math.Display = true
	list := document.NewNode(document.KindList)
	list.Ordered = true
	list.MustAppend(document.NewNode(document.KindListItem).
		MustAppend(document.NewNode(document.KindParagraph).
			MustAppend(document.NewText("first"))))

	doc := buildDoc(t,
		document.NewHeading(3).MustAppend(document.NewText("Methods")),
		code, math, list,
		document.NewNode(document.KindThematicBreak),
	)

	got := generate(t, doc)
	for _, want := range []string{
		`<head type="heading-3">Methods</head>`,
		`<quote type="code" ana="go">x := 1</quote>`,
		`<formula notation="TeX" rend="display">E = mc^2</formula>`,
		`<list rend="numbered">`,
		"<item>first</item>",
		`<milestone unit="rule">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateInlineMapping(t *testing.T) {
	t.Parallel()

	cite := document.NewNode(document.KindCitation)
	cite.Key = "smith2020"
	link := document.NewNode(document.KindLink)
	link.Href = "https://example.org"
	link.MustAppend(document.NewText("site"))
	em := document.NewNode(document.KindEmphasis)
	em.MustAppend(document.NewText("soft"))

	doc := buildDoc(t, document.NewNode(document.KindParagraph).MustAppend(
		document.NewText("See "), cite, document.NewText(" at "), link,
		document.NewText(" "), em,
	))

	got := generate(t, doc)
	for _, want := range []string{
		`<ref type="bibl" target="#smith2020">[@smith2020]</ref>`,
		`<ref target="https://example.org">site</ref>`,
		`<hi rend="italic">soft</hi>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateTableRoles(t *testing.T) {
	t.Parallel()

	header := document.NewNode(document.KindTableRow)
	header.SetAttr("table.header", "true")
	header.MustAppend(document.NewNode(document.KindTableCell).
		MustAppend(document.NewText("k")))
	body := document.NewNode(document.KindTableRow)
	body.MustAppend(document.NewNode(document.KindTableCell).
		MustAppend(document.NewText("v")))
	table := document.NewNode(document.KindTable)
	table.MustAppend(header, body)

	got := generate(t, buildDoc(t, table))
	if !strings.Contains(got, `<row role="label">`) {
		t.Errorf("header row not marked:\n%s", got)
	}
	if !strings.Contains(got, "<cell>v</cell>") {
		t.Errorf("body cell missing:\n%s", got)
	}
}

func TestGenerateIsWellFormedXML(t *testing.T) {
	t.Parallel()

	fig := document.NewNode(document.KindFigure)
	fig.MustAppend(
		func() *document.Node {
			img := document.NewNode(document.KindImage)
			img.Src = "plot.png"
			img.Alt = "scatter plot"
			return img
		}(),
		document.NewNode(document.KindCaption).
			MustAppend(document.NewText("Figure 1")),
	)
	note := document.NewNode(document.KindFootnote)
	note.Key = "a"
	note.MustAppend(document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("aside & detail")))

	doc := buildDoc(t,
		document.NewHeading(1).MustAppend(document.NewText("Title <&>")),
		fig, note,
	)
	doc.Title = "Escapes <&>"

	got := generate(t, doc)
	dec := xml.NewDecoder(strings.NewReader(got))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("output is not well-formed XML: %v\n%s", err, got)
		}
	}
	if !strings.Contains(got, `<graphic url="plot.png">`) {
		t.Errorf("graphic missing:\n%s", got)
	}
	if !strings.Contains(got, "<figDesc>scatter plot</figDesc>") {
		t.Errorf("figDesc missing:\n%s", got)
	}
}
