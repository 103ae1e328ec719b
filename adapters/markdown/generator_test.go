package markdown

import (
	"context"
	"strings"
	"testing"

	"github.com/quireio/quire/document"
)

func buildDoc(t *testing.T, children ...*document.Node) *document.Document {
	t.Helper()
	root := document.NewNode(document.KindSection)
	root.MustAppend(children...)
	return document.MustNew(root)
}

func generate(t *testing.T, doc *document.Document) string {
	t.Helper()
	art, err := NewGenerator().Generate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return string(art.Bytes)
}

func TestGenerateBlocks(t *testing.T) {
	t.Parallel()

	code := document.NewNode(document.KindCodeBlock)
	code.Language = "go"
	code.Text = "x := 1\n"

	doc := buildDoc(t,
		document.NewHeading(2).MustAppend(document.NewText("Methods")),
		document.NewNode(document.KindParagraph).MustAppend(document.NewText("Plain prose.")),
		code,
		document.NewNode(document.KindThematicBreak),
	)

	got := generate(t, doc)
	for _, want := range []string{"## Methods\n", "Plain prose.\n", "```go\nx := 1\n```\n", "---\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateFrontMatter(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t, document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("body")))
	doc.Title = "My Paper"
	doc.SetMeta("author", "Ada")

	got := generate(t, doc)
	if !strings.HasPrefix(got, "---\n") {
		t.Fatalf("output does not start with front matter:\n%s", got)
	}
	if !strings.Contains(got, "title: My Paper") || !strings.Contains(got, "author: Ada") {
		t.Errorf("front matter incomplete:\n%s", got)
	}
}

func TestGenerateInlineForms(t *testing.T) {
	t.Parallel()

	codeSpan := document.NewText("len(x)")
	codeSpan.SetAttr("inline-code", "true")
	strike := document.NewNode(document.KindEmphasis)
	strike.SetAttr("strikethrough", "true")
	strike.MustAppend(document.NewText("wrong"))
	cite := document.NewNode(document.KindCitation)
	cite.Key = "smith2020"
	link := document.NewNode(document.KindLink)
	link.Href = "https://example.org"
	link.MustAppend(document.NewText("site"))

	doc := buildDoc(t, document.NewNode(document.KindParagraph).MustAppend(
		document.NewText("Call "), codeSpan,
		document.NewText(" not "), strike,
		document.NewText(" per "), cite,
		document.NewText(" at "), link,
	))

	got := generate(t, doc)
	want := "Call `len(x)` not ~~wrong~~ per [@smith2020] at [site](https://example.org)\n"
	if !strings.Contains(got, want) {
		t.Errorf("output = %q, want it to contain %q", got, want)
	}
}

func TestGenerateTable(t *testing.T) {
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
	if !strings.Contains(got, "| a | b |\n| --- | --- |\n| 1 | 2 |\n") {
		t.Errorf("table rendering:\n%s", got)
	}
}

func TestGenerateFootnotes(t *testing.T) {
	t.Parallel()

	ref := document.NewNode(document.KindFootnote)
	ref.Key = "1"
	def := document.NewNode(document.KindFootnote)
	def.Key = "1"
	def.MustAppend(document.NewNode(document.KindParagraph).
		MustAppend(document.NewText("The note.")))

	doc := buildDoc(t,
		document.NewNode(document.KindParagraph).MustAppend(
			document.NewText("A claim."), ref),
		def,
	)

	got := generate(t, doc)
	if !strings.Contains(got, "A claim.[^1]") {
		t.Errorf("inline reference missing:\n%s", got)
	}
	if !strings.Contains(got, "[^1]: The note.") {
		t.Errorf("definition missing:\n%s", got)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	src := `# Results

We observe [@smith2020] that *variance* is **low**.

- first
- second

| k | v |
| --- | --- |
| n | 42 |
`
	first := parse(t, src)
	regenerated := generate(t, first)
	second := parse(t, regenerated)

	if !document.EqualNodes(first.Root, second.Root) {
		t.Errorf("round trip changed the tree:\nfirst pass:\n%s\nregenerated:\n%s", src, regenerated)
	}
}
