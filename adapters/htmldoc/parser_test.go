package htmldoc

import (
	"context"
	"strings"
	"testing"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

func parse(t *testing.T, src string) *document.Document {
	t.Helper()
	doc, err := NewParser().Parse(context.Background(), quire.RawContent{Bytes: []byte(src)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func findKind(doc *document.Document, kind document.Kind) *document.Node {
	for n := range doc.Root.Walk() {
		if n.Kind == kind {
			return n
		}
	}
	return nil
}

func TestParseStructure(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<html><head><title>A Study</title>
<meta name="author" content="Ada"></head>
<body><h2>Findings</h2><p>We <em>really</em> tried.</p><hr></body></html>`)

	if doc.Title != "A Study" {
		t.Errorf("title = %q, want %q", doc.Title, "A Study")
	}
	if v, ok := doc.Meta("author"); !ok || v != "Ada" {
		t.Errorf("author meta = %q, %v", v, ok)
	}
	h := findKind(doc, document.KindHeading)
	if h == nil || h.Level != 2 || h.PlainText() != "Findings" {
		t.Errorf("heading = %+v", h)
	}
	if findKind(doc, document.KindEmphasis) == nil {
		t.Error("emphasis not parsed")
	}
	if findKind(doc, document.KindThematicBreak) == nil {
		t.Error("hr not parsed")
	}
}

func TestParseStripsScripts(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><p>safe</p><script>alert("xss")</script></body>`)

	if got := doc.Root.PlainText(); strings.Contains(got, "alert") {
		t.Errorf("script content leaked into the document: %q", got)
	}
}

func TestParseCodeBlock(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><pre><code class="language-go">x := 1
</code></pre><p>inline <code>len(x)</code> too</p></body>`)

	cb := findKind(doc, document.KindCodeBlock)
	if cb == nil || cb.Language != "go" || cb.Text != "x := 1\n" {
		t.Errorf("code block = %+v", cb)
	}
	var span *document.Node
	for n := range doc.Root.Walk() {
		if _, ok := n.Attr("inline-code"); ok {
			span = n
		}
	}
	if span == nil || span.Text != "len(x)" {
		t.Errorf("inline code = %+v", span)
	}
}

func TestParseTable(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><table>
<thead><tr><th>a</th><th>b</th></tr></thead>
<tbody><tr><td>1</td><td>2</td></tr></tbody>
</table></body>`)

	table := findKind(doc, document.KindTable)
	if table == nil {
		t.Fatal("table not parsed")
	}
	rows := table.Children()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if _, ok := rows[0].Attr("table.header"); !ok {
		t.Error("th row not marked as header")
	}
	if _, ok := rows[1].Attr("table.header"); ok {
		t.Error("td row marked as header")
	}
}

func TestParseCitations(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><p>See <span class="citation" data-key="smith2020">[@smith2020]</span>
and <cite data-key="doe2021">Doe</cite>.</p></body>`)

	var keys []string
	for n := range doc.Root.Walk() {
		if n.Kind == document.KindCitation {
			keys = append(keys, n.Key)
		}
	}
	if len(keys) != 2 || keys[0] != "smith2020" || keys[1] != "doe2021" {
		t.Errorf("citation keys = %v", keys)
	}
}

func TestParseMath(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><div class="math">\[E = mc^2\]</div><p>inline <span class="math">\(x\)</span></p></body>`)

	var display, inline *document.Node
	for n := range doc.Root.Walk() {
		if n.Kind != document.KindMath {
			continue
		}
		if n.Display {
			display = n
		} else {
			inline = n
		}
	}
	if display == nil || display.Text != "E = mc^2" {
		t.Errorf("display math = %+v", display)
	}
	if inline == nil || inline.Text != "x" {
		t.Errorf("inline math = %+v", inline)
	}
}

func TestParseFootnotes(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><p>Claim.<sup id="fnref:2"><a href="#fn:2">2</a></sup></p>
<div id="fn:2"><p>The note.</p></div></body>`)

	var ref, def *document.Node
	for n := range doc.Root.Walk() {
		if n.Kind != document.KindFootnote {
			continue
		}
		if len(n.Children()) == 0 {
			ref = n
		} else {
			def = n
		}
	}
	if ref == nil || ref.Key != "2" {
		t.Errorf("footnote reference = %+v", ref)
	}
	if def == nil || def.Key != "2" || def.PlainText() != "The note." {
		t.Errorf("footnote definition = %+v", def)
	}
}

func TestParseWrappersAreTransparent(t *testing.T) {
	t.Parallel()

	doc := parse(t, `<body><article><section><p>inner</p></section></article></body>`)

	children := doc.Root.Children()
	if len(children) != 1 || children[0].Kind != document.KindParagraph {
		t.Errorf("root children = %+v, want one paragraph", children)
	}
}

func TestCollapseSpace(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"a  b\n\tc", "a b c"},
		{" leading", " leading"},
		{"trailing ", "trailing "},
		{" both ", " both "},
		{"   ", " "},
	}
	for _, tt := range tests {
		if got := collapseSpace(tt.in); got != tt.want {
			t.Errorf("collapseSpace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrimMathDelims(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{`\[x\]`, "x"},
		{`\(x\)`, "x"},
		{"$$x$$", "x"},
		{"$x$", "x"},
		{"bare", "bare"},
	}
	for _, tt := range tests {
		if got := trimMathDelims(tt.in); got != tt.want {
			t.Errorf("trimMathDelims(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
