package quire

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/quireio/quire/document"
)

// mockParser counts invocations and builds a one-paragraph document from the
// raw bytes unless fn overrides it.
type mockParser struct {
	calls atomic.Int32
	fn    func(ctx context.Context, raw RawContent) (*document.Document, error)
}

func (m *mockParser) Parse(ctx context.Context, raw RawContent) (*document.Document, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, raw)
	}
	root := document.NewNode(document.KindSection)
	root.MustAppend(document.NewNode(document.KindParagraph).
		MustAppend(document.NewText(string(raw.Bytes))))
	return document.MustNew(root), nil
}

// mockGenerator emits the document's plain text tagged with the format,
// unless fn overrides it.
type mockGenerator struct {
	format FormatID
	calls  atomic.Int32
	fn     func(ctx context.Context, doc *document.Document) (*Artifact, error)
}

func (m *mockGenerator) Generate(ctx context.Context, doc *document.Document) (*Artifact, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, doc)
	}
	return &Artifact{
		Format: m.format,
		Bytes:  []byte(string(m.format) + ":" + doc.Root.PlainText()),
	}, nil
}

type mockTransformer struct {
	calls atomic.Int32
	fn    func(ctx context.Context, in []byte) ([]byte, error)
}

func (m *mockTransformer) Transform(ctx context.Context, in []byte) ([]byte, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, in)
	}
	return append([]byte("transformed:"), in...), nil
}

// mockFetcher pops canned results in order, repeating the last one.
type mockFetcher struct {
	mu      sync.Mutex
	calls   int
	results []fetchResult
}

type fetchResult struct {
	raw *RawContent
	err error
}

func (m *mockFetcher) Fetch(ctx context.Context, ref SourceRef) (*RawContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	m.calls++
	r := m.results[i]
	return r.raw, r.err
}

// mockSink records writes; failFor makes writes for one format fail.
type mockSink struct {
	mu      sync.Mutex
	writes  map[FormatID][]byte
	failFor FormatID
	failErr error
}

func newMockSink() *mockSink {
	return &mockSink{writes: make(map[FormatID][]byte)}
}

func (m *mockSink) Write(format FormatID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor != "" && format == m.failFor {
		return m.failErr
	}
	m.writes[format] = append([]byte(nil), data...)
	return nil
}

// docRuleFunc adapts a function to DocumentValidator.
type docRuleFunc func(ctx context.Context, doc *document.Document) *ValidationReport

func (f docRuleFunc) CheckDocument(ctx context.Context, doc *document.Document) *ValidationReport {
	return f(ctx, doc)
}

// artifactRuleFunc adapts a function to ArtifactValidator.
type artifactRuleFunc func(ctx context.Context, data []byte, format FormatID) *ValidationReport

func (f artifactRuleFunc) CheckArtifact(ctx context.Context, data []byte, format FormatID) *ValidationReport {
	return f(ctx, data, format)
}

// testRegistry builds a registry with a markdown parser and generators for
// the given formats, returning the mocks for call-count assertions.
func testRegistry(formats ...FormatID) (*Registry, *mockParser, map[FormatID]*mockGenerator) {
	reg := NewRegistry()
	parser := &mockParser{}
	if err := reg.Register(Capability{
		Name:    "test-markdown-parser",
		Kind:    KindParser,
		Formats: []FormatID{FormatMarkdown},
		Parser:  parser,
	}); err != nil {
		panic(err)
	}
	gens := make(map[FormatID]*mockGenerator, len(formats))
	for _, f := range formats {
		g := &mockGenerator{format: f}
		gens[f] = g
		if err := reg.Register(Capability{
			Name:      "test-" + string(f) + "-generator",
			Kind:      KindGenerator,
			Formats:   []FormatID{f},
			Generator: g,
		}); err != nil {
			panic(err)
		}
	}
	return reg, parser, gens
}
