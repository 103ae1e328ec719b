package quire

import (
	"errors"
	"testing"
)

// graphFixture registers a markdown parser, an html parser, markdown and
// html generators, and a direct html-to-markdown transform.
func graphFixture(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	mustRegister(t, reg, Capability{
		Name: "md-parser", Kind: KindParser,
		Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{},
	})
	mustRegister(t, reg, Capability{
		Name: "html-parser", Kind: KindParser,
		Formats: []FormatID{FormatHTML}, Parser: &mockParser{},
	})
	mustRegister(t, reg, Capability{
		Name: "md-generator", Kind: KindGenerator,
		Formats: []FormatID{FormatMarkdown}, Generator: &mockGenerator{format: FormatMarkdown},
	})
	mustRegister(t, reg, Capability{
		Name: "html-generator", Kind: KindGenerator,
		Formats: []FormatID{FormatHTML}, Generator: &mockGenerator{format: FormatHTML},
	})
	mustRegister(t, reg, Capability{
		Name: "html-to-md", Kind: KindTransform,
		Source: FormatHTML, Target: FormatMarkdown,
		Transformer: &mockTransformer{},
	})
	return reg
}

func TestFindPathPrefersShortcutTransform(t *testing.T) {
	t.Parallel()

	cg, err := NewConversionGraph(graphFixture(t))
	if err != nil {
		t.Fatalf("NewConversionGraph: %v", err)
	}

	path, err := cg.FindPath(FormatHTML, FormatMarkdown, false)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 1 {
		t.Fatalf("path length = %d, want 1 (direct transform)", len(path))
	}
	if path[0].Capability.Name != "html-to-md" {
		t.Errorf("path uses %q, want the direct transform", path[0].Capability.Name)
	}
}

func TestFindPathRequireCanonicalExcludesTransforms(t *testing.T) {
	t.Parallel()

	cg, err := NewConversionGraph(graphFixture(t))
	if err != nil {
		t.Fatalf("NewConversionGraph: %v", err)
	}

	path, err := cg.FindPath(FormatHTML, FormatMarkdown, true)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("path length = %d, want 2 (parse, generate)", len(path))
	}
	if path[0].Capability.Kind != KindParser || path[0].To != FormatCanonical {
		t.Errorf("first step = %v -> %v (%s), want parse into canonical",
			path[0].From, path[0].To, path[0].Capability.Kind)
	}
	if path[1].Capability.Kind != KindGenerator || path[1].From != FormatCanonical {
		t.Errorf("second step = %v -> %v (%s), want generate out of canonical",
			path[1].From, path[1].To, path[1].Capability.Kind)
	}
}

func TestFindPathSameFormatThroughCanonical(t *testing.T) {
	t.Parallel()

	cg, err := NewConversionGraph(graphFixture(t))
	if err != nil {
		t.Fatalf("NewConversionGraph: %v", err)
	}

	path, err := cg.FindPath(FormatMarkdown, FormatMarkdown, true)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("path length = %d, want 2 (round trip through canonical)", len(path))
	}
}

func TestFindPathIsDeterministic(t *testing.T) {
	t.Parallel()

	cg, err := NewConversionGraph(graphFixture(t))
	if err != nil {
		t.Fatalf("NewConversionGraph: %v", err)
	}

	first, err := cg.FindPath(FormatMarkdown, FormatHTML, false)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := cg.FindPath(FormatMarkdown, FormatHTML, false)
		if err != nil {
			t.Fatalf("FindPath repeat %d: %v", i, err)
		}
		if len(again) != len(first) {
			t.Fatalf("repeat %d: path length %d, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Capability.Name != first[j].Capability.Name {
				t.Errorf("repeat %d step %d: %q, want %q",
					i, j, again[j].Capability.Name, first[j].Capability.Name)
			}
		}
	}
}

func TestFindPathNoRoute(t *testing.T) {
	t.Parallel()

	cg, err := NewConversionGraph(graphFixture(t))
	if err != nil {
		t.Fatalf("NewConversionGraph: %v", err)
	}

	if _, err := cg.FindPath(FormatMarkdown, FormatPDF, false); !errors.Is(err, ErrNoConversionPath) {
		t.Errorf("FindPath to unregistered format error = %v, want ErrNoConversionPath", err)
	}
	if _, err := cg.FindPath(FormatPDF, FormatMarkdown, false); !errors.Is(err, ErrNoConversionPath) {
		t.Errorf("FindPath from unregistered format error = %v, want ErrNoConversionPath", err)
	}
}

func TestParallelEdgesCollapseToBest(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	mustRegister(t, reg, Capability{
		Name: "costly-parser", Kind: KindParser, Cost: 3,
		Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{},
	})
	mustRegister(t, reg, Capability{
		Name: "cheap-parser", Kind: KindParser, Cost: 1,
		Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{},
	})
	mustRegister(t, reg, Capability{
		Name: "gen", Kind: KindGenerator,
		Formats: []FormatID{FormatHTML}, Generator: &mockGenerator{format: FormatHTML},
	})

	cg, err := NewConversionGraph(reg)
	if err != nil {
		t.Fatalf("NewConversionGraph: %v", err)
	}
	path, err := cg.FindPath(FormatMarkdown, FormatHTML, false)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if path[0].Capability.Name != "cheap-parser" {
		t.Errorf("collapsed edge uses %q, want the cheapest parser", path[0].Capability.Name)
	}
}
