package quire

import (
	"errors"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cap  Capability
	}{
		{
			name: "missing name",
			cap:  Capability{Kind: KindParser, Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{}},
		},
		{
			name: "parser without formats",
			cap:  Capability{Name: "p", Kind: KindParser, Parser: &mockParser{}},
		},
		{
			name: "parser without implementation",
			cap:  Capability{Name: "p", Kind: KindParser, Formats: []FormatID{FormatMarkdown}},
		},
		{
			name: "generator without implementation",
			cap:  Capability{Name: "g", Kind: KindGenerator, Formats: []FormatID{FormatHTML}},
		},
		{
			name: "transform without source",
			cap:  Capability{Name: "t", Kind: KindTransform, Target: FormatMarkdown, Transformer: &mockTransformer{}},
		},
		{
			name: "transform touching canonical vertex",
			cap: Capability{
				Name: "t", Kind: KindTransform,
				Source: FormatHTML, Target: FormatCanonical,
				Transformer: &mockTransformer{},
			},
		},
		{
			name: "parser declaring canonical vertex",
			cap: Capability{
				Name: "p", Kind: KindParser,
				Formats: []FormatID{FormatCanonical},
				Parser:  &mockParser{},
			},
		},
		{
			name: "negative cost",
			cap: Capability{
				Name: "p", Kind: KindParser, Cost: -1,
				Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := NewRegistry()
			if err := reg.Register(tt.cap); !errors.Is(err, ErrInvalidCapability) {
				t.Errorf("Register error = %v, want ErrInvalidCapability", err)
			}
		})
	}
}

func TestRegisterAfterFreeze(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Freeze()
	err := reg.Register(Capability{
		Name: "late", Kind: KindParser,
		Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{},
	})
	if !errors.Is(err, ErrRegistryFrozen) {
		t.Errorf("Register after Freeze error = %v, want ErrRegistryFrozen", err)
	}
}

func TestResolvePrefersLowestCostThenOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	expensive := &mockParser{}
	cheap := &mockParser{}
	tied := &mockParser{}

	mustRegister(t, reg, Capability{
		Name: "expensive", Kind: KindParser, Cost: 5,
		Formats: []FormatID{FormatMarkdown}, Parser: expensive,
	})
	mustRegister(t, reg, Capability{
		Name: "cheap", Kind: KindParser, Cost: 1,
		Formats: []FormatID{FormatMarkdown}, Parser: cheap,
	})
	mustRegister(t, reg, Capability{
		Name: "tied", Kind: KindParser, Cost: 1,
		Formats: []FormatID{FormatMarkdown}, Parser: tied,
	})

	got, err := reg.ResolveParser(FormatMarkdown)
	if err != nil {
		t.Fatalf("ResolveParser: %v", err)
	}
	if got.Name != "cheap" {
		t.Errorf("resolved %q, want %q (lowest cost, earliest registration)", got.Name, "cheap")
	}
}

func TestResolveMissingAdapter(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if _, err := reg.ResolveGenerator(FormatPDF); !errors.Is(err, ErrAdapterMissing) {
		t.Errorf("ResolveGenerator error = %v, want ErrAdapterMissing", err)
	}
	if _, err := reg.ResolveParser(FormatHTML); !errors.Is(err, ErrAdapterMissing) {
		t.Errorf("ResolveParser error = %v, want ErrAdapterMissing", err)
	}
}

func TestDefaultCostApplied(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	mustRegister(t, reg, Capability{
		Name: "zero-cost", Kind: KindParser,
		Formats: []FormatID{FormatMarkdown}, Parser: &mockParser{},
	})
	got, err := reg.ResolveParser(FormatMarkdown)
	if err != nil {
		t.Fatalf("ResolveParser: %v", err)
	}
	if got.Cost != DefaultCost {
		t.Errorf("cost = %d, want DefaultCost %d", got.Cost, DefaultCost)
	}
}

func mustRegister(t *testing.T, reg *Registry, c Capability) {
	t.Helper()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register(%s): %v", c.Name, err)
	}
}
