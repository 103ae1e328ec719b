package quire

import "fmt"

// CapabilityKind discriminates what a registered capability does.
type CapabilityKind int

const (
	// KindParser capabilities read one or more source formats into the
	// canonical document model.
	KindParser CapabilityKind = iota
	// KindGenerator capabilities render the canonical model into one or
	// more target formats.
	KindGenerator
	// KindTransform capabilities convert directly between two formats,
	// bypassing the canonical model.
	KindTransform
)

func (k CapabilityKind) String() string {
	switch k {
	case KindParser:
		return "parser"
	case KindGenerator:
		return "generator"
	case KindTransform:
		return "transform"
	default:
		return "unknown"
	}
}

// DefaultCost is the edge cost assumed when a capability declares none.
const DefaultCost = 1

// Capability is a pluggable adapter declaration. Exactly one of Parser,
// Generator, or Transformer must be set, matching Kind. Formats are source
// formats for parsers and target formats for generators; transforms use
// Source and Target instead.
type Capability struct {
	Name    string
	Kind    CapabilityKind
	Formats []FormatID
	Source  FormatID // transforms only
	Target  FormatID // transforms only
	Cost    int      // selection and path weight, DefaultCost when zero

	Parser      Parser
	Generator   Generator
	Transformer Transformer
}

// registered pairs a capability with its registration sequence number, which
// breaks selection ties deterministically (first registered wins).
type registered struct {
	cap Capability
	seq int
}

// Registry catalogs parser, generator, and transform capabilities. It is
// mutable only until Freeze; engines freeze their registry at construction,
// so lookups during a run need no locking.
type Registry struct {
	parsers    []registered
	generators []registered
	transforms []registered
	seq        int
	frozen     bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a capability to the catalog. Registration order matters:
// among equal-cost candidates for a format, the first registered wins.
func (r *Registry) Register(c Capability) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if err := checkCapability(c); err != nil {
		return err
	}
	if c.Cost == 0 {
		c.Cost = DefaultCost
	}
	entry := registered{cap: c, seq: r.seq}
	r.seq++
	switch c.Kind {
	case KindParser:
		r.parsers = append(r.parsers, entry)
	case KindGenerator:
		r.generators = append(r.generators, entry)
	case KindTransform:
		r.transforms = append(r.transforms, entry)
	}
	return nil
}

// Freeze makes the registry immutable. Idempotent.
func (r *Registry) Freeze() {
	r.frozen = true
}

// ResolveParser returns the capability that parses the given format.
// Selection prefers lowest cost; ties go to the earliest registration.
func (r *Registry) ResolveParser(f FormatID) (Capability, error) {
	return resolve(r.parsers, f, "parser")
}

// ResolveGenerator returns the capability that generates the given format,
// with the same selection rule as ResolveParser.
func (r *Registry) ResolveGenerator(f FormatID) (Capability, error) {
	return resolve(r.generators, f, "generator")
}

func resolve(entries []registered, f FormatID, role string) (Capability, error) {
	best := -1
	for i, e := range entries {
		if !declaresFormat(e.cap, f) {
			continue
		}
		if best < 0 || less(e, entries[best]) {
			best = i
		}
	}
	if best < 0 {
		return Capability{}, fmt.Errorf("%w: %s for %q", ErrAdapterMissing, role, f)
	}
	return entries[best].cap, nil
}

func less(a, b registered) bool {
	if a.cap.Cost != b.cap.Cost {
		return a.cap.Cost < b.cap.Cost
	}
	return a.seq < b.seq
}

func declaresFormat(c Capability, f FormatID) bool {
	for _, ff := range c.Formats {
		if ff == f {
			return true
		}
	}
	return false
}

func checkCapability(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCapability)
	}
	if c.Cost < 0 {
		return fmt.Errorf("%w: %s: negative cost", ErrInvalidCapability, c.Name)
	}
	switch c.Kind {
	case KindParser:
		if c.Parser == nil || len(c.Formats) == 0 {
			return fmt.Errorf("%w: %s: parser needs an implementation and at least one format", ErrInvalidCapability, c.Name)
		}
	case KindGenerator:
		if c.Generator == nil || len(c.Formats) == 0 {
			return fmt.Errorf("%w: %s: generator needs an implementation and at least one format", ErrInvalidCapability, c.Name)
		}
	case KindTransform:
		if c.Transformer == nil || c.Source == "" || c.Target == "" {
			return fmt.Errorf("%w: %s: transform needs an implementation, source, and target", ErrInvalidCapability, c.Name)
		}
		if c.Source == FormatCanonical || c.Target == FormatCanonical {
			return fmt.Errorf("%w: %s: transforms may not touch the canonical vertex", ErrInvalidCapability, c.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind", ErrInvalidCapability, c.Name)
	}
	for _, f := range c.Formats {
		if f == FormatCanonical {
			return fmt.Errorf("%w: %s: capabilities may not declare the canonical vertex", ErrInvalidCapability, c.Name)
		}
	}
	return nil
}
