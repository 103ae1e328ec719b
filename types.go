package quire

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/quireio/quire/document"
)

// FormatID identifies a content format.
type FormatID string

// Known formats. The set is open: adapters may register capabilities for
// formats not listed here.
const (
	FormatMarkdown FormatID = "markdown"
	FormatHTML     FormatID = "html"
	FormatLaTeX    FormatID = "latex"
	FormatTEI      FormatID = "tei"
	FormatDOCX     FormatID = "docx"
	FormatEPUB     FormatID = "epub"
	FormatPDF      FormatID = "pdf"

	// FormatCanonical is the synthetic conversion-graph vertex for the
	// canonical document model. It is not a wire format; no capability may
	// declare it as a source or target.
	FormatCanonical FormatID = "canonical"
)

// SourceKind discriminates SourceRef variants.
type SourceKind int

const (
	SourceInvalid SourceKind = iota
	SourceURL
	SourceFile
	SourceInline
)

// SourceRef identifies the content to convert: a remote URL, a local path,
// or inline text. FormatHint, when set, is authoritative over detection.
type SourceRef struct {
	URL        string
	Path       string
	Inline     string
	FormatHint FormatID
}

// URLSource references remote content to acquire through a Fetcher.
func URLSource(u string) SourceRef { return SourceRef{URL: u} }

// FileSource references a local file.
func FileSource(p string) SourceRef { return SourceRef{Path: p} }

// InlineSource wraps literal content with an authoritative format hint.
func InlineSource(text string, hint FormatID) SourceRef {
	return SourceRef{Inline: text, FormatHint: hint}
}

// WithHint returns a copy of the ref carrying an explicit format hint.
func (r SourceRef) WithHint(hint FormatID) SourceRef {
	r.FormatHint = hint
	return r
}

// Kind reports which variant the ref is, or SourceInvalid when zero or
// ambiguous.
func (r SourceRef) Kind() SourceKind {
	set := 0
	kind := SourceInvalid
	if r.URL != "" {
		set++
		kind = SourceURL
	}
	if r.Path != "" {
		set++
		kind = SourceFile
	}
	if r.Inline != "" {
		set++
		kind = SourceInline
	}
	if set != 1 {
		return SourceInvalid
	}
	return kind
}

// String returns the ref's identity for logs and error messages.
func (r SourceRef) String() string {
	switch r.Kind() {
	case SourceURL:
		return r.URL
	case SourceFile:
		return r.Path
	case SourceInline:
		return "<inline>"
	default:
		return "<invalid>"
	}
}

// RawContent is an acquired payload before parsing.
type RawContent struct {
	Bytes               []byte
	DeclaredContentType string
	FetchedAt           time.Time
}

// Artifact is a generated output payload. Warnings carry findings for node
// variants the target format could not represent; the engine merges them into
// the branch's validation report so the loss is never silent.
type Artifact struct {
	Format      FormatID
	Bytes       []byte
	GeneratedAt time.Time
	Warnings    []Finding
}

// Fetcher acquires remote content. Implementations map transport failures to
// AcquisitionError so the engine can apply its retry policy.
type Fetcher interface {
	Fetch(ctx context.Context, ref SourceRef) (*RawContent, error)
}

// Parser produces a canonical Document from raw content.
type Parser interface {
	Parse(ctx context.Context, raw RawContent) (*document.Document, error)
}

// Generator renders a canonical Document into a target-format artifact.
// Generators must not mutate the document; they clone it first if a
// transformation is required.
type Generator interface {
	Generate(ctx context.Context, doc *document.Document) (*Artifact, error)
}

// Transformer is a direct format-to-format shortcut that bypasses the
// canonical model, used for fidelity or speed when no document checkpoint
// requires the canonical form.
type Transformer interface {
	Transform(ctx context.Context, in []byte) ([]byte, error)
}

// Sink receives emitted artifacts. Persistence is the collaborator's concern;
// the engine only requires a write call per succeeded branch.
type Sink interface {
	Write(format FormatID, data []byte) error
}

// Strictness selects how Warning findings are treated at checkpoints.
type Strictness int

const (
	// Lenient attaches Warning findings to the report without halting.
	Lenient Strictness = iota
	// Strict promotes Warning findings to Error at checkpoint evaluation.
	Strict
)

// DefaultMaxRetries bounds acquisition attempts for transient failures.
const DefaultMaxRetries = 3

// Options configures a pipeline run.
type Options struct {
	// MaxRetries bounds acquisition attempts for transient errors.
	MaxRetries int
	// PerStageTimeout applies to acquisition and each generator invocation.
	// Zero means no per-stage deadline beyond the caller's context.
	PerStageTimeout time.Duration
	// ValidationStrictness promotes warnings to errors when Strict.
	ValidationStrictness Strictness
	// ConcurrencyLimit caps concurrently running output branches.
	ConcurrencyLimit int
}

// Validate checks option bounds.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.MaxRetries, validation.Min(1)),
		validation.Field(&o.PerStageTimeout, validation.Min(time.Duration(0))),
		validation.Field(&o.ConcurrencyLimit, validation.Min(1)),
	)
}

// defaultOptions returns the documented defaults.
func defaultOptions() Options {
	return Options{
		MaxRetries:           DefaultMaxRetries,
		ValidationStrictness: Lenient,
		ConcurrencyLimit:     defaultConcurrency(),
	}
}

// defaultConcurrency derives the branch limit from available CPUs, leaving
// headroom for adapter subprocesses.
func defaultConcurrency() int {
	n := runtime.GOMAXPROCS(0) / 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetcher sets the acquisition capability for remote sources.
func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithSink sets the artifact emission sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithMaxRetries bounds acquisition retries.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.opts.MaxRetries = n }
}

// WithPerStageTimeout sets the per-stage deadline.
func WithPerStageTimeout(d time.Duration) Option {
	return func(e *Engine) { e.opts.PerStageTimeout = d }
}

// WithStrictness sets warning promotion policy.
func WithStrictness(s Strictness) Option {
	return func(e *Engine) { e.opts.ValidationStrictness = s }
}

// WithConcurrencyLimit caps concurrent output branches.
func WithConcurrencyLimit(n int) Option {
	return func(e *Engine) { e.opts.ConcurrencyLimit = n }
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDocumentRule registers a document validation rule at a checkpoint.
func WithDocumentRule(cp Checkpoint, rule DocumentValidator) Option {
	return func(e *Engine) { e.checkpoints.addDocumentRule(cp, rule) }
}

// WithArtifactRule registers an artifact validation rule at a checkpoint.
func WithArtifactRule(cp Checkpoint, rule ArtifactValidator) Option {
	return func(e *Engine) { e.checkpoints.addArtifactRule(cp, rule) }
}
