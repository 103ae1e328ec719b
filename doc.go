// Package quire converts scholarly content between heterogeneous formats
// through a single pipeline: acquisition, parsing into a canonical document
// model, validation checkpoints, generation, and emission.
//
// Per-format parsers and generators are pluggable capabilities registered in
// a Registry; a ConversionGraph finds a deterministic conversion path between
// any source and target format; the Engine runs the staged pipeline with
// per-output-format branch isolation, shared acquisition/parsing, retry with
// backoff, and a result report that is always returned rather than thrown.
//
// Usage:
//
//	reg := quire.NewRegistry()
//	reg.Register(quire.Capability{Kind: quire.KindParser, Name: "markdown",
//		Formats: []quire.FormatID{quire.FormatMarkdown}, Parser: p})
//	reg.Register(quire.Capability{Kind: quire.KindGenerator, Name: "html",
//		Formats: []quire.FormatID{quire.FormatHTML}, Generator: g})
//
//	eng, err := quire.NewEngine(reg, quire.WithFetcher(fetch.NewHTTP()))
//	res, err := eng.Process(ctx, quire.FileSource("paper.md"),
//		quire.FormatHTML, quire.FormatTEI)
package quire
