// Package adapters registers the built-in format adapters in one call.
package adapters

import (
	quire "github.com/quireio/quire"
	"github.com/quireio/quire/adapters/docx"
	"github.com/quireio/quire/adapters/epub"
	"github.com/quireio/quire/adapters/htmldoc"
	"github.com/quireio/quire/adapters/latex"
	"github.com/quireio/quire/adapters/markdown"
	"github.com/quireio/quire/adapters/pdfgen"
	"github.com/quireio/quire/adapters/tei"
)

// RegisterDefaults registers every built-in parser, generator, and transform
// on reg. Registration order is fixed so path resolution stays deterministic
// across runs.
func RegisterDefaults(reg *quire.Registry) error {
	caps := []quire.Capability{
		markdown.ParserCapability(),
		markdown.GeneratorCapability(),
		htmldoc.ParserCapability(),
		htmldoc.GeneratorCapability(),
		htmldoc.MarkdownTransformCapability(),
		tei.GeneratorCapability(),
		latex.GeneratorCapability(),
		pdfgen.GeneratorCapability(),
		docx.GeneratorCapability(),
		epub.GeneratorCapability(),
	}
	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
