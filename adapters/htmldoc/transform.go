package htmldoc

import (
	"context"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	quire "github.com/quireio/quire"
)

// MarkdownTransform converts HTML bytes straight to Markdown without going
// through the canonical model. Registered as a direct edge, it lets the
// resolver skip a parse/generate round trip when no checkpoint needs the
// canonical form.
type MarkdownTransform struct {
	conv *converter.Converter
}

// NewMarkdownTransform creates the HTML-to-Markdown transform.
func NewMarkdownTransform() *MarkdownTransform {
	return &MarkdownTransform{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

var _ quire.Transformer = (*MarkdownTransform)(nil)

// MarkdownTransformCapability declares the transform for registration. Its
// cost undercuts the parse+generate path so the resolver prefers it.
func MarkdownTransformCapability() quire.Capability {
	return quire.Capability{
		Name:        "html-to-markdown",
		Kind:        quire.KindTransform,
		Source:      quire.FormatHTML,
		Target:      quire.FormatMarkdown,
		Cost:        1,
		Transformer: NewMarkdownTransform(),
	}
}

// Transform converts HTML input to Markdown output.
func (t *MarkdownTransform) Transform(ctx context.Context, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, err := t.conv.ConvertString(string(input))
	if err != nil {
		return nil, fmt.Errorf("converting html to markdown: %w", err)
	}
	return []byte(md), nil
}
