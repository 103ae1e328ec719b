package validators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/net/html"

	quire "github.com/quireio/quire"
)

// WellFormedHTML checks that an HTML artifact parses and closes the tags it
// opens. The tokenizer-level check catches truncated output that the
// error-recovering DOM parser would silently repair.
type WellFormedHTML struct{}

// NewWellFormedHTML creates the HTML artifact validator.
func NewWellFormedHTML() *WellFormedHTML { return &WellFormedHTML{} }

var _ quire.ArtifactValidator = (*WellFormedHTML)(nil)

// voidElements never take a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// CheckArtifact validates HTML artifacts; other formats pass through.
func (v *WellFormedHTML) CheckArtifact(ctx context.Context, data []byte, format quire.FormatID) *quire.ValidationReport {
	report := &quire.ValidationReport{}
	if format != quire.FormatHTML {
		return report
	}

	var depth int
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				report.Add(quire.Finding{
					Severity: quire.SeverityError,
					Code:     "malformed-html",
					Message:  fmt.Sprintf("tokenizing html: %v", err),
				})
				return report
			}
			if depth != 0 {
				report.Add(quire.Finding{
					Severity: quire.SeverityWarning,
					Code:     "unbalanced-html",
					Message:  fmt.Sprintf("%d unclosed elements at end of document", depth),
				})
			}
			return report
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[strings.ToLower(string(name))] {
				depth++
			}
		case html.EndTagToken:
			depth--
		}
	}
}

// PDFStructure validates a PDF artifact by reading it through pdfcpu's
// parser with validation enabled.
type PDFStructure struct {
	conf *model.Configuration
}

// NewPDFStructure creates the PDF artifact validator.
func NewPDFStructure() *PDFStructure {
	return &PDFStructure{conf: model.NewDefaultConfiguration()}
}

var _ quire.ArtifactValidator = (*PDFStructure)(nil)

// CheckArtifact validates PDF artifacts; other formats pass through.
func (v *PDFStructure) CheckArtifact(ctx context.Context, data []byte, format quire.FormatID) *quire.ValidationReport {
	report := &quire.ValidationReport{}
	if format != quire.FormatPDF {
		return report
	}

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), v.conf)
	if err != nil {
		report.Add(quire.Finding{
			Severity: quire.SeverityError,
			Code:     "malformed-pdf",
			Message:  fmt.Sprintf("pdfcpu validation: %v", err),
		})
		return report
	}
	if pdfCtx.PageCount == 0 {
		report.Add(quire.Finding{
			Severity: quire.SeverityError,
			Code:     "empty-pdf",
			Message:  "pdf has no pages",
		})
	}
	return report
}
