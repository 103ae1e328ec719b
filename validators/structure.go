// Package validators provides the built-in validation rules: structural
// checks on the canonical model, text-quality heuristics for extracted
// content, and artifact checks for HTML well-formedness and PDF structure.
package validators

import (
	"context"
	"fmt"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Structure checks structural invariants of the canonical model: non-empty
// content, no skipped heading levels, and consistent table row widths.
type Structure struct{}

// NewStructure creates a Structure validator.
func NewStructure() *Structure { return &Structure{} }

var _ quire.DocumentValidator = (*Structure)(nil)

// CheckDocument reports an error for an empty document, and warnings for
// heading level jumps and ragged tables.
func (v *Structure) CheckDocument(ctx context.Context, doc *document.Document) *quire.ValidationReport {
	report := &quire.ValidationReport{}

	if len(doc.Root.Children()) == 0 {
		report.Add(quire.Finding{
			Severity: quire.SeverityError,
			Code:     "empty-document",
			Message:  "document has no content",
		})
		return report
	}

	prevLevel := 0
	for n := range doc.Root.Walk() {
		switch n.Kind {
		case document.KindHeading:
			if prevLevel > 0 && n.Level > prevLevel+1 {
				report.Add(quire.Finding{
					Severity: quire.SeverityWarning,
					Code:     "heading-jump",
					Message:  fmt.Sprintf("heading level jumps from %d to %d", prevLevel, n.Level),
					NodePath: n.Path(),
				})
			}
			prevLevel = n.Level
		case document.KindTable:
			checkTable(n, report)
		}
	}
	return report
}

// checkTable flags rows whose cell count differs from the first row's.
func checkTable(table *document.Node, report *quire.ValidationReport) {
	want := -1
	for _, row := range table.Children() {
		if row.Kind != document.KindTableRow {
			continue
		}
		got := 0
		for _, cell := range row.Children() {
			if cell.Kind == document.KindTableCell {
				got++
			}
		}
		if want < 0 {
			want = got
			continue
		}
		if got != want {
			report.Add(quire.Finding{
				Severity: quire.SeverityWarning,
				Code:     "ragged-table",
				Message:  fmt.Sprintf("table row has %d cells, expected %d", got, want),
				NodePath: row.Path(),
			})
		}
	}
}
