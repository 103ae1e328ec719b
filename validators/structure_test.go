package validators

import (
	"context"
	"testing"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

func buildDoc(t *testing.T, children ...*document.Node) *document.Document {
	t.Helper()
	root := document.NewNode(document.KindSection)
	root.MustAppend(children...)
	return document.MustNew(root)
}

func findCode(report *quire.ValidationReport, code string) *quire.Finding {
	for i := range report.Findings {
		if report.Findings[i].Code == code {
			return &report.Findings[i]
		}
	}
	return nil
}

func TestStructureEmptyDocument(t *testing.T) {
	t.Parallel()

	report := NewStructure().CheckDocument(context.Background(), buildDoc(t))
	f := findCode(report, "empty-document")
	if f == nil || f.Severity != quire.SeverityError {
		t.Errorf("findings = %+v, want an empty-document error", report.Findings)
	}
}

func TestStructureHeadingJump(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t,
		document.NewHeading(1).MustAppend(document.NewText("a")),
		document.NewHeading(4).MustAppend(document.NewText("b")),
	)
	report := NewStructure().CheckDocument(context.Background(), doc)
	f := findCode(report, "heading-jump")
	if f == nil || f.Severity != quire.SeverityWarning {
		t.Fatalf("findings = %+v, want a heading-jump warning", report.Findings)
	}
	if f.NodePath == "" {
		t.Error("heading-jump finding has no node path")
	}
}

func TestStructureSequentialHeadingsPass(t *testing.T) {
	t.Parallel()

	doc := buildDoc(t,
		document.NewHeading(1).MustAppend(document.NewText("a")),
		document.NewHeading(2).MustAppend(document.NewText("b")),
		document.NewHeading(1).MustAppend(document.NewText("c")),
	)
	report := NewStructure().CheckDocument(context.Background(), doc)
	if len(report.Findings) != 0 {
		t.Errorf("findings = %+v, want none", report.Findings)
	}
}

func TestStructureRaggedTable(t *testing.T) {
	t.Parallel()

	wide := document.NewNode(document.KindTableRow)
	wide.MustAppend(
		document.NewNode(document.KindTableCell),
		document.NewNode(document.KindTableCell),
	)
	narrow := document.NewNode(document.KindTableRow)
	narrow.MustAppend(document.NewNode(document.KindTableCell))
	table := document.NewNode(document.KindTable)
	table.MustAppend(wide, narrow)

	report := NewStructure().CheckDocument(context.Background(), buildDoc(t, table))
	if findCode(report, "ragged-table") == nil {
		t.Errorf("findings = %+v, want a ragged-table warning", report.Findings)
	}
}

func TestStructureUniformTablePasses(t *testing.T) {
	t.Parallel()

	a := document.NewNode(document.KindTableRow)
	a.MustAppend(document.NewNode(document.KindTableCell), document.NewNode(document.KindTableCell))
	b := document.NewNode(document.KindTableRow)
	b.MustAppend(document.NewNode(document.KindTableCell), document.NewNode(document.KindTableCell))
	table := document.NewNode(document.KindTable)
	table.MustAppend(a, b)

	report := NewStructure().CheckDocument(context.Background(), buildDoc(t, table))
	if len(report.Findings) != 0 {
		t.Errorf("findings = %+v, want none", report.Findings)
	}
}
