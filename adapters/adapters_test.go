package adapters

import (
	"context"
	"strings"
	"testing"

	quire "github.com/quireio/quire"
)

func TestRegisterDefaults(t *testing.T) {
	t.Parallel()

	reg := quire.NewRegistry()
	if err := RegisterDefaults(reg); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}

	if _, err := reg.ResolveParser(quire.FormatMarkdown); err != nil {
		t.Errorf("markdown parser missing: %v", err)
	}
	if _, err := reg.ResolveParser(quire.FormatHTML); err != nil {
		t.Errorf("html parser missing: %v", err)
	}
	for _, f := range []quire.FormatID{
		quire.FormatMarkdown, quire.FormatHTML, quire.FormatTEI,
		quire.FormatLaTeX, quire.FormatPDF, quire.FormatDOCX, quire.FormatEPUB,
	} {
		if _, err := reg.ResolveGenerator(f); err != nil {
			t.Errorf("%s generator missing: %v", f, err)
		}
	}
}

func TestRegisterDefaultsEndToEnd(t *testing.T) {
	t.Parallel()

	reg := quire.NewRegistry()
	if err := RegisterDefaults(reg); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}
	eng, err := quire.NewEngine(reg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	md := "# Title\n\n" +
		"A claim.[^1]\n\n" +
		"| a | b |\n| --- | --- |\n| 1 | 2 |\n\n" +
		"[^1]: The note.\n"
	src := quire.InlineSource(md, quire.FormatMarkdown)
	res, err := eng.Process(context.Background(), src, quire.FormatHTML, quire.FormatTEI)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != quire.StatusSucceeded {
		t.Fatalf("status = %s, errors = %+v", res.Status, res.Errors)
	}

	html := string(res.Artifacts[quire.FormatHTML].Bytes)
	if !strings.Contains(html, "<table>") {
		t.Errorf("html output has no table:\n%s", html)
	}
	if !strings.Contains(html, "fnref:1") {
		t.Errorf("html output lost the footnote:\n%s", html)
	}
	tei := string(res.Artifacts[quire.FormatTEI].Bytes)
	if !strings.Contains(tei, "<table") || !strings.Contains(tei, "<row") {
		t.Errorf("tei output has no table:\n%s", tei)
	}
	if !strings.Contains(tei, `<note n="1"`) {
		t.Errorf("tei output lost the footnote:\n%s", tei)
	}
}
