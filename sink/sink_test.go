package sink

import (
	"os"
	"path/filepath"
	"testing"

	quire "github.com/quireio/quire"
)

func TestExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format quire.FormatID
		want   string
	}{
		{quire.FormatMarkdown, ".md"},
		{quire.FormatHTML, ".html"},
		{quire.FormatTEI, ".tei.xml"},
		{quire.FormatPDF, ".pdf"},
		{quire.FormatID("Custom"), ".custom"},
	}
	for _, tt := range tests {
		if got := Extension(tt.format); got != tt.want {
			t.Errorf("Extension(%s) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestDirWrite(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	s := NewDir(dir, "paper")

	if err := s.Write(quire.FormatHTML, []byte("<p>hi</p>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(quire.FormatMarkdown, []byte("# hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "paper.html"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(got) != "<p>hi</p>" {
		t.Errorf("html output = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "paper.md")); err != nil {
		t.Errorf("markdown output missing: %v", err)
	}
}

func TestDirDefaultBase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewDir(dir, "")
	if err := s.Write(quire.FormatMarkdown, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output.md")); err != nil {
		t.Errorf("default base name not used: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	if err := (Discard{}).Write(quire.FormatPDF, []byte("anything")); err != nil {
		t.Errorf("Discard.Write: %v", err)
	}
}

func TestSQLiteWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifacts.db")
	s, err := NewSQLite(path, "https://example.org/paper")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()

	if err := s.Write(quire.FormatHTML, []byte("<p>hi</p>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(quire.FormatMarkdown, []byte("# hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM artifacts WHERE source = ?`, "https://example.org/paper",
	).Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 2 {
		t.Errorf("rows = %d, want 2", count)
	}

	var content []byte
	if err := s.db.QueryRow(
		`SELECT content FROM artifacts WHERE format = ?`, "html",
	).Scan(&content); err != nil {
		t.Fatalf("reading row: %v", err)
	}
	if string(content) != "<p>hi</p>" {
		t.Errorf("stored content = %q", content)
	}
}
