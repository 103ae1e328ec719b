// Package sink provides artifact destinations for the emit stage: a
// directory writer, a SQLite store, and a discard sink for dry runs.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	quire "github.com/quireio/quire"
)

// extensions maps formats to output file extensions.
var extensions = map[quire.FormatID]string{
	quire.FormatMarkdown: ".md",
	quire.FormatHTML:     ".html",
	quire.FormatLaTeX:    ".tex",
	quire.FormatTEI:      ".tei.xml",
	quire.FormatDOCX:     ".docx",
	quire.FormatEPUB:     ".epub",
	quire.FormatPDF:      ".pdf",
}

// Extension returns the file extension for a format, defaulting to the
// format name itself.
func Extension(f quire.FormatID) string {
	if ext, ok := extensions[f]; ok {
		return ext
	}
	return "." + strings.ToLower(string(f))
}

// Dir writes each artifact to <dir>/<base><ext>, creating the directory on
// first write.
type Dir struct {
	dir  string
	base string
}

// NewDir creates a directory sink. base names the output files; an empty
// base defaults to "output".
func NewDir(dir, base string) *Dir {
	if base == "" {
		base = "output"
	}
	return &Dir{dir: dir, base: base}
}

var _ quire.Sink = (*Dir)(nil)

// Write stores one artifact as a file.
func (s *Dir) Write(format quire.FormatID, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(s.dir, s.base+Extension(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Discard drops every artifact. Useful for validation-only runs.
type Discard struct{}

var _ quire.Sink = Discard{}

// Write discards the artifact.
func (Discard) Write(quire.FormatID, []byte) error { return nil }
