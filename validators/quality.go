package validators

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/document"
)

// Quality thresholds. Extractions from badly encoded or scanned sources tend
// to fall well below both.
const (
	minPrintableRatio = 0.85
	minWordlikeRatio  = 0.50
)

// TextQuality scores the extracted text of a document and flags content that
// looks like a broken extraction: unprintable glyph soup or token streams
// with few word-like runs.
type TextQuality struct{}

// NewTextQuality creates a TextQuality validator.
func NewTextQuality() *TextQuality { return &TextQuality{} }

var _ quire.DocumentValidator = (*TextQuality)(nil)

// CheckDocument reports warnings when text quality ratios fall below their
// thresholds. An empty text body passes: Structure owns the empty case.
func (v *TextQuality) CheckDocument(ctx context.Context, doc *document.Document) *quire.ValidationReport {
	report := &quire.ValidationReport{}
	text := doc.Root.PlainText()
	if strings.TrimSpace(text) == "" {
		return report
	}

	if ratio := printableRatio(text); ratio < minPrintableRatio {
		report.Add(quire.Finding{
			Severity: quire.SeverityWarning,
			Code:     "low-printable-ratio",
			Message:  fmt.Sprintf("printable character ratio %.2f below %.2f", ratio, minPrintableRatio),
		})
	}
	if ratio := wordlikeRatio(text); ratio < minWordlikeRatio {
		report.Add(quire.Finding{
			Severity: quire.SeverityWarning,
			Code:     "low-wordlike-ratio",
			Message:  fmt.Sprintf("word-like token ratio %.2f below %.2f", ratio, minWordlikeRatio),
		})
	}
	return report
}

// printableRatio returns the share of printable characters in text.
// Private-use-area runes, the replacement character, and control characters
// other than whitespace count as garbage.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the share of whitespace-separated tokens with a
// plausible word length (2-15 runes).
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
