package quire

import (
	"context"
	"fmt"

	"github.com/quireio/quire/document"
)

// Severity grades a validation finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Finding is one validation result.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	NodePath string   `json:"node_path,omitempty"`
}

// ValidationReport collects findings from one or more rules. A report with
// any Error finding marks its checkpoint failed.
type ValidationReport struct {
	Findings []Finding `json:"findings"`
}

// Add appends a finding.
func (r *ValidationReport) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Merge appends another report's findings.
func (r *ValidationReport) Merge(other *ValidationReport) {
	if other == nil {
		return
	}
	r.Findings = append(r.Findings, other.Findings...)
}

// ErrorCount returns the number of Error findings.
func (r *ValidationReport) ErrorCount() int {
	return r.count(SeverityError)
}

// WarningCount returns the number of Warning findings.
func (r *ValidationReport) WarningCount() int {
	return r.count(SeverityWarning)
}

func (r *ValidationReport) count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// Failed reports whether any Error finding is present.
func (r *ValidationReport) Failed() bool {
	return r.ErrorCount() > 0
}

// Checkpoint names a pipeline position where validation rules run.
type Checkpoint string

const (
	CheckpointPostParse    Checkpoint = "post-parse"
	CheckpointPostGenerate Checkpoint = "post-generate"
	CheckpointPreEmit      Checkpoint = "pre-emit"
)

// DocumentValidator checks the canonical model.
type DocumentValidator interface {
	CheckDocument(ctx context.Context, doc *document.Document) *ValidationReport
}

// ArtifactValidator checks generated output bytes for a format.
type ArtifactValidator interface {
	CheckArtifact(ctx context.Context, data []byte, format FormatID) *ValidationReport
}

// checkpointSet holds the rules registered per checkpoint. Populated at
// engine construction, read-only afterwards.
type checkpointSet struct {
	docRules      map[Checkpoint][]DocumentValidator
	artifactRules map[Checkpoint][]ArtifactValidator
}

func newCheckpointSet() *checkpointSet {
	return &checkpointSet{
		docRules:      make(map[Checkpoint][]DocumentValidator),
		artifactRules: make(map[Checkpoint][]ArtifactValidator),
	}
}

func (cs *checkpointSet) addDocumentRule(cp Checkpoint, rule DocumentValidator) {
	cs.docRules[cp] = append(cs.docRules[cp], rule)
}

func (cs *checkpointSet) addArtifactRule(cp Checkpoint, rule ArtifactValidator) {
	cs.artifactRules[cp] = append(cs.artifactRules[cp], rule)
}

// needsCanonical reports whether any document rule is configured, which
// forces conversion paths through the canonical model.
func (cs *checkpointSet) needsCanonical() bool {
	for _, rules := range cs.docRules {
		if len(rules) > 0 {
			return true
		}
	}
	return false
}

// runDocument evaluates the document rules of a checkpoint.
func (cs *checkpointSet) runDocument(ctx context.Context, cp Checkpoint, doc *document.Document, strict Strictness) *ValidationReport {
	report := &ValidationReport{}
	for _, rule := range cs.docRules[cp] {
		report.Merge(rule.CheckDocument(ctx, doc))
	}
	return promote(report, strict)
}

// runArtifact evaluates the artifact rules of a checkpoint.
func (cs *checkpointSet) runArtifact(ctx context.Context, cp Checkpoint, data []byte, format FormatID, strict Strictness) *ValidationReport {
	report := &ValidationReport{}
	for _, rule := range cs.artifactRules[cp] {
		report.Merge(rule.CheckArtifact(ctx, data, format))
	}
	return promote(report, strict)
}

// promote applies strictness at evaluation time so rules stay
// strictness-agnostic. Strict turns every Warning into an Error.
func promote(report *ValidationReport, strict Strictness) *ValidationReport {
	if strict != Strict {
		return report
	}
	for i := range report.Findings {
		if report.Findings[i].Severity == SeverityWarning {
			report.Findings[i].Severity = SeverityError
			report.Findings[i].Message = fmt.Sprintf("%s (warning promoted by strict validation)", report.Findings[i].Message)
		}
	}
	return report
}
