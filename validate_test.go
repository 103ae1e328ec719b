package quire

import (
	"strings"
	"testing"
)

func TestValidationReportCounts(t *testing.T) {
	t.Parallel()

	report := &ValidationReport{}
	report.Add(Finding{Severity: SeverityInfo, Code: "a"})
	report.Add(Finding{Severity: SeverityWarning, Code: "b"})
	report.Add(Finding{Severity: SeverityWarning, Code: "c"})

	if report.Failed() {
		t.Error("report without errors reports Failed")
	}
	if got := report.WarningCount(); got != 2 {
		t.Errorf("WarningCount = %d, want 2", got)
	}

	report.Add(Finding{Severity: SeverityError, Code: "d"})
	if !report.Failed() {
		t.Error("report with an error does not report Failed")
	}
	if got := report.ErrorCount(); got != 1 {
		t.Errorf("ErrorCount = %d, want 1", got)
	}
}

func TestValidationReportMerge(t *testing.T) {
	t.Parallel()

	a := &ValidationReport{}
	a.Add(Finding{Severity: SeverityWarning, Code: "one"})

	b := &ValidationReport{}
	b.Add(Finding{Severity: SeverityError, Code: "two"})

	a.Merge(b)
	a.Merge(nil)

	if len(a.Findings) != 2 {
		t.Fatalf("merged findings = %d, want 2", len(a.Findings))
	}
	if !a.Failed() {
		t.Error("merged report lost the error finding")
	}
}

func TestPromote(t *testing.T) {
	t.Parallel()

	t.Run("strict promotes warnings", func(t *testing.T) {
		t.Parallel()
		report := &ValidationReport{}
		report.Add(Finding{Severity: SeverityWarning, Code: "w", Message: "suspicious"})
		report.Add(Finding{Severity: SeverityInfo, Code: "i", Message: "fyi"})

		promote(report, Strict)

		if report.Findings[0].Severity != SeverityError {
			t.Error("warning was not promoted to error")
		}
		if !strings.Contains(report.Findings[0].Message, "promoted by strict validation") {
			t.Errorf("promoted message = %q, want promotion note", report.Findings[0].Message)
		}
		if report.Findings[1].Severity != SeverityInfo {
			t.Error("info finding was promoted")
		}
		if !report.Failed() {
			t.Error("strict report with promoted warning does not fail")
		}
	})

	t.Run("lenient keeps warnings", func(t *testing.T) {
		t.Parallel()
		report := &ValidationReport{}
		report.Add(Finding{Severity: SeverityWarning, Code: "w", Message: "suspicious"})

		promote(report, Lenient)

		if report.Findings[0].Severity != SeverityWarning {
			t.Error("lenient mode changed a warning severity")
		}
		if report.Failed() {
			t.Error("lenient report with only warnings fails")
		}
	})
}
