package quire

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for pipeline operations. Every branch failure is reduced to
// one of these (wrapped with detail) and converted into an ErrorDescriptor;
// nothing propagates to crash the overall run.
var (
	ErrAdapterMissing   = errors.New("no adapter registered for format")
	ErrNoConversionPath = errors.New("no conversion path between formats")
	ErrParse            = errors.New("parse failed")
	ErrGenerate         = errors.New("generate failed")
	ErrTransform        = errors.New("transform failed")
	ErrValidationFailed = errors.New("validation checkpoint failed")
	ErrCancelled        = errors.New("pipeline run cancelled")
	ErrSinkWrite        = errors.New("artifact sink write failed")
	ErrStageTimeout     = errors.New("stage deadline exceeded")

	// Registry misuse errors.
	ErrRegistryFrozen    = errors.New("registry is frozen")
	ErrInvalidCapability = errors.New("invalid capability")

	// Engine misuse errors, returned from Process directly.
	ErrNoRequestedFormats = errors.New("no requested output formats")
	ErrInvalidSource      = errors.New("invalid source reference")
	ErrNoFetcher          = errors.New("remote source requires a fetcher")
)

// AcquireErrorKind classifies acquisition failures.
type AcquireErrorKind string

const (
	AcquireTimeout   AcquireErrorKind = "timeout"
	AcquireNotFound  AcquireErrorKind = "not_found"
	AcquireBlocked   AcquireErrorKind = "blocked"
	AcquireMalformed AcquireErrorKind = "malformed"
)

// AcquisitionError reports a content acquisition failure. Timeout and Blocked
// are transient and retried with backoff; NotFound and Malformed fail the run
// immediately.
type AcquisitionError struct {
	Kind   AcquireErrorKind
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire %s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("acquire %s: %s", e.Source, e.Kind)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *AcquisitionError) Transient() bool {
	return e.Kind == AcquireTimeout || e.Kind == AcquireBlocked
}

// ErrorDescriptor is the user-visible shape of a branch failure in a
// PipelineResult. Callers inspect Code to decide remediation.
type ErrorDescriptor struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Error descriptor codes.
const (
	CodeAcquisition      = "acquisition_error"
	CodeAdapterMissing   = "adapter_missing"
	CodeNoConversionPath = "no_conversion_path"
	CodeParseError       = "parse_error"
	CodeGenerateError    = "generate_error"
	CodeTransformError   = "transform_error"
	CodeValidationFailed = "validation_failed"
	CodeCancelled        = "cancelled"
	CodeSinkError        = "sink_error"
	CodeStageTimeout     = "stage_timeout"
)

// describeError classifies an error into its descriptor.
func describeError(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	var acq *AcquisitionError
	switch {
	case errors.As(err, &acq):
		return &ErrorDescriptor{
			Code:      CodeAcquisition + ":" + string(acq.Kind),
			Message:   acq.Error(),
			Retryable: acq.Transient(),
		}
	case errors.Is(err, ErrAdapterMissing):
		return &ErrorDescriptor{Code: CodeAdapterMissing, Message: err.Error()}
	case errors.Is(err, ErrNoConversionPath):
		return &ErrorDescriptor{Code: CodeNoConversionPath, Message: err.Error()}
	case errors.Is(err, ErrParse):
		return &ErrorDescriptor{Code: CodeParseError, Message: err.Error()}
	case errors.Is(err, ErrGenerate):
		return &ErrorDescriptor{Code: CodeGenerateError, Message: err.Error()}
	case errors.Is(err, ErrTransform):
		return &ErrorDescriptor{Code: CodeTransformError, Message: err.Error()}
	case errors.Is(err, ErrValidationFailed):
		return &ErrorDescriptor{Code: CodeValidationFailed, Message: err.Error()}
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return &ErrorDescriptor{Code: CodeCancelled, Message: ErrCancelled.Error()}
	case errors.Is(err, ErrStageTimeout), errors.Is(err, context.DeadlineExceeded):
		return &ErrorDescriptor{Code: CodeStageTimeout, Message: err.Error(), Retryable: true}
	case errors.Is(err, ErrSinkWrite):
		return &ErrorDescriptor{Code: CodeSinkError, Message: err.Error(), Retryable: true}
	default:
		return &ErrorDescriptor{Code: "internal_error", Message: err.Error()}
	}
}
