package quire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backoff bounds for transient acquisition retries.
const (
	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// acquire fetches the source payload. Local and inline sources are read
// directly; remote sources go through the fetcher with retry on transient
// failures. Every attempt is recorded in the run's stage log.
func (e *Engine) acquire(ctx context.Context, run *PipelineRun) (*RawContent, error) {
	ref := run.SourceRef
	switch ref.Kind() {
	case SourceInline:
		run.logStage("", StageAcquire, 1, nil)
		return &RawContent{Bytes: []byte(ref.Inline), FetchedAt: time.Now()}, nil

	case SourceFile:
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			kind := AcquireMalformed
			if os.IsNotExist(err) {
				kind = AcquireNotFound
			}
			aerr := &AcquisitionError{Kind: kind, Source: ref.Path, Err: err}
			run.logStage("", StageAcquire, 1, aerr)
			return nil, aerr
		}
		run.logStage("", StageAcquire, 1, nil)
		return &RawContent{
			Bytes:               data,
			DeclaredContentType: mime.TypeByExtension(filepath.Ext(ref.Path)),
			FetchedAt:           time.Now(),
		}, nil

	case SourceURL:
		if e.fetcher == nil {
			return nil, ErrNoFetcher
		}
		return e.fetchWithRetry(ctx, run, ref)

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, ref)
	}
}

// fetchWithRetry applies the retry policy: transient errors (timeout,
// blocked) retry with exponential backoff up to MaxRetries total attempts;
// non-transient errors fail immediately.
func (e *Engine) fetchWithRetry(ctx context.Context, run *PipelineRun, ref SourceRef) (*RawContent, error) {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		raw, err := e.fetchOnce(ctx, ref)
		run.logStage("", StageAcquire, attempt, err)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var aerr *AcquisitionError
		if !errors.As(err, &aerr) || !aerr.Transient() {
			return nil, err
		}
		if attempt == e.opts.MaxRetries {
			break
		}
		e.logger.Debug("acquisition retry",
			"source", ref.String(), "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return nil, lastErr
}

// fetchOnce runs a single fetch under the per-stage deadline.
func (e *Engine) fetchOnce(ctx context.Context, ref SourceRef) (*RawContent, error) {
	if e.opts.PerStageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.PerStageTimeout)
		defer cancel()
	}
	raw, err := e.fetcher.Fetch(ctx, ref)
	if err != nil {
		var aerr *AcquisitionError
		if errors.As(err, &aerr) {
			return nil, err
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &AcquisitionError{Kind: AcquireTimeout, Source: ref.String(), Err: err}
		}
		return nil, &AcquisitionError{Kind: AcquireMalformed, Source: ref.String(), Err: err}
	}
	return raw, nil
}

// detectFormat resolves the input format: an explicit hint is authoritative,
// the declared content type is consulted next, content sniffing is the
// fallback. A hint that disagrees with detection yields a Warning finding
// rather than an error.
func detectFormat(ref SourceRef, raw *RawContent) (FormatID, *Finding) {
	detected := detectWithoutHint(ref, raw)
	if ref.FormatHint != "" {
		if detected != "" && detected != ref.FormatHint {
			return ref.FormatHint, &Finding{
				Severity: SeverityWarning,
				Code:     "detect-conflict",
				Message: fmt.Sprintf("explicit format hint %q overrides detected format %q",
					ref.FormatHint, detected),
			}
		}
		return ref.FormatHint, nil
	}
	if detected == "" {
		// Text payloads with no stronger signal are treated as markdown,
		// the most permissive text format.
		return FormatMarkdown, nil
	}
	return detected, nil
}

func detectWithoutHint(ref SourceRef, raw *RawContent) FormatID {
	if f := formatFromContentType(raw.DeclaredContentType); f != "" {
		return f
	}
	if ref.Path != "" {
		if f := formatFromExtension(filepath.Ext(ref.Path)); f != "" {
			return f
		}
	}
	return sniffFormat(raw.Bytes)
}

func formatFromContentType(ct string) FormatID {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(ct))
	}
	switch mt {
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	case "text/markdown":
		return FormatMarkdown
	case "application/pdf":
		return FormatPDF
	case "application/tei+xml":
		return FormatTEI
	case "application/x-latex", "text/x-tex":
		return FormatLaTeX
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatDOCX
	case "application/epub+zip":
		return FormatEPUB
	default:
		return ""
	}
}

func formatFromExtension(ext string) FormatID {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	case ".tex", ".latex":
		return FormatLaTeX
	case ".xml", ".tei":
		return FormatTEI
	case ".docx":
		return FormatDOCX
	case ".epub":
		return FormatEPUB
	case ".pdf":
		return FormatPDF
	default:
		return ""
	}
}

// sniffFormat inspects payload bytes: markup signatures first, then the
// stdlib content sniffer.
func sniffFormat(data []byte) FormatID {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
	lower := bytes.ToLower(trimmed)

	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(lower, []byte("<!doctype html")),
		bytes.HasPrefix(lower, []byte("<html")):
		return FormatHTML
	case bytes.Contains(lower, []byte("<tei")):
		return FormatTEI
	case bytes.HasPrefix(trimmed, []byte(`\documentclass`)),
		bytes.HasPrefix(trimmed, []byte(`\usepackage`)):
		return FormatLaTeX
	}

	switch http.DetectContentType(head) {
	case "text/html; charset=utf-8":
		return FormatHTML
	case "application/pdf":
		return FormatPDF
	case "application/zip":
		// DOCX and EPUB are both zip containers; without the container's
		// mimetype entry the safer guess is DOCX.
		return FormatDOCX
	}
	return ""
}
