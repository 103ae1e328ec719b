// Command quire converts scholarly content between formats. It acquires a
// source (URL, file, or stdin), parses it into a canonical document model,
// and emits one artifact per requested output format.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	quire "github.com/quireio/quire"
	"github.com/quireio/quire/adapters"
	"github.com/quireio/quire/fetch"
	"github.com/quireio/quire/sink"
	"github.com/quireio/quire/validators"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	flags, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
	if flags.version {
		fmt.Printf("quire %s\n", Version)
		return
	}

	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS env,
	// in which case runtime defaults apply.
	if flags.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func run(ctx context.Context, flags *cliFlags) (int, error) {
	formats, err := parseFormats(flags.formats)
	if err != nil {
		return exitCodeFor(err), err
	}

	ref, err := sourceRef(flags)
	if err != nil {
		return exitCodeFor(err), err
	}

	reg := quire.NewRegistry()
	if err := adapters.RegisterDefaults(reg); err != nil {
		return ExitGeneral, fmt.Errorf("registering adapters: %w", err)
	}

	opts, cleanup, err := engineOptions(flags, ref)
	if err != nil {
		return exitCodeFor(err), err
	}
	defer cleanup()

	eng, err := quire.NewEngine(reg, opts...)
	if err != nil {
		return ExitGeneral, fmt.Errorf("building engine: %w", err)
	}

	result, err := eng.Process(ctx, ref, formats...)
	if err != nil {
		return exitCodeFor(err), err
	}

	printSummary(os.Stderr, result, formats)

	switch result.Status {
	case quire.StatusSucceeded:
		return ExitSuccess, nil
	case quire.StatusPartiallySucceeded:
		return ExitPartial, nil
	default:
		return ExitGeneral, nil
	}
}

// sourceRef builds the source reference from the positional argument:
// "-" reads stdin, URLs fetch remotely, anything else is a local path.
func sourceRef(flags *cliFlags) (quire.SourceRef, error) {
	var ref quire.SourceRef
	switch {
	case flags.source == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return ref, fmt.Errorf("reading stdin: %w", err)
		}
		hint := quire.FormatMarkdown
		if flags.from != "" {
			f, err := parseFormat(flags.from)
			if err != nil {
				return ref, err
			}
			hint = f
		}
		return quire.InlineSource(string(data), hint), nil
	case isURL(flags.source):
		ref = quire.URLSource(flags.source)
	default:
		ref = quire.FileSource(flags.source)
	}
	if flags.from != "" {
		f, err := parseFormat(flags.from)
		if err != nil {
			return ref, err
		}
		ref = ref.WithHint(f)
	}
	return ref, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// engineOptions assembles the engine configuration. The returned cleanup
// closes resources owned by the options (browser, database).
func engineOptions(flags *cliFlags, ref quire.SourceRef) ([]quire.Option, func(), error) {
	cleanup := func() {}

	var opts []quire.Option
	opts = append(opts,
		quire.WithMaxRetries(flags.retries),
		quire.WithPerStageTimeout(flags.timeout),
	)

	if flags.strict {
		opts = append(opts, quire.WithStrictness(quire.Strict))
	}
	if flags.verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, quire.WithLogger(logger))
	}
	if flags.validate {
		opts = append(opts,
			quire.WithDocumentRule(quire.CheckpointPostParse, validators.NewStructure()),
			quire.WithDocumentRule(quire.CheckpointPostParse, validators.NewTextQuality()),
			quire.WithArtifactRule(quire.CheckpointPostGenerate, validators.NewWellFormedHTML()),
			quire.WithArtifactRule(quire.CheckpointPostGenerate, validators.NewPDFStructure()),
		)
	}

	if flags.browser {
		browser := fetch.NewBrowser(fetch.WithNavigateTimeout(flags.timeout))
		opts = append(opts, quire.WithFetcher(browser))
		cleanup = func() { _ = browser.Close() }
	} else {
		opts = append(opts, quire.WithFetcher(fetch.NewHTTP()))
	}

	if flags.dbPath != "" {
		db, err := sink.NewSQLite(flags.dbPath, ref.String())
		if err != nil {
			return nil, cleanup, err
		}
		prev := cleanup
		cleanup = func() { _ = db.Close(); prev() }
		opts = append(opts, quire.WithSink(db))
	} else {
		opts = append(opts, quire.WithSink(sink.NewDir(flags.outDir, baseName(flags, ref))))
	}

	return opts, cleanup, nil
}

// baseName derives the output file base from the flag or the source name.
func baseName(flags *cliFlags, ref quire.SourceRef) string {
	if flags.baseName != "" {
		return flags.baseName
	}
	switch ref.Kind() {
	case quire.SourceFile:
		base := filepath.Base(ref.Path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	case quire.SourceURL:
		if u, err := url.Parse(ref.URL); err == nil {
			if base := filepath.Base(u.Path); base != "" && base != "/" && base != "." {
				return strings.TrimSuffix(base, filepath.Ext(base))
			}
			return u.Hostname()
		}
	}
	return "output"
}

func printSummary(w io.Writer, result *quire.PipelineResult, formats []quire.FormatID) {
	for _, f := range formats {
		switch {
		case result.Artifacts[f] != nil:
			extra := ""
			if report := result.Reports[f]; report != nil && report.WarningCount() > 0 {
				extra = fmt.Sprintf(" (%d warnings)", report.WarningCount())
			}
			fmt.Fprintf(w, "%s: ok, %d bytes%s\n", f, len(result.Artifacts[f].Bytes), extra)
		case result.Errors[f] != nil:
			fmt.Fprintf(w, "%s: failed: %s\n", f, result.Errors[f].Message)
		default:
			fmt.Fprintf(w, "%s: failed\n", f)
		}
	}
	if result.Status != quire.StatusSucceeded {
		fmt.Fprintf(w, "status: %s\n", result.Status)
	}
}
