package main

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	quire "github.com/quireio/quire"
)

// cliFlags holds the parsed command line.
type cliFlags struct {
	formats  []string
	from     string
	outDir   string
	baseName string
	dbPath   string
	timeout  time.Duration
	retries  int
	strict   bool
	browser  bool
	validate bool
	verbose  bool
	version  bool

	source string
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("quire", flag.ContinueOnError)

	fs.StringSliceVarP(&f.formats, "to", "t", []string{"html"}, "output formats (md, html, tex, tei, pdf, docx, epub)")
	fs.StringVar(&f.from, "from", "", "input format hint, overrides detection")
	fs.StringVarP(&f.outDir, "out", "o", ".", "output directory")
	fs.StringVar(&f.baseName, "name", "", "base name for output files (default: derived from source)")
	fs.StringVar(&f.dbPath, "db", "", "write artifacts to a SQLite database instead of files")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "per-stage timeout")
	fs.IntVar(&f.retries, "retries", 3, "max acquisition attempts for transient failures")
	fs.BoolVar(&f.strict, "strict", false, "treat validation warnings as errors")
	fs.BoolVar(&f.browser, "browser", false, "fetch URLs with a headless browser (for script-rendered pages)")
	fs.BoolVar(&f.validate, "validate", true, "run structure and text-quality validation")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log pipeline stages to stderr")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: quire [flags] <url|file|->\n\nFlags:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if f.version {
		return f, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected exactly one source argument", ErrUsage)
	}
	f.source = fs.Arg(0)
	return f, nil
}

// formatAliases maps CLI names onto format IDs.
var formatAliases = map[string]quire.FormatID{
	"md":       quire.FormatMarkdown,
	"markdown": quire.FormatMarkdown,
	"html":     quire.FormatHTML,
	"tex":      quire.FormatLaTeX,
	"latex":    quire.FormatLaTeX,
	"tei":      quire.FormatTEI,
	"pdf":      quire.FormatPDF,
	"docx":     quire.FormatDOCX,
	"epub":     quire.FormatEPUB,
}

func parseFormat(name string) (quire.FormatID, error) {
	if f, ok := formatAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrUsage, name)
}

func parseFormats(names []string) ([]quire.FormatID, error) {
	out := make([]quire.FormatID, 0, len(names))
	for _, n := range names {
		f, err := parseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
