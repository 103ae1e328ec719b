package quire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quireio/quire/document"
)

// Engine orchestrates pipeline runs: acquisition, shared parsing, per-format
// conversion branches, validation checkpoints, and emission. An Engine is
// safe for concurrent use; its registry and conversion graph are frozen at
// construction.
type Engine struct {
	registry    *Registry
	graph       *ConversionGraph
	fetcher     Fetcher
	sink        Sink
	checkpoints *checkpointSet
	opts        Options
	logger      *slog.Logger
}

// discardSink is the default emission target when no sink is configured.
type discardSink struct{}

func (discardSink) Write(FormatID, []byte) error { return nil }

// NewEngine creates an Engine over the given registry and freezes it.
func NewEngine(reg *Registry, opts ...Option) (*Engine, error) {
	e := &Engine{
		registry:    reg,
		sink:        discardSink{},
		checkpoints: newCheckpointSet(),
		opts:        defaultOptions(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	reg.Freeze()
	g, err := NewConversionGraph(reg)
	if err != nil {
		return nil, err
	}
	e.graph = g
	return e, nil
}

// Process runs the pipeline for one source and a set of requested output
// formats. It always returns a result; per-format failures are reported in
// Errors and never abort sibling formats. The returned error is non-nil only
// for caller misuse (no formats, invalid source reference).
func (e *Engine) Process(ctx context.Context, ref SourceRef, formats ...FormatID) (*PipelineResult, error) {
	if len(formats) == 0 {
		return nil, ErrNoRequestedFormats
	}
	if ref.Kind() == SourceInvalid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, ref)
	}
	formats = dedupe(formats)

	run := newRun(ref, formats)
	run.setStatus(StatusRunning)
	res := &PipelineResult{
		Artifacts: make(map[FormatID]*Artifact, len(formats)),
		Reports:   make(map[FormatID]*ValidationReport, len(formats)),
		Errors:    make(map[FormatID]*ErrorDescriptor, len(formats)),
	}
	for _, f := range formats {
		res.Artifacts[f] = nil
		res.Reports[f] = &ValidationReport{}
		res.Errors[f] = nil
	}

	e.logger.Info("pipeline run starting", "source", ref.String(), "formats", formats)

	// Acquisition runs exactly once per run; its result is shared by every
	// branch. An acquisition failure therefore fails all requested formats.
	raw, err := e.acquire(ctx, run)
	if err != nil {
		desc := describeError(err)
		for _, f := range formats {
			res.Errors[f] = desc
		}
		return e.finalize(run, res, formats), nil
	}

	inputFormat, detectFinding := detectFormat(ref, raw)
	e.logger.Debug("input format resolved", "format", inputFormat, "declared", raw.DeclaredContentType)

	// A configured document checkpoint forces every path through the
	// canonical model; shortcut edges are only eligible otherwise.
	requireCanonical := e.checkpoints.needsCanonical()
	gate := &parseGate{}

	var mu sync.Mutex
	var eg errgroup.Group
	eg.SetLimit(e.opts.ConcurrencyLimit)
	for _, target := range formats {
		eg.Go(func() error {
			art, report, branchErr := e.runBranch(ctx, run, raw, inputFormat, target, gate, requireCanonical, detectFinding)
			mu.Lock()
			defer mu.Unlock()
			res.Reports[target] = report
			if branchErr != nil {
				res.Errors[target] = describeError(branchErr)
				e.logger.Warn("branch failed", "format", target, "error", branchErr)
				return nil // branch isolation: a failed branch never aborts siblings
			}
			res.Artifacts[target] = art
			return nil
		})
	}
	_ = eg.Wait()

	return e.finalize(run, res, formats), nil
}

func (e *Engine) finalize(run *PipelineRun, res *PipelineResult, formats []FormatID) *PipelineResult {
	run.setStatus(overallStatus(res, formats))
	res.Status = run.Status()
	res.StageLog = run.StageLog()
	e.logger.Info("pipeline run finished", "status", res.Status.String())
	return res
}

// parseGate shares the initial parse (and its post-parse checkpoint) across
// branches: parsing runs at most once per detected input format regardless
// of how many outputs need the canonical model.
type parseGate struct {
	once   sync.Once
	doc    *document.Document
	report *ValidationReport
	err    error
}

func (g *parseGate) parse(ctx context.Context, e *Engine, run *PipelineRun, c Capability, raw RawContent) (*document.Document, *ValidationReport, error) {
	g.once.Do(func() {
		pctx, cancel := e.stageContext(ctx)
		defer cancel()
		doc, err := c.Parser.Parse(pctx, raw)
		run.logStage("", StageParse, 1, err)
		if err != nil {
			g.err = fmt.Errorf("%w: %s: %v", ErrParse, c.Name, err)
			return
		}
		g.doc = doc
		g.report = e.checkpoints.runDocument(ctx, CheckpointPostParse, doc, e.opts.ValidationStrictness)
		var verr error
		if g.report.Failed() {
			verr = ErrValidationFailed
		}
		run.logStage("", StageValidatePostParse, 1, verr)
	})
	return g.doc, g.report, g.err
}

// runBranch executes one output format's branch: path resolution, the
// conversion steps, checkpoints, and emission. Any failure terminates only
// this branch.
func (e *Engine) runBranch(ctx context.Context, run *PipelineRun, raw *RawContent, inputFormat, target FormatID, gate *parseGate, requireCanonical bool, detectFinding *Finding) (*Artifact, *ValidationReport, error) {
	report := &ValidationReport{}
	if detectFinding != nil {
		report.Add(*detectFinding)
	}

	path, err := e.graph.FindPath(inputFormat, target, requireCanonical)
	if err != nil {
		return nil, report, e.classifyPathError(inputFormat, target, err)
	}

	var doc *document.Document
	cur := raw.Bytes
	var warnings []Finding

	for _, step := range path {
		if ctx.Err() != nil {
			return nil, report, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		switch step.Capability.Kind {
		case KindParser:
			if step.From == inputFormat && doc == nil {
				d, shared, perr := gate.parse(ctx, e, run, step.Capability, *raw)
				report.Merge(shared)
				if perr != nil {
					return nil, report, perr
				}
				if shared.Failed() {
					return nil, report, fmt.Errorf("%w: %s", ErrValidationFailed, CheckpointPostParse)
				}
				doc = d
				continue
			}
			// Intermediate re-parse on a mixed path (transform hops followed
			// by a parser). Runs locally; the shared gate covers only the
			// initial parse of the detected input format.
			d, perr := e.parseLocal(ctx, run, step.Capability, target, RawContent{Bytes: cur, FetchedAt: raw.FetchedAt})
			if perr != nil {
				return nil, report, perr
			}
			rep := e.checkpoints.runDocument(ctx, CheckpointPostParse, d, e.opts.ValidationStrictness)
			report.Merge(rep)
			if rep.Failed() {
				return nil, report, fmt.Errorf("%w: %s", ErrValidationFailed, CheckpointPostParse)
			}
			doc = d

		case KindGenerator:
			if doc == nil {
				return nil, report, fmt.Errorf("%w: %s: no canonical document before generate", ErrGenerate, step.Capability.Name)
			}
			art, gerr := e.generate(ctx, run, step.Capability, target, doc)
			if gerr != nil {
				return nil, report, gerr
			}
			cur = art.Bytes
			warnings = append(warnings, art.Warnings...)

		case KindTransform:
			out, terr := e.transform(ctx, run, step.Capability, target, cur)
			if terr != nil {
				return nil, report, terr
			}
			cur = out
		}
	}

	if ctx.Err() != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}

	// Post-generate checkpoint: generator warnings (unrepresentable node
	// variants) merge here so strict mode can promote them, then artifact
	// rules run against the output bytes.
	genReport := promote(&ValidationReport{Findings: append([]Finding(nil), warnings...)}, e.opts.ValidationStrictness)
	genReport.Merge(e.checkpoints.runArtifact(ctx, CheckpointPostGenerate, cur, target, e.opts.ValidationStrictness))
	report.Merge(genReport)
	var verr error
	if genReport.Failed() {
		verr = fmt.Errorf("%w: %s", ErrValidationFailed, CheckpointPostGenerate)
	}
	run.logStage(target, StageValidateGenerate, 1, verr)
	if verr != nil {
		return nil, report, verr
	}

	// Pre-emit checkpoint.
	preReport := e.checkpoints.runArtifact(ctx, CheckpointPreEmit, cur, target, e.opts.ValidationStrictness)
	report.Merge(preReport)
	if preReport.Failed() {
		verr = fmt.Errorf("%w: %s", ErrValidationFailed, CheckpointPreEmit)
	}
	run.logStage(target, StageValidatePreEmit, 1, verr)
	if verr != nil {
		return nil, report, verr
	}

	if ctx.Err() != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}

	if err := e.sink.Write(target, cur); err != nil {
		serr := fmt.Errorf("%w: %s: %v", ErrSinkWrite, target, err)
		run.logStage(target, StageEmit, 1, serr)
		return nil, report, serr
	}
	run.logStage(target, StageEmit, 1, nil)

	return &Artifact{
		Format:      target,
		Bytes:       cur,
		GeneratedAt: time.Now(),
		Warnings:    warnings,
	}, report, nil
}

func (e *Engine) parseLocal(ctx context.Context, run *PipelineRun, c Capability, target FormatID, raw RawContent) (*document.Document, error) {
	pctx, cancel := e.stageContext(ctx)
	defer cancel()
	doc, err := c.Parser.Parse(pctx, raw)
	run.logStage(target, StageParse, 1, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, c.Name, err)
	}
	return doc, nil
}

func (e *Engine) generate(ctx context.Context, run *PipelineRun, c Capability, target FormatID, doc *document.Document) (*Artifact, error) {
	gctx, cancel := e.stageContext(ctx)
	defer cancel()
	art, err := c.Generator.Generate(gctx, doc)
	run.logStage(target, StageConvert, 1, err)
	if err != nil {
		if gctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: generator %s", ErrStageTimeout, c.Name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrGenerate, c.Name, err)
	}
	return art, nil
}

func (e *Engine) transform(ctx context.Context, run *PipelineRun, c Capability, target FormatID, in []byte) ([]byte, error) {
	tctx, cancel := e.stageContext(ctx)
	defer cancel()
	out, err := c.Transformer.Transform(tctx, in)
	run.logStage(target, StageConvert, 1, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransform, c.Name, err)
	}
	return out, nil
}

// stageContext applies the per-stage deadline when configured.
func (e *Engine) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.PerStageTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.PerStageTimeout)
	}
	return context.WithCancel(ctx)
}

// classifyPathError distinguishes a missing adapter from a disconnected
// graph: no generator or transform produces the target (or no parser reads
// the input) is AdapterMissing; anything else stays NoConversionPath.
func (e *Engine) classifyPathError(input, target FormatID, err error) error {
	if !errors.Is(err, ErrNoConversionPath) {
		return err
	}
	if _, gerr := e.registry.ResolveGenerator(target); gerr != nil && !e.hasTransformTo(target) {
		return gerr
	}
	if _, perr := e.registry.ResolveParser(input); perr != nil && !e.hasTransformFrom(input) {
		return perr
	}
	return err
}

func (e *Engine) hasTransformTo(f FormatID) bool {
	for _, t := range e.registry.transforms {
		if t.cap.Target == f {
			return true
		}
	}
	return false
}

func (e *Engine) hasTransformFrom(f FormatID) bool {
	for _, t := range e.registry.transforms {
		if t.cap.Source == f {
			return true
		}
	}
	return false
}

func dedupe(formats []FormatID) []FormatID {
	seen := make(map[FormatID]bool, len(formats))
	out := formats[:0:0]
	for _, f := range formats {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
