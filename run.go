package quire

import (
	"sync"
	"time"
)

// RunStatus is the overall outcome of a pipeline run.
type RunStatus int

const (
	StatusPending RunStatus = iota
	StatusRunning
	StatusSucceeded
	StatusPartiallySucceeded
	StatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusPartiallySucceeded:
		return "partially_succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage names for the stage log. Shared stages (acquire, the initial parse)
// log with an empty format key; branch stages log under their output format.
const (
	StageAcquire           = "acquire"
	StageParse             = "parse"
	StageValidatePostParse = "validate:post-parse"
	StageConvert           = "convert"
	StageValidateGenerate  = "validate:post-generate"
	StageValidatePreEmit   = "validate:pre-emit"
	StageEmit              = "emit"
)

// StageResult is one stage-log entry. Entries within a branch preserve
// causal order; the shared acquire/parse entries precede all branch entries.
type StageResult struct {
	Format   FormatID  `json:"format,omitempty"`
	Stage    string    `json:"stage"`
	Attempt  int       `json:"attempt"`
	At       time.Time `json:"at"`
	OK       bool      `json:"ok"`
	ErrorMsg string    `json:"error,omitempty"`
}

// PipelineRun tracks one execution. It is mutated only by the engine while
// running and is immutable once the status reaches a terminal value.
type PipelineRun struct {
	SourceRef        SourceRef
	RequestedFormats []FormatID
	StartedAt        time.Time

	mu       sync.Mutex
	status   RunStatus
	stageLog []StageResult
}

func newRun(ref SourceRef, formats []FormatID) *PipelineRun {
	return &PipelineRun{
		SourceRef:        ref,
		RequestedFormats: formats,
		StartedAt:        time.Now(),
		status:           StatusPending,
	}
}

// Status returns the current run status.
func (r *PipelineRun) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *PipelineRun) setStatus(s RunStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// StageLog returns a copy of the stage log.
func (r *PipelineRun) StageLog() []StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageResult, len(r.stageLog))
	copy(out, r.stageLog)
	return out
}

func (r *PipelineRun) logStage(format FormatID, stage string, attempt int, err error) {
	entry := StageResult{
		Format:  format,
		Stage:   stage,
		Attempt: attempt,
		At:      time.Now(),
		OK:      err == nil,
	}
	if err != nil {
		entry.ErrorMsg = err.Error()
	}
	r.mu.Lock()
	r.stageLog = append(r.stageLog, entry)
	r.mu.Unlock()
}

// Attempts counts stage-log entries for a stage, e.g. acquisition attempts.
func (r *PipelineRun) Attempts(stage string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.stageLog {
		if e.Stage == stage {
			n++
		}
	}
	return n
}

// PipelineResult is the terminal report of a run. It is always returned;
// the pipeline never panics across its boundary. Failed formats have a nil
// artifact and a non-nil error descriptor.
type PipelineResult struct {
	Status    RunStatus                      `json:"status"`
	Artifacts map[FormatID]*Artifact         `json:"artifacts"`
	Reports   map[FormatID]*ValidationReport `json:"reports"`
	Errors    map[FormatID]*ErrorDescriptor  `json:"errors"`
	StageLog  []StageResult                  `json:"stage_log"`
}

// overallStatus derives the run status from per-format outcomes.
func overallStatus(res *PipelineResult, formats []FormatID) RunStatus {
	succeeded, failed := 0, 0
	for _, f := range formats {
		if res.Errors[f] == nil && res.Artifacts[f] != nil {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0 && succeeded > 0:
		return StatusSucceeded
	case succeeded > 0:
		return StatusPartiallySucceeded
	default:
		return StatusFailed
	}
}
