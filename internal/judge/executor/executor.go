// Package executor drives sandboxed batch execution on the host side: it
// prepares the work directory, launches one sandbox per submission, reads
// back per-case records and classifies whatever the sandbox left behind.
package executor

import (
	"context"
	"os"
	"sync"
	"time"

	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/meta"
	"judgebox/internal/judge/result"
	"judgebox/internal/judge/workdir"
	appErr "judgebox/pkg/errors"
	"judgebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// submissionGraceSecs pads the submission-level wall cap beyond the sum of
// per-case limits to cover compilation and sandbox startup.
const submissionGraceSecs = 20

// Submission is one execution request after validation.
type Submission struct {
	Language      string
	Source        string
	TimeLimitSec  int
	MemoryLimitMB int
	// Inputs holds one stdin payload per test case, N >= 1.
	Inputs []string
}

// Config bounds what the executor will grant a submission.
type Config struct {
	TempDir        string
	SandboxImage   string
	RunnerPath     string
	MaxTimeSec     int
	MaxMemoryMB    int
	MaxStdoutBytes int
	MaxStderrBytes int
	MaxOutputMB    int64
}

// Executor runs a submission against its inputs inside a sandbox.
// ExecuteBatch returns an error only for requests that never reach the
// sandbox (unknown language); every judging failure surfaces as per-case
// IE results instead.
type Executor interface {
	ExecuteOne(ctx context.Context, sub Submission) (result.RunResult, error)
	ExecuteBatch(ctx context.Context, sub Submission) ([]result.RunResult, error)
}

// sandboxExit is what the backend knows after the sandbox finished: its
// own exit code plus whether the backend had to kill it.
type sandboxExit struct {
	exitCode int
	killed   bool
	err      error
}

// backend is the sandboxed region each execution mode implements; the
// surrounding prep, read-back and cleanup are shared.
type backend interface {
	invoke(ctx context.Context, dir *workdir.Dir, lang catalogue.Language, sub Submission, wallCap time.Duration) sandboxExit
	name() string
}

type batchExecutor struct {
	cfg       Config
	catalogue *catalogue.Catalogue
	backend   backend
}

// New selects the backend by name: "container" or "process".
func New(mode string, cfg Config, cat *catalogue.Catalogue) (Executor, error) {
	switch mode {
	case "container":
		return &batchExecutor{cfg: cfg, catalogue: cat, backend: newContainerBackend(cfg)}, nil
	case "process":
		return &batchExecutor{cfg: cfg, catalogue: cat, backend: newProcessBackend(cfg)}, nil
	}
	return nil, appErr.Newf(appErr.InvalidParams, "unknown execution mode %q", mode)
}

func (e *batchExecutor) ExecuteOne(ctx context.Context, sub Submission) (result.RunResult, error) {
	if len(sub.Inputs) == 0 {
		sub.Inputs = []string{""}
	}
	sub.Inputs = sub.Inputs[:1]
	results, err := e.ExecuteBatch(ctx, sub)
	if err != nil {
		return result.RunResult{}, err
	}
	return results[0], nil
}

func (e *batchExecutor) ExecuteBatch(ctx context.Context, sub Submission) ([]result.RunResult, error) {
	lang, ok := e.catalogue.Get(sub.Language)
	if !ok {
		return nil, appErr.Newf(appErr.UnsupportedLanguage, "language %q is not supported", sub.Language)
	}
	clampLimits(&sub, e.cfg)

	n := len(sub.Inputs)
	dir, err := workdir.Create(e.cfg.TempDir)
	if err != nil {
		logger.Error(ctx, "work directory create failed", zap.Error(err))
		return internalFailure(n, err.Error()), nil
	}
	defer func() {
		if rmErr := dir.Remove(); rmErr != nil {
			logger.Warn(ctx, "work directory cleanup failed",
				zap.String("dir", dir.Root), zap.Error(rmErr))
		}
	}()

	if err := materialize(dir, lang, sub); err != nil {
		logger.Error(ctx, "materialize submission failed", zap.Error(err))
		return internalFailure(n, err.Error()), nil
	}

	wallCap := time.Duration(sub.TimeLimitSec*n+submissionGraceSecs) * time.Second
	exit := e.backend.invoke(ctx, dir, lang, sub, wallCap)
	if exit.err != nil {
		logger.Warn(ctx, "sandbox finished abnormally",
			zap.String("backend", e.backend.name()),
			zap.Int("exit_code", exit.exitCode),
			zap.Error(exit.err))
	}

	return e.collect(dir, n, exit), nil
}

// collect reads back the N meta records, honouring whatever the runner
// managed to flush and synthesising the rest from the sandbox's own exit.
// This is the only place a per-case verdict is made without runner
// evidence.
func (e *batchExecutor) collect(dir *workdir.Dir, n int, exit sandboxExit) []result.RunResult {
	results := make([]result.RunResult, n)
	for i := 1; i <= n; i++ {
		rec, ok := readMeta(dir.MetaPath(i))
		if !ok {
			results[i-1] = synthesize(exit)
			continue
		}
		run := result.RunResult{
			Verdict:         rec.Verdict,
			ExecutionTimeMs: rec.TimeMs,
			WallTimeMs:      rec.TimeMs,
			PeakMemoryKB:    rec.MemoryKB,
			ExitCode:        rec.ExitCode,
			Stdout:          readTruncated(dir.StdoutPath(i), e.cfg.MaxStdoutBytes),
			Stderr:          readTruncated(dir.StderrPath(i), e.cfg.MaxStderrBytes),
		}
		if rec.Message != "" {
			run.Stderr = appendMessage(run.Stderr, rec.Message, e.cfg.MaxStderrBytes)
		}
		results[i-1] = run
	}
	return results
}

func readMeta(path string) (meta.Record, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return meta.Record{}, false
	}
	return meta.Parse(data)
}

// synthesize attributes a verdict for a case the runner never recorded:
// the sandbox itself was OOM-killed, crashed, or exited clean without
// evidence.
func synthesize(exit sandboxExit) result.RunResult {
	run := result.RunResult{ExitCode: exit.exitCode}
	switch {
	case exit.exitCode == 137:
		run.Verdict = result.VerdictMLE
		run.Stderr = "Sandbox was killed (out of memory)"
	case exit.exitCode != 0:
		run.Verdict = result.VerdictRE
		run.Stderr = "Sandbox exited abnormally"
	default:
		run.Verdict = result.VerdictIE
		run.Stderr = "No result recorded for this test case"
	}
	if exit.err != nil && run.Verdict == result.VerdictIE {
		run.Stderr = exit.err.Error()
	}
	return run
}

func internalFailure(n int, message string) []result.RunResult {
	results := make([]result.RunResult, n)
	for i := range results {
		results[i] = result.RunResult{Verdict: result.VerdictIE, Stderr: message}
	}
	return results
}

func clampLimits(sub *Submission, cfg Config) {
	if sub.TimeLimitSec <= 0 || sub.TimeLimitSec > cfg.MaxTimeSec {
		sub.TimeLimitSec = cfg.MaxTimeSec
	}
	if sub.MemoryLimitMB <= 0 || sub.MemoryLimitMB > cfg.MaxMemoryMB {
		sub.MemoryLimitMB = cfg.MaxMemoryMB
	}
}

// materialize writes the source file and the N input files. The inputs go
// out concurrently; the first failure wins.
func materialize(dir *workdir.Dir, lang catalogue.Language, sub Submission) error {
	if err := dir.WriteSource(lang.SourceFile, sub.Source); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(sub.Inputs))
	for i, input := range sub.Inputs {
		wg.Add(1)
		go func(index int, data string) {
			defer wg.Done()
			if err := dir.WriteInput(index, data); err != nil {
				errCh <- err
			}
		}(i+1, input)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}
