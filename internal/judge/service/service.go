// Package service composes the admission queue, the batch executor and the
// verdict engine into the operations the HTTP surface exposes.
package service

import (
	"context"

	"judgebox/internal/config"
	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/executor"
	"judgebox/internal/judge/queue"
	"judgebox/internal/judge/result"
	"judgebox/internal/judge/verdict"
	appErr "judgebox/pkg/errors"
	"judgebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// TestCase pairs one stdin payload with its expected output.
type TestCase struct {
	Input          string
	ExpectedOutput string
}

// ExecuteRequest is the single-input form of a submission.
type ExecuteRequest struct {
	Language      string
	Source        string
	Input         string
	TimeLimitSec  int
	MemoryLimitMB int
}

// JudgeRequest is the batch form: run against ordered test cases.
type JudgeRequest struct {
	Language      string
	Source        string
	TimeLimitSec  int
	MemoryLimitMB int
	TestCases     []TestCase
}

// Service owns the judging pipeline. The queue is passed in rather than
// held as package state so tests can instantiate fresh ones.
type Service struct {
	catalogue *catalogue.Catalogue
	executor  executor.Executor
	queue     *queue.Queue
	limits    config.Limits
}

// New wires the pipeline together.
func New(cat *catalogue.Catalogue, exec executor.Executor, q *queue.Queue, limits config.Limits) *Service {
	return &Service{catalogue: cat, executor: exec, queue: q, limits: limits}
}

// Catalogue exposes the language registry for the languages endpoint.
func (s *Service) Catalogue() *catalogue.Catalogue {
	return s.catalogue
}

// QueueStatus exposes the queue snapshot for the health endpoint.
func (s *Service) QueueStatus() queue.Status {
	return s.queue.Status()
}

// Execute runs the source once against a single input.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (result.RunResult, error) {
	if err := s.validateCommon(req.Language, req.Source, &req.TimeLimitSec, &req.MemoryLimitMB); err != nil {
		return result.RunResult{}, err
	}

	sub := executor.Submission{
		Language:      req.Language,
		Source:        req.Source,
		TimeLimitSec:  req.TimeLimitSec,
		MemoryLimitMB: req.MemoryLimitMB,
		Inputs:        []string{req.Input},
	}

	value, err := s.dispatch(ctx, func() (interface{}, error) {
		return s.executor.ExecuteBatch(ctx, sub)
	})
	if err != nil {
		return result.RunResult{}, err
	}
	runs := value.([]result.RunResult)
	return runs[0], nil
}

// Judge runs the source against every test case and aggregates verdicts.
func (s *Service) Judge(ctx context.Context, req JudgeRequest) (result.SubmissionResult, error) {
	if err := s.validateJudge(&req); err != nil {
		return result.SubmissionResult{}, err
	}

	inputs := make([]string, len(req.TestCases))
	for i, tc := range req.TestCases {
		inputs[i] = tc.Input
	}
	sub := executor.Submission{
		Language:      req.Language,
		Source:        req.Source,
		TimeLimitSec:  req.TimeLimitSec,
		MemoryLimitMB: req.MemoryLimitMB,
		Inputs:        inputs,
	}

	value, err := s.dispatch(ctx, func() (interface{}, error) {
		return s.executor.ExecuteBatch(ctx, sub)
	})
	if err != nil {
		return result.SubmissionResult{}, err
	}
	runs := value.([]result.RunResult)

	cases := make([]result.CaseResult, len(runs))
	for i, run := range runs {
		cases[i] = result.CaseResult{
			Index:           i + 1,
			Verdict:         verdict.JudgeCase(run, req.TestCases[i].ExpectedOutput),
			Stdout:          run.Stdout,
			Stderr:          run.Stderr,
			ExecutionTimeMs: run.ExecutionTimeMs,
			PeakMemoryKB:    run.PeakMemoryKB,
			ExitCode:        run.ExitCode,
		}
	}
	return verdict.Aggregate(cases), nil
}

// BatchEntry is one submission's outcome inside a batch: either a result
// or the validation error that kept it from running.
type BatchEntry struct {
	Result result.SubmissionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// BatchJudge runs up to the configured number of independent judge
// submissions sequentially. Individual failures do not abort the batch.
func (s *Service) BatchJudge(ctx context.Context, reqs []JudgeRequest) ([]BatchEntry, error) {
	if len(reqs) == 0 {
		return nil, appErr.BadRequest("batch contains no submissions")
	}
	if len(reqs) > s.limits.MaxBatchSubmissions {
		return nil, appErr.Newf(appErr.InvalidParams,
			"batch size %d exceeds limit %d", len(reqs), s.limits.MaxBatchSubmissions)
	}

	entries := make([]BatchEntry, len(reqs))
	for i, req := range reqs {
		res, err := s.Judge(ctx, req)
		if err != nil {
			entries[i] = BatchEntry{Error: err.Error()}
			continue
		}
		entries[i] = BatchEntry{Result: res}
	}
	return entries, nil
}

// dispatch pushes one executor call through the admission queue and waits
// for its future.
func (s *Service) dispatch(ctx context.Context, task queue.Task) (interface{}, error) {
	future, err := s.queue.Enqueue(task)
	if err != nil {
		return nil, err
	}
	value, err := future.Wait(ctx)
	if err != nil {
		logger.Warn(ctx, "queued execution failed", zap.Error(err))
		return nil, err
	}
	return value, nil
}

func (s *Service) validateCommon(language, source string, timeLimit, memLimit *int) error {
	if !s.catalogue.Has(language) {
		return appErr.Newf(appErr.UnsupportedLanguage, "language %q is not supported", language)
	}
	if source == "" {
		return appErr.New(appErr.EmptyCode)
	}
	if len(source) > s.limits.MaxCodeSize {
		return appErr.Newf(appErr.CodeTooLarge,
			"source is %d bytes, limit is %d", len(source), s.limits.MaxCodeSize)
	}
	if *timeLimit == 0 {
		*timeLimit = s.limits.DefaultTimeLimitSec
	}
	if *timeLimit < 1 || *timeLimit > s.limits.MaxTimeLimitSec {
		return appErr.Newf(appErr.TimeLimitOutOfRange,
			"time limit must be between 1 and %d seconds", s.limits.MaxTimeLimitSec)
	}
	if *memLimit == 0 {
		*memLimit = s.limits.DefaultMemoryMB
	}
	if *memLimit < 16 || *memLimit > s.limits.MaxMemoryMB {
		return appErr.Newf(appErr.MemLimitOutOfRange,
			"memory limit must be between 16 and %d MB", s.limits.MaxMemoryMB)
	}
	return nil
}

func (s *Service) validateJudge(req *JudgeRequest) error {
	if err := s.validateCommon(req.Language, req.Source, &req.TimeLimitSec, &req.MemoryLimitMB); err != nil {
		return err
	}
	if len(req.TestCases) == 0 {
		return appErr.BadRequest("at least one test case is required")
	}
	if len(req.TestCases) > s.limits.MaxTestCases {
		return appErr.Newf(appErr.TooManyTestCases,
			"%d test cases exceeds limit %d", len(req.TestCases), s.limits.MaxTestCases)
	}
	for i, tc := range req.TestCases {
		if len(tc.ExpectedOutput) > s.limits.MaxCodeSize {
			return appErr.ValidationError(
				"testCases", "expected output too large").WithDetail("index", i)
		}
		if len(tc.Input) > s.limits.MaxCodeSize {
			return appErr.ValidationError(
				"testCases", "input too large").WithDetail("index", i)
		}
	}
	return nil
}
