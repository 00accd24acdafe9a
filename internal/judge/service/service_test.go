package service

import (
	"context"
	"testing"

	"judgebox/internal/config"
	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/executor"
	"judgebox/internal/judge/queue"
	"judgebox/internal/judge/result"
	appErr "judgebox/pkg/errors"
)

// fakeExecutor returns canned run results.
type fakeExecutor struct {
	runs []result.RunResult
	subs []executor.Submission
}

func (f *fakeExecutor) ExecuteOne(ctx context.Context, sub executor.Submission) (result.RunResult, error) {
	runs, err := f.ExecuteBatch(ctx, sub)
	if err != nil {
		return result.RunResult{}, err
	}
	return runs[0], nil
}

func (f *fakeExecutor) ExecuteBatch(ctx context.Context, sub executor.Submission) ([]result.RunResult, error) {
	f.subs = append(f.subs, sub)
	if len(f.runs) >= len(sub.Inputs) {
		return f.runs[:len(sub.Inputs)], nil
	}
	out := make([]result.RunResult, len(sub.Inputs))
	for i := range out {
		if i < len(f.runs) {
			out[i] = f.runs[i]
		} else {
			out[i] = result.RunResult{Verdict: result.VerdictOK}
		}
	}
	return out, nil
}

func testLimits() config.Limits {
	return config.Limits{
		DefaultTimeLimitSec: 5,
		MaxTimeLimitSec:     10,
		DefaultMemoryMB:     256,
		MaxMemoryMB:         512,
		MaxCodeSize:         65536,
		MaxTestCases:        50,
		MaxBatchSubmissions: 10,
	}
}

func newTestService(fake *fakeExecutor) *Service {
	return New(catalogue.Default(), fake, queue.New(2, 0), testLimits())
}

func TestExecuteAppliesDefaults(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{{Verdict: result.VerdictOK, Stdout: "hi\n"}}}
	svc := newTestService(fake)

	run, err := svc.Execute(context.Background(), ExecuteRequest{
		Language: "cpp",
		Source:   "int main(){}",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if run.Stdout != "hi\n" {
		t.Fatalf("unexpected stdout %q", run.Stdout)
	}
	sub := fake.subs[0]
	if sub.TimeLimitSec != 5 || sub.MemoryLimitMB != 256 {
		t.Fatalf("defaults not applied: %+v", sub)
	}
}

func TestExecuteValidation(t *testing.T) {
	svc := newTestService(&fakeExecutor{})
	cases := []struct {
		name string
		req  ExecuteRequest
		code appErr.ErrorCode
	}{
		{"unknown language", ExecuteRequest{Language: "java", Source: "x"}, appErr.UnsupportedLanguage},
		{"empty source", ExecuteRequest{Language: "cpp"}, appErr.EmptyCode},
		{"time limit too high", ExecuteRequest{Language: "cpp", Source: "x", TimeLimitSec: 11}, appErr.TimeLimitOutOfRange},
		{"memory too low", ExecuteRequest{Language: "cpp", Source: "x", MemoryLimitMB: 8}, appErr.MemLimitOutOfRange},
	}
	for _, tc := range cases {
		_, err := svc.Execute(context.Background(), tc.req)
		if !appErr.Is(err, tc.code) {
			t.Fatalf("%s: expected code %d, got %v", tc.name, tc.code, err)
		}
	}
}

func TestExecuteRejectsOversizedSource(t *testing.T) {
	svc := newTestService(&fakeExecutor{})
	big := make([]byte, 65537)
	for i := range big {
		big[i] = 'a'
	}
	_, err := svc.Execute(context.Background(), ExecuteRequest{Language: "cpp", Source: string(big)})
	if !appErr.Is(err, appErr.CodeTooLarge) {
		t.Fatalf("expected code-too-large, got %v", err)
	}
}

func TestJudgeAccepted(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{
		{Verdict: result.VerdictOK, Stdout: "3\n", ExecutionTimeMs: 10, PeakMemoryKB: 100},
		{Verdict: result.VerdictOK, Stdout: "30\n", ExecutionTimeMs: 12, PeakMemoryKB: 250},
	}}
	svc := newTestService(fake)

	res, err := svc.Judge(context.Background(), JudgeRequest{
		Language: "cpp",
		Source:   "int main(){}",
		TestCases: []TestCase{
			{Input: "1 2\n", ExpectedOutput: "3"},
			{Input: "10 20\n", ExpectedOutput: "30"},
		},
	})
	if err != nil {
		t.Fatalf("judge failed: %v", err)
	}
	if res.Overall != result.VerdictAC {
		t.Fatalf("expected overall AC, got %s", res.Overall)
	}
	if res.Passed != 2 || res.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if len(res.PerCase) != 2 {
		t.Fatalf("per-case length mismatch: %d", len(res.PerCase))
	}
	if res.MaxMemoryKB != 250 {
		t.Fatalf("unexpected max memory: %d", res.MaxMemoryKB)
	}
}

func TestJudgeWrongAnswer(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{
		{Verdict: result.VerdictOK, Stdout: "2\n"},
		{Verdict: result.VerdictOK, Stdout: "0\n"},
	}}
	svc := newTestService(fake)

	res, err := svc.Judge(context.Background(), JudgeRequest{
		Language: "cpp",
		Source:   "int main(){}",
		TestCases: []TestCase{
			{Input: "5 3\n", ExpectedOutput: "8"},
			{Input: "0 0\n", ExpectedOutput: "0"},
		},
	})
	if err != nil {
		t.Fatalf("judge failed: %v", err)
	}
	if res.Overall != result.VerdictWA {
		t.Fatalf("expected overall WA, got %s", res.Overall)
	}
	if res.FirstFailedIndex == nil || *res.FirstFailedIndex != 1 {
		t.Fatalf("expected first failed 1, got %v", res.FirstFailedIndex)
	}
	if res.Passed != 1 {
		t.Fatalf("expected 1 passed, got %d", res.Passed)
	}
}

func TestJudgeCompilationError(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{
		{Verdict: result.VerdictCE, Stderr: "main.cpp:1: error"},
		{Verdict: result.VerdictCE, Stderr: "main.cpp:1: error"},
	}}
	svc := newTestService(fake)

	res, err := svc.Judge(context.Background(), JudgeRequest{
		Language: "cpp",
		Source:   "int main({",
		TestCases: []TestCase{
			{Input: "", ExpectedOutput: "1"},
			{Input: "", ExpectedOutput: "2"},
		},
	})
	if err != nil {
		t.Fatalf("judge failed: %v", err)
	}
	if res.Overall != result.VerdictCE {
		t.Fatalf("expected overall CE, got %s", res.Overall)
	}
	if res.Passed != 0 {
		t.Fatalf("expected 0 passed, got %d", res.Passed)
	}
	for _, c := range res.PerCase {
		if c.Verdict != result.VerdictCE {
			t.Fatalf("expected every case CE, got %s", c.Verdict)
		}
	}
}

func TestJudgeValidation(t *testing.T) {
	svc := newTestService(&fakeExecutor{})

	_, err := svc.Judge(context.Background(), JudgeRequest{
		Language: "cpp", Source: "x",
	})
	if !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected invalid-params for empty cases, got %v", err)
	}

	tooMany := make([]TestCase, 51)
	for i := range tooMany {
		tooMany[i] = TestCase{ExpectedOutput: "0"}
	}
	_, err = svc.Judge(context.Background(), JudgeRequest{
		Language: "cpp", Source: "x", TestCases: tooMany,
	})
	if !appErr.Is(err, appErr.TooManyTestCases) {
		t.Fatalf("expected too-many-cases, got %v", err)
	}
}

func TestBatchJudge(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{{Verdict: result.VerdictOK, Stdout: "1\n"}}}
	svc := newTestService(fake)

	good := JudgeRequest{
		Language:  "cpp",
		Source:    "int main(){}",
		TestCases: []TestCase{{Input: "", ExpectedOutput: "1"}},
	}
	bad := JudgeRequest{Language: "fortran", Source: "x",
		TestCases: []TestCase{{ExpectedOutput: "1"}}}

	entries, err := svc.BatchJudge(context.Background(), []JudgeRequest{good, bad})
	if err != nil {
		t.Fatalf("batch judge failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Error != "" || entries[0].Result.Overall != result.VerdictAC {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Error == "" {
		t.Fatalf("expected second entry to carry an error")
	}
}

func TestBatchJudgeSizeLimit(t *testing.T) {
	svc := newTestService(&fakeExecutor{})
	reqs := make([]JudgeRequest, 11)
	for i := range reqs {
		reqs[i] = JudgeRequest{Language: "cpp", Source: "x",
			TestCases: []TestCase{{ExpectedOutput: "1"}}}
	}
	if _, err := svc.BatchJudge(context.Background(), reqs); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected invalid-params, got %v", err)
	}
}
