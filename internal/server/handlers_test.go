package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"judgebox/internal/config"
	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/executor"
	"judgebox/internal/judge/queue"
	"judgebox/internal/judge/result"
	"judgebox/internal/judge/service"
	"judgebox/internal/server/ratelimit"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExecutor struct {
	runs []result.RunResult
}

func (f *fakeExecutor) ExecuteOne(ctx context.Context, sub executor.Submission) (result.RunResult, error) {
	runs, err := f.ExecuteBatch(ctx, sub)
	if err != nil {
		return result.RunResult{}, err
	}
	return runs[0], nil
}

func (f *fakeExecutor) ExecuteBatch(ctx context.Context, sub executor.Submission) ([]result.RunResult, error) {
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

func testServer(t *testing.T, fake *fakeExecutor, rateMax int) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Port: 3000,
		Mode: config.ModeContainer,
		Limits: config.Limits{
			DefaultTimeLimitSec: 5,
			MaxTimeLimitSec:     10,
			DefaultMemoryMB:     256,
			MaxMemoryMB:         512,
			MaxCodeSize:         65536,
			MaxTestCases:        50,
			MaxBatchSubmissions: 10,
		},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Max: rateMax},
	}
	svc := service.New(catalogue.Default(), fake, queue.New(2, 0), cfg.Limits)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), cfg.RateLimit.Window, cfg.RateLimit.Max)

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	return New(cfg, svc, limiter, stop).Handler
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 100)
	rec, env := doJSON(t, handler, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Status string `json:"status"`
		Queue  struct {
			MaxConcurrent int `json:"maxConcurrent"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("bad health data: %v", err)
	}
	if data.Status != "ok" || data.Queue.MaxConcurrent != 2 {
		t.Fatalf("unexpected health data: %+v", data)
	}
}

func TestLanguages(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 100)
	rec, env := doJSON(t, handler, http.MethodGet, "/api/languages", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d", rec.Code)
	}
	var data struct {
		Languages []catalogue.Language       `json:"languages"`
		Verdicts  map[string]string          `json:"verdicts"`
		Limits    map[string]json.RawMessage `json:"limits"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("bad languages data: %v", err)
	}
	if len(data.Languages) != 3 {
		t.Fatalf("expected 3 languages, got %d", len(data.Languages))
	}
	if data.Verdicts["AC"] == "" {
		t.Fatalf("verdict dictionary missing AC")
	}
}

func TestExecuteEndpoint(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{{Verdict: result.VerdictOK, Stdout: "Hello, World!\n"}}}
	handler := testServer(t, fake, 100)

	body := `{"language":"cpp","code":"int main(){}"}`
	rec, env := doJSON(t, handler, http.MethodPost, "/api/execute", body)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	var run result.RunResult
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("bad run result: %v", err)
	}
	if run.Verdict != result.VerdictOK || strings.TrimSpace(run.Stdout) != "Hello, World!" {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestExecuteValidationError(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 100)
	body := `{"language":"java","code":"class A{}"}`
	rec, env := doJSON(t, handler, http.MethodPost, "/api/execute", body)
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Error == "" {
		t.Fatalf("expected error message in envelope")
	}
}

func TestMalformedJSON(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 100)
	rec, env := doJSON(t, handler, http.MethodPost, "/api/execute", `{"language":`)
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 100)
	req := httptest.NewRequest(http.MethodPost, "/api/execute", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = 64 << 20
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestJudgeEndpoint(t *testing.T) {
	fake := &fakeExecutor{runs: []result.RunResult{
		{Verdict: result.VerdictOK, Stdout: "3\n"},
		{Verdict: result.VerdictOK, Stdout: "30\n"},
	}}
	handler := testServer(t, fake, 100)

	body := `{"language":"cpp","code":"int main(){}","testCases":[
		{"input":"1 2\n","expectedOutput":"3"},
		{"input":"10 20\n","expectedOutput":"30"}]}`
	rec, env := doJSON(t, handler, http.MethodPost, "/api/judge", body)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	var res result.SubmissionResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("bad submission result: %v", err)
	}
	if res.Overall != result.VerdictAC || res.Passed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRateLimit(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 1)
	body := `{"language":"cpp","code":"int main(){}"}`

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/execute", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	rec, env := doJSON(t, handler, http.MethodPost, "/api/execute", body)
	if rec.Code != http.StatusTooManyRequests || env.Success {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestNotFoundRoute(t *testing.T) {
	handler := testServer(t, &fakeExecutor{}, 100)
	rec, env := doJSON(t, handler, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
