// Package result defines execution results and verdict tags shared by the
// sandbox runner, the batch executor and the verdict engine.
package result

// Verdict classifies the outcome of one test case or a whole submission.
type Verdict string

const (
	// VerdictOK is produced only by the sandbox runner: exit 0 in time.
	VerdictOK  Verdict = "OK"
	VerdictAC  Verdict = "AC"
	VerdictWA  Verdict = "WA"
	VerdictCE  Verdict = "CE"
	VerdictTLE Verdict = "TLE"
	VerdictMLE Verdict = "MLE"
	VerdictRE  Verdict = "RE"
	VerdictIE  Verdict = "IE"
)

// Descriptions maps each verdict tag to a human-readable name, served by
// the languages endpoint.
var Descriptions = map[Verdict]string{
	VerdictOK:  "Executed successfully",
	VerdictAC:  "Accepted",
	VerdictWA:  "Wrong Answer",
	VerdictCE:  "Compilation Error",
	VerdictTLE: "Time Limit Exceeded",
	VerdictMLE: "Memory Limit Exceeded",
	VerdictRE:  "Runtime Error",
	VerdictIE:  "Internal Error",
}

// RunResult captures raw per-case sandbox execution data.
type RunResult struct {
	Verdict         Verdict `json:"verdict"`
	Stdout          string  `json:"stdout"`
	Stderr          string  `json:"stderr"`
	ExecutionTimeMs int64   `json:"executionTimeMs"`
	WallTimeMs      int64   `json:"wallTimeMs"`
	PeakMemoryKB    int64   `json:"peakMemoryKb"`
	ExitCode        int     `json:"exitCode"`
}

// CaseResult is one judged test case: the run outcome plus comparison.
// Index is 1-based, matching the testcases/<i>.in naming.
type CaseResult struct {
	Index           int     `json:"index"`
	Verdict         Verdict `json:"verdict"`
	Stdout          string  `json:"stdout,omitempty"`
	Stderr          string  `json:"stderr,omitempty"`
	ExecutionTimeMs int64   `json:"executionTimeMs"`
	PeakMemoryKB    int64   `json:"peakMemoryKb"`
	ExitCode        int     `json:"exitCode"`
}

// SubmissionResult aggregates per-case verdicts for one judge submission.
type SubmissionResult struct {
	Overall          Verdict      `json:"overallVerdict"`
	TotalTimeMs      int64        `json:"totalTimeMs"`
	MaxMemoryKB      int64        `json:"maxMemoryKb"`
	TotalCases       int          `json:"totalCases"`
	Passed           int          `json:"passed"`
	Failed           int          `json:"failed"`
	Skipped          int          `json:"skipped"`
	FirstFailedIndex *int         `json:"firstFailedIndex"`
	PerCase          []CaseResult `json:"perCase"`
}
