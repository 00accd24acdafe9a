package verdict

import "judgebox/internal/judge/result"

// ExitRule maps one child exit code to a verdict. The table form keeps the
// signal attribution testable as data rather than branches.
type ExitRule struct {
	ExitCode int
	Verdict  result.Verdict
	Note     string
}

// ExitTable is the closed decision table for child exit codes. 124 is the
// wall-clock timeout wrapper's exit; 128+signal covers SIGKILL (assumed
// OOM), SIGSEGV, SIGFPE and SIGABRT.
var ExitTable = []ExitRule{
	{ExitCode: 124, Verdict: result.VerdictTLE},
	{ExitCode: 137, Verdict: result.VerdictMLE},
	{ExitCode: 139, Verdict: result.VerdictRE, Note: "Segmentation fault (SIGSEGV)"},
	{ExitCode: 136, Verdict: result.VerdictRE, Note: "Floating point exception (SIGFPE)"},
	{ExitCode: 134, Verdict: result.VerdictRE, Note: "Aborted (SIGABRT)"},
}

// ClassifyExit resolves an exit code through the table. Exit 0 is OK and
// any unlisted non-zero exit is a plain runtime error.
func ClassifyExit(exitCode int) (result.Verdict, string) {
	if exitCode == 0 {
		return result.VerdictOK, ""
	}
	for _, rule := range ExitTable {
		if rule.ExitCode == exitCode {
			return rule.Verdict, rule.Note
		}
	}
	return result.VerdictRE, ""
}
