// Package verdict compares sandbox output against expected answers and
// aggregates per-case verdicts into a submission-level result.
package verdict

import (
	"strings"

	"judgebox/internal/judge/result"
)

// Normalize prepares program output for comparison: CRLF becomes LF, each
// line loses trailing whitespace, and the whole string is right-trimmed.
// Leading whitespace stays significant.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\n\r")
}

// JudgeCase produces the final verdict for one test case. Non-OK run
// verdicts propagate unchanged; OK runs are compared byte-for-byte after
// normalisation.
func JudgeCase(run result.RunResult, expected string) result.Verdict {
	if run.Verdict != result.VerdictOK {
		return run.Verdict
	}
	if Normalize(run.Stdout) == Normalize(expected) {
		return result.VerdictAC
	}
	return result.VerdictWA
}

// Aggregate folds per-case results into the submission-level summary.
// Overall is AC iff every case is AC; otherwise the first failing case's
// verdict wins and its 1-based index is reported.
func Aggregate(cases []result.CaseResult) result.SubmissionResult {
	agg := result.SubmissionResult{
		Overall:    result.VerdictAC,
		TotalCases: len(cases),
		PerCase:    cases,
	}
	for _, c := range cases {
		agg.TotalTimeMs += c.ExecutionTimeMs
		if c.PeakMemoryKB > agg.MaxMemoryKB {
			agg.MaxMemoryKB = c.PeakMemoryKB
		}
		switch c.Verdict {
		case result.VerdictAC:
			agg.Passed++
		default:
			agg.Failed++
			if agg.FirstFailedIndex == nil {
				idx := c.Index
				agg.FirstFailedIndex = &idx
				agg.Overall = c.Verdict
			}
		}
	}
	agg.Skipped = agg.TotalCases - agg.Passed - agg.Failed
	return agg
}
