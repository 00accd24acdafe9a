//go:build linux

// sandbox-runner executes one submission inside the sandbox: it compiles
// the source once, then runs it against each input under a per-case wall
// cap and leaves a meta record per case for the host to read back.
//
// Invocation: sandbox-runner <language> <per_case_time_limit_s> <N>
// with the work directory (code/, testcases/, results/) as cwd.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/meta"
	"judgebox/internal/judge/result"
	"judgebox/internal/judge/verdict"

	"golang.org/x/sys/unix"
)

const (
	compileCapSecs = 30
	// childMode marks the re-exec that applies rlimits and seccomp
	// before exec'ing the user program.
	childMode = "__child"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == childMode {
		childMain(os.Args[2:])
		return
	}
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <language> <time_limit_s> <n>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	langTag := os.Args[1]
	timeLimit, err := strconv.Atoi(os.Args[2])
	if err != nil || timeLimit <= 0 {
		fmt.Fprintf(os.Stderr, "invalid time limit %q\n", os.Args[2])
		os.Exit(2)
	}
	n, err := strconv.Atoi(os.Args[3])
	if err != nil || n <= 0 {
		fmt.Fprintf(os.Stderr, "invalid case count %q\n", os.Args[3])
		os.Exit(2)
	}

	run(langTag, timeLimit, n)
}

// run drives the compile-once / run-N workflow. It exits zero as long as
// meta records could be written; internal failures become IE records.
func run(langTag string, timeLimit, n int) {
	lang, ok := catalogue.Default().Get(langTag)
	if !ok {
		writeAll(n, meta.Record{
			Verdict: result.VerdictIE,
			Message: fmt.Sprintf("unknown language %q", langTag),
		})
		return
	}

	if stderr, err := compile(lang); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			writeAll(n, meta.Record{Verdict: result.VerdictIE, Message: stderr})
			return
		}
		rec := meta.Record{Verdict: result.VerdictCE, ExitCode: 1, Message: stderr}
		for i := 1; i <= n; i++ {
			_ = os.WriteFile(stderrPath(i), []byte(stderr), 0o644)
			writeMeta(i, rec)
		}
		return
	}

	execArgs, err := lang.ExecuteArgs()
	if err != nil {
		writeAll(n, meta.Record{Verdict: result.VerdictIE, Message: err.Error()})
		return
	}

	for i := 1; i <= n; i++ {
		writeMeta(i, runCase(i, execArgs, timeLimit))
	}
}

// compile builds or syntax-checks the source once. A non-zero compiler
// exit returns its stderr; only spawn failures count as internal.
func compile(lang catalogue.Language) (string, error) {
	args, err := lang.CompileArgs()
	if err != nil {
		return err.Error(), err
	}
	if len(args) == 0 {
		return "", nil
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = "code"
	// Keep the log inside the work directory; nothing outside it is ours
	// to write.
	logPath := filepath.Join("results", "compile.log")
	stderr, err := os.Create(logPath)
	if err != nil {
		return err.Error(), err
	}
	defer stderr.Close()
	cmd.Stderr = stderr

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return err.Error(), err
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err = <-done:
	case <-time.After(compileCapSecs * time.Second):
		_ = cmd.Process.Kill()
		err = fmt.Errorf("compilation timed out after %ds: %w", compileCapSecs, <-done)
	}
	if err != nil {
		data, _ := os.ReadFile(logPath)
		msg := string(data)
		if msg == "" {
			msg = err.Error()
		}
		return msg, err
	}
	return "", nil
}

// runCase executes the program for one input under the wall cap and
// classifies the exit.
func runCase(index int, execArgs []string, timeLimit int) meta.Record {
	stdin, err := os.Open(inputPath(index))
	if err != nil {
		// Absent input reads as empty.
		stdin, err = os.Open(os.DevNull)
		if err != nil {
			return meta.Record{Verdict: result.VerdictIE, Message: err.Error()}
		}
	}
	defer stdin.Close()

	stdout, err := os.Create(stdoutPath(index))
	if err != nil {
		return meta.Record{Verdict: result.VerdictIE, Message: err.Error()}
	}
	defer stdout.Close()
	stderr, err := os.Create(stderrPath(index))
	if err != nil {
		return meta.Record{Verdict: result.VerdictIE, Message: err.Error()}
	}
	defer stderr.Close()

	resetPeakMemory()

	// Re-exec ourselves so rlimits and the syscall filter apply to the
	// user program only.
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	cmd := exec.Command(self, append([]string{childMode}, execArgs...)...)
	cmd.Dir = "code"
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = append(os.Environ(), fmt.Sprintf("RUNNER_CPU_SECS=%d", timeLimit+1))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return meta.Record{Verdict: result.VerdictIE, Message: err.Error()}
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(time.Duration(timeLimit) * time.Second):
			timedOut.Store(true)
			_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	elapsed := time.Since(start)

	exitCode := classifyWait(cmd.ProcessState, waitErr)
	if timedOut.Load() {
		exitCode = 124
	}
	tag, note := verdict.ClassifyExit(exitCode)

	return meta.Record{
		Verdict:  tag,
		TimeMs:   elapsed.Milliseconds(),
		MemoryKB: peakMemoryKB(cmd.ProcessState),
		ExitCode: exitCode,
		Message:  note,
	}
}

// classifyWait folds a signal death into the 128+signal convention so the
// decision table sees the same codes a shell would report.
func classifyWait(state *os.ProcessState, waitErr error) int {
	if state == nil {
		if waitErr != nil {
			return -1
		}
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

func writeAll(n int, rec meta.Record) {
	for i := 1; i <= n; i++ {
		writeMeta(i, rec)
	}
}

func writeMeta(index int, rec meta.Record) {
	if err := os.WriteFile(metaPath(index), rec.Encode(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write meta %d: %v\n", index, err)
	}
}

func inputPath(i int) string  { return filepath.Join("testcases", strconv.Itoa(i)+".in") }
func stdoutPath(i int) string { return filepath.Join("results", strconv.Itoa(i)+".out") }
func stderrPath(i int) string { return filepath.Join("results", strconv.Itoa(i)+".err") }
func metaPath(i int) string   { return filepath.Join("results", strconv.Itoa(i)+".meta") }
