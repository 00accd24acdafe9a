package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/workdir"

	"golang.org/x/sys/unix"
)

// processBackend runs the sandbox runner directly on the host for machines
// without a container runtime. Only the wall clock is enforced here; the
// runner's own rlimits and the OS are the backstop for runaway children.
// Memory numbers from this backend are best-effort.
type processBackend struct {
	cfg Config
}

func newProcessBackend(cfg Config) *processBackend {
	return &processBackend{cfg: cfg}
}

func (b *processBackend) name() string { return "process" }

func (b *processBackend) invoke(ctx context.Context, dir *workdir.Dir, lang catalogue.Language, sub Submission, wallCap time.Duration) sandboxExit {
	runner := b.cfg.RunnerPath
	if runner == "" {
		runner = "sandbox-runner"
	}

	cmd := exec.Command(runner, sub.Language, strconv.Itoa(sub.TimeLimitSec), strconv.Itoa(len(sub.Inputs)))
	cmd.Dir = dir.Root
	// Without a container around it, the runner's syscall filter is the
	// only isolation the user program gets.
	cmd.Env = append(os.Environ(), "RUNNER_SECCOMP=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return sandboxExit{exitCode: -1, err: fmt.Errorf("start sandbox runner: %w", err)}
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(wallCap):
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	err := cmd.Wait()
	close(done)

	exit := sandboxExit{exitCode: exitCodeOf(cmd, err), err: err}
	if timedOut.Load() {
		exit.killed = true
		exit.err = fmt.Errorf("submission wall cap (%s) exceeded", wallCap)
	} else if err != nil && stderr.Len() > 0 {
		exit.err = fmt.Errorf("%w: %s", err, stderr.String())
	}
	return exit
}

// killProcessGroup takes down the runner and every child it spawned.
func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}
