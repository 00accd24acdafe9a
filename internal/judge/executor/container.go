package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/workdir"
)

// containerBackend launches one container per submission with the full set
// of resource caps. The sandbox runner inside the image does the rest.
type containerBackend struct {
	cfg Config
}

func newContainerBackend(cfg Config) *containerBackend {
	return &containerBackend{cfg: cfg}
}

func (b *containerBackend) name() string { return "container" }

func (b *containerBackend) invoke(ctx context.Context, dir *workdir.Dir, lang catalogue.Language, sub Submission, wallCap time.Duration) sandboxExit {
	containerName := "judge-" + filepath.Base(dir.Root)
	memBytes := int64(sub.MemoryLimitMB) * 1024 * 1024

	args := []string{
		"run", "--rm",
		"--name", containerName,
		"--network", "none",
		"--memory", strconv.FormatInt(memBytes, 10),
		"--memory-swap", strconv.FormatInt(memBytes, 10),
		"--cpus", "1",
		"--pids-limit", "64",
		"--ulimit", "nofile=64:64",
		"--ulimit", fmt.Sprintf("fsize=%d:%d", b.cfg.MaxOutputMB*1024*1024, b.cfg.MaxOutputMB*1024*1024),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"-e", "RUNNER_SECCOMP=1",
		"-v", dir.Root + ":/workspace",
		"-w", "/workspace",
		b.cfg.SandboxImage,
		"sandbox-runner", sub.Language, strconv.Itoa(sub.TimeLimitSec), strconv.Itoa(len(sub.Inputs)),
	}

	runCtx, cancel := context.WithTimeout(ctx, wallCap)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "docker", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	exit := sandboxExit{exitCode: exitCodeOf(cmd, err), err: err}

	if runCtx.Err() != nil && ctx.Err() == nil {
		// Wall cap tripped: CommandContext killed the client, but the
		// container keeps running until told otherwise.
		exit.killed = true
		b.kill(containerName)
		exit.err = fmt.Errorf("submission wall cap (%s) exceeded", wallCap)
	} else if err != nil && stderr.Len() > 0 {
		exit.err = fmt.Errorf("%w: %s", err, stderr.String())
	}
	return exit
}

func (b *containerBackend) kill(containerName string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(killCtx, "docker", "kill", containerName).Run()
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
