//go:build linux

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

const (
	maxOutputFileBytes = 10 * 1024 * 1024
	maxProcesses       = 64
	maxOpenFiles       = 64
)

// childMain runs in the re-exec'd process: it applies rlimits and the
// syscall filter, then replaces itself with the user program. IO streams
// are inherited from the parent.
func childMain(argv []string) {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "child: no command")
		os.Exit(2)
	}

	if err := applyRlimits(); err != nil {
		fmt.Fprintf(os.Stderr, "child: %v\n", err)
		os.Exit(2)
	}
	if os.Getenv("RUNNER_SECCOMP") == "1" {
		if err := applySeccomp(); err != nil {
			fmt.Fprintf(os.Stderr, "child: seccomp: %v\n", err)
			os.Exit(2)
		}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "child: resolve command: %v\n", err)
		os.Exit(127)
	}
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "child: exec: %v\n", err)
		os.Exit(126)
	}
}

func applyRlimits() error {
	cpuSecs := uint64(2)
	if raw := os.Getenv("RUNNER_CPU_SECS"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			cpuSecs = v
		}
	}
	limits := []struct {
		resource int
		value    uint64
	}{
		{unix.RLIMIT_CPU, cpuSecs},
		{unix.RLIMIT_FSIZE, maxOutputFileBytes},
		{unix.RLIMIT_NPROC, maxProcesses},
		{unix.RLIMIT_NOFILE, maxOpenFiles},
	}
	for _, l := range limits {
		rl := unix.Rlimit{Cur: l.value, Max: l.value}
		if err := unix.Setrlimit(l.resource, &rl); err != nil {
			return fmt.Errorf("setrlimit %d: %w", l.resource, err)
		}
	}
	return nil
}
