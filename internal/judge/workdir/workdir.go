// Package workdir manages the ephemeral per-submission directory shared
// between the host and the sandbox.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	appErr "judgebox/pkg/errors"

	"github.com/google/uuid"
)

const (
	CodeDir    = "code"
	TestsDir   = "testcases"
	ResultsDir = "results"
)

// Dir is one submission's work directory. The layout is fixed:
// code/<source>, testcases/<i>.in, results/<i>.{out,err,meta}, 1-based.
type Dir struct {
	Root string
}

// Create makes a fresh uuid-keyed work directory under root. Permissions
// are wide open so the sandbox's unprivileged user can read inputs and
// write results through the mount.
func Create(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o777); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkDirError, "create temp root %s failed", root)
	}
	path := filepath.Join(root, uuid.NewString())
	for _, sub := range []string{CodeDir, TestsDir, ResultsDir} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o777); err != nil {
			_ = os.RemoveAll(path)
			return nil, appErr.Wrapf(err, appErr.WorkDirError, "create work directory failed")
		}
	}
	// MkdirAll applies the umask; fix the modes so the mount works for
	// the sandbox user too.
	_ = os.Chmod(path, 0o777)
	for _, sub := range []string{CodeDir, TestsDir, ResultsDir} {
		_ = os.Chmod(filepath.Join(path, sub), 0o777)
	}
	return &Dir{Root: path}, nil
}

// Remove deletes the directory tree. Failures are returned for logging but
// must never replace a primary result.
func (d *Dir) Remove() error {
	return os.RemoveAll(d.Root)
}

// WriteSource materialises the submission source under code/.
func (d *Dir) WriteSource(filename, source string) error {
	path := filepath.Join(d.Root, CodeDir, filename)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return appErr.Wrapf(err, appErr.WorkDirError, "write source file failed")
	}
	return nil
}

// WriteInput materialises one stdin payload as testcases/<i>.in (1-based).
func (d *Dir) WriteInput(index int, data string) error {
	path := d.InputPath(index)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return appErr.Wrapf(err, appErr.WorkDirError, "write input %d failed", index)
	}
	return nil
}

// InputPath returns testcases/<i>.in.
func (d *Dir) InputPath(index int) string {
	return filepath.Join(d.Root, TestsDir, strconv.Itoa(index)+".in")
}

// StdoutPath returns results/<i>.out.
func (d *Dir) StdoutPath(index int) string {
	return filepath.Join(d.Root, ResultsDir, strconv.Itoa(index)+".out")
}

// StderrPath returns results/<i>.err.
func (d *Dir) StderrPath(index int) string {
	return filepath.Join(d.Root, ResultsDir, strconv.Itoa(index)+".err")
}

// MetaPath returns results/<i>.meta.
func (d *Dir) MetaPath(index int) string {
	return filepath.Join(d.Root, ResultsDir, strconv.Itoa(index)+".meta")
}

// String implements fmt.Stringer.
func (d *Dir) String() string {
	return fmt.Sprintf("workdir(%s)", d.Root)
}
