package dispatch

import (
	"context"
	"io"
	"os"
	"os/exec"

	"galarender/internal/pkg/errors"
)

// Resolver looks up an executable by name. It is the only way the
// dispatcher learns whether a tool exists.
type Resolver interface {
	LookPath(name string) (string, error)
}

// PathResolver resolves executables through the process PATH.
type PathResolver struct{}

func (PathResolver) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// StaticResolver reports a fixed set of tools. Names absent from the map
// resolve to exec.ErrNotFound.
type StaticResolver map[string]string

func (r StaticResolver) LookPath(name string) (string, error) {
	if p, ok := r[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Runner starts an executable and blocks until it exits. A non-zero exit
// status is returned as an error.
type Runner interface {
	Run(ctx context.Context, path string, args ...string) error
}

// ExecRunner runs tools with os/exec, streaming their output to Stdout and
// Stderr (os.Stdout and os.Stderr when nil). Canceling ctx kills the tool.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, path string, args ...string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

// exitStatus extracts the exit code from a Runner error, or -1.
func exitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
