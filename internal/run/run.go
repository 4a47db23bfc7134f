// Package run executes external commands and reports typed results, so call
// sites classify outcomes from structured fields instead of re-parsing
// stderr at every layer.
package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Spec describes one subprocess invocation.
type Spec struct {
	Name    string
	Args    []string
	Dir     string        // working directory; empty = inherit
	Env     []string      // appended to the parent environment
	Timeout time.Duration // 0 = rely on the caller's context only
}

// Result is the typed outcome of a finished subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	TimedOut bool
}

// Ok reports whether the command exited zero without timing out.
func (r Result) Ok() bool { return r.ExitCode == 0 && !r.TimedOut }

// Runner executes commands. The production implementation shells out; tests
// substitute a scripted runner.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run executes the spec. The returned error is non-nil only when the process
// could not be started at all; a non-zero exit or a timeout is reported
// through the Result.
func (ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	if ctx.Err() != nil {
		res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		res.ExitCode = -1
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("starting %s: %w", spec.Name, err)
	}

	res.ExitCode = 0
	return res, nil
}

// Errorf summarizes a failed result for error wrapping.
func Errorf(spec Spec, res Result) error {
	if res.TimedOut {
		return fmt.Errorf("%s timed out after %s", spec.Name, res.Elapsed.Round(time.Millisecond))
	}
	return fmt.Errorf("%s exited %d: %s", spec.Name, res.ExitCode, firstLine(res.Stderr))
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
