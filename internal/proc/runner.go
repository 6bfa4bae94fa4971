package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the combined stdout/stderr of a finished command and its exit
// status. A non-zero Code is not an error: callers decide what failure means.
type Result struct {
	Output []byte
	Code   int
}

func (r Result) OK() bool { return r.Code == 0 }

// Text returns the trimmed combined output.
func (r Result) Text() string { return strings.TrimSpace(string(r.Output)) }

// FirstLine returns the first non-empty output line.
func (r Result) FirstLine() string {
	for _, line := range strings.Split(string(r.Output), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// Runner executes a program to completion in dir ("" = inherit cwd).
// An error is returned only when the program could not be run at all.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return Result{Output: out}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return Result{Output: out, Code: exitErr.ExitCode()}, nil
	}
	if ctx.Err() != nil {
		return Result{Output: out, Code: -1}, ctx.Err()
	}
	return Result{Output: out, Code: -1}, fmt.Errorf("run %s: %w", name, err)
}

// Git runs git in dir.
func Git(ctx context.Context, r Runner, dir string, args ...string) (Result, error) {
	return r.Run(ctx, dir, "git", args...)
}
