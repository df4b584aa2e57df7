package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// Run executes the command and captures stdout and stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	// #nosec G204 - binary paths are set by the application, not user input
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctx.Err() != nil {
		return out, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, fmt.Errorf("start %s: %w", name, err)
}
