package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"screencontrol-agent/internal/filter"
)

// Shell implements shell_exec, gated by an injected command filter.
type Shell struct {
	Filter *filter.Filter
}

// Exec implements shell_exec(command, cwd?, timeout_seconds?=30): runs
// through a shell, captures stdout/stderr separately, and enforces the
// timeout by killing the process group on elapse.
func (s Shell) Exec(ctx context.Context, params map[string]any) (any, error) {
	command := stringParam(params, "command")
	if command == "" {
		return failMsg("command is required"), nil
	}
	if s.Filter != nil {
		if v := s.Filter.Check(command); !v.Allowed {
			return failMsg("CommandBlocked: " + v.Reason), nil
		}
	}
	cwd := stringParam(params, "cwd")
	timeoutSeconds := intParam(params, "timeout_seconds", 30)

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	cmd := shellCommand(execCtx, command)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return map[string]any{
			"success": false,
			"error":   "TimeoutExpired",
			"stdout":  stdout.String(),
			"stderr":  stderr.String(),
		}, nil
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return fail(err), nil
		}
	}

	return ok(map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
		"command":   command,
	}), nil
}
