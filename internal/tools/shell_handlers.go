package tools

import (
	"context"
	"errors"

	"screencontrol-agent/internal/shell"
)

// ShellSessions adapts shell.Manager's typed API to the dispatcher's
// map[string]any handler contract for the shell_start_session/
// send_input/read_output/stop_session/list_sessions methods the terminal
// shim rewrites onto.
type ShellSessions struct {
	Manager *shell.Manager
}

func (s ShellSessions) StartSession(ctx context.Context, params map[string]any) (any, error) {
	session, err := s.Manager.StartSession(stringParam(params, "command"), stringParam(params, "cwd"))
	if err != nil {
		if errors.Is(err, shell.ErrCommandBlocked) {
			return failMsg(err.Error()), nil
		}
		return fail(err), nil
	}
	return ok(map[string]any{
		"session_id": session.ID,
		"pid":        session.PID,
		"kind":       session.Kind,
	}), nil
}

func (s ShellSessions) SendInput(ctx context.Context, params map[string]any) (any, error) {
	id := stringParam(params, "session_id")
	data := stringParam(params, "input")
	n, err := s.Manager.SendInput(id, []byte(data))
	if err != nil {
		return fail(err), nil
	}
	return ok(map[string]any{"bytes_written": n}), nil
}

func (s ShellSessions) ReadOutput(ctx context.Context, params map[string]any) (any, error) {
	id := stringParam(params, "session_id")
	stdout, stderr, err := s.Manager.ReadOutput(id)
	if err != nil {
		return fail(err), nil
	}
	return ok(map[string]any{
		"session_id": id,
		"stdout":     string(stdout),
		"stderr":     string(stderr),
	}), nil
}

func (s ShellSessions) StopSession(ctx context.Context, params map[string]any) (any, error) {
	id := stringParam(params, "session_id")
	signal := stringParam(params, "signal")
	if err := s.Manager.StopSession(id, signal); err != nil {
		return fail(err), nil
	}
	return ok(nil), nil
}

func (s ShellSessions) ListSessions(ctx context.Context, params map[string]any) (any, error) {
	sessions := s.Manager.ListSessions()
	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{"session_id": sess.ID, "pid": sess.PID})
	}
	return ok(map[string]any{"sessions": out}), nil
}
