package dispatcher

import "context"

// terminalMethod describes one of the terminal_* surface aliases as a
// rewrite over one of the underlying shell_* handlers.
type terminalMethod struct {
	target string
}

// terminalShims maps the public terminal_* names to the underlying
// shell_start_session/send_input/read_output/stop_session handlers
// registered under those names. terminal_resize has no underlying target:
// it is accepted and always reports success without effect, per §4.C.
var terminalShims = map[string]terminalMethod{
	"terminal_start":  {target: "shell_start_session"},
	"terminal_input":  {target: "shell_send_input"},
	"terminal_output": {target: "shell_read_output"},
	"terminal_stop":   {target: "shell_stop_session"},
	"terminal_resize": {target: ""},
}

func (d *Dispatcher) dispatchTerminal(ctx context.Context, shim terminalMethod, params map[string]any) (any, error) {
	if shim.target == "" {
		return map[string]any{"success": true}, nil
	}

	// terminal_input carries its bytes as "data"; the underlying
	// shell_send_input handler reads "input". terminal_start carries the
	// shell name as "shell"; shell_start_session reads "command".
	renamed := renameSessionIDIngress(params)
	if data, ok := renamed["data"]; ok {
		renamed["input"] = data
	}
	if shellName, ok := renamed["shell"]; ok {
		renamed["command"] = shellName
	}

	h, ok := d.handlers[shim.target]
	if !ok {
		return nil, ErrUnknownMethod
	}
	result, err := h(ctx, renamed)
	if err != nil {
		return nil, err
	}
	return renameResultEgress(result), nil
}

// renameSessionIDIngress accepts sessionId as an alias for session_id on
// the way into the underlying shell handler.
func renameSessionIDIngress(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	if v, ok := out["sessionId"]; ok {
		if _, has := out["session_id"]; !has {
			out["session_id"] = v
		}
	}
	return out
}

// renameResultEgress concatenates stdout+stderr into "data" and mirrors
// session_id back out as sessionId, per the terminal shim's field rename.
func renameResultEgress(result any) any {
	m, ok := result.(map[string]any)
	if !ok {
		return result
	}
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	var data string
	if s, ok := m["stdout"].(string); ok {
		data += s
	}
	if s, ok := m["stderr"].(string); ok {
		data += s
	}
	if data != "" {
		out["data"] = data
	}
	if id, ok := m["session_id"]; ok {
		out["sessionId"] = id
	}
	return out
}
