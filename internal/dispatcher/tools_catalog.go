package dispatcher

import "context"

// ToolSpec describes one entry of the tools/list catalogue.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is a minimal JSON-schema-shaped object, matching the shape
// tools/list must return: {type:"object", properties, required}.
type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

func obj(props map[string]any, required ...string) InputSchema {
	return InputSchema{Type: "object", Properties: props, Required: required}
}

func prop(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// defaultToolCatalog is the fixed, non-browser tool set: filesystem,
// shell, system, and machine tools. Browser-prefixed tools are appended
// conditionally by toolsList after a liveness probe.
func defaultToolCatalog() []ToolSpec {
	return []ToolSpec{
		{Name: "fs_list", Description: "List directory contents", InputSchema: obj(map[string]any{
			"path":      prop("directory to list"),
			"recursive": map[string]any{"type": "boolean"},
			"max_depth": map[string]any{"type": "integer"},
		}, "path")},
		{Name: "fs_read", Description: "Read a file's contents", InputSchema: obj(map[string]any{
			"path":      prop("file to read"),
			"max_bytes": map[string]any{"type": "integer"},
		}, "path")},
		{Name: "fs_read_range", Description: "Read a line range from a file", InputSchema: obj(map[string]any{
			"path":       prop("file to read"),
			"start_line": map[string]any{"type": "integer"},
			"end_line":   map[string]any{"type": "integer"},
		}, "path", "start_line")},
		{Name: "fs_write", Description: "Write or append to a file", InputSchema: obj(map[string]any{
			"path":               prop("file to write"),
			"content":            prop("content to write"),
			"mode":               map[string]any{"type": "string", "enum": []string{"overwrite", "append"}},
			"create_directories": map[string]any{"type": "boolean"},
		}, "path", "content")},
		{Name: "fs_delete", Description: "Delete a file or directory", InputSchema: obj(map[string]any{
			"path":      prop("path to delete"),
			"recursive": map[string]any{"type": "boolean"},
		}, "path")},
		{Name: "fs_move", Description: "Move or rename a file", InputSchema: obj(map[string]any{
			"src": prop("source path"),
			"dst": prop("destination path"),
		}, "src", "dst")},
		{Name: "fs_search", Description: "Search for files matching a glob pattern", InputSchema: obj(map[string]any{
			"path":        prop("root to search"),
			"pattern":     prop("glob pattern"),
			"max_results": map[string]any{"type": "integer"},
		}, "path", "pattern")},
		{Name: "fs_grep", Description: "Search file contents by regex", InputSchema: obj(map[string]any{
			"path":        prop("root to search"),
			"regex":       prop("regular expression"),
			"glob":        prop("optional glob filter"),
			"max_matches": map[string]any{"type": "integer"},
		}, "path", "regex")},
		{Name: "fs_patch", Description: "Apply a list of edit operations to a file", InputSchema: obj(map[string]any{
			"path":    prop("file to patch"),
			"ops":     map[string]any{"type": "array"},
			"dry_run": map[string]any{"type": "boolean"},
		}, "path", "ops")},
		{Name: "shell_exec", Description: "Run a command through a shell and capture output", InputSchema: obj(map[string]any{
			"command":         prop("command line to run"),
			"cwd":             prop("working directory"),
			"timeout_seconds": map[string]any{"type": "integer"},
		}, "command")},
		{Name: "system_info", Description: "Report host platform, arch, and resource info", InputSchema: obj(map[string]any{})},
		{Name: "clipboard_read", Description: "Read the system clipboard", InputSchema: obj(map[string]any{})},
		{Name: "clipboard_write", Description: "Write text to the system clipboard", InputSchema: obj(map[string]any{
			"text": prop("text to write"),
		}, "text")},
		{Name: "wait", Description: "Sleep for a given duration", InputSchema: obj(map[string]any{
			"milliseconds": map[string]any{"type": "integer"},
		}, "milliseconds")},
		{Name: "machine_lock", Description: "Lock the host session", InputSchema: obj(map[string]any{})},
		{Name: "machine_unlock", Description: "Unlock the host session using stored credentials", InputSchema: obj(map[string]any{})},
		{Name: "machine_info", Description: "Report lock/session state of the host", InputSchema: obj(map[string]any{})},
	}
}

var browserTools = []ToolSpec{
	{Name: "browser_getTabs", Description: "List open browser tabs", InputSchema: obj(map[string]any{})},
	{Name: "browser_navigate", Description: "Navigate the active tab to a URL", InputSchema: obj(map[string]any{
		"url": prop("destination URL"),
	}, "url")},
	{Name: "browser_click", Description: "Click an element in the active tab", InputSchema: obj(map[string]any{
		"selector": prop("CSS selector"),
	}, "selector")},
	{Name: "browser_screenshot", Description: "Capture the active tab", InputSchema: obj(map[string]any{})},
}

// toolsList implements rule 4: the advertised catalogue, plus
// browser-prefixed tools iff a fresh liveness probe succeeds. The probe
// result is never cached across calls.
func (d *Dispatcher) toolsList(ctx context.Context) map[string]any {
	tools := append([]ToolSpec(nil), d.tools...)
	if d.gui != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if d.gui.Probe(probeCtx) {
			tools = append(tools, browserTools...)
		}
	}
	return map[string]any{"tools": tools}
}
