package tools

import "github.com/atotto/clipboard"

// ClipboardRead implements clipboard_read.
func (System) ClipboardRead(params map[string]any) (any, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return fail(err), nil
	}
	return ok(map[string]any{"text": text}), nil
}

// ClipboardWrite implements clipboard_write(text).
func (System) ClipboardWrite(params map[string]any) (any, error) {
	text := stringParam(params, "text")
	if err := clipboard.WriteAll(text); err != nil {
		return fail(err), nil
	}
	return ok(nil), nil
}
