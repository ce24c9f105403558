// Package tools implements the stateless filesystem, shell, system, and
// machine operations the dispatcher routes to (component E). Every
// operation returns a {success, ...} map on success or {success:false,
// error} on failure, per §4.E's shared contract.
package tools

import (
	"os"
	"path/filepath"
	"strings"
)

func ok(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func fail(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

func failMsg(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

// isBlockedCredentialPath hard-blocks credential store filenames (the
// credstore's key file and sealed/DPAPI value files, plus the other names
// below) regardless of path traversal, per §6's persisted-state rule.
// fs_read, fs_read_range, fs_write, fs_delete, fs_move and fs_patch refuse
// such paths and fs_grep skips them; fs_list and fs_search still report
// their names.
func isBlockedCredentialPath(path string) bool {
	base := filepath.Base(path)
	switch strings.ToLower(base) {
	case "credentials.blob", "credentials.key", "unlock-credentials", "screencontrol-agent.key",
		".sealkey", "unlock-credentials.sealed", "unlock-credentials.dpapi":
		return true
	}
	return false
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func boolParam(params map[string]any, key string) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return false
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
