package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadRangeToEOF(t *testing.T) {
	path := writeTempFile(t, "one\ntwo\nthree\n")
	fs := FS{}

	result, err := fs.ReadRange(map[string]any{"path": path, "start_line": 2, "end_line": -1})
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	m := result.(map[string]any)
	if m["content"] != "two\nthree" {
		t.Fatalf("content = %q, want %q", m["content"], "two\nthree")
	}
}

func TestReadRangeEndBeforeStartIsEmpty(t *testing.T) {
	path := writeTempFile(t, "one\ntwo\nthree\n")
	fs := FS{}

	result, err := fs.ReadRange(map[string]any{"path": path, "start_line": 3, "end_line": 1})
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	m := result.(map[string]any)
	if m["content"] != "" {
		t.Fatalf("content = %q, want empty", m["content"])
	}
}

func TestReadRangeStartBelowOneIsError(t *testing.T) {
	path := writeTempFile(t, "one\ntwo\n")
	fs := FS{}

	result, err := fs.ReadRange(map[string]any{"path": path, "start_line": 0})
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	m := result.(map[string]any)
	if m["success"] != false {
		t.Fatalf("expected success:false for start_line < 1, got %#v", result)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	fs := FS{}

	if _, err := fs.Write(map[string]any{"path": path, "content": "hello", "mode": "overwrite"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err := fs.Read(map[string]any{"path": path})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	m := result.(map[string]any)
	if m["content"] != "hello" {
		t.Fatalf("content = %q, want hello", m["content"])
	}
}

func TestReadBlocksCredentialPath(t *testing.T) {
	fs := FS{}
	result, err := fs.Read(map[string]any{"path": "/var/lib/screencontrol/credentials.blob"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	m := result.(map[string]any)
	if m["success"] != false {
		t.Fatal("expected credential store path to be blocked")
	}
}
