package tools

import (
	"context"
	"testing"

	"screencontrol-agent/internal/filter"
)

func TestShellExecCapturesOutput(t *testing.T) {
	s := Shell{}
	result, err := s.Exec(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	m := result.(map[string]any)
	if m["success"] != true {
		t.Fatalf("expected success, got %#v", result)
	}
	if got := m["stdout"].(string); got != "hello\n" {
		t.Fatalf("stdout = %q, want %q", got, "hello\n")
	}
}

func TestShellExecTimeoutReturnsPartialOutput(t *testing.T) {
	s := Shell{}
	result, err := s.Exec(context.Background(), map[string]any{
		"command":         "sleep 2",
		"timeout_seconds": 1,
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	m := result.(map[string]any)
	if m["success"] != false {
		t.Fatalf("expected timeout failure, got %#v", result)
	}
	if m["stdout"] != "" {
		t.Fatalf("expected empty partial stdout, got %q", m["stdout"])
	}
}

func TestShellExecBlockedByFilter(t *testing.T) {
	s := Shell{Filter: filter.New(nil)}
	result, err := s.Exec(context.Background(), map[string]any{"command": "rm -rf /"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	m := result.(map[string]any)
	if m["success"] != false {
		t.Fatal("expected blocked command to fail")
	}
}
