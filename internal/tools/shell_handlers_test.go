package tools

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"screencontrol-agent/internal/shell"
)

func TestShellSessionsHandlersRoundTrip(t *testing.T) {
	s := ShellSessions{Manager: shell.New(zerolog.Nop(), nil)}
	ctx := context.Background()

	startResult, err := s.StartSession(ctx, map[string]any{"command": "sh"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	m := startResult.(map[string]any)
	if m["success"] != true {
		t.Fatalf("StartSession failed: %#v", m)
	}
	id, _ := m["session_id"].(string)
	if id == "" {
		t.Fatal("expected non-empty session_id")
	}

	if _, err := s.SendInput(ctx, map[string]any{"session_id": id, "input": "echo hi\n"}); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	deadline := time.After(2 * time.Second)
	var out string
	for {
		readResult, err := s.ReadOutput(ctx, map[string]any{"session_id": id})
		if err != nil {
			t.Fatalf("ReadOutput: %v", err)
		}
		rm := readResult.(map[string]any)
		out += rm["stdout"].(string)
		if len(out) > 0 && stringsContains(out, "hi") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for echo output, got %q", out)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if _, err := s.StopSession(ctx, map[string]any{"session_id": id}); err != nil {
		t.Fatalf("StopSession: %v", err)
	}

	listResult, err := s.ListSessions(ctx, nil)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	lm := listResult.(map[string]any)
	sessions := lm["sessions"].([]map[string]any)
	for _, sess := range sessions {
		if sess["session_id"] == id {
			t.Fatal("session still present after StopSession")
		}
	}
}

func stringsContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
