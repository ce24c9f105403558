package shell

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"screencontrol-agent/internal/filter"
)

func TestStartSendReadStopLifecycle(t *testing.T) {
	m := New(zerolog.Nop(), nil)

	sess, err := m.StartSession("sh", "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.ID == "" || sess.PID == 0 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	found := false
	for _, s := range m.ListSessions() {
		if s.ID == sess.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("session missing from ListSessions after start")
	}

	if _, err := m.SendInput(sess.ID, []byte("echo hello\n")); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	deadline := time.After(2 * time.Second)
	var stdout []byte
	for {
		out, _, err := m.ReadOutput(sess.ID)
		if err != nil {
			t.Fatalf("ReadOutput: %v", err)
		}
		stdout = append(stdout, out...)
		if containsHello(stdout) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for echo output, got %q", stdout)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if err := m.StopSession(sess.ID, "TERM"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}

	for _, s := range m.ListSessions() {
		if s.ID == sess.ID {
			t.Fatal("session still present after StopSession")
		}
	}

	if _, _, err := m.ReadOutput(sess.ID); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after stop, got %v", err)
	}
}

func TestStartSessionBlockedByFilter(t *testing.T) {
	f := filter.New(nil)
	m := New(zerolog.Nop(), f)

	_, err := m.StartSession("rm -rf /", "")
	if err == nil {
		t.Fatal("expected command filter to block session start")
	}
}

func containsHello(b []byte) bool {
	return len(b) > 0 && string(b) != "" && indexOfHello(string(b)) >= 0
}

func indexOfHello(s string) int {
	for i := 0; i+5 <= len(s); i++ {
		if s[i:i+5] == "hello" {
			return i
		}
	}
	return -1
}
