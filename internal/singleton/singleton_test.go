package singleton

import (
	"os"
	"testing"
)

func TestAcquireThenReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pid := os.Getpid()

	ok, existing, err := Acquire(dir, Info{PID: pid, AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok || existing != nil {
		t.Fatalf("expected first Acquire to succeed, got ok=%v existing=%+v", ok, existing)
	}

	ok2, existing2, err := Acquire(dir, Info{PID: pid + 1})
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if ok2 {
		t.Fatal("expected second Acquire to fail while the first process is alive")
	}
	if existing2 == nil || existing2.PID != pid {
		t.Fatalf("expected existing lock to report pid %d, got %+v", pid, existing2)
	}

	if err := Release(dir, pid); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok3, _, err := Acquire(dir, Info{PID: pid})
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if !ok3 {
		t.Fatal("expected Acquire to succeed after Release")
	}
}
