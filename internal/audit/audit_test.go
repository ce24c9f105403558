package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAppendThenRecentRoundTrip(t *testing.T) {
	ledger, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ledger.Close()

	now := time.Now()
	if err := ledger.Append(now, "command", "shell_exec", "ls -la", "ok", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := ledger.Append(now.Add(time.Second), "update", "check", "v1.2.3", "error", "checksum mismatch"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := ledger.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// newest first.
	if recs[0].Kind != "update" || recs[0].Outcome != "error" {
		t.Fatalf("unexpected newest record: %+v", recs[0])
	}
	if recs[1].Kind != "command" || recs[1].Subject != "shell_exec" {
		t.Fatalf("unexpected oldest record: %+v", recs[1])
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	ledger, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ledger.Close()

	for i := 0; i < 5; i++ {
		if err := ledger.Append(time.Now(), "session", "shell", "", "ok", ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recs, err := ledger.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(recs))
	}
}
