package filter

import "testing"

func TestCheckBlocksDestructiveCommand(t *testing.T) {
	f := New(nil)
	v := f.Check("rm -rf /")
	if v.Allowed {
		t.Fatal("expected rm -rf / to be blocked")
	}
}

func TestCheckAllowsOrdinaryCommand(t *testing.T) {
	f := New(nil)
	v := f.Check("ls -la /tmp")
	if !v.Allowed {
		t.Fatalf("expected ordinary command to be allowed, got reason %q", v.Reason)
	}
}

func TestCheckExtraBlocklist(t *testing.T) {
	f := New([]string{`^shutdown\b`})
	v := f.Check("shutdown -h now")
	if v.Allowed {
		t.Fatal("expected operator blocklist pattern to reject command")
	}
}
