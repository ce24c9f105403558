package identity

import "testing"

func TestLoadPersistsAndReusesMachineID(t *testing.T) {
	dir := t.TempDir()

	first, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.MachineID == "" {
		t.Fatal("expected a non-empty machine ID on first run")
	}

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if second.MachineID != first.MachineID {
		t.Fatalf("machine ID changed across loads: %q vs %q", first.MachineID, second.MachineID)
	}
}

func TestPlatformAndArchTagsAreWireValues(t *testing.T) {
	valid := map[string]bool{PlatformWindows: true, PlatformMacOS: true, PlatformLinux: true}
	if !valid[PlatformTag()] {
		t.Fatalf("PlatformTag returned unexpected value %q", PlatformTag())
	}
	validArch := map[string]bool{ArchX64: true, ArchArm64: true, ArchX86: true}
	if !validArch[ArchTag()] {
		t.Fatalf("ArchTag returned unexpected value %q", ArchTag())
	}
}

func TestFingerprintHashIsStableForSameFields(t *testing.T) {
	f := Fingerprint{Hostname: "host-1", CPUModel: "Test CPU", MACAddresses: []string{"aa:bb", "cc:dd"}}
	if f.Hash() != f.Hash() {
		t.Fatal("Hash should be deterministic for the same fingerprint")
	}
	other := Fingerprint{Hostname: "host-2", CPUModel: "Test CPU", MACAddresses: []string{"aa:bb", "cc:dd"}}
	if f.Hash() == other.Hash() {
		t.Fatal("expected different hosts to hash differently")
	}
}
