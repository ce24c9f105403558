package config

import "testing"

func TestLoadSettingsDefaultsWhenAbsent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	settings, err := store.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.HTTPPort != 3456 || settings.HTTPBindHost != "127.0.0.1" {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
}

func TestSaveThenLoadConnectionRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	cc := ConnectionConfig{ServerURL: "wss://control.example", EndpointUUID: "uuid-1", ConnectOnStartup: true}
	if err := store.SaveConnection(cc); err != nil {
		t.Fatalf("SaveConnection: %v", err)
	}

	got, err := store.LoadConnection()
	if err != nil {
		t.Fatalf("LoadConnection: %v", err)
	}
	if got != cc {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, cc)
	}
}

func TestMergeSettingsPersistsPatch(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	merged, err := store.MergeSettings(map[string]any{"http_port": float64(9090), "auto_install": true})
	if err != nil {
		t.Fatalf("MergeSettings: %v", err)
	}
	if merged.HTTPPort != 9090 || !merged.AutoInstall {
		t.Fatalf("unexpected merged settings: %+v", merged)
	}

	reloaded, err := store.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings after merge: %v", err)
	}
	if reloaded.HTTPPort != 9090 || !reloaded.AutoInstall {
		t.Fatalf("merge did not persist: %+v", reloaded)
	}
	// unrelated defaults must survive a partial patch untouched.
	if reloaded.WebSocketPort != 3458 {
		t.Fatalf("unrelated default clobbered: %+v", reloaded)
	}
}
