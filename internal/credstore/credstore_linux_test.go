//go:build linux

package credstore

import "testing"

func TestStoreHasAndClearUnlockCredentials(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if has, err := store.HasUnlockCredentials(); err != nil || has {
		t.Fatalf("expected no stored credentials initially, got has=%v err=%v", has, err)
	}

	if ok := store.StoreUnlockCredentials("alice", "s3cret"); !ok {
		t.Fatal("StoreUnlockCredentials returned false")
	}

	has, err := store.HasUnlockCredentials()
	if err != nil || !has {
		t.Fatalf("expected stored credentials after Store, got has=%v err=%v", has, err)
	}

	user, password, err := store.CredentialProviderPayload()
	if err != nil {
		t.Fatalf("CredentialProviderPayload: %v", err)
	}
	if user != "alice" || password != "s3cret" {
		t.Fatalf("unexpected payload: user=%q password=%q", user, password)
	}

	if err := store.ClearUnlockCredentials(); err != nil {
		t.Fatalf("ClearUnlockCredentials: %v", err)
	}
	if has, err := store.HasUnlockCredentials(); err != nil || has {
		t.Fatalf("expected no credentials after Clear, got has=%v err=%v", has, err)
	}
}

func TestRetrieveMissingCredentialsReturnsErrNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, _, err := store.CredentialProviderPayload(); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
