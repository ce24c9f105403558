// Package credstore is the platform-native secure credential store
// abstraction: a key-value store keyed by string keyId, byte-string
// values, with store/retrieve/delete/exists. The package exports no
// Retrieve: retrieve is an unexported Store method, and only storeUnlockCredentials's
// internal-use retrieval path (gated by the loopback server to the
// Windows credential provider) may read values back.
package credstore

import "errors"

// ErrNotFound is returned by retrieve when keyId has no stored value.
var ErrNotFound = errors.New("credstore: key not found")

// Store is the platform-native backing. New returns the concrete backing
// for the running GOOS (Keychain shell-out on macOS, DPAPI on Windows,
// sealed file on Linux).
type Store interface {
	store(keyID string, value []byte) error
	retrieve(keyID string) ([]byte, error)
	delete(keyID string) error
	exists(keyID string) (bool, error)
}

const unlockCredentialsKey = "unlock-credentials"

// CredentialStore is the public-facing API. It intentionally exposes no
// exported Retrieve — see storeUnlockCredentials's contract note.
type CredentialStore struct {
	backing Store
}

// New builds a CredentialStore over the platform-appropriate backing.
func New(stateDir string) (*CredentialStore, error) {
	backing, err := newPlatformStore(stateDir)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{backing: backing}, nil
}

// StoreUnlockCredentials seals a username/password pair for later use by
// machine_unlock. It is write-only at the API surface: there is no
// exported call to read the password back except the gated internal
// retrieval used by the Windows credential-provider bridge.
func (c *CredentialStore) StoreUnlockCredentials(user, password string) bool {
	payload := unlockCredentials{User: user, Password: password}
	blob, err := encodeUnlockCredentials(payload)
	if err != nil {
		return false
	}
	return c.backing.store(unlockCredentialsKey, blob) == nil
}

// ClearUnlockCredentials removes any stored unlock credentials. Clearing
// is always allowed regardless of platform.
func (c *CredentialStore) ClearUnlockCredentials() error {
	return c.backing.delete(unlockCredentialsKey)
}

// HasUnlockCredentials reports whether credentials are currently stored,
// without revealing them.
func (c *CredentialStore) HasUnlockCredentials() (bool, error) {
	return c.backing.exists(unlockCredentialsKey)
}

// retrieveUnlockCredentialsInternal is the sole read path, used only by
// the loopback server's Windows credential-provider endpoints, which gate
// the caller to localhost before ever invoking this.
func (c *CredentialStore) retrieveUnlockCredentialsInternal() (unlockCredentials, error) {
	blob, err := c.backing.retrieve(unlockCredentialsKey)
	if err != nil {
		return unlockCredentials{}, err
	}
	return decodeUnlockCredentials(blob)
}

// UnlockWithStoredCredentials is the POSIX unlock path: it recovers the
// stored credentials and hands them to the platform-specific unlocker.
func (c *CredentialStore) UnlockWithStoredCredentials() error {
	creds, err := c.retrieveUnlockCredentialsInternal()
	if err != nil {
		return err
	}
	return unlockWithCredentials(creds)
}

// CredentialProviderPayload exposes the stored credentials to the
// Windows-only /credential-provider/credentials loopback endpoint. Callers
// MUST have already verified the request originated on localhost.
func (c *CredentialStore) CredentialProviderPayload() (user, password string, err error) {
	creds, err := c.retrieveUnlockCredentialsInternal()
	if err != nil {
		return "", "", err
	}
	return creds.User, creds.Password, nil
}
