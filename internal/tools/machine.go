package tools

import (
	"os/exec"
	"runtime"
	"sync"

	"screencontrol-agent/internal/credstore"
)

// Machine implements machine_lock/unlock/info. On POSIX, unlock recovers
// stored credentials from the credential store and hands them to the
// platform unlocker; on Windows it only sets an unlock-pending flag that a
// separately-installed credential provider polls — this core owns the
// flag, not the provider DLL.
type Machine struct {
	Credentials *credstore.CredentialStore

	mu            sync.Mutex
	unlockPending bool
}

// Lock implements machine_lock.
func (m *Machine) Lock(params map[string]any) (any, error) {
	if err := lockCommand().Run(); err != nil {
		return fail(err), nil
	}
	return ok(nil), nil
}

// Unlock implements machine_unlock.
func (m *Machine) Unlock(params map[string]any) (any, error) {
	if runtime.GOOS == "windows" {
		m.mu.Lock()
		m.unlockPending = true
		m.mu.Unlock()
		return ok(map[string]any{"unlock_pending": true}), nil
	}
	if m.Credentials == nil {
		return failMsg("no credential store configured"), nil
	}
	if err := m.Credentials.UnlockWithStoredCredentials(); err != nil {
		return fail(err), nil
	}
	return ok(nil), nil
}

// Info implements machine_info: a best-effort snapshot of lock/session
// state plus the Windows unlock-pending flag.
func (m *Machine) Info(params map[string]any) (any, error) {
	m.mu.Lock()
	pending := m.unlockPending
	m.mu.Unlock()

	hasCreds := false
	if m.Credentials != nil {
		hasCreds, _ = m.Credentials.HasUnlockCredentials()
	}

	return ok(map[string]any{
		"platform":                runtime.GOOS,
		"unlock_pending":          pending,
		"has_stored_unlock_creds": hasCreds,
	}), nil
}

// ConsumeUnlockPending clears and returns the Windows unlock-pending flag;
// called by the credential-provider loopback endpoints.
func (m *Machine) ConsumeUnlockPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.unlockPending
	m.unlockPending = false
	return pending
}

func lockCommand() *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("pmset", "displaysleepnow")
	case "windows":
		return exec.Command("rundll32.exe", "user32.dll,LockWorkStation")
	default:
		return exec.Command("loginctl", "lock-session")
	}
}
