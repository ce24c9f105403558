// Package singleton enforces one running agent per machine via a PID
// lock file, since a second instance would double-register with the
// control server and fight over the loopback ports.
package singleton

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Info is the lock file's contents: enough to report which instance
// currently holds the lock.
type Info struct {
	PID       int    `json:"pid"`
	AgentID   string `json:"agentId,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

func lockFilePath(stateDir string) string {
	return filepath.Join(stateDir, "agent.lock")
}

// Acquire attempts to take the single-instance lock. It returns
// (true, nil, nil) on success, or (false, &existing, nil) if another live
// process already holds it.
func Acquire(stateDir string, info Info) (bool, *Info, error) {
	path := lockFilePath(stateDir)

	if existing, err := readInfo(path); err == nil && processRunning(existing.PID) {
		return false, existing, nil
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return false, nil, err
	}
	if err := writeInfo(path, info); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// Release removes the lock file if it is still owned by pid.
func Release(stateDir string, pid int) error {
	path := lockFilePath(stateDir)
	existing, err := readInfo(path)
	if err != nil {
		return nil
	}
	if existing.PID != pid {
		return errors.New("singleton: lock owned by another process")
	}
	return os.Remove(path)
}

func readInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func writeInfo(path string, info Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
