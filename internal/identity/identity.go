// Package identity derives and persists the agent's stable machine and
// device identifiers, and collects the fingerprint fields sent at
// registration time.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Platform tags used on the wire, per the data model's {windows|macos|linux} enum.
const (
	PlatformWindows = "windows"
	PlatformMacOS   = "macos"
	PlatformLinux   = "linux"
)

// Arch tags used on the wire.
const (
	ArchX64   = "x64"
	ArchArm64 = "arm64"
	ArchX86   = "x86"
)

// Fingerprint carries the hostname/CPU/MAC facts sent at registration.
type Fingerprint struct {
	Hostname     string   `json:"hostname"`
	CPUModel     string   `json:"cpuModel"`
	MACAddresses []string `json:"macAddresses"`
}

// Identity is the stable agent identity, persisted once per install.
type Identity struct {
	MachineID string `json:"machineId"`
}

func identityPath(stateDir string) string {
	return filepath.Join(stateDir, "identity.json")
}

// Load reads the persisted machine identity, deriving and persisting one
// on first run through DeriveMachineID: the OS-native machine identifier
// where one is available, otherwise a random UUID.
func Load(stateDir string) (Identity, error) {
	path := identityPath(stateDir)

	if data, err := os.ReadFile(path); err == nil {
		var id Identity
		if json.Unmarshal(data, &id) == nil && id.MachineID != "" {
			return id, nil
		}
	}

	id := Identity{MachineID: DeriveMachineID()}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return Identity{}, fmt.Errorf("create state dir: %w", err)
	}
	payload, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return Identity{}, err
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return Identity{}, fmt.Errorf("persist identity: %w", err)
	}
	return id, nil
}

// DeriveMachineID attempts to read an OS-native machine identifier and
// falls back to a random UUID when unavailable (containers, sandboxes).
func DeriveMachineID() string {
	if id := platformMachineGUID(); id != "" {
		return id
	}
	return uuid.NewString()
}

// PlatformTag maps runtime.GOOS to the wire platform tag.
func PlatformTag() string {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	default:
		return PlatformLinux
	}
}

// ArchTag maps runtime.GOARCH to the wire arch tag.
func ArchTag() string {
	switch runtime.GOARCH {
	case "amd64":
		return ArchX64
	case "arm64":
		return ArchArm64
	default:
		return ArchX86
	}
}

// Collect gathers the fingerprint fields for registration.
func Collect() Fingerprint {
	hostname, _ := os.Hostname()
	macs, _ := listInterfaces()
	return Fingerprint{
		Hostname:     hostname,
		CPUModel:     detectCPUModel(),
		MACAddresses: macs,
	}
}

// Hash returns a stable, order-independent fingerprint hash useful for
// dedup/logging; it is not sent on the wire.
func (f Fingerprint) Hash() string {
	h := sha1.New()
	h.Write([]byte(f.Hostname))
	h.Write([]byte(f.CPUModel))
	macs := append([]string(nil), f.MACAddresses...)
	sort.Strings(macs)
	h.Write([]byte(strings.Join(macs, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

func listInterfaces() ([]string, []string) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, nil
	}
	macs := make([]string, 0, len(ifs))
	names := make([]string, 0, len(ifs))
	for _, iface := range ifs {
		names = append(names, iface.Name)
		if len(iface.HardwareAddr) > 0 {
			macs = append(macs, iface.HardwareAddr.String())
		}
	}
	return macs, names
}

func readFileTrim(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// cutPrefixField extracts the value of a "key   : value" style line whose
// key case-insensitively matches prefix.
func cutPrefixField(line, prefix string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(line), strings.ToLower(prefix)) {
		return "", false
	}
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
