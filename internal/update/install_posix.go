//go:build linux || darwin

package update

import (
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
)

const (
	systemdServiceName = "screencontrol-agent.service"
	launchdLabel       = "com.screencontrol.agent"
)

// buildInstallerScript renders a POSIX shell script that stops the
// service, backs up the running binary, extracts the archive over it,
// restarts the service, and cleans up after itself. If extracting or
// replacing the binary fails it restores the binary from backup and exits
// non-zero; failures of the service stop/start commands are ignored.
func buildInstallerScript(paths installerPaths) string {
	stopCmd, startCmd := serviceCommands()
	return fmt.Sprintf(`#!/bin/sh
set -e

ARCHIVE=%q
TARGET=%q
BACKUP=%q

restore_and_fail() {
  if [ -f "$BACKUP" ]; then
    cp "$BACKUP" "$TARGET"
  fi
  exit 1
}

%s || true

cp "$TARGET" "$BACKUP"
tar -xzf "$ARCHIVE" -O > "$TARGET.new" 2>/dev/null || cp "$ARCHIVE" "$TARGET.new" || restore_and_fail
chmod +x "$TARGET.new" || restore_and_fail
mv "$TARGET.new" "$TARGET" || restore_and_fail

%s || true

rm -f "$ARCHIVE"
rm -f "$0"
`, paths.ArchivePath, paths.TargetPath, paths.BackupPath, stopCmd, startCmd)
}

func serviceCommands() (stop, start string) {
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("launchctl bootout system/%s", launchdLabel),
			fmt.Sprintf("launchctl bootstrap system /Library/LaunchDaemons/%s.plist && launchctl kickstart -k system/%s", launchdLabel, launchdLabel)
	default:
		return fmt.Sprintf("systemctl stop %s", systemdServiceName),
			fmt.Sprintf("systemctl start %s", systemdServiceName)
	}
}

// newInstallerCmd runs the script detached in its own session (Setsid), so
// it is not tied to the agent's terminal or process group.
func newInstallerCmd(scriptPath string) *exec.Cmd {
	cmd := exec.Command("/bin/sh", scriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
