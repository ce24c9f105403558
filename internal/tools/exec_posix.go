//go:build linux || darwin

package tools

import (
	"context"
	"os/exec"
	"syscall"
)

// shellCommand runs command through /bin/sh -c, placing it in its own
// process group so timeout enforcement can signal the whole tree.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}
