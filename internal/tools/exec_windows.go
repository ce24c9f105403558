//go:build windows

package tools

import (
	"context"
	"os/exec"
)

// shellCommand runs command through cmd.exe /C.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd.exe", "/C", command)
}
