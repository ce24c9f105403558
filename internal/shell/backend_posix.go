//go:build linux || darwin

package shell

import (
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"

	"github.com/creack/pty"
)

var shellAliases = map[string]bool{"bash": true, "sh": true, "zsh": true}

var shellSearchDirs = []string{"/bin", "/usr/bin"}

// resolveShell implements §4.D's selection rule: an alias probes a
// candidate list, an explicit path is exec'd as-is, and the final
// fallback is /bin/sh.
func resolveShell(command string) (path string, args []string) {
	if command == "" || shellAliases[command] {
		name := command
		if name == "" {
			name = "bash"
		}
		for _, dir := range shellSearchDirs {
			candidate := dir + "/" + name
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
				return candidate, nil
			}
		}
		return "/bin/sh", []string{"-i"}
	}
	return command, nil
}

type ptyBackend struct {
	cmd       *exec.Cmd
	master    *os.File
	p         *pump
	isRunning atomic.Bool
}

func startBackend(command, cwd string) (backend, error) {
	shellPath, args := resolveShell(command)
	cmd := exec.Command(shellPath, args...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
	if cwd != "" {
		cmd.Dir = cwd
	}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		return nil, err
	}

	b := &ptyBackend{cmd: cmd, master: master, p: newPump(master)}
	b.isRunning.Store(true)
	go b.reap()
	return b, nil
}

func (b *ptyBackend) reap() {
	_ = b.cmd.Wait()
	b.isRunning.Store(false)
}

func (b *ptyBackend) write(data []byte) (int, error) {
	return b.master.Write(data)
}

// drain reads whatever the pump has buffered from the combined PTY
// channel; POSIX-PTY sessions have no separate stderr stream.
func (b *ptyBackend) drain() (stdout, stderr []byte) {
	return b.p.take(), nil
}

func (b *ptyBackend) stop(signal string) error {
	sig := posixSignal(normalizeSignal(signal))
	if b.cmd.Process != nil {
		_ = b.cmd.Process.Signal(sig)
	}
	_ = b.master.Close()
	return nil
}

func (b *ptyBackend) pid() int {
	if b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

func (b *ptyBackend) running() bool { return b.isRunning.Load() }

func (b *ptyBackend) kind() string { return "pty" }

func posixSignal(name string) syscall.Signal {
	switch name {
	case "KILL":
		return syscall.SIGKILL
	case "INT":
		return syscall.SIGINT
	case "HUP":
		return syscall.SIGHUP
	default:
		return syscall.SIGTERM
	}
}
