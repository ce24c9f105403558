package update

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// installerPaths bundles the filesystem locations the generated script
// needs: where the new archive landed, where the running binary lives,
// and where its pre-update backup goes.
type installerPaths struct {
	ArchivePath string
	TargetPath  string
	BackupPath  string
	ScriptPath  string
}

// Install runs the platform self-replacement flow: it writes a
// stop-extract-overwrite-restart-cleanup script to the temp dir, launches
// it detached, and returns so the caller can exit(0) and let the script
// replace the running binary. A pre-update backup named after the new
// version is written beside the binary and the script restores it on
// failure; older backups are not removed.
func (p *Pipeline) Install(archivePath string, m Manifest) error {
	p.setState(StateInstalling)

	target, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve running executable: %w", err)
	}
	target, _ = filepath.EvalSymlinks(target)

	paths := installerPaths{
		ArchivePath: archivePath,
		TargetPath:  target,
		BackupPath:  target + ".backup-" + m.Version,
		ScriptPath:  filepath.Join(p.stateDir, installerScriptName()),
	}

	script := buildInstallerScript(paths)
	if err := os.WriteFile(paths.ScriptPath, []byte(script), 0o755); err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("write installer script: %w", err)
	}

	cmd := newInstallerCmd(paths.ScriptPath)
	if err := cmd.Start(); err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("launch installer: %w", err)
	}

	p.recordAudit("install", "ok", nil)
	return nil
}

func installerScriptName() string {
	stamp := time.Now().UTC().Format("20060102150405")
	if runtime.GOOS == "windows" {
		return "install-" + stamp + ".bat"
	}
	return "install-" + stamp + ".sh"
}
