//go:build windows

package update

import (
	"fmt"
	"os/exec"
	"syscall"
)

const windowsServiceName = "ScreenControlAgent"

// buildInstallerScript renders a batch script with the POSIX installer's
// stop/backup/replace/restart/cleanup sequence, using sc.exe for service
// control. It copies the downloaded file over the binary as-is; no archive
// is extracted.
func buildInstallerScript(paths installerPaths) string {
	return fmt.Sprintf(`@echo off
set ARCHIVE=%q
set TARGET=%q
set BACKUP=%q

sc stop %s
timeout /t 3 /nobreak >nul

copy /y "%%TARGET%%" "%%BACKUP%%" >nul
copy /y "%%ARCHIVE%%" "%%TARGET%%.new" >nul
if errorlevel 1 goto :restore
move /y "%%TARGET%%.new" "%%TARGET%%" >nul

sc start %s
del /q "%%ARCHIVE%%"
del /q "%%~f0"
exit /b 0

:restore
copy /y "%%BACKUP%%" "%%TARGET%%" >nul
sc start %s
exit /b 1
`, paths.ArchivePath, paths.TargetPath, paths.BackupPath, windowsServiceName, windowsServiceName, windowsServiceName)
}

// newInstallerCmd launches the batch script detached from the parent
// console, in a new process group.
func newInstallerCmd(scriptPath string) *exec.Cmd {
	cmd := exec.Command("cmd.exe", "/C", scriptPath)
	// 0x00000008 is DETACHED_PROCESS, which package syscall does not export.
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008}
	return cmd
}
