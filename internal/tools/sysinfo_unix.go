//go:build !windows

package tools

import (
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

func detectDiskUsage() (uint64, uint64) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs("/", &stat); err == nil {
		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bavail * uint64(stat.Bsize)
		return total, free
	}
	return 0, 0
}

func detectCPUName() string {
	switch runtime.GOOS {
	case "darwin":
		return runSimpleCommand("sysctl", "-n", "machdep.cpu.brand_string")
	default:
		for _, line := range strings.Split(runSimpleCommand("cat", "/proc/cpuinfo"), "\n") {
			if strings.HasPrefix(strings.ToLower(line), "model name") {
				if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
					return strings.TrimSpace(parts[1])
				}
			}
		}
	}
	return ""
}

func detectMemoryBytes() uint64 {
	switch runtime.GOOS {
	case "darwin":
		return parseUintOrZero(runSimpleCommand("sysctl", "-n", "hw.memsize"))
	default:
		for _, line := range strings.Split(runSimpleCommand("cat", "/proc/meminfo"), "\n") {
			if strings.HasPrefix(line, "MemTotal:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
						return kb * 1024
					}
				}
			}
		}
	}
	return 0
}
