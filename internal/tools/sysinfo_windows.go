//go:build windows

package tools

import "strings"

func detectDiskUsage() (uint64, uint64) {
	out := runSimpleCommand("wmic", "logicaldisk", "get", "size,freespace", "/value")
	var free, total uint64
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "FreeSpace=") {
			free = parseUintOrZero(strings.TrimPrefix(line, "FreeSpace="))
		}
		if strings.HasPrefix(line, "Size=") {
			total = parseUintOrZero(strings.TrimPrefix(line, "Size="))
		}
		if free > 0 && total > 0 {
			break
		}
	}
	return total, free
}

func detectCPUName() string {
	out := runSimpleCommand("wmic", "cpu", "get", "Name", "/value")
	parts := strings.Split(strings.TrimSpace(out), "=")
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func detectMemoryBytes() uint64 {
	out := runSimpleCommand("wmic", "OS", "get", "TotalVisibleMemorySize", "/value")
	parts := strings.Split(strings.TrimSpace(out), "=")
	if len(parts) == 2 {
		return parseUintOrZero(strings.TrimSpace(parts[1])) * 1024
	}
	return 0
}
