//go:build linux

package identity

func platformMachineGUID() string {
	if id := readFileTrim("/etc/machine-id"); id != "" {
		return id
	}
	return readFileTrim("/var/lib/dbus/machine-id")
}

func detectCPUModel() string {
	for _, line := range splitLines(readFileTrim("/proc/cpuinfo")) {
		if name, ok := cutPrefixField(line, "model name"); ok {
			return name
		}
	}
	return ""
}
