package driver

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolStatus describes one external tool.
type ToolStatus struct {
	Name    string
	Version string // first line of the version output
	OK      bool
}

// versionFlags lists tools whose version flag is not --version.
var versionFlags = map[string]string{
	"nasm": "-v",
	"yasm": "--version",
}

// Doctor checks that the assembler and linker can be run.
func Doctor(assembler, linker string) []ToolStatus {
	var st []ToolStatus
	for _, name := range []string{assembler, linker} {
		flag, ok := versionFlags[filepath.Base(name)]
		if !ok {
			flag = "--version"
		}
		version, ok := checkTool(name, flag)
		st = append(st, ToolStatus{Name: name, Version: version, OK: ok})
	}
	return st
}

// checkTool runs a tool with the given arguments and returns the first line of output.
func checkTool(name string, args ...string) (string, bool) {
	cmd := exec.Command(name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}

	// Extract first line
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	// Truncate long lines
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line, true
}
