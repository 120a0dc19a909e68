package process

import (
	"os/exec"
	"runtime"
)

// shellCommand runs script through the platform shell. PIV shortcuts and
// batch files need cmd.exe on Windows.
func shellCommand(script string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		// #nosec G204
		return exec.Command("cmd", "/c", script)
	}
	// #nosec G204
	return exec.Command("/bin/sh", "-c", script)
}
