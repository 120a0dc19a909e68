//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureSysProcAttr starts the instance in its own process group so Ctrl-C in the
// pivbatch console does not kill it. Detached also drops the inherited console.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	flags := uint32(windows.CREATE_NEW_PROCESS_GROUP)
	if spec.Detached {
		flags |= windows.DETACHED_PROCESS
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
}
