//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr detaches into a new session when requested, otherwise a new
// process group, so terminal signals aimed at pivbatch do not reach the instance.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	attrs := &syscall.SysProcAttr{}
	if spec.Detached {
		attrs.Setsid = true
	} else {
		attrs.Setpgid = true
	}
	cmd.SysProcAttr = attrs
}
