// Package process starts external application instances.
package process

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/loykin/pivbatch/internal/logger"
)

// Spec describes one application instance to start.
type Spec struct {
	Name     string        `json:"name"`
	Command  string        `json:"command"`  // command line; parsed like a shell would when metacharacters appear
	Args     []string      `json:"args"`     // explicit argv; takes precedence over Command
	WorkDir  string        `json:"work_dir"` // optional working dir
	Env      []string      `json:"env"`      // complete child environment; empty inherits ours
	Detached bool          `json:"detached"` // new session / no inherited console
	Log      logger.Config `json:"log"`      // stdout/stderr capture
}

// Validate checks the fields needed to start the instance.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("process requires name")
	}
	if len(s.Args) == 0 && strings.TrimSpace(s.Command) == "" {
		return errors.New("process " + s.Name + " requires command")
	}
	if len(s.Args) > 0 && strings.TrimSpace(s.Args[0]) == "" {
		return errors.New("process " + s.Name + " has empty program in args")
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for s, or nil when there is
// nothing to run.
// Explicit Args are used verbatim, which is what paths containing spaces need.
// Otherwise it avoids a shell when not necessary and honours an explicit
// "sh -c '...'" prefix without double-wrapping.
func (s *Spec) BuildCommand() *exec.Cmd {
	if len(s.Args) > 0 {
		// #nosec G204
		return exec.Command(s.Args[0], s.Args[1:]...)
	}
	cmdStr := strings.TrimSpace(s.Command)
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		return shellCommand(afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return shellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	if len(parts) == 0 {
		return nil
	}
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects "sh -c <ARG>" or "/bin/sh -c <ARG>" at the start of cmdStr.
// One pair of wrapping quotes around ARG is stripped.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		after, ok := strings.CutPrefix(trim, p)
		if !ok {
			continue
		}
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}
