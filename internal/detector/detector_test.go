package detector

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"testing"
)

func TestPIDDetector_Self(t *testing.T) {
	d := ForPID(os.Getpid(), 0)
	alive, err := d.Alive()
	if err != nil || !alive {
		t.Fatalf("current process should be alive, got alive=%v err=%v", alive, err)
	}
	if d.Describe() != "pid:"+strconv.Itoa(os.Getpid()) {
		t.Fatalf("Describe mismatch: %q", d.Describe())
	}
}

func TestPIDDetector_NonPositive(t *testing.T) {
	for _, pid := range []int{0, -1} {
		alive, err := PIDDetector{PID: pid}.Alive()
		if err != nil || alive {
			t.Fatalf("pid %d: expected false,nil got %v %v", pid, alive, err)
		}
	}
}

func TestPIDDetector_ExitedChild(t *testing.T) {
	cmd := exitCommand()
	if err := cmd.Run(); err != nil {
		t.Fatalf("run child: %v", err)
	}
	// Run reaps the child, so the pid no longer names a process.
	alive, err := PIDDetector{PID: cmd.Process.Pid}.Alive()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if alive {
		t.Fatalf("exited child %d reported alive", cmd.Process.Pid)
	}
}

func TestPIDDetector_StartTimeMismatch(t *testing.T) {
	pid := os.Getpid()
	start := ProcStartUnix(pid)
	if start == 0 {
		t.Skip("process start time unavailable on this platform")
	}
	if alive, _ := (PIDDetector{PID: pid, StartUnix: start}).Alive(); !alive {
		t.Fatalf("matching start time should be alive")
	}
	if alive, _ := (PIDDetector{PID: pid, StartUnix: start - 3600}).Alive(); alive {
		t.Fatalf("mismatched start time should be treated as recycled pid")
	}
}

func exitCommand() *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/c", "exit", "0")
	}
	return exec.Command("/bin/sh", "-c", "exit 0")
}
