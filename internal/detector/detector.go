// Package detector answers whether a recorded process is still running.
package detector

import "fmt"

// Detector is a strategy that determines if a process is running.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the process is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// Factory builds a Detector for a recorded pid and its start time (0 when unknown).
type Factory func(pid int, startUnix int64) Detector

// ForPID is the default Factory.
func ForPID(pid int, startUnix int64) Detector {
	return PIDDetector{PID: pid, StartUnix: startUnix}
}

// PIDDetector detects a process by PID. When StartUnix is set, a live process whose
// start time differs is treated as a recycled PID and reported as not alive.
type PIDDetector struct {
	PID       int
	StartUnix int64
}

func (d PIDDetector) Alive() (bool, error) {
	if d.PID <= 0 {
		return false, nil
	}
	alive, err := pidAlive(d.PID)
	if err != nil || !alive {
		return false, err
	}
	if d.StartUnix > 0 {
		// Allow one second of slack: start times are truncated differently per source.
		if cur := ProcStartUnix(d.PID); cur > 0 && abs(cur-d.StartUnix) > 1 {
			return false, nil
		}
	}
	return true, nil
}

func (d PIDDetector) Describe() string { return fmt.Sprintf("pid:%d", d.PID) }

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
