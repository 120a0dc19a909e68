package process

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/loykin/pivbatch/internal/detector"
)

// Started is a running instance. The child is reaped in the background.
type Started struct {
	PID       int
	StartUnix int64

	done    chan struct{}
	mu      sync.Mutex
	exitErr error
}

// Start launches spec without waiting for it to finish.
func Start(spec Spec) (*Started, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	configureSysProcAttr(cmd, spec)

	outW, errW, err := spec.Log.ProcessWriters(spec.Name)
	if err != nil {
		return nil, err
	}
	// exec leaves nil stdio attached to the null device.
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}
	closeWriters := func() {
		for _, c := range []io.Closer{outW, errW} {
			if c != nil {
				_ = c.Close()
			}
		}
	}

	if err := cmd.Start(); err != nil {
		closeWriters()
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}
	st := &Started{
		PID:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	st.StartUnix = detector.ProcStartUnix(st.PID)
	go func() {
		err := cmd.Wait()
		closeWriters()
		st.mu.Lock()
		st.exitErr = err
		st.mu.Unlock()
		close(st.done)
	}()
	return st, nil
}

// Done is closed once the child has exited and been reaped.
func (s *Started) Done() <-chan struct{} { return s.done }

// Wait blocks until the child exits or ctx is done.
func (s *Started) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.ExitErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitErr returns the error from the child's Wait, nil while running or on a clean exit.
func (s *Started) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}
