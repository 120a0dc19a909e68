package formfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StepError reports the step that failed.
type StepError struct {
	Index int
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Filler replays compiled steps.
type Filler struct {
	Injector Injector
	Logger   *slog.Logger
	// Sleep implements wait steps; nil uses the package Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run executes steps in order and stops at the first failure.
func (f *Filler) Run(ctx context.Context, steps []Step) error {
	sleep := f.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i, Step: s, Err: err}
		}
		var err error
		switch s.Kind {
		case StepTab:
			err = f.Injector.PressKey(ctx, KeyTab, s.N)
		case StepKey:
			err = f.Injector.PressKey(ctx, s.Key, 1)
		case StepType:
			err = f.Injector.TypeText(ctx, s.Text)
		case StepWait:
			err = sleep(ctx, s.Dur)
		default:
			err = fmt.Errorf("unknown step kind %q", s.Kind)
		}
		if err != nil {
			return &StepError{Index: i, Step: s, Err: err}
		}
		if f.Logger != nil {
			f.Logger.Debug("form step", "index", i, "step", s.String())
		}
	}
	return nil
}
