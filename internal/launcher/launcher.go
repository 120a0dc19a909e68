// Package launcher starts one PIV instance per image folder and fills its batch form.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/pivbatch/internal/env"
	"github.com/loykin/pivbatch/internal/formfill"
	"github.com/loykin/pivbatch/internal/history"
	"github.com/loykin/pivbatch/internal/logger"
	"github.com/loykin/pivbatch/internal/metrics"
	"github.com/loykin/pivbatch/internal/process"
	"github.com/loykin/pivbatch/internal/registry"
)

// DefaultReadyDelay is how long the launcher waits for the PIV window before typing.
const DefaultReadyDelay = 3 * time.Second

var (
	// ErrRegistryWrite means the instance was started but could not be recorded.
	ErrRegistryWrite = errors.New("instance started but not registered")
	// ErrInjection means the form could not be filled. The instance keeps running and stays registered.
	ErrInjection = errors.New("form injection failed")
)

// Job is one folder to process.
type Job struct {
	Source      string
	Name        string
	FinalNum    int
	Destination string
	FirstNumber string
}

// Result describes a started instance.
type Result struct {
	Key   string
	PID   int
	Steps []formfill.Step
}

// StartFunc starts a process.
type StartFunc func(process.Spec) (*process.Started, error)

type Launcher struct {
	reg         *registry.Manager
	injector    formfill.Injector
	app         process.Spec
	env         *env.Env
	tempRoot    string
	layout      formfill.Layout
	frameOffset int
	waiter      formfill.Waiter
	sleep       func(context.Context, time.Duration) error
	sink        history.Sink
	logger      *slog.Logger
	start       StartFunc
	now         func() time.Time
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithApp sets the command template; Name and Env are filled per launch.
func WithApp(spec process.Spec) Option { return func(l *Launcher) { l.app = spec } }

// WithEnv sets the environment the instance inherits.
func WithEnv(e *env.Env) Option { return func(l *Launcher) { l.env = e } }

// WithTempRoot sets the directory instance scratch dirs are created under.
func WithTempRoot(dir string) Option { return func(l *Launcher) { l.tempRoot = dir } }

func WithLayout(layout formfill.Layout) Option { return func(l *Launcher) { l.layout = layout } }

func WithFrameOffset(n int) Option { return func(l *Launcher) { l.frameOffset = n } }

// WithWaiter sets the window readiness wait.
func WithWaiter(w formfill.Waiter) Option { return func(l *Launcher) { l.waiter = w } }

// WithSleep replaces the sleep used for scripted waits inside the form.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(l *Launcher) { l.sleep = f }
}

func WithHistory(s history.Sink) Option { return func(l *Launcher) { l.sink = s } }

func WithLogger(lg *slog.Logger) Option { return func(l *Launcher) { l.logger = lg } }

// WithStarter replaces process.Start.
func WithStarter(f StartFunc) Option { return func(l *Launcher) { l.start = f } }

func New(reg *registry.Manager, inj formfill.Injector, opts ...Option) *Launcher {
	l := &Launcher{
		reg:         reg,
		injector:    inj,
		app:         process.Spec{Args: process.ShortcutArgs(process.DefaultShortcut())},
		env:         env.New(),
		tempRoot:    process.DefaultTempRoot(),
		layout:      formfill.DefaultLayout(),
		frameOffset: formfill.DefaultFrameOffset,
		waiter:      formfill.FixedDelay(DefaultReadyDelay),
		logger:      logger.Discard(),
		start:       process.Start,
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Launch prunes finished instances, starts a new one with a private temp dir,
// registers it and types the job into its form.
func (l *Launcher) Launch(ctx context.Context, job Job) (Result, error) {
	log := l.logger.With("name", job.Name, "source", job.Source)

	params := formfill.Params{
		Source:      job.Source,
		Name:        job.Name,
		FirstNumber: job.FirstNumber,
		FinalNum:    job.FinalNum,
		Destination: job.Destination,
		FrameOffset: l.frameOffset,
	}
	steps, err := formfill.Compile(l.layout, params)
	if err != nil {
		return Result{}, err
	}

	if removed, err := l.reg.Prune(ctx); err != nil {
		log.Warn("prune registry", "error", err)
	} else {
		metrics.AddPruned(len(removed))
		for _, k := range removed {
			l.emit(ctx, history.EventPruned, history.Record{Key: k}, nil)
		}
	}

	key, err := l.reg.NewKey(ctx, l.tempRoot)
	if err != nil {
		return Result{}, fmt.Errorf("allocate instance key: %w", err)
	}
	if err := os.MkdirAll(key, 0o750); err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}

	spec := l.app
	spec.Name = filepath.Base(key)
	perProc := append(append([]string(nil), l.app.Env...), env.TempOverrides(key)...)
	spec.Env = l.env.Merge(perProc)
	started, err := l.start(spec)
	if err != nil {
		return Result{Key: key}, err
	}
	res := Result{Key: key, PID: started.PID, Steps: steps}
	log = log.With("key", key, "pid", started.PID)
	log.Info("instance started")

	rec := registry.Record{
		PID:         started.PID,
		Source:      job.Source,
		Name:        job.Name,
		FinalNum:    job.FinalNum,
		Destination: job.Destination,
		StartUnix:   started.StartUnix,
	}
	hrec := history.Record{Key: key, PID: started.PID, Name: job.Name, Source: job.Source, Destination: job.Destination, FinalNum: job.FinalNum}
	if err := l.reg.Register(ctx, key, rec); err != nil {
		l.emit(ctx, history.EventRegistryFailed, hrec, err)
		return res, fmt.Errorf("%w (pid %d): %w", ErrRegistryWrite, started.PID, err)
	}

	if err := l.waiter.Wait(ctx); err != nil {
		return res, fmt.Errorf("wait for window: %w", err)
	}

	filler := &formfill.Filler{Injector: l.injector, Logger: log, Sleep: l.sleep}
	began := l.now()
	err = filler.Run(ctx, steps)
	metrics.ObserveInjection(l.now().Sub(began).Seconds())
	if err != nil {
		l.emit(ctx, history.EventInjectFailed, hrec, err)
		return res, fmt.Errorf("%w: %w", ErrInjection, err)
	}
	l.emit(ctx, history.EventLaunch, hrec, nil)
	log.Info("form submitted", "steps", len(steps))
	return res, nil
}

// emit sends a history event; failures are logged only.
func (l *Launcher) emit(ctx context.Context, t history.EventType, rec history.Record, cause error) {
	if l.sink == nil {
		return
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	e := history.Event{Type: t, OccurredAt: l.now().UTC(), Record: rec}
	if err := l.sink.Send(ctx, e); err != nil {
		l.logger.Warn("history send failed", "event", string(t), "error", err)
	}
}
