package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/pivbatch/internal/config"
	"github.com/loykin/pivbatch/internal/formfill"
	"github.com/loykin/pivbatch/internal/history"
	"github.com/loykin/pivbatch/internal/history/factory"
	"github.com/loykin/pivbatch/internal/launcher"
	"github.com/loykin/pivbatch/internal/logger"
	"github.com/loykin/pivbatch/internal/metrics"
	"github.com/loykin/pivbatch/internal/process"
	"github.com/loykin/pivbatch/internal/registry"
)

// session holds what every command needs: settings, a logger and the registry.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	reg     *registry.Manager
	sink    history.Sink
	closers []io.Closer
}

func (c command) open(ctx context.Context, dryRun bool) (*session, error) {
	cfg, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.flags.LogLevel != "" {
		cfg.Log.Level = c.flags.LogLevel
	}
	log, logCloser, err := logger.New(cfg.Log, c.stderr)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, closers: []io.Closer{logCloser}}
	if cfg.Source != "" {
		log.Debug("config loaded", "file", cfg.Source)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "err", err)
	}

	regPath := cfg.Registry.Path
	if dryRun {
		regPath = "memory"
	}
	store, err := registry.OpenStore(ctx, regPath)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open registry %s: %w", regPath, err)
	}
	s.closers = append(s.closers, store)
	s.reg = registry.NewManager(store,
		registry.WithLogger(log),
		registry.WithSizeObserver(metrics.SetRegistryInstances),
	)

	if cfg.History.DSN != "" && !dryRun {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			// history is advisory; a broken sink never blocks launches
			log.Warn("history disabled", "err", err)
		} else {
			s.sink = sink
			if cl, ok := sink.(io.Closer); ok {
				s.closers = append(s.closers, cl)
			}
		}
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newLauncher builds the launcher described by the configuration. In dry-run mode
// nothing is started and keystrokes are only logged.
func (s *session) newLauncher(dryRun bool) (*launcher.Launcher, error) {
	app := s.cfg.AppSpec()
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("%w: set app.args, app.command or app.shortcut", err)
	}
	backend := s.cfg.Form.Backend
	if dryRun {
		backend = formfill.BackendDryRun
	}
	inj, err := formfill.NewInjector(backend, formfill.Options{TypeDelay: s.cfg.Form.TypeDelay, Logger: s.log})
	if err != nil {
		return nil, err
	}
	base, err := s.cfg.Environment()
	if err != nil {
		return nil, err
	}
	opts := []launcher.Option{
		launcher.WithApp(app),
		launcher.WithEnv(base),
		launcher.WithTempRoot(s.cfg.TempRoot),
		launcher.WithLayout(s.cfg.Layout()),
		launcher.WithFrameOffset(s.cfg.Form.FrameOffset),
		launcher.WithWaiter(formfill.FixedDelay(s.cfg.App.ReadyDelay)),
		launcher.WithLogger(s.log),
	}
	if s.sink != nil {
		opts = append(opts, launcher.WithHistory(s.sink))
	}
	if dryRun {
		opts = append(opts,
			launcher.WithStarter(dryStart(s.log)),
			launcher.WithWaiter(formfill.FixedDelay(0)),
			launcher.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		)
	}
	return launcher.New(s.reg, inj, opts...), nil
}

// dryStart pretends to start spec and reports the current process as the instance.
func dryStart(log *slog.Logger) launcher.StartFunc {
	return func(spec process.Spec) (*process.Started, error) {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		log.Info("dry run: not starting", "name", spec.Name, "args", spec.Args, "command", spec.Command)
		return &process.Started{PID: os.Getpid()}, nil
	}
}
