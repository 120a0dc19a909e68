package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/pivbatch/internal/batch"
	"github.com/loykin/pivbatch/internal/config"
	"github.com/loykin/pivbatch/internal/metrics"
	"github.com/loykin/pivbatch/internal/server"
)

// errNotInteractive is returned when a required value is missing and stdin is not a terminal.
var errNotInteractive = errors.New("stdin is not a terminal; pass --input, --output and --first")

// Run scans the input root and launches one instance per folder.
func (c command) Run(ctx context.Context, f RunFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.promptMissing(&f); err != nil {
		return err
	}

	s, err := c.open(ctx, f.DryRun)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	l, err := s.newLauncher(f.DryRun)
	if err != nil {
		return err
	}
	r := &batch.Runner{Launcher: l, Ext: s.cfg.ImageExt, Logger: s.log}
	sum, runErr := r.Run(ctx, batch.Input{InputRoot: f.Input, OutputRoot: f.Output, FirstNumber: f.First})
	if errors.Is(runErr, batch.ErrNoCandidates) {
		_, _ = fmt.Fprintln(c.stdout, runErr)
		return nil
	}
	if len(sum.Items) > 0 {
		_, _ = fmt.Fprintln(c.stdout, sum.Table())
	}
	if p := s.cfg.Metrics.Textfile; p != "" {
		if err := metrics.WriteTextfile(p, prometheus.DefaultGatherer); err != nil {
			s.log.Warn("write metrics textfile", "path", p, "err", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if sum.Failed() {
		return fmt.Errorf("%d of %d folders failed", sum.Count(batch.OutcomeLaunchFailed)+sum.Count(batch.OutcomeInjectFailed), len(sum.Items))
	}
	return nil
}

// promptMissing asks for every value not given on the command line.
func (c command) promptMissing(f *RunFlags) error {
	if f.Input != "" && f.Output != "" && f.First != "" {
		return nil
	}
	if c.isTTY == nil || !c.isTTY() {
		return errNotInteractive
	}
	reader := bufio.NewReader(c.stdin)
	ask := func(label string, dst *string) error {
		if *dst != "" {
			return nil
		}
		_, _ = fmt.Fprintf(c.stdout, "%s: ", label)
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
			}
			return fmt.Errorf("%s is required", strings.ToLower(label))
		}
		*dst = input
		return nil
	}
	if err := ask("Input folder", &f.Input); err != nil {
		return err
	}
	if err := ask("Output folder", &f.Output); err != nil {
		return err
	}
	return ask("First number", &f.First)
}

// Instances prints the registry.
func (c command) Instances(ctx context.Context, f InstancesFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	entries, err := s.reg.List(ctx)
	if err != nil {
		return err
	}
	if f.JSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(c.stdout, "no registered instances")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		state := "dead"
		if e.Alive {
			state = "alive"
		}
		rows = append(rows, []string{
			filepath.Base(e.Key),
			strconv.Itoa(e.Record.PID),
			state,
			e.Record.Name,
			strconv.Itoa(e.Record.FinalNum),
			e.Record.Destination,
		})
	}
	_, _ = fmt.Fprintln(c.stdout, renderTable(
		[]string{"Key", "PID", "State", "Name", "Final", "Destination"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

// Prune drops registry entries whose process has exited.
func (c command) Prune(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	removed, err := s.reg.Prune(ctx)
	if err != nil {
		return err
	}
	metrics.AddPruned(len(removed))
	for _, k := range removed {
		_, _ = fmt.Fprintln(c.stdout, "removed", k)
	}
	_, _ = fmt.Fprintf(c.stdout, "%d removed\n", len(removed))
	return nil
}

// Serve runs the HTTP API until interrupted.
func (c command) Serve(ctx context.Context, f ServeFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := c.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	addr := f.Listen
	if addr == "" {
		addr = s.cfg.Server.Listen
	}
	srv, err := server.NewServer(addr, f.BasePath, s.reg, nil)
	if err != nil {
		return err
	}
	s.log.Info("serving", "addr", srv.Addr, "base_path", f.BasePath)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ConfigInit writes the default configuration file.
func (c command) ConfigInit(f ConfigInitFlags) error {
	path := f.Path
	if path == "" {
		path = config.DefaultFile
	}
	if err := config.CreateSample(path, f.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.stdout, "wrote", path)
	return nil
}
