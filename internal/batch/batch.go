// Package batch walks an input root and launches one PIV instance per image folder.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/loykin/pivbatch/internal/launcher"
	"github.com/loykin/pivbatch/internal/logger"
	"github.com/loykin/pivbatch/internal/metrics"
	"github.com/loykin/pivbatch/internal/scanner"
)

// ErrNoCandidates means the input root has no folder with image files.
var ErrNoCandidates = errors.New("no image folders found")

// Outcome classifies what happened to one folder.
type Outcome string

const (
	OutcomeLaunched        Outcome = "launched"
	OutcomeSkippedNoMatch  Outcome = "skipped_no_match"
	OutcomeSkippedNoFrames Outcome = "skipped_no_frames"
	OutcomeLaunchFailed    Outcome = "launch_failed"
	OutcomeInjectFailed    Outcome = "inject_failed"
)

// Input names the roots of one batch.
type Input struct {
	InputRoot   string
	OutputRoot  string
	FirstNumber string
}

// Item is the result for one folder.
type Item struct {
	Folder      string
	Destination string
	Name        string
	FinalNum    int
	Outcome     Outcome
	Key         string
	PID         int
	Err         error
}

// Summary lists every folder in processing order.
type Summary struct {
	Items []Item
}

// Count returns how many items ended with o.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, it := range s.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether any folder failed to launch or fill.
func (s Summary) Failed() bool {
	return s.Count(OutcomeLaunchFailed)+s.Count(OutcomeInjectFailed) > 0
}

// Table renders the summary for a terminal.
func (s Summary) Table() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Folder", "Name", "Final", "Outcome", "PID", "Detail"})
	for _, it := range s.Items {
		final, pid, detail := "", "", ""
		if it.FinalNum > 0 || it.Key != "" {
			final = strconv.Itoa(it.FinalNum)
		}
		if it.PID > 0 {
			pid = strconv.Itoa(it.PID)
		}
		if it.Err != nil {
			detail = it.Err.Error()
		}
		tw.AppendRow(table.Row{filepath.Base(it.Folder), it.Name, final, string(it.Outcome), pid, detail})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, WidthMax: 60},
	})
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d launched", s.Count(OutcomeLaunched)), "", ""})
	return tw.Render()
}

// Launcher starts one instance.
type Launcher interface {
	Launch(ctx context.Context, job launcher.Job) (launcher.Result, error)
}

// Runner processes folders strictly one after another.
type Runner struct {
	Launcher Launcher
	Ext      string
	Logger   *slog.Logger
}

// Run scans in.InputRoot and launches every folder that yields a sequence. Folders are
// handled in sorted order; a failure on one does not stop the rest.
func (r *Runner) Run(ctx context.Context, in Input) (Summary, error) {
	log := r.Logger
	if log == nil {
		log = logger.Discard()
	}
	inRoot, err := filepath.Abs(in.InputRoot)
	if err != nil {
		return Summary{}, err
	}
	outRoot, err := filepath.Abs(in.OutputRoot)
	if err != nil {
		return Summary{}, err
	}

	rep, err := scanner.Scan(inRoot, r.Ext)
	if err != nil {
		return Summary{}, err
	}
	folders := rep.Entries()
	if len(folders) == 0 {
		return Summary{}, fmt.Errorf("%w under %s", ErrNoCandidates, inRoot)
	}
	log.Info("folders found", "count", len(folders), "skipped", len(rep.Skipped), "input", inRoot)

	var sum Summary
	for _, e := range folders {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		it := r.one(ctx, log, e, outRoot, in.FirstNumber)
		metrics.IncLaunch(string(it.Outcome))
		sum.Items = append(sum.Items, it)
		if errors.Is(it.Err, context.Canceled) || errors.Is(it.Err, context.DeadlineExceeded) {
			return sum, ctx.Err()
		}
	}
	return sum, nil
}

func (r *Runner) one(ctx context.Context, log *slog.Logger, e scanner.Entry, outRoot, first string) Item {
	folder := e.Path
	it := Item{Folder: folder, Destination: filepath.Join(outRoot, filepath.Base(folder))}
	log = log.With("folder", folder)

	// created even when the folder is skipped below
	if err := os.MkdirAll(it.Destination, 0o750); err != nil {
		it.Outcome, it.Err = OutcomeLaunchFailed, fmt.Errorf("create output folder: %w", err)
		log.Error("create output folder", "error", err)
		return it
	}

	seq := e.Sequence
	it.Name, it.FinalNum = seq.Prefix, seq.Final
	switch {
	case e.Err == nil:
	case errors.Is(e.Err, scanner.ErrNoMatch):
		it.Outcome, it.Err = OutcomeSkippedNoMatch, e.Err
		log.Warn("skipping folder", "reason", e.Err)
		return it
	case errors.Is(e.Err, scanner.ErrNoFrames):
		it.Outcome, it.Err = OutcomeSkippedNoFrames, e.Err
		log.Warn("skipping folder", "reason", e.Err)
		return it
	default:
		it.Outcome, it.Err = OutcomeLaunchFailed, e.Err
		log.Error("scan folder", "error", e.Err)
		return it
	}

	res, err := r.Launcher.Launch(ctx, launcher.Job{
		Source:      folder,
		Name:        seq.Prefix,
		FinalNum:    seq.Final,
		Destination: it.Destination,
		FirstNumber: first,
	})
	it.Key, it.PID = res.Key, res.PID
	switch {
	case err == nil:
		it.Outcome = OutcomeLaunched
	case errors.Is(err, launcher.ErrInjection):
		it.Outcome, it.Err = OutcomeInjectFailed, err
		log.Error("fill form", "pid", res.PID, "error", err)
	default:
		it.Outcome, it.Err = OutcomeLaunchFailed, err
		log.Error("launch", "error", err)
	}
	return it
}
