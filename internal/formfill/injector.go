package formfill

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Injector sends synthetic input to the focused window.
type Injector interface {
	PressKey(ctx context.Context, key string, n int) error
	TypeText(ctx context.Context, s string) error
}

// Backend names accepted by NewInjector.
const (
	BackendAuto      = "auto"
	BackendXdotool   = "xdotool"
	BackendSendInput = "sendinput"
	BackendDryRun    = "dryrun"
)

// Options tune an Injector.
type Options struct {
	TypeDelay time.Duration // pause between typed characters
	Logger    *slog.Logger
}

// NewInjector returns the backend called name. "auto" and "" pick sendinput on
// Windows and xdotool elsewhere.
func NewInjector(name string, o Options) (Injector, error) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendAuto:
		if runtime.GOOS == "windows" {
			return newSendInput(o)
		}
		return NewXdotool(o), nil
	case BackendXdotool:
		return NewXdotool(o), nil
	case BackendSendInput:
		return newSendInput(o)
	case BackendDryRun:
		return &DryRun{Logger: o.Logger}, nil
	}
	return nil, fmt.Errorf("formfill: unknown injector backend %q", name)
}

// DryRun logs every injection and sends nothing.
type DryRun struct {
	Logger *slog.Logger
}

func (d *DryRun) PressKey(_ context.Context, key string, n int) error {
	d.Logger.Info("dry-run key", "key", key, "count", n)
	return nil
}

func (d *DryRun) TypeText(_ context.Context, s string) error {
	d.Logger.Info("dry-run type", "text", s)
	return nil
}

// Input is one call observed by a Recorder.
type Input struct {
	Key  string
	N    int
	Text string
}

// Recorder keeps every call in memory. Fail, when set, is returned from call number
// FailAt (0-based).
type Recorder struct {
	mu     sync.Mutex
	Inputs []Input
	FailAt int
	Fail   error
}

func (r *Recorder) record(in Input) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil && len(r.Inputs) == r.FailAt {
		return r.Fail
	}
	r.Inputs = append(r.Inputs, in)
	return nil
}

func (r *Recorder) PressKey(_ context.Context, key string, n int) error {
	return r.record(Input{Key: key, N: n})
}

func (r *Recorder) TypeText(_ context.Context, s string) error {
	return r.record(Input{Text: s})
}

// Typed returns the text of every TypeText call in order.
func (r *Recorder) Typed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, in := range r.Inputs {
		if in.Key == "" {
			out = append(out, in.Text)
		}
	}
	return out
}
