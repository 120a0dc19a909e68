package formfill

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var xdotoolKeys = map[string]string{
	KeyTab:   "Tab",
	KeyEnter: "Return",
}

// Xdotool injects through the xdotool binary on X11 desktops.
type Xdotool struct {
	Bin  string
	opts Options
	// run executes one xdotool invocation; tests replace it.
	run func(ctx context.Context, bin string, args ...string) error
}

func NewXdotool(o Options) *Xdotool {
	return &Xdotool{Bin: "xdotool", opts: o, run: runCommand}
}

func (x *Xdotool) delayMS() string {
	return strconv.FormatInt(x.opts.TypeDelay.Milliseconds(), 10)
}

func (x *Xdotool) PressKey(ctx context.Context, key string, n int) error {
	name, ok := xdotoolKeys[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("xdotool: unsupported key %q", key)
	}
	if n <= 0 {
		return nil
	}
	return x.run(ctx, x.Bin, "key", "--repeat", strconv.Itoa(n), "--delay", x.delayMS(), name)
}

func (x *Xdotool) TypeText(ctx context.Context, s string) error {
	if s == "" {
		return nil
	}
	return x.run(ctx, x.Bin, "type", "--delay", x.delayMS(), "--", s)
}

func runCommand(ctx context.Context, bin string, args ...string) error {
	// #nosec G204
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", bin, args[0], err, msg)
		}
		return fmt.Errorf("%s %s: %w", bin, args[0], err)
	}
	return nil
}
