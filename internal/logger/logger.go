package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// FileConfig describes rotated log files.
// For spawned applications, Dir yields Dir/<name>.stdout.log and Dir/<name>.stderr.log
// unless StdoutPath/StderrPath are set explicitly.
type FileConfig struct {
	Dir        string `mapstructure:"dir" toml:"dir"`
	StdoutPath string `mapstructure:"stdout" toml:"stdout"`
	StderrPath string `mapstructure:"stderr" toml:"stderr"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" toml:"compress"`
}

// Config is the logging configuration for pivbatch itself.
type Config struct {
	Level  string     `mapstructure:"level" toml:"level"`   // debug, info, warn, error
	Format string     `mapstructure:"format" toml:"format"` // text, json
	Path   string     `mapstructure:"path" toml:"path"`     // optional rotated log file in addition to stderr
	File   FileConfig `mapstructure:"file" toml:"file"`     // rotation settings, also used for spawned app output
}

// ProcessWriters returns rotated writers for the stdout and stderr of a spawned process.
// Either writer is nil when neither Dir nor an explicit path is configured for it.
func (c Config) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	stdout := c.File.StdoutPath
	stderr := c.File.StderrPath
	if stdout == "" && c.File.Dir != "" {
		stdout = filepath.Join(c.File.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && c.File.Dir != "" {
		stderr = filepath.Join(c.File.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	var outW, errW io.WriteCloser
	if stdout != "" {
		outW = c.File.rotated(stdout)
	}
	if stderr != "" {
		errW = c.File.rotated(stderr)
	}
	return outW, errW, nil
}

func (f FileConfig) rotated(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

// New builds the application logger. Records go to stderr (colored when stderr is a
// terminal and the format is text) and, when Path is set, to a rotated file as well.
// The returned closer releases the file and is never nil.
func New(c Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nopCloser{}, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	switch strings.ToLower(c.Format) {
	case "json":
		console = slog.NewJSONHandler(stderr, opts)
	case "", "text":
		if isTerminal(stderr) {
			console = NewColorTextHandler(stderr, opts, true)
		} else {
			console = slog.NewTextHandler(stderr, opts)
		}
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown log format %q", c.Format)
	}

	if c.Path == "" {
		return slog.New(console), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o750); err != nil {
		return nil, nopCloser{}, fmt.Errorf("create log dir: %w", err)
	}
	fileW := c.File.rotated(c.Path)
	file := slog.NewJSONHandler(fileW, opts)
	return slog.New(fanout{console, file}), fileW, nil
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Discard returns a logger that drops everything; used by tests and library defaults.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
