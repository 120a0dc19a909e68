// Package config loads pivbatch settings from TOML, PIVBATCH_* environment variables
// and built-in defaults, in increasing order of precedence: defaults, file, env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/pivbatch/internal/env"
	"github.com/loykin/pivbatch/internal/formfill"
	"github.com/loykin/pivbatch/internal/logger"
	"github.com/loykin/pivbatch/internal/process"
	"github.com/loykin/pivbatch/internal/registry"
	"github.com/loykin/pivbatch/internal/scanner"
)

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "pivbatch.toml"

// EnvPrefix prefixes environment overrides, e.g. PIVBATCH_REGISTRY_PATH.
const EnvPrefix = "PIVBATCH"

type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	TempRoot string         `mapstructure:"temp_root"`
	ImageExt string         `mapstructure:"image_ext"`
	App      AppConfig      `mapstructure:"app"`
	Form     FormConfig     `mapstructure:"form"`
	History  HistoryConfig  `mapstructure:"history"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      logger.Config  `mapstructure:"log"`

	// Source is the file the config was read from, empty when none was.
	Source string `mapstructure:"-"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"` // JSON file, *.db / sqlite:// for SQLite, or "memory"
}

type AppConfig struct {
	Command    string        `mapstructure:"command"`  // command line; overrides shortcut
	Args       []string      `mapstructure:"args"`     // explicit argv; overrides command
	Shortcut   string        `mapstructure:"shortcut"` // opened through the shell when neither is set
	WorkDir    string        `mapstructure:"workdir"`
	Env        []string      `mapstructure:"env"`
	EnvFiles   []string      `mapstructure:"env_files"`
	UseOSEnv   bool          `mapstructure:"use_os_env"`
	LogDir     string        `mapstructure:"log_dir"`
	ReadyDelay time.Duration `mapstructure:"ready_delay"`
	Detached   bool          `mapstructure:"detached"`
}

type FormConfig struct {
	Backend     string            `mapstructure:"backend"`
	TypeDelay   time.Duration     `mapstructure:"type_delay"`
	FrameOffset int               `mapstructure:"frame_offset"`
	Fields      []formfill.Field  `mapstructure:"fields"`
	Actions     []formfill.Action `mapstructure:"actions"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.path", registry.DefaultPath)
	v.SetDefault("temp_root", process.DefaultTempRoot())
	v.SetDefault("image_ext", scanner.DefaultExt)
	v.SetDefault("app.command", "")
	v.SetDefault("app.args", []string{})
	v.SetDefault("app.shortcut", process.DefaultShortcut())
	v.SetDefault("app.workdir", "")
	v.SetDefault("app.env", []string{})
	v.SetDefault("app.env_files", []string{})
	v.SetDefault("app.use_os_env", true)
	v.SetDefault("app.log_dir", "")
	v.SetDefault("app.ready_delay", "3s")
	v.SetDefault("app.detached", false)
	v.SetDefault("form.backend", formfill.BackendAuto)
	v.SetDefault("form.type_delay", "0s")
	v.SetDefault("form.frame_offset", formfill.DefaultFrameOffset)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("server.listen", "127.0.0.1:8765")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.path", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
}

// Load reads path, or DefaultFile when path is empty and the file exists.
// A missing explicit path is an error; a missing DefaultFile is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("toml")

	source := path
	if source == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			source = DefaultFile
		}
	}
	if source != "" {
		v.SetConfigFile(source)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", source, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Source = source
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks settings that would otherwise fail mid-batch.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ImageExt) == "" {
		return errors.New("image_ext must not be empty")
	}
	if strings.TrimSpace(c.TempRoot) == "" {
		return errors.New("temp_root must not be empty")
	}
	if c.App.ReadyDelay < 0 {
		return errors.New("app.ready_delay must not be negative")
	}
	if c.Form.TypeDelay < 0 {
		return errors.New("form.type_delay must not be negative")
	}
	switch strings.ToLower(c.Form.Backend) {
	case "", formfill.BackendAuto, formfill.BackendXdotool, formfill.BackendSendInput, formfill.BackendDryRun:
	default:
		return fmt.Errorf("unknown form.backend %q", c.Form.Backend)
	}
	if err := c.Layout().Validate(); err != nil {
		return err
	}
	return nil
}

// Layout returns the configured form layout, or the built-in one when none is set.
func (c *Config) Layout() formfill.Layout {
	if len(c.Form.Fields) == 0 && len(c.Form.Actions) == 0 {
		return formfill.DefaultLayout()
	}
	return formfill.Layout{Fields: c.Form.Fields, Actions: c.Form.Actions}
}

// AppSpec returns the process template for PIV instances.
func (c *Config) AppSpec() process.Spec {
	s := process.Spec{
		Name:     "piv",
		WorkDir:  c.App.WorkDir,
		Env:      c.App.Env,
		Detached: c.App.Detached,
		Log: logger.Config{File: logger.FileConfig{
			Dir:        c.App.LogDir,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxBackups: c.Log.File.MaxBackups,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			Compress:   c.Log.File.Compress,
		}},
	}
	switch {
	case len(c.App.Args) > 0:
		s.Args = c.App.Args
	case strings.TrimSpace(c.App.Command) != "":
		s.Command = c.App.Command
	default:
		s.Args = process.ShortcutArgs(c.App.Shortcut)
	}
	return s
}

// Environment builds the base environment for instances: the OS environment when
// app.use_os_env is set, then app.env_files in order. app.env is applied per launch
// on top of this.
func (c *Config) Environment() (*env.Env, error) {
	e := env.New()
	if c.App.UseOSEnv {
		e.FromOS()
	} else {
		e.FromList(nil)
	}
	for _, p := range c.App.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		for k, v := range pairs {
			e.WithSet(k, v)
		}
	}
	return e, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
