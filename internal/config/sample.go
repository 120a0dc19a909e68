package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/loykin/pivbatch/internal/formfill"
	"github.com/loykin/pivbatch/internal/logger"
	"github.com/loykin/pivbatch/internal/process"
	"github.com/loykin/pivbatch/internal/registry"
	"github.com/loykin/pivbatch/internal/scanner"
)

// The sample* types mirror Config with durations spelled as strings, which is
// how viper reads them back.

type sampleField struct {
	Name  string `toml:"name"`
	Tabs  int    `toml:"tabs"`
	Value string `toml:"value"`
}

type sampleAction struct {
	Name      string `toml:"name"`
	Tabs      int    `toml:"tabs"`
	Key       string `toml:"key"`
	WaitAfter string `toml:"wait_after,omitempty"`
}

type sampleDoc struct {
	TempRoot string `toml:"temp_root" comment:"Instance scratch directories (TEMP/TMP) are created here"`
	ImageExt string `toml:"image_ext" comment:"Image file extension scanned for <prefix><6 digits>.<ext>"`

	Registry struct {
		Path string `toml:"path" comment:"JSON file, *.db or sqlite:// for SQLite, or \"memory\""`
	} `toml:"registry"`

	App struct {
		Shortcut   string   `toml:"shortcut" comment:"Opened through the shell unless command or args is set"`
		Command    string   `toml:"command"`
		Args       []string `toml:"args"`
		Env        []string `toml:"env" comment:"Extra KEY=VALUE pairs for every instance"`
		EnvFiles   []string `toml:"env_files"`
		UseOSEnv   bool     `toml:"use_os_env"`
		LogDir     string   `toml:"log_dir" comment:"Capture instance stdout/stderr here when set"`
		ReadyDelay string   `toml:"ready_delay" comment:"Wait for the PIV window before typing"`
		Detached   bool     `toml:"detached"`
	} `toml:"app"`

	Form struct {
		Backend     string         `toml:"backend" comment:"auto, xdotool, sendinput or dryrun"`
		TypeDelay   string         `toml:"type_delay"`
		FrameOffset int            `toml:"frame_offset" comment:"Added to the final frame number for the frame count field"`
		Fields      []sampleField  `toml:"fields"`
		Actions     []sampleAction `toml:"actions"`
	} `toml:"form"`

	History struct {
		DSN string `toml:"dsn" comment:"sqlite://, postgres://, clickhouse:// or opensearch:// (empty disables)"`
	} `toml:"history"`

	Metrics struct {
		Textfile string `toml:"textfile" comment:"Write Prometheus metrics here after each run"`
	} `toml:"metrics"`

	Server struct {
		Listen string `toml:"listen"`
	} `toml:"server"`

	Log logger.Config `toml:"log"`
}

func defaultSample() sampleDoc {
	var d sampleDoc
	d.TempRoot = process.DefaultTempRoot()
	d.ImageExt = scanner.DefaultExt
	d.Registry.Path = registry.DefaultPath
	d.App.Shortcut = process.DefaultShortcut()
	d.App.Args = []string{}
	d.App.Env = []string{}
	d.App.EnvFiles = []string{}
	d.App.UseOSEnv = true
	d.App.ReadyDelay = "3s"
	d.Form.Backend = formfill.BackendAuto
	d.Form.TypeDelay = "0s"
	d.Form.FrameOffset = formfill.DefaultFrameOffset
	layout := formfill.DefaultLayout()
	for _, f := range layout.Fields {
		d.Form.Fields = append(d.Form.Fields, sampleField{Name: f.Name, Tabs: f.Tabs, Value: f.Value})
	}
	for _, a := range layout.Actions {
		sa := sampleAction{Name: a.Name, Tabs: a.Tabs, Key: a.Key}
		if a.WaitAfter > 0 {
			sa.WaitAfter = a.WaitAfter.String()
		}
		d.Form.Actions = append(d.Form.Actions, sa)
	}
	d.Server.Listen = "127.0.0.1:8765"
	d.Log = logger.Config{Level: "info", Format: "text", File: logger.FileConfig{
		MaxSizeMB:  logger.DefaultMaxSizeMB,
		MaxBackups: logger.DefaultMaxBackups,
		MaxAgeDays: logger.DefaultMaxAgeDays,
	}}
	return d
}

// Sample returns the default configuration as TOML.
func Sample() ([]byte, error) {
	return toml.Marshal(defaultSample())
}

// CreateSample writes the default configuration to path. An existing file is only
// replaced when force is set.
func CreateSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	b, err := Sample()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
