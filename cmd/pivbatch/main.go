package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	root := buildRoot(command{
		flags:  &GlobalFlags{},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		isTTY:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	})
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

// RunFlags holds flags for the run command
type RunFlags struct {
	Input  string
	Output string
	First  string
	DryRun bool
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	Listen   string
	BasePath string
}

// InstancesFlags holds flags for the instances command
type InstancesFlags struct {
	JSON bool
}

// ConfigInitFlags holds flags for config init
type ConfigInitFlags struct {
	Path  string
	Force bool
}

// command carries the process streams so tests can drive the CLI in-process.
type command struct {
	flags  *GlobalFlags
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	isTTY  func() bool
}

func buildRoot(c command) *cobra.Command {
	root := createRootCommand(c.flags)
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.AddCommand(
		createRunCommand(c, &RunFlags{}),
		createInstancesCommand(c, &InstancesFlags{}),
		createPruneCommand(c),
		createServeCommand(c, &ServeFlags{}),
		createConfigCommand(c, &ConfigInitFlags{}),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "pivbatch",
		Short: "Batch launcher for the PIV image analysis application",
		Long: `pivbatch scans an input root for image sequence folders and starts one PIV
instance per folder, filling its batch form with the folder's parameters.

Examples:
  pivbatch run --input D:\frames --output D:\results --first 1
  pivbatch instances
  pivbatch prune
  pivbatch serve --listen 127.0.0.1:8765
  pivbatch config init`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (default ./pivbatch.toml when present)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	return root
}

func createRunCommand(c command, flags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch PIV for every image folder under the input root",
		Long: `Scan the immediate subfolders of --input, create <output>/<folder> for each,
and start one PIV instance per folder whose images follow <prefix><6 digits>.<ext>.
Missing --input, --output or --first values are asked for interactively.

Examples:
  pivbatch run --input ./frames --output ./results --first 1
  pivbatch run --dry-run --input ./frames --output ./results --first 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Input, "input", "", "input root containing one folder per image sequence")
	cmd.Flags().StringVar(&flags.Output, "output", "", "output root; one subfolder is created per input folder")
	cmd.Flags().StringVar(&flags.First, "first", "", "first frame number typed into every form")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "log keystrokes instead of starting PIV; uses an in-memory registry")
	return cmd
}

func createInstancesCommand(c command, flags *InstancesFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List registered PIV instances and whether they are still running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Instances(cmd.Context(), *flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print JSON instead of a table")
	return cmd
}

func createPruneCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove registry entries whose process has exited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Prune(cmd.Context())
		},
	}
}

func createServeCommand(c command, flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry and metrics over HTTP",
		Long: `Serve a small HTTP API:
  GET    /instances        registry entries with liveness
  DELETE /instances?key=   drop one entry
  POST   /prune            remove finished instances
  GET    /metrics          Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Serve(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "listen address (default server.listen)")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "", "URL prefix for all routes, e.g. /api")
	return cmd
}

func createConfigCommand(c command, flags *ConfigInitFlags) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.ConfigInit(*flags)
		},
	}
	initCmd.Flags().StringVar(&flags.Path, "path", "pivbatch.toml", "where to write the file")
	initCmd.Flags().BoolVar(&flags.Force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}
