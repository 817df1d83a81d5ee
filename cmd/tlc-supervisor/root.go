package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/config"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logFormat  string
	logLevel   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tlc-supervisor",
		Short: "Run and supervise the TLC model checker",
		Long: `tlc-supervisor launches TLC in a JVM, streams its output to the
terminal, logs, an optional file and Prometheus, and terminates the JVM's
process group when the run is cancelled (Ctrl+C, or q in the dashboard).`,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	pf.StringVar(&opts.logFormat, "log-format", "text", `Log format: "text" or "json"`)
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging and every TLC line in the log")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newPrintCmdCmd(opts))
	root.AddCommand(newPreflightCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// loadConfig builds the effective configuration and validates it.
func loadConfig(cmd *cobra.Command, opts *rootOptions, flags *config.Flags) (*config.Config, error) {
	cfg, err := mergeConfig(cmd, opts, flags)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration error:\n%w", err)
	}
	return cfg, nil
}

// mergeConfig layers defaults, the config file and command-line flags.
func mergeConfig(cmd *cobra.Command, opts *rootOptions, flags *config.Flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := flags.Apply(cfg); err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if fs.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	return cfg, nil
}
