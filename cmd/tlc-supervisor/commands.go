package main

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/config"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/launch"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/preflight"
)

// newPrintCmdCmd prints the TLC command line without running it.
func newPrintCmdCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print-cmd",
		Short: "Print the TLC command line that run would execute",
		Args:  cobra.NoArgs,
	}
	flags := config.BindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, opts, flags)
		if err != nil {
			return err
		}
		req, err := launch.Build(cfg)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "# TLC command for %s (%s), run in %s\n", req.Name(), req.Mode(), req.WorkDir())
		fmt.Fprintln(w, req.CommandString())
		return nil
	}
	return cmd
}

func newPreflightCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check the JVM, tools classpath, model files and system limits",
		Args:  cobra.NoArgs,
	}
	flags := config.BindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := mergeConfig(cmd, opts, flags)
		if err != nil {
			return err
		}
		result := preflight.RunAll(cmd.Context(), cfg)
		preflight.PrintResults(cmd.OutOrStdout(), result)
		if !result.Passed {
			return &exitError{code: exitPreflight, err: errors.New("preflight checks failed")}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All checks passed.")
		return nil
	}
	return cmd
}

// newConfigCmd prints the effective configuration as YAML, suitable as a
// starting point for --config.
func newConfigCmd(opts *rootOptions) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
	}
	flags := config.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&validate, "validate", false, "Fail if the configuration is not runnable")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		load := mergeConfig
		if validate {
			load = loadConfig
		}
		cfg, err := load(cmd, opts, flags)
		if err != nil {
			return err
		}
		out, err := config.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			goVersion := runtime.Version()
			if info, ok := debug.ReadBuildInfo(); ok && info.GoVersion != "" {
				goVersion = info.GoVersion
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tlc-supervisor %s (%s, %s/%s)\n", version, goVersion, runtime.GOOS, runtime.GOARCH)
		},
	}
}
