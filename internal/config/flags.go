package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// Flags binds command-line flags to a Config. Flags only override the values
// the user actually set, so a config file can supply the rest.
type Flags struct {
	fs     *pflag.FlagSet
	values *Config
	env    []string
	copies map[string]func(dst, src *Config)
}

// BindFlags registers the run flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{
		fs:     fs,
		values: DefaultConfig(),
		copies: make(map[string]func(dst, src *Config)),
	}
	v := f.values

	// Model
	fs.StringVar(&v.SpecName, "spec", v.SpecName, "Specification name")
	f.track("spec", func(d, s *Config) { d.SpecName = s.SpecName })
	fs.StringVar(&v.ModelName, "model", v.ModelName, "Model name")
	f.track("model", func(d, s *Config) { d.ModelName = s.ModelName })
	fs.StringVar(&v.Mode, "mode", v.Mode, `Run mode: "model-check" or "trace-explore"`)
	f.track("mode", func(d, s *Config) { d.Mode = s.Mode })
	fs.StringVar(&v.RootModule, "root-module", v.RootModule, "Path to the root module (MC.tla or TE.tla)")
	f.track("root-module", func(d, s *Config) { d.RootModule = s.RootModule })
	fs.StringVar(&v.ModelFile, "model-file", v.ModelFile, "TLC model config file (default: root module with .cfg)")
	f.track("model-file", func(d, s *Config) { d.ModelFile = s.ModelFile })
	fs.StringVar(&v.WorkDir, "workdir", v.WorkDir, "Working directory (default: directory of the root module)")
	f.track("workdir", func(d, s *Config) { d.WorkDir = s.WorkDir })

	// Launch
	fs.StringVar(&v.JavaPath, "java", v.JavaPath, "Path to the java binary")
	f.track("java", func(d, s *Config) { d.JavaPath = s.JavaPath })
	fs.StringVar(&v.MainClass, "main-class", v.MainClass, "TLC main class")
	f.track("main-class", func(d, s *Config) { d.MainClass = s.MainClass })
	fs.StringSliceVar(&v.ToolsClasspath, "classpath", v.ToolsClasspath, "TLA+ tools classpath entries (repeatable)")
	f.track("classpath", func(d, s *Config) { d.ToolsClasspath = append([]string(nil), s.ToolsClasspath...) })
	fs.StringVar(&v.ModulesPath, "modules", v.ModulesPath, "Standard modules directory (TLA-Library)")
	f.track("modules", func(d, s *Config) { d.ModulesPath = s.ModulesPath })
	fs.IntVar(&v.MaxHeapMB, "max-heap", v.MaxHeapMB, fmt.Sprintf("Maximum JVM heap in MB (0 = %d)", DefaultMaxHeapMB))
	f.track("max-heap", func(d, s *Config) { d.MaxHeapMB = s.MaxHeapMB })
	fs.StringArrayVar(&f.env, "env", nil, "Extra environment variable KEY=VALUE for TLC (repeatable)")
	f.track("env", func(d, s *Config) {
		if d.Env == nil {
			d.Env = make(map[string]string, len(s.Env))
		}
		for k, val := range s.Env {
			d.Env[k] = val
		}
	})

	// TLC
	fs.IntVar(&v.Workers, "workers", v.Workers, "TLC worker threads")
	f.track("workers", func(d, s *Config) { d.Workers = s.Workers })
	fs.BoolVar(&v.CheckDeadlock, "deadlock", v.CheckDeadlock, "Check for deadlock")
	f.track("deadlock", func(d, s *Config) { d.CheckDeadlock = s.CheckDeadlock })
	fs.IntVar(&v.CoverageMinutes, "coverage", v.CoverageMinutes, "Coverage report interval in minutes (0 = off)")
	f.track("coverage", func(d, s *Config) { d.CoverageMinutes = s.CoverageMinutes })
	fs.IntVar(&v.CheckpointMinutes, "checkpoint", v.CheckpointMinutes, "Checkpoint interval in minutes (0 = TLC default)")
	f.track("checkpoint", func(d, s *Config) { d.CheckpointMinutes = s.CheckpointMinutes })
	fs.StringVar(&v.RecoverDir, "recover", v.RecoverDir, "Recover from the checkpoint in this directory")
	f.track("recover", func(d, s *Config) { d.RecoverDir = s.RecoverDir })
	fs.BoolVar(&v.Simulate, "simulate", v.Simulate, "Run TLC in simulation mode")
	f.track("simulate", func(d, s *Config) { d.Simulate = s.Simulate })
	fs.IntVar(&v.SimulationDepth, "depth", v.SimulationDepth, "Simulation trace depth (0 = TLC default)")
	f.track("depth", func(d, s *Config) { d.SimulationDepth = s.SimulationDepth })
	fs.StringArrayVar(&v.ExtraArgs, "tlc-arg", v.ExtraArgs, "Extra TLC argument (repeatable)")
	f.track("tlc-arg", func(d, s *Config) { d.ExtraArgs = append([]string(nil), s.ExtraArgs...) })

	// Supervision
	fs.DurationVar(&v.PollInterval, "poll-interval", v.PollInterval, "Liveness/cancellation check interval")
	f.track("poll-interval", func(d, s *Config) { d.PollInterval = s.PollInterval })
	fs.DurationVar(&v.TerminateGrace, "terminate-grace", v.TerminateGrace, "Wait after SIGTERM before SIGKILL")
	f.track("terminate-grace", func(d, s *Config) { d.TerminateGrace = s.TerminateGrace })

	// Output / observability
	fs.StringVar(&v.OutputFile, "output-file", v.OutputFile, "Copy raw TLC output to this file")
	f.track("output-file", func(d, s *Config) { d.OutputFile = s.OutputFile })
	fs.StringVar(&v.MetricsAddr, "metrics", v.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	f.track("metrics", func(d, s *Config) { d.MetricsAddr = s.MetricsAddr })
	fs.BoolVar(&v.TUIEnabled, "tui", v.TUIEnabled, "Show live terminal dashboard (q cancels the run)")
	f.track("tui", func(d, s *Config) { d.TUIEnabled = s.TUIEnabled })
	fs.BoolVar(&v.SkipPreflight, "skip-preflight", v.SkipPreflight, "Skip preflight checks")
	f.track("skip-preflight", func(d, s *Config) { d.SkipPreflight = s.SkipPreflight })

	return f
}

func (f *Flags) track(name string, copyFn func(dst, src *Config)) {
	f.copies[name] = copyFn
}

// Apply copies every flag the user set onto dst.
func (f *Flags) Apply(dst *Config) error {
	env, err := parseEnv(f.env)
	if err != nil {
		return err
	}
	f.values.Env = env

	var names []string
	f.fs.Visit(func(fl *pflag.Flag) {
		if _, ok := f.copies[fl.Name]; ok {
			names = append(names, fl.Name)
		}
	})
	sort.Strings(names)
	for _, name := range names {
		f.copies[name](dst, f.values)
	}
	return nil
}

// parseEnv converts KEY=VALUE pairs into a map.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, ValidationError{Field: "env", Message: fmt.Sprintf("expected KEY=VALUE, got %q", p)}
		}
		env[k] = v
	}
	return env, nil
}
