// Package config provides configuration management for go-tlc-supervisor.
package config

import "time"

// Run modes.
const (
	ModeModelCheck   = "model-check"
	ModeTraceExplore = "trace-explore"
)

// DefaultMaxHeapMB is the JVM heap bound used when none is configured.
const DefaultMaxHeapMB = 500

// Config holds all configuration options for one supervision run.
type Config struct {
	// Model
	SpecName   string `yaml:"spec_name" json:"spec_name"`
	ModelName  string `yaml:"model_name" json:"model_name"`
	Mode       string `yaml:"mode" json:"mode"`               // model-check, trace-explore
	RootModule string `yaml:"root_module" json:"root_module"` // path to MC.tla / TE.tla
	ModelFile  string `yaml:"model_file" json:"model_file"`   // TLC .cfg file; default derived from RootModule
	WorkDir    string `yaml:"work_dir" json:"work_dir"`       // default: directory of RootModule

	// Launch
	JavaPath       string            `yaml:"java_path" json:"java_path"`
	MainClass      string            `yaml:"main_class" json:"main_class"`
	ToolsClasspath []string          `yaml:"tools_classpath" json:"tools_classpath"`
	ModulesPath    string            `yaml:"modules_path" json:"modules_path"`
	MaxHeapMB      int               `yaml:"max_heap_mb" json:"max_heap_mb"` // 0 = default
	Env            map[string]string `yaml:"env" json:"env"`

	// TLC
	Workers           int      `yaml:"workers" json:"workers"`
	CheckDeadlock     bool     `yaml:"check_deadlock" json:"check_deadlock"`
	CoverageMinutes   int      `yaml:"coverage_minutes" json:"coverage_minutes"`
	CheckpointMinutes int      `yaml:"checkpoint_minutes" json:"checkpoint_minutes"`
	RecoverDir        string   `yaml:"recover_dir" json:"recover_dir"`
	Simulate          bool     `yaml:"simulate" json:"simulate"`
	SimulationDepth   int      `yaml:"simulation_depth" json:"simulation_depth"`
	ExtraArgs         []string `yaml:"extra_args" json:"extra_args"`

	// Supervision
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	TerminateGrace time.Duration `yaml:"terminate_grace" json:"terminate_grace"`

	// Output
	OutputFile string `yaml:"output_file" json:"output_file"` // raw TLC output copy; empty = disabled

	// Observability
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"` // empty = disabled
	Verbose     bool   `yaml:"verbose" json:"verbose"`
	LogFormat   string `yaml:"log_format" json:"log_format"` // json, text
	LogLevel    string `yaml:"log_level" json:"log_level"`
	TUIEnabled  bool   `yaml:"tui" json:"tui"`

	// Diagnostic modes
	SkipPreflight bool `yaml:"skip_preflight" json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Model
		Mode: ModeModelCheck,

		// Launch
		JavaPath:  "java",
		MainClass: "tlc2.TLC",
		MaxHeapMB: 0, // DefaultMaxHeapMB at launch

		// TLC
		Workers:       1,
		CheckDeadlock: true,

		// Supervision
		PollInterval:   time.Second,
		TerminateGrace: 2 * time.Second,

		// Observability
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// IsTraceExplore reports whether the run explores an error trace rather than
// model checking.
func (c *Config) IsTraceExplore() bool {
	return c.Mode == ModeTraceExplore
}
