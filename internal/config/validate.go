package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// Root module is required
	if cfg.RootModule == "" {
		errs = append(errs, ValidationError{
			Field:   "root_module",
			Message: "root module path is required",
		})
	}

	// Mode must be valid
	validModes := map[string]bool{ModeModelCheck: true, ModeTraceExplore: true}
	if !validModes[cfg.Mode] {
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("must be %q or %q (got %q)", ModeModelCheck, ModeTraceExplore, cfg.Mode),
		})
	}

	if cfg.JavaPath == "" {
		errs = append(errs, ValidationError{
			Field:   "java_path",
			Message: "must not be empty",
		})
	}

	if cfg.MainClass == "" {
		errs = append(errs, ValidationError{
			Field:   "main_class",
			Message: "must not be empty",
		})
	}

	if len(cfg.ToolsClasspath) == 0 {
		errs = append(errs, ValidationError{
			Field:   "tools_classpath",
			Message: "at least one classpath entry is required",
		})
	}

	// Zero means "use the default"; negative is a mistake.
	if cfg.MaxHeapMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_heap_mb",
			Message: fmt.Sprintf("must be positive (got %d)", cfg.MaxHeapMB),
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "must be at least 1",
		})
	}

	if cfg.CoverageMinutes < 0 {
		errs = append(errs, ValidationError{Field: "coverage_minutes", Message: "must not be negative"})
	}
	if cfg.CheckpointMinutes < 0 {
		errs = append(errs, ValidationError{Field: "checkpoint_minutes", Message: "must not be negative"})
	}
	if cfg.SimulationDepth < 0 {
		errs = append(errs, ValidationError{Field: "simulation_depth", Message: "must not be negative"})
	}
	if cfg.SimulationDepth > 0 && !cfg.Simulate {
		errs = append(errs, ValidationError{
			Field:   "simulation_depth",
			Message: "requires simulate",
		})
	}

	// Poll interval bounds cancellation latency
	const minPoll = 10 * time.Millisecond
	const maxPoll = 10 * time.Second
	if cfg.PollInterval < minPoll || cfg.PollInterval > maxPoll {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: fmt.Sprintf("must be between %v and %v (got %v)", minPoll, maxPoll, cfg.PollInterval),
		})
	}

	if cfg.TerminateGrace < 0 {
		errs = append(errs, ValidationError{
			Field:   "terminate_grace",
			Message: "must not be negative",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
