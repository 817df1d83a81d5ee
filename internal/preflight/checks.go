// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/config"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/launch"
)

// MinJavaMajor is the oldest JVM the TLA+ tools run on.
const MinJavaMajor = 11

// javaProbeTimeout bounds `java -version`.
const javaProbeTimeout = 10 * time.Second

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config) *Result {
	result := &Result{
		Checks: make([]Check, 0, 7),
		Passed: true,
	}

	result.add(checkJava(ctx, cfg.JavaPath))
	result.add(checkClasspath(cfg.ToolsClasspath))
	result.add(checkRootModule(cfg.RootModule))
	result.add(checkWorkDir(workDir(cfg)))
	result.add(checkModelFile(cfg))
	result.add(checkFileDescriptors(cfg.Workers))
	result.add(checkProcessLimit(cfg.Workers))

	return result
}

func workDir(cfg *config.Config) string {
	if cfg.WorkDir != "" {
		return cfg.WorkDir
	}
	if cfg.RootModule == "" {
		return ""
	}
	return filepath.Dir(cfg.RootModule)
}

// checkJava verifies a recent enough JVM is available.
func checkJava(ctx context.Context, javaPath string) Check {
	ctx, cancel := context.WithTimeout(ctx, javaProbeTimeout)
	defer cancel()

	info, err := launch.ProbeJava(ctx, javaPath)
	if err != nil {
		return Check{
			Name:    "java",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", javaPath, err),
		}
	}
	if info.Major < MinJavaMajor {
		return Check{
			Name:    "java",
			Passed:  false,
			Message: fmt.Sprintf("found at %s (version %s), need %d or newer", info.Path, info.Version, MinJavaMajor),
		}
	}
	return Check{
		Name:    "java",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", info.Path, info.Version),
	}
}

// checkClasspath verifies every tools classpath entry exists. A trailing
// "*" is a JVM wildcard; its directory has to exist.
func checkClasspath(entries []string) Check {
	if len(entries) == 0 {
		return Check{
			Name:    "tools_classpath",
			Passed:  false,
			Message: "empty",
		}
	}

	var missing []string
	for _, e := range entries {
		path := e
		if base := filepath.Base(e); base == "*" {
			path = filepath.Dir(e)
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, e)
		}
	}
	if len(missing) > 0 {
		return Check{
			Name:    "tools_classpath",
			Passed:  false,
			Message: "missing " + strings.Join(missing, ", "),
		}
	}
	return Check{
		Name:    "tools_classpath",
		Passed:  true,
		Message: fmt.Sprintf("%d entries", len(entries)),
	}
}

// checkRootModule verifies the root module is a readable .tla file.
func checkRootModule(path string) Check {
	if path == "" {
		return Check{Name: "root_module", Passed: false, Message: "not set"}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Check{Name: "root_module", Passed: false, Message: err.Error()}
	}
	if fi.IsDir() {
		return Check{Name: "root_module", Passed: false, Message: path + " is a directory"}
	}
	if filepath.Ext(path) != ".tla" {
		return Check{Name: "root_module", Passed: true, Warning: true, Message: path + " has no .tla extension"}
	}
	return Check{Name: "root_module", Passed: true, Message: path}
}

// checkWorkDir verifies the working directory exists and is writable;
// TLC writes its states directory there.
func checkWorkDir(dir string) Check {
	if dir == "" {
		return Check{Name: "work_dir", Passed: false, Message: "not set"}
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return Check{Name: "work_dir", Passed: false, Message: err.Error()}
	}
	if !fi.IsDir() {
		return Check{Name: "work_dir", Passed: false, Message: dir + " is not a directory"}
	}

	f, err := os.CreateTemp(dir, ".tlc-preflight-*")
	if err != nil {
		return Check{Name: "work_dir", Passed: false, Message: fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return Check{Name: "work_dir", Passed: true, Message: dir}
}

// checkModelFile warns when the TLC .cfg file is not where TLC will look.
// TLC resolves it relative to the working directory.
func checkModelFile(cfg *config.Config) Check {
	name := cfg.ModelFile
	if name == "" {
		if cfg.RootModule == "" {
			return Check{Name: "model_file", Passed: true, Warning: true, Message: "no root module"}
		}
		name = launch.ModuleName(cfg.RootModule) + ".cfg"
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir(cfg), name)
	}
	if _, err := os.Stat(path); err != nil {
		return Check{Name: "model_file", Passed: true, Warning: true, Message: path + " not found"}
	}
	return Check{Name: "model_file", Passed: true, Message: path}
}

// PrintResults prints the preflight check results.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "java":
		return fmt.Sprintf("install a JDK %d+ or pass --java /path/to/java", MinJavaMajor)
	case "tools_classpath":
		return "pass --classpath /path/to/tla2tools.jar"
	case "root_module":
		return "pass --root-module /path/to/MC.tla"
	case "work_dir":
		return "create the directory or pass --workdir"
	case "file_descriptors":
		return "ulimit -n 4096 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
