// Package launch builds the immutable description of one TLC process launch.
package launch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/config"
)

// Environment conventions understood by TLC and the standard modules.
const (
	// LibraryProperty is the JVM system property naming the modules path.
	LibraryProperty = "TLA-Library"

	// LibraryEnv carries the modules path to tools that read the environment.
	LibraryEnv = "TLA_LIBRARY"
)

// ErrNoRootModule is returned by Build when no root module is configured.
var ErrNoRootModule = errors.New("root module not set")

// Request describes a single TLC launch. It is never modified after Build;
// accessors return copies.
type Request struct {
	java       string
	mainClass  string
	classpath  []string
	vmArgs     []string
	args       []string
	env        map[string]string
	maxHeapMB  int
	workDir    string
	mode       string
	specName   string
	modelName  string
	rootModule string
}

// Build derives a Request from cfg. A zero MaxHeapMB selects
// config.DefaultMaxHeapMB.
func Build(cfg *config.Config) (*Request, error) {
	if cfg.RootModule == "" {
		return nil, ErrNoRootModule
	}
	if cfg.MaxHeapMB < 0 {
		return nil, fmt.Errorf("invalid max heap %dMB", cfg.MaxHeapMB)
	}

	heap := cfg.MaxHeapMB
	if heap == 0 {
		heap = config.DefaultMaxHeapMB
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(cfg.RootModule)
	}

	r := &Request{
		java:       cfg.JavaPath,
		mainClass:  cfg.MainClass,
		classpath:  append([]string(nil), cfg.ToolsClasspath...),
		maxHeapMB:  heap,
		workDir:    workDir,
		mode:       cfg.Mode,
		specName:   cfg.SpecName,
		modelName:  cfg.ModelName,
		rootModule: cfg.RootModule,
		env:        make(map[string]string, len(cfg.Env)+1),
	}

	if cfg.ModulesPath != "" {
		r.vmArgs = append(r.vmArgs, "-D"+LibraryProperty+"="+cfg.ModulesPath)
		r.env[LibraryEnv] = cfg.ModulesPath
	}
	r.vmArgs = append(r.vmArgs, "-Xmx"+strconv.Itoa(heap)+"m")

	// Explicit overrides win over the derived TLA_LIBRARY.
	for k, v := range cfg.Env {
		r.env[k] = v
	}

	r.args = tlcArgs(cfg)
	return r, nil
}

// tlcArgs returns the TLC program arguments in the order TLC expects: options
// first, the root module name last.
func tlcArgs(cfg *config.Config) []string {
	module := ModuleName(cfg.RootModule)

	args := []string{"-workers", strconv.Itoa(cfg.Workers)}

	modelFile := cfg.ModelFile
	if modelFile == "" {
		modelFile = module + ".cfg"
	}
	args = append(args, "-config", modelFile)

	// TLC checks deadlock by default; the flag turns it off.
	if !cfg.CheckDeadlock {
		args = append(args, "-deadlock")
	}
	if cfg.CoverageMinutes > 0 {
		args = append(args, "-coverage", strconv.Itoa(cfg.CoverageMinutes))
	}
	if cfg.CheckpointMinutes > 0 {
		args = append(args, "-checkpoint", strconv.Itoa(cfg.CheckpointMinutes))
	}
	if cfg.RecoverDir != "" {
		args = append(args, "-recover", cfg.RecoverDir)
	}
	if cfg.Simulate {
		args = append(args, "-simulate")
		if cfg.SimulationDepth > 0 {
			args = append(args, "-depth", strconv.Itoa(cfg.SimulationDepth))
		}
	}

	args = append(args, cfg.ExtraArgs...)
	return append(args, module)
}

// ModuleName returns the TLA+ module name for a root module path,
// e.g. "/models/Queue/MC.tla" -> "MC".
func ModuleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".tla")
}

// Java returns the java executable.
func (r *Request) Java() string { return r.java }

// MainClass returns the JVM entry point.
func (r *Request) MainClass() string { return r.mainClass }

// Classpath returns the ordered classpath entries.
func (r *Request) Classpath() []string { return append([]string(nil), r.classpath...) }

// VMArgs returns the JVM arguments.
func (r *Request) VMArgs() []string { return append([]string(nil), r.vmArgs...) }

// Args returns the TLC program arguments.
func (r *Request) Args() []string { return append([]string(nil), r.args...) }

// Env returns the environment overrides.
func (r *Request) Env() map[string]string {
	out := make(map[string]string, len(r.env))
	for k, v := range r.env {
		out[k] = v
	}
	return out
}

// MaxHeapMB returns the effective JVM heap bound.
func (r *Request) MaxHeapMB() int { return r.maxHeapMB }

// WorkDir returns the process working directory.
func (r *Request) WorkDir() string { return r.workDir }

// Mode returns the run mode.
func (r *Request) Mode() string { return r.mode }

// SpecName returns the specification name.
func (r *Request) SpecName() string { return r.specName }

// ModelName returns the model name.
func (r *Request) ModelName() string { return r.modelName }

// RootModule returns the root module path.
func (r *Request) RootModule() string { return r.rootModule }

// Name identifies the run in logs and sink output, e.g. "MC".
func (r *Request) Name() string { return ModuleName(r.rootModule) }

// CommandLine returns argv for the JVM: java, VM args, classpath, main class,
// then TLC arguments.
func (r *Request) CommandLine() []string {
	argv := make([]string, 0, 4+len(r.vmArgs)+len(r.args))
	argv = append(argv, r.java)
	argv = append(argv, r.vmArgs...)
	if len(r.classpath) > 0 {
		argv = append(argv, "-cp", strings.Join(r.classpath, string(os.PathListSeparator)))
	}
	argv = append(argv, r.mainClass)
	return append(argv, r.args...)
}

// Environ returns base with the overrides applied. Overridden keys are
// replaced in place; new keys are appended in sorted order.
func (r *Request) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(r.env))
	seen := make(map[string]bool, len(r.env))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if v, ok := r.env[k]; ok {
			if !seen[k] {
				out = append(out, k+"="+v)
				seen[k] = true
			}
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(r.env))
	for k := range r.env {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+r.env[k])
	}
	return out
}

// CommandString returns the full command as a shell-pasteable string.
func (r *Request) CommandString() string {
	argv := r.CommandLine()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// String implements fmt.Stringer.
func (r *Request) String() string {
	return fmt.Sprintf("%s (%s, heap=%dMB, dir=%s)", r.Name(), r.mode, r.maxHeapMB, r.workDir)
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'$`\\|&;<>()*?[]{}!#~") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}
