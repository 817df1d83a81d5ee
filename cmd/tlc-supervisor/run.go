package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/randomizedcoder/go-tlc-supervisor/internal/config"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/job"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/launch"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/logging"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/metrics"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/preflight"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stats"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/stream"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/supervisor"
	"github.com/randomizedcoder/go-tlc-supervisor/internal/tui"
)

// Exit codes of the run command.
const (
	exitRunFailed    = 1
	exitPreflight    = 3
	exitRunCancelled = 130
)

// recentLinesInSummary is how much TLC output a failed run's summary shows.
const recentLinesInSummary = 10

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch TLC and supervise it until it exits or is cancelled",
		Args:  cobra.NoArgs,
	}
	flags := config.BindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, opts, flags)
		if err != nil {
			return err
		}
		if cfg.TUIEnabled && !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("--tui requires an interactive terminal")
		}
		return runSupervision(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	return cmd
}

// runSupervision runs one TLC supervision job with its sinks, the optional
// metrics server and the optional dashboard, then prints the run summary.
func runSupervision(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	// When the TUI is enabled it owns the terminal, so logs are discarded.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, cfg.LogFormat, cfg.LogLevel)
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	if !cfg.SkipPreflight {
		result := preflight.RunAll(ctx, cfg)
		if !result.Passed {
			preflight.PrintResults(stderr, result)
			return &exitError{code: exitPreflight, err: errors.New("preflight checks failed (use --skip-preflight to override)")}
		}
		logger.Debug("preflight_passed", "checks", len(result.Checks))
	}

	name := launch.ModuleName(cfg.RootModule)
	registry := stream.NewRegistry()

	output := logging.NewOutputHandler(name, logger, cfg.Verbose)
	registry.Register(output)

	collector := metrics.NewCollector()
	collector.SetRunInfo(name, cfg.Mode)
	registry.Register(collector)

	// The listener is bound before TLC starts so a bad address fails the
	// run up front.
	var server *metrics.Server
	metricsAddr := cfg.MetricsAddr
	if metricsAddr != "" {
		server = metrics.NewServer(metricsAddr, collector.Registry(), logger)
		if err := server.Start(); err != nil {
			return &exitError{code: exitRunFailed, err: err}
		}
		metricsAddr = server.Addr()
	}

	var fileSink *stream.FileSink
	if cfg.OutputFile != "" {
		fs, err := stream.NewFileSink(cfg.OutputFile)
		if err != nil {
			if server != nil {
				_ = server.Shutdown(context.WithoutCancel(ctx))
			}
			return fmt.Errorf("output file: %w", err)
		}
		fileSink = fs
		registry.Register(fileSink)
	}

	// The dashboard's bridge carries its own OutputStats; without it a
	// standalone one feeds the summary.
	var (
		bridge   *tui.Bridge
		outStats *stats.OutputStats
	)
	ctxMon := job.NewContextMonitor(ctx, logger)
	var monitor job.ProgressMonitor = ctxMon
	if cfg.TUIEnabled {
		bridge = tui.NewBridge(0)
		registry.Register(bridge)
		outStats = bridge.Output()
		monitor = job.MultiMonitor{ctxMon, bridge}
	} else {
		outStats = stats.NewOutputStats()
		registry.Register(outStats)
	}

	callbacks := collector.Callbacks()
	if server != nil {
		onStart, onExit := callbacks.OnStart, callbacks.OnExit
		callbacks.OnStart = func(id supervisor.LaunchID, pid int) {
			onStart(id, pid)
			server.SetReady(true)
		}
		callbacks.OnExit = func(id supervisor.LaunchID, code int, uptime time.Duration) {
			onExit(id, code, uptime)
			server.SetReady(false)
		}
	}

	sup := supervisor.New(supervisor.Config{
		TerminateGrace: cfg.TerminateGrace,
		Logger:         logger,
		Callbacks:      callbacks,
	})

	j := job.New(job.Config{
		Run:        cfg,
		Supervisor: sup,
		Registry:   registry,
		Monitor:    monitor,
		Recorder:   collector,
		Logger:     logger,
	})

	if !cfg.TUIEnabled {
		printBanner(stdout, cfg, name, metricsAddr)
	}

	// The job runs on ctx, not on the group context: a failing dashboard or
	// metrics server must not look like a user cancellation.
	g, gctx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	var out job.Outcome
	g.Go(func() error {
		defer stopAux()
		out = j.Run(ctx)
		return nil
	})

	if server != nil {
		g.Go(func() error {
			return server.Wait(auxCtx)
		})
	}

	if bridge != nil {
		g.Go(func() error {
			model := tui.New(tui.Config{
				Name:        name,
				Mode:        cfg.Mode,
				MetricsAddr: metricsAddr,
				Source:      bridge,
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(auxCtx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		})
	}

	auxErr := g.Wait()
	if auxErr != nil {
		logger.Error("run_aux_failed", "error", auxErr)
	}

	snap := outStats.Snapshot()
	summary := collector.GenerateSummary()
	rs := stats.RunSummary{
		Name:        name,
		Mode:        cfg.Mode,
		Status:      out.Status.String(),
		Reason:      out.Reason,
		Duration:    out.Duration(),
		ExitCodes:   summary.ExitCodes,
		Output:      &snap,
		RecentLines: output.RecentLines(recentLinesInSummary),
		ErrorCounts: output.CountErrors(),
		MetricsAddr: metricsAddr,
	}
	if fileSink != nil {
		rs.OutputFile = fileSink.Path()
		if err := fileSink.Err(); err != nil {
			logger.Warn("output_file_error", "path", fileSink.Path(), "error", err)
		}
	}
	fmt.Fprint(stdout, stats.FormatRunSummary(rs))

	switch out.Status {
	case job.StatusOK:
		if auxErr != nil {
			return &exitError{code: exitRunFailed, err: auxErr}
		}
		return nil
	case job.StatusCancelled:
		return &exitError{code: exitRunCancelled, err: errors.New("run cancelled")}
	default:
		return &exitError{code: exitRunFailed, err: fmt.Errorf("run failed: %s", out.Reason)}
	}
}

// printBanner prints the startup banner.
func printBanner(w io.Writer, cfg *config.Config, name, metricsAddr string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                         tlc-supervisor                            ║")
	fmt.Fprintln(w, "║           Supervised TLC model checking runs                      ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Module:      %s (%s)\n", name, cfg.Mode)
	fmt.Fprintf(w, "  Workers:     %d\n", cfg.Workers)
	if metricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", metricsAddr)
	}
	if cfg.OutputFile != "" {
		fmt.Fprintf(w, "  Output:      %s\n", cfg.OutputFile)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}
