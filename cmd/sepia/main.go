// Package main provides the CLI entrypoint for sepia.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/sepia/internal/config"
	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/model"
	"github.com/verte-zerg/sepia/internal/phase"
	"github.com/verte-zerg/sepia/internal/report"
	"github.com/verte-zerg/sepia/internal/scheduler"
	"github.com/verte-zerg/sepia/internal/store"
	"github.com/verte-zerg/sepia/internal/task"
	"github.com/verte-zerg/sepia/internal/telemetry"
	"github.com/verte-zerg/sepia/internal/tui"
)

const defaultTelemetryURL = "ws://127.0.0.1:8765/telemetry"

var (
	runDuration     time.Duration
	runArithPeriod  time.Duration
	runSeed         int64
	runTelemetry    string
	runTelemetryURL string
	runStaleAfter   time.Duration
	runRecord       bool
	runDebug        bool

	historySince  string
	historyLast   int
	historyFormat string
	historyColor  bool

	overlayFor time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sepia",
		Short:         "Cockpit-style cognitive workload test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPhaseCmd,
	}

	addTelemetryFlags(rootCmd)
	rootCmd.Flags().DurationVar(&runDuration, "duration", phase.DefaultDuration, "phase length")
	rootCmd.Flags().DurationVar(&runArithPeriod, "arith-period", task.ProblemPeriod, "interval between arithmetic problems")
	rootCmd.Flags().Int64Var(&runSeed, "seed", 0, "fix the random stream of every phase (0 = random)")
	rootCmd.Flags().BoolVar(&runRecord, "record", false, "archive each report in the local history database")
	rootCmd.Flags().BoolVar(&runDebug, "debug", false, "write a debug log next to the history database")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newOverlayCmd())

	return rootCmd
}

func addTelemetryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runTelemetry, "telemetry", config.SourceSim, "telemetry source: sim, ws or off")
	cmd.Flags().StringVar(&runTelemetryURL, "telemetry-url", defaultTelemetryURL, "websocket endpoint of the simulator bridge")
	cmd.Flags().DurationVar(&runStaleAfter, "stale-after", telemetry.DefaultStaleAfter, "treat bridge values older than this as unavailable")
}

func loadRunConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyDurationConfig(cmd, "duration", &runDuration, fileCfg.Phase.Duration)
	applyDurationConfig(cmd, "arith-period", &runArithPeriod, fileCfg.Phase.ArithmeticPeriod)
	applyInt64Config(cmd, "seed", &runSeed, fileCfg.Phase.Seed)
	applyStringConfig(cmd, "telemetry", &runTelemetry, fileCfg.Telemetry.Source)
	applyStringConfig(cmd, "telemetry-url", &runTelemetryURL, fileCfg.Telemetry.URL)
	applyDurationConfig(cmd, "stale-after", &runStaleAfter, fileCfg.Telemetry.StaleAfter)
	applyBoolConfig(cmd, "record", &runRecord, fileCfg.History.Record)

	cfg := model.Config{
		Duration:         runDuration,
		ArithmeticPeriod: runArithPeriod,
		Seed:             runSeed,
		TelemetrySource:  runTelemetry,
		TelemetryURL:     runTelemetryURL,
		StaleAfter:       runStaleAfter,
		Record:           runRecord,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runPhaseCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	if !report.IsTerminal(os.Stdin) || !report.IsTerminal(os.Stdout) {
		return fmt.Errorf("sepia needs an interactive terminal; use `sepia overlay` to stream telemetry only")
	}

	logger, closeLog, err := openLogger(runDebug)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := startSource(ctx, cfg, logger)
	opts := phase.Options{
		Duration:         cfg.Duration,
		ArithmeticPeriod: cfg.ArithmeticPeriod,
		Seed:             cfg.Seed,
		Source:           source,
		Logger:           logger,
	}

	if cfg.Record {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		opts.OnReport = func(r model.Report) {
			if err := st.InsertReport(context.Background(), r); err != nil {
				logger.Printf("failed to archive report %s: %v", r.PhaseID, err)
			}
		}
	}

	program := tea.NewProgram(tui.NewModel(opts, nil), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}

func openLogger(debug bool) (*log.Logger, func(), error) {
	if !debug {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "sepia")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	closeLog := func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close debug log: %v\n", cerr)
		}
	}
	return log.Default(), closeLog, nil
}

func startSource(ctx context.Context, cfg model.Config, logger *log.Logger) telemetry.Source {
	switch cfg.TelemetrySource {
	case config.SourceWS:
		bridge := telemetry.NewBridge(cfg.TelemetryURL, cfg.StaleAfter, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Printf("telemetry bridge stopped: %v", err)
			}
		}()
		return bridge
	case config.SourceOff:
		return telemetry.Unavailable
	default:
		return telemetry.NewSimulator(time.Now)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived phase reports",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "only reports started on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "only the most recent N reports")
	cmd.Flags().StringVar(&historyFormat, "format", report.ExportTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&historyColor, "color", false, "color table rows even when not writing to a terminal (NO_COLOR wins)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	filter, err := parseHistoryFilter(historySince, historyLast)
	if err != nil {
		return err
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	reports, err := st.ListReports(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) == 0 {
		logErrln("No archived reports. Run a phase with --record to keep its report.")
		return nil
	}
	out := cmd.OutOrStdout()
	if historyFormat != report.ExportTable {
		return report.Export(out, reports, historyFormat)
	}
	lines := report.History(reports)
	if report.IsTerminal(out) {
		lines = report.Truncate(lines, report.TerminalWidth(os.Stdout))
	}
	if report.ShouldUseColor(out, historyColor) {
		lines = report.ColorHistory(lines, reports)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func parseHistoryFilter(since string, last int) (model.HistoryFilter, error) {
	if last < 0 {
		return model.HistoryFilter{}, fmt.Errorf("--last must be >= 0")
	}
	filter := model.HistoryFilter{Last: last}
	if since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.HistoryFilter{}, fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
		}
		filter.Since = &t
	}
	return filter, nil
}

func newOverlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Stream the telemetry status line without running a phase",
		Args:  cobra.NoArgs,
		RunE:  runOverlayCmd,
	}
	addTelemetryFlags(cmd)
	cmd.Flags().DurationVar(&overlayFor, "for", 0, "stop after this long (0 = until interrupted)")
	return cmd
}

func runOverlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "telemetry", &runTelemetry, fileCfg.Telemetry.Source)
	applyStringConfig(cmd, "telemetry-url", &runTelemetryURL, fileCfg.Telemetry.URL)
	applyDurationConfig(cmd, "stale-after", &runStaleAfter, fileCfg.Telemetry.StaleAfter)
	if err := config.ValidateSource(runTelemetry); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if overlayFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, overlayFor)
		defer cancel()
	}

	logger := log.New(cmd.ErrOrStderr(), "sepia: ", log.LstdFlags)
	cfg := model.Config{TelemetrySource: runTelemetry, TelemetryURL: runTelemetryURL, StaleAfter: runStaleAfter}
	source := startSource(ctx, cfg, logger)

	out := cmd.OutOrStdout()
	sched := scheduler.New(time.Now())
	sched.SetErrorHandler(func(err error) {
		logger.Printf("overlay: %v", err)
	})
	poller := telemetry.NewPoller(sched, source, display.Func(func(u display.Update) {
		if u.Channel != display.ChannelTelemetry {
			return
		}
		if _, err := fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05.0"), u.Text); err != nil {
			logger.Printf("overlay: %v", err)
		}
	}))
	poller.Start()
	defer poller.Stop()

	if err := sched.Run(ctx, time.Now); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func validateConfig(cfg model.Config) error {
	if err := phase.Validate(cfg.Duration, cfg.ArithmeticPeriod); err != nil {
		return fmt.Errorf("--duration/--arith-period: %w", err)
	}
	if err := config.ValidateSource(cfg.TelemetrySource); err != nil {
		return fmt.Errorf("--telemetry: %w", err)
	}
	if cfg.TelemetrySource == config.SourceWS && cfg.TelemetryURL == "" {
		return fmt.Errorf("--telemetry-url must not be empty")
	}
	if cfg.StaleAfter <= 0 {
		return fmt.Errorf("--stale-after must be > 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
