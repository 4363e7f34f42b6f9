package cmd

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/renderwatch/cli"
	"github.com/grovetools/renderwatch/config"
	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/internal/pidfile"
	"github.com/grovetools/renderwatch/logging"
	"github.com/grovetools/renderwatch/pkg/dispatch"
	"github.com/grovetools/renderwatch/pkg/metrics"
	"github.com/grovetools/renderwatch/pkg/paths"
	"github.com/grovetools/renderwatch/pkg/reload"
	"github.com/grovetools/renderwatch/pkg/render"
	"github.com/grovetools/renderwatch/pkg/watcher"
	"github.com/grovetools/renderwatch/tui/dashboard"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and queue files for rendering",
		Long: `Watches a directory tree and queues new or modified files with a watched
extension for rendering. Deleted files are queued to stop their render.
Queued paths are handed to --command, or only logged when no command is set.`,
		Example: `# watch the current directory with the defaults
renderwatch watch .

# render with an external tool, .bsz files only
renderwatch watch /srv/incoming --ext bsz --command 'render-tool --in {path}'

# run with the dashboard and a metrics endpoint
renderwatch watch /srv/incoming --tui --metrics-addr 127.0.0.1:9464`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatchE,
	}

	cmd.Flags().StringSlice("ext", nil, "Extensions that trigger a render (default: bsz, zip)")
	cmd.Flags().StringSlice("ignore-dir", nil, "Parent directory names to ignore (default: download)")
	cmd.Flags().StringSlice("ignore", nil, "Glob patterns, relative to the directory, to ignore")
	cmd.Flags().StringArray("command", nil, "Render command; {path} is replaced by the file. Repeat for each argument, or pass one string to split on spaces")
	cmd.Flags().String("stop-signal", "", "Signal sent to a running render when it is stopped")
	cmd.Flags().Duration("poll-interval", 0, "How often the watch loop checks for a stop request")
	cmd.Flags().Duration("dispatch-interval", 0, "How often the queues are drained")
	cmd.Flags().String("pidfile", "", "PID file path (default: $XDG_RUNTIME_DIR/renderwatch.pid)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolP("tui", "i", false, "Show the interactive dashboard")

	return cmd
}

func runWatchE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cli.GetOptions(cmd))
	if err != nil {
		return err
	}
	if err := applyWatchFlags(cmd, cfg); err != nil {
		return err
	}

	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		dir = "."
	}
	if expanded, err := paths.Expand(dir); err == nil {
		dir = expanded
	}

	pidPath := cfg.PIDFile
	if pidPath == "" {
		pidPath = pidfile.DefaultPath()
	} else if expanded, err := paths.Expand(pidPath); err == nil {
		pidPath = expanded
	}
	logger := cli.GetLogger(cmd, "watcher")

	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer releasePIDFile(pidPath, logger)

	w, err := watcher.New(watcher.Options{
		Extensions:     cfg.Watch.Extensions,
		IgnoreDirs:     cfg.Watch.IgnoreDirs,
		IgnorePatterns: cfg.Watch.IgnorePatterns,
		PollInterval:   cfg.Watch.PollDuration(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	progress := &render.Progress{}
	renderer, execRenderer, err := newRenderer(cfg, cli.GetLogger(cmd, "render"), progress)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(w, renderer, cfg.Dispatch.IntervalDuration(), cli.GetLogger(cmd, "dispatch"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Metrics.IsEnabled() {
		metricsServer = startMetricsServer(cfg.Metrics.Addr, logger)
	}

	if err := w.StartWatching(dir); err != nil {
		return err
	}

	configWatcher := startConfigWatcher(ctx, cmd, w, cli.GetLogger(cmd, "config"))

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = dispatcher.Run(dispatchCtx)
	}()

	tui, _ := cmd.Flags().GetBool("tui")
	if tui {
		// Log lines would tear the alt screen; the file sink still receives them.
		logging.SetGlobalOutput(io.Discard)
		err = dashboard.Run(snapshotFunc(w, dispatcher, progress), tea.WithContext(ctx))
		logging.SetGlobalOutput(os.Stderr)
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Dashboard exited with an error")
		}
	} else {
		printWatchSummary(cmd, dir, w, cfg, pidPath)
		<-ctx.Done()
	}

	logger.Info("Shutting down")
	cancelDispatch()
	wg.Wait()
	if configWatcher != nil {
		_ = configWatcher.Close()
	}
	w.StopWatching()
	if execRenderer != nil {
		execRenderer.Wait()
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

func releasePIDFile(path string, logger *logrus.Entry) {
	if err := pidfile.Release(path); err != nil {
		logger.WithError(err).WithField("pidfile", path).Debug("Failed to release PID file")
	}
}

// applyWatchFlags layers explicitly set flags over the loaded configuration
// and validates the result.
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("ext") {
		cfg.Watch.Extensions, _ = flags.GetStringSlice("ext")
	}
	if flags.Changed("ignore-dir") {
		cfg.Watch.IgnoreDirs, _ = flags.GetStringSlice("ignore-dir")
	}
	if flags.Changed("ignore") {
		cfg.Watch.IgnorePatterns, _ = flags.GetStringSlice("ignore")
	}
	if flags.Changed("command") {
		command, _ := flags.GetStringArray("command")
		cfg.Dispatch.Command = splitCommand(command)
	}
	if flags.Changed("stop-signal") {
		cfg.Dispatch.StopSignal, _ = flags.GetString("stop-signal")
	}
	if flags.Changed("poll-interval") {
		d, _ := flags.GetDuration("poll-interval")
		cfg.Watch.PollInterval = d.String()
	}
	if flags.Changed("dispatch-interval") {
		d, _ := flags.GetDuration("dispatch-interval")
		cfg.Dispatch.Interval = d.String()
	}
	if flags.Changed("pidfile") {
		cfg.PIDFile, _ = flags.GetString("pidfile")
	}
	if flags.Changed("metrics-addr") {
		addr, _ := flags.GetString("metrics-addr")
		enabled := addr != ""
		cfg.Metrics.Enabled = &enabled
		if enabled {
			cfg.Metrics.Addr = addr
		}
	}
	return cfg.Validate()
}

// splitCommand treats a single --command value as a space separated line.
func splitCommand(command []string) []string {
	if len(command) == 1 {
		return strings.Fields(command[0])
	}
	return command
}

func newRenderer(cfg *config.Config, logger *logrus.Entry, progress *render.Progress) (render.Renderer, *render.ExecRenderer, error) {
	if len(cfg.Dispatch.Command) == 0 {
		return &render.LogRenderer{Logger: logger}, nil, nil
	}
	sig, err := render.ParseSignal(cfg.Dispatch.StopSignal)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid dispatch.stop_signal")
	}
	r, err := render.NewExecRenderer(cfg.Dispatch.Command, sig, &render.LogObserver{Logger: logger, Progress: progress})
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}

// configFiles lists the files whose edits are applied to a running watcher.
// Without a project file the working directory is watched for a new one.
func configFiles(opts cli.CommandOptions) []string {
	files := []string{config.GlobalConfigPath()}
	if path, err := cli.InitConfig(opts.ConfigFile); err == nil && path != "" {
		return append(files, path)
	}
	if cwd, err := os.Getwd(); err == nil {
		files = append(files, filepath.Join(cwd, "renderwatch.yml"))
	}
	return files
}

// startConfigWatcher re-applies extension and ignore directory edits while
// watching. Flags given on the command line keep precedence.
func startConfigWatcher(ctx context.Context, cmd *cobra.Command, w *watcher.Watcher, logger *logrus.Entry) *reload.ConfigWatcher {
	opts := cli.GetOptions(cmd)
	load := func() (*config.Config, error) {
		cfg, err := cli.LoadConfig(opts)
		if err != nil {
			return nil, err
		}
		if err := applyWatchFlags(cmd, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cw, err := reload.NewConfigWatcher(configFiles(opts), load, w, 0, logger)
	if err != nil {
		logger.WithError(err).Warn("Configuration changes will not be picked up")
		return nil
	}
	go cw.Start(ctx)
	return cw
}

func startMetricsServer(addr string, logger *logrus.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()
	return srv
}

func snapshotFunc(w *watcher.Watcher, d *dispatch.Dispatcher, progress *render.Progress) dashboard.SnapshotFunc {
	return func() dashboard.Snapshot {
		status := d.Status()
		_, line := progress.Get()
		return dashboard.Snapshot{
			Dir:       w.WatchPath(),
			State:     w.State().String(),
			Render:    w.PendingRender(),
			Delete:    w.PendingDelete(),
			Current:   status.Current,
			Progress:  line,
			Started:   status.Started,
			Stopped:   status.Stopped,
			Failed:    status.Failed,
			LastError: status.LastError,
		}
	}
}

func printWatchSummary(cmd *cobra.Command, dir string, w *watcher.Watcher, cfg *config.Config, pidPath string) {
	p := logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr())
	p.Success("Watching for renders")
	p.Path("Directory", dir)
	p.List("Extensions", w.Extensions())
	p.List("Ignored directories", w.IgnoredDirectories())
	if len(cfg.Watch.IgnorePatterns) > 0 {
		p.List("Ignored patterns", cfg.Watch.IgnorePatterns)
	}
	if len(cfg.Dispatch.Command) > 0 {
		p.List("Command", cfg.Dispatch.Command)
	} else {
		p.WarnPretty("No render command configured, queued files are only logged")
	}
	if cfg.Metrics.IsEnabled() {
		p.Field("Metrics", "http://"+cfg.Metrics.Addr+"/metrics")
	}
	p.Path("PID file", pidPath)
}
