package cmd

import (
	"encoding/json"
	"fmt"
	"syscall"
	"time"

	"github.com/grovetools/renderwatch/cli"
	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/internal/pidfile"
	"github.com/grovetools/renderwatch/pkg/paths"
	"github.com/grovetools/renderwatch/pkg/process"
	"github.com/grovetools/renderwatch/tui/theme"
	"github.com/spf13/cobra"
)

// resolvePIDFile picks --pidfile, then the configured path, then the default.
func resolvePIDFile(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("pidfile"); path != "" {
		return path
	}
	if cfg, err := cli.LoadConfig(cli.GetOptions(cmd)); err == nil && cfg.PIDFile != "" {
		if expanded, err := paths.Expand(cfg.PIDFile); err == nil {
			return expanded
		}
		return cfg.PIDFile
	}
	return pidfile.DefaultPath()
}

// NewStatusCmd creates the `status` command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a watcher is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolvePIDFile(cmd)
			running, pid, err := pidfile.IsRunning(path)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, _ := json.Marshal(map[string]interface{}{
					"running": running,
					"pid":     pid,
					"pidfile": path,
				})
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if running {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (PID %d)\n", theme.RenderStatus("success", "running"), pid)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), theme.RenderStatus("warning", "not running"))
			}
			return nil
		},
	}
	cmd.Flags().String("pidfile", "", "PID file path")
	return cmd
}

// NewStopCmd creates the `stop` command.
func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolvePIDFile(cmd)
			timeout, _ := cmd.Flags().GetDuration("timeout")

			running, pid, err := pidfile.IsRunning(path)
			if err != nil {
				return err
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), theme.RenderStatus("warning", "not running"))
				return nil
			}

			if err := process.Signal(pid, syscall.SIGTERM); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to signal watcher").WithDetail("pid", pid)
			}
			if !process.WaitExit(pid, timeout, 100*time.Millisecond) {
				return errors.New(errors.ErrCodeInternal, fmt.Sprintf("watcher (PID %d) did not exit within %s", pid, timeout)).
					WithDetail("pid", pid)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (PID %d)\n", theme.RenderStatus("success", "stopped"), pid)
			return nil
		},
	}
	cmd.Flags().String("pidfile", "", "PID file path")
	cmd.Flags().Duration("timeout", 10*time.Second, "How long to wait for the watcher to exit")
	return cmd
}
