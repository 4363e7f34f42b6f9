package cmd

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"

	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the renderwatch log file",
		Long: `Prints the log file written when logging.file.enabled is set in
renderwatch.yml. Use -f to keep following it.`,
		Example: `# follow the log of a running watcher
renderwatch logs -f

# only queue decisions
renderwatch logs --grep QUEUED`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("file", "", "Log file to read instead of the configured one")
	cmd.Flags().String("grep", "", "Only show lines containing this text")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = logging.LogFilePath()
	}
	if path == "" {
		return errors.New(errors.ErrCodeConfigNotFound,
			"file logging is disabled; set logging.file.enabled in renderwatch.yml or pass --file")
	}

	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	grep, _ := cmd.Flags().GetString("grep")

	return streamLog(cmd.Context().Done(), cmd.OutOrStdout(), path, follow, tailLines, grep)
}

// streamLog copies path to out. Without follow it stops at EOF.
func streamLog(done <-chan struct{}, out io.Writer, path string, follow bool, tailLines int, grep string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot read log file").WithDetail("path", path)
	}

	var backlog []string
	location := &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	if tailLines >= 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		start := len(lines) - tailLines
		if start < 0 {
			start = 0
		}
		backlog = lines[start:]
		location = &tail.SeekInfo{Offset: int64(len(data)), Whence: io.SeekStart}
		for _, line := range backlog {
			writeLine(out, line, grep)
		}
		if !follow {
			return nil
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Location:  location,
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "cannot tail log file").WithDetail("path", path)
	}
	defer t.Cleanup()

	for {
		select {
		case <-done:
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			writeLine(out, line.Text, grep)
		}
	}
}

func writeLine(out io.Writer, line, grep string) {
	if line == "" {
		return
	}
	if grep != "" && !strings.Contains(line, grep) {
		return
	}
	fmt.Fprintln(out, line)
}
