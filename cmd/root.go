// Package cmd holds the cobra commands of the renderwatch binary.
package cmd

import (
	"github.com/grovetools/renderwatch/cli"
	"github.com/grovetools/renderwatch/logging"
	"github.com/grovetools/renderwatch/pkg/profiling"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the renderwatch command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"renderwatch",
		"Watch a directory and queue files for rendering",
	)

	profiling.NewCobraProfiler(logging.NewLogger("profiling")).Attach(root)

	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewStopCmd())
	root.AddCommand(cli.NewVersionCommand("renderwatch"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}
