// Package cmd implements the lookout CLI commands.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
)

// NewRootCmd assembles the lookout command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"lookout",
		"Monitor AI coding agent sessions across repositories and worktrees",
	)
	root.Long = `lookout watches agent transcript files and reconstructs each session's
live status, token usage and pending approvals, grouped by repository
and git worktree.`

	root.AddCommand(NewReposCmd())
	root.AddCommand(NewSessionsCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewFollowCmd())
	root.AddCommand(NewCostCmd())
	root.AddCommand(NewDaemonCmd())
	root.AddCommand(NewVersionCmd())

	return root
}
