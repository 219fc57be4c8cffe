package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
	"github.com/grovetools/lookout/state"
)

// NewReposCmd creates the `repos` command group.
func NewReposCmd() *cobra.Command {
	cmd := cli.NewStandardCommand(
		"repos",
		"Manage the list of monitored repositories",
	)

	cmd.AddCommand(newReposAddCmd())
	cmd.AddCommand(newReposRemoveCmd())
	cmd.AddCommand(newReposListCmd())
	cmd.AddCommand(newReposExpandCmd())
	cmd.AddCommand(newReposCollapseCmd())

	return cmd
}

func newReposAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Add a repository to the monitored set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			st, err := state.Load()
			if err != nil {
				return err
			}
			if !st.AddPath(path) {
				fmt.Printf("%s is already monitored\n", path)
				return nil
			}
			if err := state.Save(st); err != nil {
				return err
			}
			fmt.Printf("Added %s\n", path)
			return nil
		},
	}
}

func newReposRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a repository from the monitored set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			st, err := state.Load()
			if err != nil {
				return err
			}
			if !st.RemovePath(path) {
				fmt.Printf("%s is not monitored\n", path)
				return nil
			}
			if err := state.Save(st); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", path)
			return nil
		},
	}
}

func newReposExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <worktree-path>",
		Short: "Expand a worktree in session listings",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setExpanded(args[0], true) },
	}
}

func newReposCollapseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collapse <worktree-path>",
		Short: "Collapse a worktree in session listings",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setExpanded(args[0], false) },
	}
}

// setExpanded persists a worktree expansion flag. The daemon and the
// sessions command apply the map to the tree on startup.
func setExpanded(arg string, expanded bool) error {
	path, err := filepath.Abs(arg)
	if err != nil {
		return err
	}

	st, err := state.Load()
	if err != nil {
		return err
	}
	if expanded {
		st.Expanded[path] = true
	} else {
		delete(st.Expanded, path)
	}
	return state.Save(st)
}

func newReposListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := state.Load()
			if err != nil {
				return err
			}
			if len(st.Repositories) == 0 {
				fmt.Println("No repositories monitored. Add one with: lookout repos add <path>")
				return nil
			}
			for _, path := range st.Repositories {
				fmt.Println(path)
			}
			return nil
		},
	}
}
