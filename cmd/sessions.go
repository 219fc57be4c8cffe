package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/monitor"
	"github.com/grovetools/lookout/state"
)

// NewSessionsCmd creates the `sessions` command.
func NewSessionsCmd() *cobra.Command {
	cmd := cli.NewStandardCommand(
		"sessions",
		"Show agent sessions grouped by repository and worktree",
	)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := state.Load()
		if err != nil {
			return err
		}

		svc := monitor.NewService(monitor.ServiceOptions{
			DataRoot:     cfg.DataRoot,
			AlertTimeout: cfg.AlertTimeout(),
		})
		defer svc.Close()

		ctx := context.Background()
		for _, path := range st.Repositories {
			svc.AddRepository(ctx, path)
		}
		for path, expanded := range st.Expanded {
			svc.SetWorktreeExpanded(path, expanded)
		}

		repos := svc.Repositories()
		if cli.JSONOutput(cmd) {
			return json.NewEncoder(os.Stdout).Encode(repos)
		}

		printTree(repos)
		return nil
	}

	return cmd
}

func printTree(repos []*models.SelectedRepository) {
	if len(repos) == 0 {
		fmt.Println("No repositories monitored. Add one with: lookout repos add <path>")
		return
	}

	for _, repo := range repos {
		fmt.Printf("%s (%s)\n", repo.Name, repo.Path)
		for _, wt := range repo.Worktrees {
			label := wt.Branch
			if wt.IsMain {
				label += " [main]"
			}
			fmt.Printf("  %s\n", label)
			if len(wt.Sessions) == 0 {
				fmt.Println("    (no sessions)")
				continue
			}
			for _, sess := range wt.Sessions {
				fmt.Printf("    %s\n", formatSession(sess))
			}
		}
	}
}

func formatSession(sess *models.Session) string {
	name := sess.Slug
	if name == "" {
		name = sess.ID
	}
	active := ""
	if sess.IsActive {
		active = " *"
	}
	age := ""
	if !sess.LastActivity.IsZero() {
		age = fmt.Sprintf(", %s ago", time.Since(sess.LastActivity).Round(time.Minute))
	}
	return fmt.Sprintf("%s (%d messages%s)%s", name, sess.MessageCount, age, active)
}
