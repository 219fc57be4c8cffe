package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/monitor"
	"github.com/grovetools/lookout/pkg/pricing"
)

// NewWatchCmd creates the `watch` command: live-monitor one session.
func NewWatchCmd() *cobra.Command {
	var projectPath string

	cmd := cli.NewStandardCommand(
		"watch <session-id>",
		"Live-monitor one session's status, tools and token usage",
	)
	cmd.Args = cobra.ExactArgs(1)
	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project path the session belongs to (default: current directory)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		cfg, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}
		if projectPath == "" {
			projectPath, err = os.Getwd()
			if err != nil {
				return err
			}
		}

		jsonOut := cli.JSONOutput(cmd)
		enc := json.NewEncoder(os.Stdout)

		svc := monitor.NewService(monitor.ServiceOptions{
			DataRoot:     cfg.DataRoot,
			AlertTimeout: cfg.AlertTimeout(),
			OnSession: func(st *models.SessionMonitorState) {
				if jsonOut {
					enc.Encode(st)
					return
				}
				printSessionState(st)
			},
			OnAlert: func(id string, pending models.PendingToolUse) {
				fmt.Printf("\a[%s] approval needed: %s pending for %s\n",
					id, pending.ToolName, pending.Elapsed(time.Now()).Round(time.Second))
			},
		})
		defer svc.Close()

		if err := svc.MonitorSession(sessionID, projectPath); err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		return nil
	}

	return cmd
}

func printSessionState(st *models.SessionMonitorState) {
	status := string(st.Status)
	if st.CurrentTool != "" {
		status = fmt.Sprintf("%s (%s)", status, st.CurrentTool)
	}
	cost := pricing.Cost(st.Model, st.Tokens)
	fmt.Printf("[%s] %s | %d msgs | in:%d out:%d | $%s\n",
		st.SessionID, status, st.MessageCount,
		st.Tokens.InputTokens, st.Tokens.OutputTokens,
		cost.Total.StringFixed(4))

	if n := len(st.RecentActivities); n > 0 {
		last := st.RecentActivities[n-1]
		fmt.Printf("  last: %s\n", last.Description)
	}
}
