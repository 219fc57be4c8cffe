package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/monitor"
	"github.com/grovetools/lookout/pkg/paths"
	"github.com/grovetools/lookout/pkg/pricing"
	"github.com/grovetools/lookout/pkg/transcript"
)

// NewCostCmd creates the `cost` command: estimate a session's spend from
// its transcript.
func NewCostCmd() *cobra.Command {
	var projectPath string

	cmd := cli.NewStandardCommand(
		"cost <session-id>",
		"Estimate a session's token cost from its transcript",
	)
	cmd.Args = cobra.ExactArgs(1)
	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project path the session belongs to (default: current directory)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
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

		path := paths.TranscriptPath(cfg.DataRoot, projectPath, args[0])
		st, err := foldTranscript(args[0], path)
		if err != nil {
			return err
		}

		breakdown := pricing.Cost(st.Model, st.Tokens)
		if cli.JSONOutput(cmd) {
			return json.NewEncoder(os.Stdout).Encode(breakdown)
		}

		fmt.Printf("Session %s (%s tier)\n", st.SessionID, breakdown.Tier)
		fmt.Printf("  input          %10d tokens  $%s\n", st.Tokens.InputTokens, breakdown.Input.StringFixed(4))
		fmt.Printf("  output         %10d tokens  $%s\n", st.Tokens.OutputTokens, breakdown.Output.StringFixed(4))
		fmt.Printf("  cache read     %10d tokens  $%s\n", st.Tokens.CacheReadTokens, breakdown.CacheRead.StringFixed(4))
		fmt.Printf("  cache creation %10d tokens  $%s\n", st.Tokens.CacheCreationTokens, breakdown.CacheCreation.StringFixed(4))
		fmt.Printf("  total                             $%s\n", breakdown.Total.StringFixed(4))
		return nil
	}

	return cmd
}

// foldTranscript replays a whole transcript into a fresh session state.
func foldTranscript(sessionID, path string) (*models.SessionMonitorState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	st := models.NewSessionMonitorState(sessionID)
	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			monitor.Fold(st, transcript.ParseLine(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}
