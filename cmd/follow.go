package cmd

import (
	"fmt"
	"os"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
	"github.com/grovetools/lookout/pkg/paths"
)

// NewFollowCmd creates the `follow` command: stream a transcript's raw
// lines, like tail -f on the session's JSONL file.
func NewFollowCmd() *cobra.Command {
	var projectPath string

	cmd := cli.NewStandardCommand(
		"follow <session-id>",
		"Stream a session's raw transcript lines as they are written",
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

		t, err := tail.TailFile(path, tail.Config{
			Follow:    true,
			ReOpen:    true,
			MustExist: false,
			Logger:    tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("tail %s: %w", path, err)
		}
		defer t.Cleanup()

		for line := range t.Lines {
			if line.Err != nil {
				return line.Err
			}
			fmt.Println(line.Text)
		}
		return nil
	}

	return cmd
}
