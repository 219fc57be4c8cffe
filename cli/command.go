// Package cli provides shared scaffolding for lookout commands.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/config"
	"github.com/grovetools/lookout/logging"
)

// NewStandardCommand creates a command with the standard lookout flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to lookout.toml config file")

	return cmd
}

// GetLogger creates a logger honoring the command's verbosity flags.
func GetLogger(cmd *cobra.Command) *logrus.Logger {
	entry := logging.NewLogger("cli")
	logger := entry.Logger

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// JSONOutput reports whether the command should emit JSON.
func JSONOutput(cmd *cobra.Command) bool {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return jsonOutput
}

// LoadConfig loads the config named by --config, or the default config
// when the flag is unset.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}
