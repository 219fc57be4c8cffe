package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/lookout/cli"
	"github.com/grovetools/lookout/internal/daemon/pidfile"
	"github.com/grovetools/lookout/internal/daemon/server"
	"github.com/grovetools/lookout/internal/daemon/store"
	"github.com/grovetools/lookout/logging"
	"github.com/grovetools/lookout/pkg/models"
	"github.com/grovetools/lookout/pkg/monitor"
	"github.com/grovetools/lookout/pkg/paths"
	"github.com/grovetools/lookout/state"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := cli.NewStandardCommand(
		"daemon",
		"Run and manage the lookout daemon",
	)

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in foreground mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("lookoutd")
			pidPath := paths.PidFilePath()

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			sockPath := cfg.Socket

			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			st := store.New()
			svc := monitor.NewService(monitor.ServiceOptions{
				DataRoot:     cfg.DataRoot,
				AlertTimeout: cfg.AlertTimeout(),
				OnTree:       st.SetTree,
				OnSession:    st.SetSession,
				OnAlert: func(id string, pending models.PendingToolUse) {
					st.Alert(id, pending)
				},
			})
			defer svc.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Restore the persisted repository selection and expansion flags.
			if selected, err := state.Load(); err == nil {
				for _, path := range selected.Repositories {
					svc.AddRepository(ctx, path)
				}
				for path, expanded := range selected.Expanded {
					svc.SetWorktreeExpanded(path, expanded)
				}
			} else {
				logger.WithError(err).Warn("Failed to load repository selection")
			}

			// Periodic rescan keeps the tree fresh even without requests.
			go func() {
				ticker := time.NewTicker(cfg.RefreshInterval())
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						svc.RefreshSessions(ctx)
					}
				}
			}()

			srv := server.New(logger, st, svc)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(sockPath); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to signal daemon: %w", err)
			}
			fmt.Printf("Sent stop signal to daemon (pid %d)\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return err
			}
			if running {
				fmt.Printf("Daemon is running (pid %d, socket %s)\n", pid, paths.SocketPath())
			} else {
				fmt.Println("Daemon is not running")
			}
			return nil
		},
	}
}
