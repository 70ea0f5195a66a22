package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/auth"
	"github.com/rashomon-gh/proton-drive-sync/internal/dashboard"
	"github.com/rashomon-gh/proton-drive-sync/internal/drive"
	"github.com/rashomon-gh/proton-drive-sync/internal/engine"
	"github.com/rashomon-gh/proton-drive-sync/internal/metrics"
)

func newStartCommand() *cobra.Command {
	var foreground bool
	var withDashboard bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := auth.LoadSession()
			if err != nil {
				return err
			}

			cfgMgr, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfgMgr.Get().SyncConcurrency + 4)
			if err != nil {
				return err
			}
			defer closeStore(st)

			client := drive.NewAPIClient(session)

			dash := dashboard.NewServer(cfgMgr, st)
			met := metrics.New(dash.Registry())

			eng := engine.New(st, cfgMgr, client, met)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := eng.Start(ctx); err != nil {
				return err
			}
			logrus.Info("Sync engine started")

			if withDashboard {
				go func() {
					if err := dash.Start(ctx); err != nil {
						logrus.WithError(err).Error("Dashboard server error")
					}
				}()
			}

			if !foreground {
				printfln("Running in the current session; use your service manager to daemonize.")
				printfln("(systemd on Linux, launchd on macOS, Windows services on Windows)")
			}

			logrus.Info("Press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			logrus.Info("Received shutdown signal")

			if err := eng.Stop(ctx); err != nil {
				return err
			}
			cancel()
			eng.Close()
			logrus.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	cmd.Flags().BoolVar(&withDashboard, "with-dashboard", false, "Also serve the web dashboard")
	return cmd
}
