package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/dashboard"
)

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Start the web dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgMgr, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(2)
			if err != nil {
				return err
			}
			defer closeStore(st)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
				<-sigCh
				cancel()
			}()

			cfg := cfgMgr.Get()
			printfln("Dashboard running at http://%s:%d", cfg.DashboardHost, cfg.DashboardPort)

			return dashboard.NewServer(cfgMgr, st).Start(ctx)
		},
	}
}
