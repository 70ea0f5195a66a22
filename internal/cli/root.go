// Package cli implements the proton-drive-sync command tree. Commands
// talk to a running engine only through signal and flag rows in the
// shared store; there is no socket or RPC.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/logging"
	"github.com/rashomon-gh/proton-drive-sync/internal/paths"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
)

var debugFlag bool

// NewRootCommand builds the full command tree.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "proton-drive-sync",
		Short:         "Sync local files to Proton Drive",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debugFlag {
				logging.Setup(true)
				return nil
			}
			logDir, err := paths.LogDir()
			if err != nil {
				return err
			}
			return logging.SetupWithFile(logDir, false)
		},
	}

	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	root.AddCommand(
		newAuthCommand(),
		newConfigCommand(),
		newStartCommand(),
		newStopCommand(),
		newStatusCommand(),
		newPauseCommand(),
		newResumeCommand(),
		newReconcileCommand(),
		newResetCommand(),
		newLogsCommand(),
		newDashboardCommand(),
		newSetupCommand(),
	)

	return root
}

// openStore opens the shared state database at its default location.
func openStore(poolSize int) (*store.Store, error) {
	dbPath, err := paths.DatabasePath()
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath, poolSize)
}

// loadConfig loads the configuration from its default location.
func loadConfig() (*config.Manager, error) {
	return config.NewManager()
}

// closeStore closes quietly; CLI commands are about to exit anyway.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logrus.WithError(err).Debug("Error closing store")
	}
}

func printfln(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}
