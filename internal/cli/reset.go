package cli

import (
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/auth"
	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/paths"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
)

func newResetCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset sync data",
		RunE: func(cmd *cobra.Command, args []string) error {
			printfln("This will stop the sync engine and clear all sync history.")
			if purge {
				printfln("Purge mode: this will also remove all configuration and credentials.")
			}
			printfln("")

			confirm := false
			if err := survey.AskOne(&survey.Confirm{Message: "Are you sure?", Default: false}, &confirm); err != nil {
				return err
			}
			if !confirm {
				printfln("Reset cancelled.")
				return nil
			}

			ctx := cmd.Context()

			dbPath, err := paths.DatabasePath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(dbPath); err == nil {
				st, err := openStore(1)
				if err == nil {
					st.SendSignal(ctx, store.SignalStop)
					st.ClearFlag(ctx, store.FlagRunning)
					st.ClearFlag(ctx, store.FlagPaused)
					closeStore(st)
				}
				printfln("✓ Sync engine stopped")
			}

			os.Remove(dbPath)
			printfln("✓ Sync history cleared")

			if purge {
				if configDir, err := paths.ConfigDir(); err == nil {
					os.Remove(filepath.Join(configDir, config.ConfigFileName))
					printfln("✓ Configuration cleared")
				}

				if err := auth.DeleteSession(); err == nil {
					printfln("✓ Credentials cleared")
				}
			}

			printfln("")
			printfln("Reset complete!")
			if purge {
				printfln("Run 'proton-drive-sync auth login' to set up again.")
			} else {
				printfln("Your configuration and credentials are preserved.")
				printfln("Run 'proton-drive-sync start' to begin syncing again.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Also remove configuration and credentials")
	return cmd
}
