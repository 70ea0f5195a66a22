package cli

import (
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/auth"
	"github.com/rashomon-gh/proton-drive-sync/internal/config"
)

func newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			printfln("Proton Drive Sync Setup")
			printfln("=======================")
			printfln("")

			if !auth.IsAuthenticated() {
				printfln("You are not logged in yet.")
				printfln("Run 'proton-drive-sync auth login' first, then re-run setup.")
				return nil
			}

			mgr, err := loadConfig()
			if err != nil {
				return err
			}

			for {
				addMore := false
				prompt := "Add a sync directory?"
				if len(mgr.Get().SyncDirs) > 0 {
					prompt = "Add another sync directory?"
				}
				if err := survey.AskOne(&survey.Confirm{Message: prompt, Default: len(mgr.Get().SyncDirs) == 0}, &addMore); err != nil {
					return err
				}
				if !addMore {
					break
				}

				var source string
				if err := survey.AskOne(&survey.Input{Message: "Local directory to sync:"}, &source, survey.WithValidator(survey.Required)); err != nil {
					return err
				}

				var remote string
				if err := survey.AskOne(&survey.Input{
					Message: "Remote folder (leading slash):",
					Default: "/",
				}, &remote, survey.WithValidator(survey.Required)); err != nil {
					return err
				}

				if err := mgr.AddSyncDir(source, remote); err != nil {
					return err
				}
				printfln("✓ Added %s -> %s", source, remote)
			}

			var concurrencyStr string
			if err := survey.AskOne(&survey.Input{
				Message: "Concurrent uploads:",
				Default: strconv.Itoa(mgr.Get().SyncConcurrency),
			}, &concurrencyStr); err != nil {
				return err
			}
			if n, err := strconv.Atoi(concurrencyStr); err == nil {
				if err := mgr.SetConcurrency(n); err != nil {
					return err
				}
			}

			var behavior string
			if err := survey.AskOne(&survey.Select{
				Message: "When a local file is deleted, the remote copy is:",
				Options: []string{string(config.DeleteTrash), string(config.DeletePermanent)},
				Default: string(mgr.Get().RemoteDeleteBehavior),
			}, &behavior); err != nil {
				return err
			}
			if err := mgr.SetDeleteBehavior(config.DeleteBehavior(behavior)); err != nil {
				return err
			}

			printfln("")
			printfln("Setup complete! Configuration written to %s", mgr.Path())
			printfln("Run 'proton-drive-sync start' to begin syncing.")
			return nil
		},
	}
}
