package cli

import (
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/store"
)

func newStatusCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(1)
			if err != nil {
				return err
			}
			defer closeStore(st)

			ctx := cmd.Context()

			running, err := st.HasFlag(ctx, store.FlagRunning)
			if err != nil {
				return err
			}
			paused, err := st.HasFlag(ctx, store.FlagPaused)
			if err != nil {
				return err
			}

			printfln("Proton Drive Sync Status")
			printfln("========================")
			printfln("")

			if !running {
				printfln("Status: Stopped")
				printfln("")
				printfln("Start the sync engine with: proton-drive-sync start")
				return nil
			}

			if paused {
				printfln("Status: Paused")
				printfln("")
				printfln("Resume with: proton-drive-sync resume")
			} else {
				printfln("Status: Running")
			}
			printfln("")

			counts, err := st.StatusCounts(ctx)
			if err != nil {
				return err
			}

			printfln("Queue Status:")
			printfln("  Pending: %d", counts.Pending)
			printfln("  Processing: %d", counts.Processing)
			printfln("  Synced: %d", counts.Synced)
			printfln("  Blocked: %d", counts.Blocked)

			if verbose && counts.Blocked > 0 {
				blocked, err := st.ListBlocked(ctx, 50)
				if err != nil {
					return err
				}

				printfln("")
				printfln("Blocked jobs:")
				for _, job := range blocked {
					reason := "unknown"
					if job.LastError != nil {
						reason = *job.LastError
					}
					printfln("  #%d %s %s: %s", job.ID, job.EventType, job.LocalPath, reason)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
	return cmd
}
