package cli

import (
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/store"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(1)
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.SendSignal(cmd.Context(), store.SignalStop); err != nil {
				return err
			}
			printfln("Stop signal sent")

			if err := st.ClearFlag(cmd.Context(), store.FlagRunning); err != nil {
				return err
			}
			printfln("Sync engine stopped")
			return nil
		},
	}
}

func newPauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause syncing",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(1)
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.SendSignal(cmd.Context(), store.SignalPause); err != nil {
				return err
			}
			if err := st.SetFlag(cmd.Context(), store.FlagPaused); err != nil {
				return err
			}
			printfln("Sync paused")
			return nil
		},
	}
}

func newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume syncing",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(1)
			if err != nil {
				return err
			}
			defer closeStore(st)

			if err := st.SendSignal(cmd.Context(), store.SignalResume); err != nil {
				return err
			}
			if err := st.ClearFlag(cmd.Context(), store.FlagPaused); err != nil {
				return err
			}
			printfln("Sync resumed")
			return nil
		},
	}
}
