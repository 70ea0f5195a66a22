package cli

import (
	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/scanner"
)

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a reconciliation scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			printfln("Running reconciliation scan...")
			printfln("")

			cfgMgr, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(2)
			if err != nil {
				return err
			}
			defer closeStore(st)

			count, err := scanner.New(st).ScanAll(cmd.Context(), cfgMgr.Get())
			if err != nil {
				return err
			}

			printfln("")
			printfln("Reconciliation complete!")
			printfln("Detected %d changes", count)
			return nil
		},
	}
}
