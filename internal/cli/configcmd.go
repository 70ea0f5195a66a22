package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure sync settings",
	}
	cmd.AddCommand(
		newConfigShowCommand(),
		newConfigAddDirCommand(),
		newConfigRemoveDirCommand(),
		newConfigSetConcurrencyCommand(),
		newConfigSetDeleteBehaviorCommand(),
		newConfigAddExcludeCommand(),
		newConfigRemoveExcludeCommand(),
	)
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(mgr.Get(), "", "  ")
			if err != nil {
				return err
			}
			printfln("%s", data)
			return nil
		},
	}
}

func newConfigAddDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-dir <source-path> <remote-root>",
		Short: "Add a sync directory pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.AddSyncDir(args[0], args[1]); err != nil {
				return err
			}
			printfln("Added sync directory: %s -> %s", args[0], args[1])
			return nil
		},
	}
}

func newConfigRemoveDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-dir <index>",
		Short: "Remove a sync directory pair by index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: not a valid index: %s", syncerr.ErrConfig, args[0])
			}
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.RemoveSyncDir(index); err != nil {
				return err
			}
			printfln("Removed sync directory %d", index)
			return nil
		},
	}
}

func newConfigSetConcurrencyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-concurrency <n>",
		Short: "Set the number of concurrent sync workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: not a valid concurrency: %s", syncerr.ErrConfig, args[0])
			}
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.SetConcurrency(n); err != nil {
				return err
			}
			printfln("Sync concurrency set to %d", n)
			return nil
		},
	}
}

func newConfigSetDeleteBehaviorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-delete-behavior <trash|permanent>",
		Short: "Set what a remote delete does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.SetDeleteBehavior(config.DeleteBehavior(args[0])); err != nil {
				return err
			}
			printfln("Remote delete behavior set to %s", args[0])
			return nil
		},
	}
}

func newConfigAddExcludeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-exclude <path> <glob> [glob...]",
		Short: "Add an exclusion pattern",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.AddExcludePattern(args[0], args[1:]); err != nil {
				return err
			}
			printfln("Added exclusion for %s: %v", args[0], args[1:])
			return nil
		},
	}
}

func newConfigRemoveExcludeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-exclude <index>",
		Short: "Remove an exclusion pattern by index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: not a valid index: %s", syncerr.ErrConfig, args[0])
			}
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.RemoveExcludePattern(index); err != nil {
				return err
			}
			printfln("Removed exclusion %d", index)
			return nil
		},
	}
}
