package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rashomon-gh/proton-drive-sync/internal/logging"
	"github.com/rashomon-gh/proton-drive-sync/internal/paths"
)

func newLogsCommand() *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logDir, err := paths.LogDir()
			if err != nil {
				return err
			}
			logPath := logging.LogFilePath(logDir)

			file, err := os.Open(logPath)
			if err != nil {
				if os.IsNotExist(err) {
					printfln("No log file yet at %s", logPath)
					return nil
				}
				return err
			}
			defer file.Close()

			if err := printLastLines(file, lines); err != nil {
				return err
			}

			if !follow {
				return nil
			}

			// Poll for appended lines from the current offset.
			offset, err := file.Seek(0, 2)
			if err != nil {
				return err
			}
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(time.Second):
				}

				info, err := os.Stat(logPath)
				if err != nil {
					continue
				}
				if info.Size() <= offset {
					// Rotation truncates; start over from the top.
					if info.Size() < offset {
						offset = 0
					}
					continue
				}

				if _, err := file.Seek(offset, 0); err != nil {
					return err
				}
				scanner := bufio.NewScanner(file)
				for scanner.Scan() {
					fmt.Println(scanner.Text())
				}
				offset, _ = file.Seek(0, 1)
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing appended lines")
	return cmd
}

func printLastLines(file *os.File, n int) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	ring := make([]string, 0, n)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, line := range ring {
		fmt.Println(line)
	}
	return nil
}
