package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/wardentools/warden/pkg/paths"
)

func newDaemonLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		Long: `Print the tail of the daemon's current log file.

The daemon writes one dated log file per day under the warden state
directory. With --follow the command keeps streaming as the daemon writes,
surviving the midnight rollover to a new file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath, err := latestDaemonLog()
			if err != nil {
				return err
			}

			trailing, err := readTrailingLines(logPath, lines)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", logPath, err)
			}
			for _, line := range trailing {
				fmt.Println(line)
			}

			if !follow {
				return nil
			}

			t, err := tail.TailFile(logPath, tail.Config{
				Follow:   true,
				ReOpen:   true,
				Logger:   tail.DiscardingLogger,
				Location: &tail.SeekInfo{Whence: io.SeekEnd},
			})
			if err != nil {
				return fmt.Errorf("failed to follow %s: %w", logPath, err)
			}
			defer t.Cleanup()

			for line := range t.Lines {
				if line.Err != nil {
					continue
				}
				fmt.Println(line.Text)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 40, "Number of trailing lines to print")

	return cmd
}

// latestDaemonLog picks the newest non-empty wardend log file. Empty files
// exist when a daemon started but logged nothing yet; prefer ones with
// content so -n shows something useful.
func latestDaemonLog() (string, error) {
	dir := paths.LogDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("no daemon logs under %s: %w", dir, err)
	}

	var newest, newestNonEmpty string
	var newestMod, newestNonEmptyMod int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "wardend-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if newest == "" || mod > newestMod {
			newest, newestMod = name, mod
		}
		if info.Size() > 0 && (newestNonEmpty == "" || mod > newestNonEmptyMod) {
			newestNonEmpty, newestNonEmptyMod = name, mod
		}
	}

	if newestNonEmpty != "" {
		return filepath.Join(dir, newestNonEmpty), nil
	}
	if newest != "" {
		return filepath.Join(dir, newest), nil
	}
	return "", fmt.Errorf("no daemon log files under %s (has the daemon run?)", dir)
}

// readTrailingLines returns the last n lines, reading at most the trailing
// 256 KiB of the file.
func readTrailingLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	const window = 256 * 1024
	offset := info.Size() - window
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}

	all := strings.Split(text, "\n")
	if offset > 0 && len(all) > 0 {
		all = all[1:]
	}
	if n >= 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
