package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/karhu-io/aclscan/storage"
	"github.com/karhu-io/aclscan/types"
)

var (
	historyStorageDir string
	historyFolder     string
	historyLimit      int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scan runs",
	Long: `Show the scan runs recorded by the service, newest first.

Each run lists the scanned folder, how many subfolders and entries it
covered, and the report file it produced.`,
	Example: `  aclscan history                        # Last 20 runs
  aclscan history --folder /srv/share    # Runs for one folder
  aclscan history --limit 5`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyStorageDir, "storage", "data", "Storage directory")
	historyCmd.Flags().StringVar(&historyFolder, "folder", "", "Only show runs for this folder")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	store, err := storage.Open(historyStorageDir)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.RecentRuns(types.RunFilter{
		FolderPath: historyFolder,
		Limit:      historyLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No scan runs recorded.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s\n", run.ScannedAt.Format("2006-01-02 15:04:05"), run.FolderPath)
		fmt.Printf("    subfolders=%d entries=%d errors=%d report=%s\n",
			run.Subfolders, run.RecordCount, run.ErrorCount, run.Report)
	}

	folders, rev, _ := store.Stats()
	fmt.Printf("\n%d runs shown, %d folders tracked, revision %d\n", len(runs), folders, rev)
	return nil
}
