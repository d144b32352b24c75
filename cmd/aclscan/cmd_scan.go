package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/karhu-io/aclscan/acl"
	"github.com/karhu-io/aclscan/report"
	"github.com/karhu-io/aclscan/scanner"
	"github.com/karhu-io/aclscan/types"
)

var (
	scanTimeout    time.Duration
	scanReportsDir string
	scanCSVOut     bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Scan one folder's permissions from the command line",
	Long: `Scan a folder and its immediate subdirectories for access-control
entries and print the decoded permissions.

With --report the records are also written as a CSV report file, the
same format the web service produces.`,
	Example: `  aclscan scan /srv/share               # Print permissions
  aclscan scan /srv/share --csv         # CSV to stdout
  aclscan scan /srv/share --report ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", scanner.DefaultTimeout, "Per-folder descriptor timeout")
	scanCmd.Flags().StringVar(&scanReportsDir, "report", "", "Also write a CSV report into this directory")
	scanCmd.Flags().BoolVar(&scanCSVOut, "csv", false, "Print records as CSV instead of a table")
}

func runScan(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	folder := args[0]
	if _, err := os.Stat(folder); err != nil {
		return fmt.Errorf("folder %s does not exist", folder)
	}

	sc, err := scanner.New(acl.NewOSProvider(), scanner.WithTimeout(scanTimeout))
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	ctx := context.Background()
	records := sc.ScanTree(ctx, folder)
	if len(records) == 0 {
		return fmt.Errorf("could not retrieve any permission data for %s", folder)
	}

	if scanCSVOut {
		printCSV(records)
	} else {
		printRecords(records)
	}

	if scanReportsDir != "" {
		writer, err := report.NewWriter(scanReportsDir)
		if err != nil {
			return err
		}
		filename, err := writer.Write(ctx, records)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("\nReport written: %s\n", filename)
	}

	errorCount := types.CountErrors(records)
	fmt.Printf("\n%d entries, %d errors\n", len(records), errorCount)
	return nil
}

func printRecords(records []types.Record) {
	lastFolder := ""
	for _, r := range records {
		if r.FolderPath != lastFolder {
			fmt.Printf("\n%s\n", r.FolderPath)
			lastFolder = r.FolderPath
		}
		fmt.Printf("  %-8s %-30s %s\n", r.EntryType, r.Principal, r.Permissions)
	}
}

func printCSV(records []types.Record) {
	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"Folder Path", "Principal", "Type", "Permissions"})
	for _, r := range records {
		_ = w.Write([]string{r.FolderPath, r.Principal, string(r.EntryType), r.Permissions})
	}
	w.Flush()
}
