package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "aclscan",
		Short: "Folder Permission Auditor",
		Long: `aclscan - Folder Permission Auditor

aclscan enumerates the access-control entries of a directory and its
immediate subdirectories, decodes the raw permission masks into readable
labels, and writes downloadable CSV reports.

Run it as a web service, fire one-off scans from the command line, and
review the scan history it keeps.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`aclscan {{.Version}} - Folder Permission Auditor
`)
}
