// Lexd is a clause extraction daemon for legal documents.
//
// It exposes an HTTP API for submitting documents for analysis and
// reading processing job status, plus a one-shot analyze command for
// local files.
//
// Usage:
//
//	# Start the daemon with defaults
//	lexd serve
//
//	# Configure via file and environment
//	LEXD_SERVER_PORT=9090 lexd serve --config /etc/lexd/config.yaml
//
//	# Analyze a local file without the daemon
//	lexd analyze --type rental lease.txt
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional YAML config file, shared by all commands.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lexd",
	Short: "Clause extraction and relationship mapping for legal documents",
	Long: `lexd extracts typed clauses from legal documents, infers the
relationships between them and produces a structured analysis record
per document, tracked through a persisted processing job lifecycle.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lexd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
