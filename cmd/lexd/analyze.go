package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/analysis"
	"github.com/fyrsmithlabs/lexd/internal/config"
	"github.com/fyrsmithlabs/lexd/internal/extraction"
	"github.com/fyrsmithlabs/lexd/internal/logging"
	"github.com/fyrsmithlabs/lexd/internal/relationship"
)

var (
	analyzeDocType string
	analyzeDocID   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze one document file and print the result as JSON",
	Long: `Run the extraction pipeline on a local file without the daemon or a
document store, printing the structured analysis record to stdout.

Examples:
  # Analyze a rental agreement
  lexd analyze --type rental lease.txt

  # Analyze with an LLM provider
  LEXD_PROVIDER_API_KEY=sk-... lexd analyze --type nda nda.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDocType, "type", extraction.GenericDocumentType, "document type")
	analyzeCmd.Flags().StringVar(&analyzeDocID, "id", "", "document id (default: file name)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Pipeline logs go to stderr so stdout stays valid JSON.
	logger, err := logging.NewLogger(cfg.Logging.Level, "console")
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	documentID := analyzeDocID
	if documentID == "" {
		documentID = args[0]
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	opts := extraction.DefaultExtractorOptions()
	opts.InvokeTimeout = cfg.Provider.Timeout

	extractor, err := extraction.NewExtractor(extraction.NewRegistry(), provider,
		logger.Named("extraction"), opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Jobs.Timeout)
	defer cancel()

	started := time.Now()
	clauses, meta, err := extractor.Extract(ctx, documentID, string(text), analyzeDocType)
	if err != nil {
		return fmt.Errorf("extract clauses: %w", err)
	}

	rels := relationship.NewMapper(logger.Named("relationship")).Map(clauses)
	result := analysis.NewBuilder().Build(documentID, analyzeDocType, clauses, rels,
		time.Since(started), meta)

	logger.Info("analysis complete",
		zap.Int("clauses", len(clauses)),
		zap.Int("relationships", len(rels)),
		zap.Float64("confidence", result.ConfidenceScore))

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
