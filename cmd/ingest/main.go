package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/ingest"
)

var (
	configFile string
	pdfPath    string
	logLevel   string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:           "ingest",
	Short:         "Load a PDF, split it into chunks and store their embeddings",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "Path to a YAML config file")
	rootCmd.Flags().StringVar(&pdfPath, "pdf", "", "Document to ingest (overrides PDF_PATH)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the chunks, do not save to the vector store")
}

func main() {
	_ = godotenv.Load()
	helper.SetupLogger("info")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if pdfPath != "" {
		cfg.PDFPath = pdfPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	helper.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ingestor := ingest.New(cfg)
	if dryRun {
		stats, err := ingestor.DryRun(ctx, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		log.Info().Int("pages", stats.Pages).Int("chunks", stats.Chunks).Msg("Dry run completed")
		return nil
	}

	stats, err := ingestor.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("collection", cfg.RAG.Collection).
		Int("pages", stats.Pages).
		Int("chunks", stats.Chunks).
		Int("batches", stats.Batches).
		Msg("Document ingested")
	return nil
}
