package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chat"
	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/rag"
)

var (
	configFile string
	query      string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "chat",
	Short:         "Ask questions about the ingested document",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "Path to a YAML config file")
	rootCmd.Flags().StringVarP(&query, "query", "q", "", "Answer a single question and exit")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	_ = godotenv.Load()
	helper.SetupLogger("info")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Chat failed")
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	helper.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	searcher := rag.NewRAG(cfg)
	if query != "" {
		res := searcher.Query(ctx, query)
		fmt.Fprintf(cmd.OutOrStdout(), "ANSWER: %s\n", res)
		return nil
	}

	return chat.NewLoop(searcher, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
}
