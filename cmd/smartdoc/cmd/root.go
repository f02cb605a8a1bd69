// Package cmd provides the CLI commands for SmartDoc.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartdocfinder/smartdoc/internal/config"
	"github.com/smartdocfinder/smartdoc/internal/logging"
	"github.com/smartdocfinder/smartdoc/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the smartdoc CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartdoc",
		Short: "Hybrid document search with RAG answers",
		Long: `SmartDoc indexes uploaded documents and answers questions over them
with hybrid retrieval: keyword search and semantic search fused by
reciprocal rank, reranked, and summarized by a language model.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("smartdoc version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level := "info"
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         level,
		FilePath:      logging.DefaultLogPath(),
		WriteToStderr: true,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
