// Command ragcrawld crawls documentation sites into a vector (and
// optionally graph) store and serves retrieval tools over MCP stdio.
//
// Usage:
//
//	ragcrawld serve --config ragcrawld.yaml
//	ragcrawld crawl https://example.com/docs --recursive
//	ragcrawld config validate --config ragcrawld.yaml
//	ragcrawld config show --config ragcrawld.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ragcrawld/ragcrawld/internal/config"
	"github.com/ragcrawld/ragcrawld/internal/crawl/orchestrate"
	"github.com/ragcrawld/ragcrawld/internal/logging"
)

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragcrawld",
		Short: "Crawl documentation sites and serve retrieval tools over MCP",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional; env vars and defaults always apply)")
	root.AddCommand(serveCmd(), crawlCmd(), configCmd())
	return root
}

func loadAndLog() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadAndLog()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("wiring application: %w", err)
			}
			defer a.Close(context.Background())

			watcher, err := config.Watch(ctx, configPath, logger, func(newCfg *config.Config) {
				a.orchestrator.SetMemoryThreshold(uint64(newCfg.Crawl.MemoryThresholdMB * 1024 * 1024))
			})
			if err != nil {
				logger.Warn("config file watch disabled", zap.Error(err))
			} else {
				defer watcher.Close()
			}

			if err := a.server.Run(ctx); err != nil {
				return fmt.Errorf("server run: %w", err)
			}
			return nil
		},
	}
}

func crawlCmd() *cobra.Command {
	var recursive bool
	var maxDepth, maxConcurrency, chunkSize int
	var graphEnabled, skipCodeExamples bool

	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Run a single crawl request without starting the MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadAndLog()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("wiring application: %w", err)
			}
			defer a.Close(context.Background())

			agg := a.orchestrator.Crawl(ctx, orchestrate.Request{
				URL:              args[0],
				Recursive:        recursive,
				MaxDepth:         maxDepth,
				MaxConcurrency:   maxConcurrency,
				ChunkSize:        chunkSize,
				GraphEnabled:     graphEnabled,
				SkipCodeExamples: skipCodeExamples,
			})

			fmt.Printf("success=%v strategy=%s pages=%d chunks=%d code_examples=%d sources=%d\n",
				agg.Success, agg.StrategyName, agg.PagesCrawled, agg.ChunksStored, agg.CodeExamplesStored, agg.SourcesUpdated)
			for _, w := range agg.Warnings {
				fmt.Println("warning:", w)
			}
			if !agg.Success {
				return fmt.Errorf("crawl did not produce any documents")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recursive, "recursive", false, "follow internal links found on the page")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum recursion depth (0 = strategy default)")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "maximum concurrent fetches (0 = strategy default)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (0 = package default)")
	cmd.Flags().BoolVar(&graphEnabled, "graph", false, "extract entities/relationships into the graph store")
	cmd.Flags().BoolVar(&skipCodeExamples, "skip-code-examples", false, "skip code-example extraction and storage")
	return cmd
}

func configCmd() *cobra.Command {
	root := &cobra.Command{Use: "config", Short: "Configuration utilities"}
	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Println("config OK")
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the fully resolved configuration as YAML, with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			out, err := config.ShowYAML(cfg)
			if err != nil {
				return fmt.Errorf("rendering config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return root
}
