// Package cli implements the imagescraper command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/api"
	"github.com/raushankrgupta/product-image-scraper/config"
	"github.com/raushankrgupta/product-image-scraper/metrics"
	"github.com/raushankrgupta/product-image-scraper/scrapers"
	"github.com/raushankrgupta/product-image-scraper/scrapers/base"
	"github.com/raushankrgupta/product-image-scraper/scrapers/securemobiles"
	"github.com/raushankrgupta/product-image-scraper/utils"
)

// Version is set at build time with -ldflags "-X .../cli.Version=..."
var Version = "dev"

var (
	// Debug forces debug logging for all commands
	Debug bool

	rootCmd = &cobra.Command{
		Use:           "imagescraper",
		Short:         "Resolve product image links from a list of product pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "imagescraper version %s\n", Version)
		},
	})
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(columnsCommand())
}

func newLogger() (*zap.Logger, error) {
	level := config.LogLevel
	if Debug {
		level = "debug"
	}
	return utils.NewLogger(level, config.LogFormat)
}

// newExtractorFactory wires the chromedp launcher and the retailer matcher
func newExtractorFactory(logger *zap.Logger, reg prometheus.Registerer) api.ExtractorFactory {
	launcher := base.NewChromeLauncher(config.ChromePath, logger.Named("browser"))
	matcher := securemobiles.NewMatcher()
	m := metrics.NewMetrics(reg)

	return func(progress scrapers.ProgressFunc) api.Extractor {
		return scrapers.NewExtractor(launcher, matcher,
			scrapers.WithLogger(logger.Named("extractor")),
			scrapers.WithMetrics(m),
			scrapers.WithProgress(progress),
		)
	}
}
