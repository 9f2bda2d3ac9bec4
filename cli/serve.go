package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/api"
	"github.com/raushankrgupta/product-image-scraper/config"
	"github.com/raushankrgupta/product-image-scraper/utils"
)

const shutdownTimeout = 30 * time.Second

func serveCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload page and scrape API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = config.Port
			}
			return serve(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT or 8080)")
	return cmd
}

func serve(ctx context.Context, port string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	opts := api.Options{
		NewExtractor:   newExtractorFactory(logger, prometheus.DefaultRegisterer),
		Logger:         logger.Named("api"),
		Gatherer:       prometheus.DefaultGatherer,
		JWTSecret:      config.JWTSecret,
		MaxUploadBytes: config.MaxUploadMB << 20,
	}
	if config.S3ExportEnabled() {
		exporter, err := utils.NewS3Exporter(ctx, config.AWSRegion, config.AWSBucketName, "scraped_images", logger)
		if err != nil {
			return err
		}
		opts.Exporter = exporter
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           api.NewServer(opts).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
