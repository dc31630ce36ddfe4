package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-partitions/internal/api"
	"github.com/dvloznov/statement-partitions/internal/app"
	"github.com/dvloznov/statement-partitions/internal/config"
	"github.com/dvloznov/statement-partitions/internal/jobs/inmemory"
	"github.com/dvloznov/statement-partitions/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Parse command-line flags
	var (
		port   = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		bucket = flag.String("bucket", cfg.GCSBucket, "GCS bucket holding month partitions (or set GCS_BUCKET env)")
	)
	flag.Parse()
	cfg.Port, cfg.GCSBucket = *port, *bucket

	// Initialize logger
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	src, err := svc.OpenSource(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.SourceDriver).Msg("Failed to open migration source")
	}

	// All migrations, synchronous or queued, run one at a time through the queue.
	queue := inmemory.NewQueue(8, svc.NewMigrationJob(src), inmemory.NewStore(), log)
	if err := queue.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start migration queue")
	}

	handler := api.NewRouter(api.Deps{
		Ingester:       svc.Ingester,
		Migrator:       queue,
		Runs:           queue,
		MaxUploadBytes: cfg.MaxWorkbookBytes,
		Log:            log,
	})

	// Migration runs can take minutes; the write timeout is sized for them.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("bucket", cfg.GCSBucket).
			Str("prefix", cfg.PartitionPrefix).
			Str("source", cfg.SourceDriver).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Migration queue did not drain")
	}

	log.Info().Msg("Server exited")
}
