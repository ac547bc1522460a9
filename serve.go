package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sei-platform/seibackend/config"
	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/media"
	"github.com/sei-platform/seibackend/metrics"
	"github.com/sei-platform/seibackend/ocr"
	"github.com/sei-platform/seibackend/realtime"
	"github.com/sei-platform/seibackend/server"
	"github.com/sei-platform/seibackend/workers"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer db.Close()

		if err := database.AutoMigrateModels(db.Gorm); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mediaStore, err := openMediaStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		processor := media.NewProcessor(mediaStore, log)

		images := workers.NewImageProcessor(processor, db.Store(), mediaStore,
			cfg.ThumbnailMaxSize, cfg.ImageQueueSize, cfg.NumImageWorkers, log)
		defer images.Stop()

		extractor, closeOCR, err := openExtractor(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeOCR()

		hub := realtime.NewHub(log)
		handler := server.NewRouter(server.Deps{
			Config:    cfg,
			DB:        db,
			Processor: processor,
			Images:    images,
			Hub:       hub,
			Metrics:   metrics.New(),
			OCR:       extractor,
			Log:       log,
		})

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			log.Info("server listening", "addr", srv.Addr, "version", version)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func openMediaStore(ctx context.Context, cfg config.Config, log *logger.Logger) (media.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		return media.NewS3Storage(ctx, media.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		}, media.DefaultSubDirs(), log)
	default:
		log.Info("using local media storage", "path", cfg.MediaStoragePath)
		return media.NewLocalStorage(cfg.MediaStoragePath, media.DefaultSubDirs(), log)
	}
}

func openExtractor(ctx context.Context, cfg config.Config, log *logger.Logger) (ocr.Extractor, func(), error) {
	if cfg.OCRDriver != config.OCRDocumentAI {
		return ocr.Noop{}, func() {}, nil
	}
	e, err := ocr.NewDocumentAIExtractor(ctx, ocr.DocumentAIConfig{
		ProjectID:   cfg.DocumentAIProject,
		Location:    cfg.DocumentAILocation,
		ProcessorID: cfg.DocumentAIProcessor,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return e, func() {
		if err := e.Close(); err != nil {
			log.Warn("failed to close Document AI client", "error", err)
		}
	}, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
