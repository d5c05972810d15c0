package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/tocindex/internal/api"
	"github.com/dgallion1/tocindex/internal/config"
	"github.com/dgallion1/tocindex/internal/hierarchy"
	"github.com/dgallion1/tocindex/internal/parser"
	"github.com/dgallion1/tocindex/internal/pathstore"
	"github.com/dgallion1/tocindex/internal/pipeline"
	"github.com/dgallion1/tocindex/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.LoadDotEnv(os.Getenv("DOTENV_PATH")); err != nil {
		log.Error("load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	tags := hierarchy.DefaultTags
	if cfg.TagsFile != "" {
		if tags, err = hierarchy.LoadTags(cfg.TagsFile, hierarchy.DefaultTags); err != nil {
			log.Error("load tags", "error", err)
			os.Exit(1)
		}
	}
	ix := pipeline.NewIndexer(pipeline.Options{
		Tolerance:       cfg.PageTolerance,
		ListingMarkers:  cfg.ListingMarkers,
		ListingMaxPages: cfg.ListingMaxPages,
		HeaderMaxLen:    cfg.HeaderMaxLen,
		Tags:            tags,
	}, log)

	// Publishing is optional. The interfaces stay nil when it is off.
	var (
		pub   pipeline.Publisher
		unpub api.Unpublisher
		ps    *pathstore.Client
	)
	if cfg.PublishEnabled() {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		pub, unpub = ps, ps
	}

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		Parser:       parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
	}, ix, st, pub, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, st, unpub, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting tocindex", "port", cfg.Port, "db", cfg.DBPath, "publish", cfg.PublishEnabled())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
