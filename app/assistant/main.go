package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/cultiflow/voicedesk/config"
	"github.com/cultiflow/voicedesk/internal/api/handlers"
	"github.com/cultiflow/voicedesk/internal/api/middleware"
	"github.com/cultiflow/voicedesk/internal/api/routes"
	"github.com/cultiflow/voicedesk/internal/audio"
	"github.com/cultiflow/voicedesk/internal/ledger"
	"github.com/cultiflow/voicedesk/internal/logger"
	"github.com/cultiflow/voicedesk/internal/pipeline"
	"github.com/cultiflow/voicedesk/internal/providers/stt"
	"github.com/cultiflow/voicedesk/internal/providers/translate"
	"github.com/cultiflow/voicedesk/internal/providers/tts"
	"github.com/cultiflow/voicedesk/internal/qastore"
	"github.com/cultiflow/voicedesk/internal/storage"
	"github.com/cultiflow/voicedesk/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logg := logger.New()
	ctx := context.Background()

	// SQLite is the always-available backend; Postgres is optional.
	liteDB, err := config.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("SQLite init error: %v", err)
	}
	fmt.Println("SQLite connected")

	var primary qastore.Backend
	if pgDB, err := config.OpenPostgres(); err != nil {
		logg.WithError(err).Warn("PostgreSQL unavailable, running on SQLite only")
	} else {
		fmt.Println("PostgreSQL connected")
		backend, err := qastore.NewGormBackend("postgres", pgDB)
		if err != nil {
			log.Fatalf("PostgreSQL migrate error: %v", err)
		}
		primary = backend
	}

	secondary, err := qastore.NewGormBackend("sqlite", liteDB)
	if err != nil {
		log.Fatalf("SQLite migrate error: %v", err)
	}

	store, err := qastore.New(primary, secondary, cfg.OrgToken, logg)
	if err != nil {
		log.Fatalf("qa store error: %v", err)
	}

	led, err := ledger.New(liteDB)
	if err != nil {
		log.Fatalf("ledger init error: %v", err)
	}

	// Providers
	var sttProvider stt.Provider
	switch cfg.STTProvider {
	case "google":
		gp, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.Fatalf("Google Speech init error: %v", err)
		}
		sttProvider = gp
	default:
		sttProvider = stt.NewGhanaNLP(cfg.GhanaNLPAPIKey)
	}
	defer sttProvider.Close()

	translator := translate.NewGhanaNLP(cfg.GhanaNLPAPIKey)
	defer translator.Close()
	ttsProvider := tts.NewGhanaNLP(cfg.GhanaNLPAPIKey)
	defer ttsProvider.Close()

	var archive storage.Uploader
	if cfg.GCSBucket != "" {
		up, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			logg.WithError(err).Warn("GCS unavailable, audio archive disabled")
		} else {
			fmt.Println("GCS archive enabled")
			archive = up
		}
	}

	pipe := &pipeline.Pipeline{
		STT:        sttProvider,
		Translator: translator,
		TTS:        ttsProvider,
		Store:      store,
		Ledger:     led,
		Converter:  audio.NewConverter(logg),
		Sink:       pipeline.NewFileSink(cfg.RecordingsDir),
		Archive:    archive,
		Log:        logg,
		Opts: pipeline.Options{
			SpokenLanguage:   cfg.SpokenLanguage,
			LookupLanguages:  cfg.LookupLanguages,
			DefaultAnswer:    cfg.DefaultAnswer,
			ApologyText:      cfg.ApologyText,
			FallbackClipPath: cfg.FallbackClipPath,
		},
	}

	// Queue workers; without Redis the POST /calls/process endpoint is off
	// but the read API still serves.
	var enqueue handlers.EnqueueFunc
	if rdb, err := config.OpenRedis(); err != nil {
		logg.WithError(err).Warn("Redis unavailable, call queue disabled")
	} else {
		fmt.Println("Redis connected")
		pool := &workers.CallWorkerPool{
			Redis:      rdb,
			Pipeline:   pipe,
			NumWorkers: cfg.Workers,
			Logger:     logg,
		}
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("worker pool error: %v", err)
		}
		enqueue = func(c *gin.Context, req pipeline.Request) (string, error) {
			return workers.Enqueue(c.Request.Context(), rdb, pool.Stream, req)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logg))
	routes.RegisterRoutes(r, routes.Deps{
		Call: handlers.NewCallHandler(led, enqueue),
		QA:   handlers.NewQAHandler(store),
	})

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
