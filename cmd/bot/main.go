package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/backends"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/config"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/eligibility"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/logging"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/metrics"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/pipeline"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/server"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/tgbot"
)

// botOps adds the eligibility lookup to the generator for admin commands.
type botOps struct {
	*pipeline.Generator
	store records.Store
	loc   *time.Location
}

func (o botOps) Available(ctx context.Context, accountID string) ([]models.Event, error) {
	events, err := eligibility.Available(ctx, o.store, accountID, time.Now().In(o.loc))
	if err != nil {
		return nil, err
	}
	return eligibility.ByDeadline(events), nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stderr, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := backends.OpenRecords(ctx, cfg)
	if err != nil {
		logger.Error("records", "driver", cfg.RecordsDriver, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	backend, rootID, err := backends.OpenStorage(ctx, cfg)
	if err != nil {
		logger.Error("storage", "driver", cfg.StorageDriver, "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	uploader := storage.NewUploader(backend, storage.Options{
		RootID:         rootID,
		CategoryFolder: cfg.StorageCategoryFolder,
		CallTimeout:    cfg.StorageCallTimeout,
		Logger:         logger,
		Recorder:       m,
		Now:            func() time.Time { return time.Now().In(cfg.Timezone) },
	})

	opts := pipeline.Options{
		TemplateRoot: cfg.TemplateDir,
		Location:     cfg.Timezone,
		Logger:       logger,
		Recorder:     m,
	}

	var botApp *tgbot.App
	if cfg.TelegramToken != "" {
		botApp, err = tgbot.New(cfg.TelegramToken, cfg.AdminTGIDs, logger)
		if err != nil {
			logger.Error("telegram", "err", err)
			os.Exit(1)
		}
		opts.Notifier = botApp
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN is empty, notifications disabled")
	}

	gen := pipeline.New(store, uploader, opts)

	httpSrv := server.New(cfg, server.Deps{
		Generator: gen,
		Records:   store,
		Folders:   uploader,
		Metrics:   m.Handler(),
		Logger:    logger,
	})

	// Start HTTP server
	go func() {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			cancel()
		}
	}()

	// Start Telegram
	if botApp != nil {
		botApp.Attach(botOps{Generator: gen, store: store, loc: cfg.Timezone})
		go func() {
			if err := botApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bot stopped", "err", err)
				cancel()
			}
		}()
	}

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	cancel()
	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)

	logger.Info("bye")
}
