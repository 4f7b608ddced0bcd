package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/allocator"
	"github.com/jordanlanch/salesbot/pkg/api"
	"github.com/jordanlanch/salesbot/pkg/bot"
	"github.com/jordanlanch/salesbot/pkg/cache"
	"github.com/jordanlanch/salesbot/pkg/database"
	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/importer"
	"github.com/jordanlanch/salesbot/pkg/jobs"
	"github.com/jordanlanch/salesbot/pkg/lifecycle"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/report"
	"github.com/jordanlanch/salesbot/pkg/store"
	"github.com/jordanlanch/salesbot/pkg/telegram"
	"github.com/jordanlanch/salesbot/pkg/templates"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			AttachStacktrace: true,
		}); err != nil {
			log.Warn("failed to initialize sentry", "err", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Error("failed to connect to mongodb", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Error("failed to ensure indexes", "err", err)
		os.Exit(1)
	}

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	defer redisClient.Redis.Close()

	leadStore := store.NewMongoLeadStore(db.DB.Collection("clientes"))
	agentStore := store.NewMongoAgentStore(db.DB.Collection("vendedores"))
	templateStore := store.NewMongoTemplateStore(db.DB.Collection("mensagens"))
	batchStore := store.NewMongoBatchStore(db.DB.Collection("bases"))

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	agentsSvc := agents.NewService(agentStore)
	reportsSvc := report.NewService(leadStore, agentStore)
	exportsSvc := export.NewService(leadStore, agentStore)

	chat, err := telegram.NewClient(cfg.TelegramToken, log)
	if err != nil {
		log.Error("failed to connect to telegram", "err", err)
		os.Exit(1)
	}

	router := bot.NewRouter(bot.Deps{
		Client:    chat,
		Sessions:  bot.NewSessions(redisClient),
		Agents:    agentsSvc,
		Allocator: allocator.NewService(leadStore, batchStore),
		Lifecycle: lifecycle.NewService(leadStore),
		Reports:   reportsSvc,
		Templates: templates.NewService(templateStore),
		Importer:  importer.NewService(leadStore, batchStore),
		Exporter:  exportsSvc,
		Batches:   batchStore,
		Metrics:   m,
		Log:       log,
	})

	if cfg.SnapshotCron {
		cron := jobs.NewCronManager(leadStore, reportsSvc, redisClient, m, log)
		if err := cron.SetupJobs(); err != nil {
			log.Error("failed to set up cron jobs", "err", err)
			os.Exit(1)
		}
		cron.Start()
		defer cron.Stop()
	}

	server := api.New(api.Deps{
		Config:   cfg,
		Agents:   agentsSvc,
		Exports:  exportsSvc,
		DB:       db,
		Metrics:  m,
		Registry: registry,
		Log:      log,
	})
	go func() {
		addr := cfg.APIHost + ":" + cfg.APIPort
		log.Info("http api listening", "addr", addr)
		if err := api.Start(ctx, server, addr, log); err != nil {
			log.Error("http api stopped", "err", err)
		}
	}()

	log.Info("bot started", "environment", cfg.APIEnvironment)
	chat.Updates(ctx, router.HandleUpdate)
	log.Info("bot stopped")
}
