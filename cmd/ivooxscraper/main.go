// Package main wires together the ivoox scraper service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/api"
	"github.com/JakeFAU/ivoox-scraper/internal/clock/system"
	"github.com/JakeFAU/ivoox-scraper/internal/config"
	"github.com/JakeFAU/ivoox-scraper/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/ivoox-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/ivoox-scraper/internal/id/uuid"
	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
	"github.com/JakeFAU/ivoox-scraper/internal/logging"
	"github.com/JakeFAU/ivoox-scraper/internal/metrics"
	"github.com/JakeFAU/ivoox-scraper/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/ivoox-scraper/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/ivoox-scraper/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/ivoox-scraper/internal/queue/memory"
	"github.com/JakeFAU/ivoox-scraper/internal/scraper"
	storememory "github.com/JakeFAU/ivoox-scraper/internal/store/memory"
	redisstore "github.com/JakeFAU/ivoox-scraper/internal/store/redis"
	"github.com/JakeFAU/ivoox-scraper/internal/storage"
	storagememory "github.com/JakeFAU/ivoox-scraper/internal/storage/memory"
	"github.com/JakeFAU/ivoox-scraper/internal/storage/postgres"
	"github.com/JakeFAU/ivoox-scraper/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	favorites, cleanupFavorites, err := buildFavorites(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("favorites store init failed", zap.Error(err))
	}
	defer cleanupFavorites()

	publisher, cleanupPublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer cleanupPublisher()

	queue := queuememory.NewQueue(cfg.Worker.QueueDepth)
	defer queue.Close()
	clock := system.New()
	idGen := uuid.New()

	orch := jobs.NewOrchestrator(
		store.cache, store.registry, store.results,
		queue, idGen, clock, cfg.TTLPolicy(), logger.Named("orchestrator"),
	)

	pacer := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Scraper.RequestsPerSec})
	engineFactory := func() (worker.Engine, error) {
		fetcher := collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			Pacer:     pacer,
		})
		return scraper.NewEngine(
			scraper.Config{BaseURL: cfg.Scraper.BaseURL},
			fetcher,
			logger.Named("engine"),
		), nil
	}

	workerCfg := worker.Config{Topic: cfg.PubSub.TopicName}
	var workers []*worker.Worker
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			orch,
			engineFactory,
			publisher,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)
	go dispatch.Run(ctx)

	apiServer := api.NewServer(orch, favorites, cfg, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

type stores struct {
	cache    jobs.Cache
	registry jobs.Registry
	results  jobs.ResultStore
}

func buildStore(cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Redis.Address == "" {
		logger.Warn("no redis address configured, using in-memory store")
		s := storememory.NewStore()
		return stores{cache: s, registry: s, results: s}, nil
	}
	client, err := redisstore.NewClient(redisstore.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return stores{}, err
	}
	s := redisstore.New(client)
	return stores{cache: s, registry: s, results: s}, nil
}

func buildFavorites(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.FavoriteStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no database DSN configured, using in-memory favorites store")
		return storagememory.NewFavoritesStore(), func() {}, nil
	}
	store, err := postgres.NewFavoritesStore(ctx, postgres.FavoritesStoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
		MinConns: int32(cfg.DB.MinOpenConns),
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (worker.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		logger.Warn("no pubsub project/topic configured, using in-memory publisher")
		return memorypublisher.New(), func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	cleanup := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close", zap.Error(err))
		}
	}
	return pubsubpublisher.New(topic), cleanup, nil
}
