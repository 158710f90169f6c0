package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/analytics"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/consumer"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/source"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/cache"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/handler"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/history"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/config"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/health"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/kafka"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/logger"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/metrics"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/middleware"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/postgres"
	pkgredis "github.com/kikaihonyaku/cocosumo-sub004/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "collections", len(cfg.Collections))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	var src source.Source
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		src = source.NewPostgres(pg)
		checker.Register("postgres", pg.Ping)
		slog.Info("loading collections from postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		src = source.NewStatic()
		slog.Info("loading collections from files")
	}

	engine := indexer.NewEngine(cfg.Collections, src, m)
	checker.Register("index", engine.Ready)

	var resultCache *cache.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			engine.OnSwap(func(ctx context.Context, collection, version string) {
				if err := resultCache.InvalidateVersion(ctx, collection, version); err != nil {
					slog.Warn("failed to drop stale cache entries", "collection", collection, "error", err)
				}
			})
			checker.RegisterOptional("redis", redisClient.Ping)
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		publisher = producer

		changes := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CollectionChanged, consumer.HandleChange(engine))
		go func() {
			if err := changes.Start(ctx); err != nil {
				slog.Error("change consumer error", "error", err)
			}
			_ = changes.Close()
		}()
		slog.Info("kafka enabled",
			"brokers", cfg.Kafka.Brokers,
			"change_topic", cfg.Kafka.Topics.CollectionChanged,
			"events_topic", cfg.Kafka.Topics.SearchEvents,
		)
	}
	collector := analytics.NewCollector(publisher, aggregator, m, analytics.CollectorConfig{})
	collector.Start(ctx)

	if err := engine.RebuildAll(ctx); err != nil {
		slog.Error("initial index build incomplete", "error", err)
	}

	histories := history.NewStore(cfg.History.MaxItems, cfg.History.MaxSessions)
	h := handler.New(engine, resultCache, collector, histories, cfg.Search, m)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logging,
		middleware.Metrics(m),
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		mws = append(mws, middleware.RateLimit(middleware.NewClientLimiter(rl.RequestsPerSecond, rl.Burst)))
		slog.Info("rate limiting enabled", "rps", rl.RequestsPerSecond, "burst", rl.Burst)
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))
	chain := middleware.Chain(mux, mws...)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		collector.Close()
		os.Exit(1)
	}

	collector.Close()
	slog.Info("search service stopped")
}
