// Command searchserver runs the in-memory TF-IDF search service.
//
// On start it optionally bootstraps the corpus from PostgreSQL, then serves
// the document and search API, applies ingest events from Kafka when
// enabled, caches status-filtered results in Redis when enabled, and exposes
// Prometheus metrics on a separate port.
//
// Usage:
//
//	go run ./cmd/searchserver [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/execution"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/loader"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/dedup"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/searcher/history"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-server/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search server",
		"port", cfg.Server.Port,
		"parallel", cfg.Search.Parallel,
		"stop_words", len(cfg.Search.StopWords),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine, err := indexer.NewEngine(cfg.Search, m)
	if err != nil {
		slog.Error("failed to create index", "error", err)
		os.Exit(1)
	}
	policy := execution.Sequential
	if cfg.Search.Parallel {
		policy = execution.Parallel
	}

	checker := health.NewChecker()
	indexReady := health.NewFlag("corpus bootstrap in progress")
	checker.Register("index", indexReady.Check)

	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect",
			resilience.RetryConfig{MaxAttempts: cfg.Postgres.ConnectAttempts},
			func() error {
				var err error
				db, err = postgres.New(cfg.Postgres)
				return err
			})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping))

		stats, err := loader.New(db, cfg.Postgres.CorpusTable, engine).Load(ctx)
		if err != nil {
			slog.Error("corpus bootstrap failed", "error", err)
			os.Exit(1)
		}
		slog.Info("corpus bootstrapped", "loaded", stats.Loaded, "skipped", stats.Skipped)
	}
	indexReady.Set(true)

	var queryCache *cache.QueryCache
	var invalidator consumer.Invalidator
	if cfg.Redis.Enabled {
		var redisClient *pkgredis.Client
		err := resilience.Retry(ctx, "redis connect",
			resilience.RetryConfig{MaxAttempts: cfg.Redis.ConnectAttempts},
			func() error {
				var err error
				redisClient, err = pkgredis.NewClient(cfg.Redis)
				return err
			})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: cfg.Redis.BreakerThreshold,
				ResetTimeout:     cfg.Redis.BreakerResetTimeout,
				OnStateChange: func(name string, to resilience.State) {
					m.SetBreakerState(name, int(to))
				},
			})
			queryCache = cache.New(cache.NewGuardedStore(redisClient, breaker), cfg.Redis.CacheTTL, m)
			invalidator = queryCache
			if err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("failed to clear stale cache entries", "error", err)
			}
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				if state := breaker.State(); state != resilience.StateClosed {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: "cache circuit " + state.String()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.Enabled {
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest,
			consumer.HandleMessage(engine, policy, invalidator))
		ingest := consumer.New(kafkaConsumer)
		go func() {
			if err := ingest.Start(ctx); err != nil {
				slog.Error("ingest consumer error", "error", err)
			}
		}()
		slog.Info("ingest consumer started", "topic", cfg.Kafka.Topics.DocumentIngest)
	}

	h := handler.New(
		engine,
		executor.New(engine, cfg.Search, m),
		queryCache,
		history.NewRequestQueue(cfg.Search.HistoryWindow),
		dedup.New(engine, policy, m),
		cfg.Search,
	)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

	slog.Info("search server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search server stopped", "documents", engine.DocumentCount())
}
