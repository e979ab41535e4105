package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "trackmatch/internal/api/http"
	"trackmatch/internal/app"
	"trackmatch/internal/metrics"
	mongorepo "trackmatch/internal/repository/mongo"
	"trackmatch/internal/resolver"
	"trackmatch/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger, logCloser := app.NewLogger(cfg)
	if logCloser != nil {
		defer logCloser.Close()
	}
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: "trackmatch",
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "trackmatch"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("resolveTimeout", cfg.ResolveTimeout),
		slog.Duration("providerTimeout", cfg.ProviderTimeout),
		slog.Any("audioProviders", cfg.AudioProviders),
		slog.String("searchQuery", cfg.SearchQuery),
		slog.Bool("filterResults", cfg.FilterResults),
		slog.Float64("minScore", cfg.MinScore),
		slog.Bool("hasSoundCloudClientID", cfg.SoundCloudClientID != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasMongo", strings.TrimSpace(cfg.MongoURI) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	providers, err := app.BuildProviders(cfg)
	if err != nil {
		return err
	}

	opts := app.ServiceOptions(cfg, logger)
	opts = append(opts, buildCacheOptions(cfg, logger)...)

	mongoClient, history := buildHistory(cfg, logger)
	if history != nil {
		opts = append(opts, resolver.WithHistory(history))
	}
	defer func() {
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	resolveService := resolver.NewService(providers, cfg.ResolveTimeout, opts...)

	handler := apihttp.NewServer(resolveService,
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(cfg.HTTPRateLimitRPS, cfg.HTTPRateLimitBurst),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// /resolve/ws streams for as long as a batch runs.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("trackmatch service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.ResolveTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("trackmatch service stopped")
	return nil
}

func buildCacheOptions(cfg app.Config, logger *slog.Logger) []resolver.ServiceOption {
	if cfg.CacheDisabled {
		return nil
	}
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	backend := resolver.NewRedisCacheBackend(redis.NewClient(redisOpts))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := backend.Ping(ctx); err != nil {
		logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return []resolver.ServiceOption{resolver.WithRedisCache(backend)}
}

func buildHistory(cfg app.Config, logger *slog.Logger) (*mongo.Client, *mongorepo.HistoryRepository) {
	uri := strings.TrimSpace(cfg.MongoURI)
	if uri == "" {
		logger.Info("mongo uri not configured, resolution history disabled")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(ctx, uri, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, resolution history disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Warn("mongo not reachable, resolution history disabled", slog.String("error", err.Error()))
		_ = client.Disconnect(context.Background())
		return nil, nil
	}
	repo := mongorepo.NewHistoryRepository(client, cfg.MongoDatabase)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("mongo index creation failed", slog.String("error", err.Error()))
	}
	logger.Info("mongo connected", slog.String("database", cfg.MongoDatabase))
	return client, repo
}
