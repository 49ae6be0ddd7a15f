// Command kaiamate serves the wallet task API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohans/kaiamate/analysis"
	"github.com/mohans/kaiamate/api"
	"github.com/mohans/kaiamate/asyncx"
	"github.com/mohans/kaiamate/config"
	"github.com/mohans/kaiamate/executor"
	"github.com/mohans/kaiamate/orchestrator"
	"github.com/mohans/kaiamate/task"
)

var (
	configPath = flag.String("config", "", "path to YAML config file")
	workerOnly = flag.Bool("worker", false, "consume the asynq queue without serving HTTP")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("kaiamate exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	lvl, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, closeProvider, err := newProvider(ctx, cfg.Analysis, logger)
	if err != nil {
		return err
	}
	defer closeProvider()
	logger.Info("analysis provider ready", "provider", provider.Name())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []orchestrator.Option{
		orchestrator.WithMetrics(orchestrator.NewMetrics(reg)),
		orchestrator.WithConcurrency(cfg.Dispatch.Concurrency),
		orchestrator.WithExecTimeout(cfg.Tasks.ExecTimeout),
		orchestrator.WithStatusCacheSize(cfg.Tasks.StatusCacheSize),
	}
	var redisOpt asynq.RedisClientOpt
	if cfg.Dispatch.Mode == "asynq" {
		redisOpt = asynq.RedisClientOpt{Addr: cfg.Dispatch.RedisAddr}
		client := asyncx.NewClient(redisOpt, asyncx.ClientOptions{Queue: cfg.Dispatch.Queue})
		defer client.Close()
		opts = append(opts, orchestrator.WithDispatcher(client))
	}
	exec := executor.New(provider)
	logger.Info("task handlers registered", "types", exec.Types())
	orch := orchestrator.New(store, exec, logger, opts...)
	defer orch.Close()

	if *workerOnly {
		if cfg.Dispatch.Mode != "asynq" {
			return errors.New("-worker requires dispatch mode asynq")
		}
		logger.Info("kaiamate worker consuming", "queue", cfg.Dispatch.Queue, "store", cfg.Store.Driver)
		// Run blocks until SIGINT or SIGTERM.
		return newProcessor(redisOpt, orch, cfg, logger).Run()
	}

	if cfg.Dispatch.Mode == "asynq" && cfg.Dispatch.Worker {
		processor := newProcessor(redisOpt, orch, cfg, logger)
		if err := processor.Start(); err != nil {
			return fmt.Errorf("start asynq processor: %w", err)
		}
		defer processor.Shutdown()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.New(orch, api.Options{
			CORSOrigin:  cfg.Server.CORSOrigin,
			Environment: cfg.Server.Environment,
			RateLimit: api.RateLimit{
				RPS:     cfg.Server.RateLimit.RPS,
				Burst:   cfg.Server.RateLimit.Burst,
				Clients: cfg.Server.RateLimit.Clients,
			},
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kaiamate listening",
			"addr", cfg.Server.Addr,
			"store", cfg.Store.Driver,
			"dispatch", cfg.Dispatch.Mode,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return nil
}

func newProcessor(redisOpt asynq.RedisClientOpt, orch *orchestrator.Orchestrator, cfg *config.Config, logger *slog.Logger) *asyncx.Processor {
	return asyncx.NewProcessor(redisOpt, orch, asyncx.ProcessorConfig{
		Concurrency: cfg.Dispatch.Concurrency,
		Queues:      map[string]int{cfg.Dispatch.Queue: 1},
	}, logger)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (task.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := task.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := task.NewPgStore(pool)
		if err := s.EnsureTable(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return task.NewRedisStore(rdb, cfg.RedisPrefix), func() { rdb.Close() }, nil
	default:
		return task.NewMemStore(), func() {}, nil
	}
}

func newProvider(ctx context.Context, cfg config.AnalysisConfig, logger *slog.Logger) (analysis.Provider, func(), error) {
	if cfg.Provider == "static" {
		return analysis.NewStatic(), func() {}, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, using static analysis")
		return analysis.NewStatic(), func() {}, nil
	}
	g, err := analysis.NewGemini(ctx, analysis.GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model}, logger)
	if err != nil {
		return nil, nil, err
	}
	return g, func() { g.Close() }, nil
}
