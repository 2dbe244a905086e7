// PromptFlow Worker — выполняет job из durable-очереди.
//
// Worker:
//   - Получает job.pending из RabbitMQ (и находит пропущенные polling'ом)
//   - Атомарно забирает job в PostgreSQL и выполняет workflow
//   - Повторяет job целиком с exponential backoff
//   - Публикует события прогресса в exchange событий
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/promptflow/internal/config"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/jobs"
	"github.com/shaiso/promptflow/internal/mq"
	"github.com/shaiso/promptflow/internal/provider"
	"github.com/shaiso/promptflow/internal/repo"
	"github.com/shaiso/promptflow/internal/runner"
	"github.com/shaiso/promptflow/internal/telemetry"
	"github.com/shaiso/promptflow/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("PROMPTFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting promptflow-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfig{URL: cfg.DB.URL, MaxConns: cfg.DB.MaxConns})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := repo.NewJobRepo(pool)

	var prompts runner.PromptResolver = repo.NewPromptRepo(pool)
	if cfg.Prompts.File != "" {
		static, err := runner.LoadPrompts(cfg.Prompts.File)
		if err != nil {
			logger.Error("failed to load prompts", "error", err)
			os.Exit(1)
		}
		prompts = static
	}

	llm, err := provider.New(cfg.ProviderConfig())
	if err != nil {
		logger.Error("failed to create provider", "error", err)
		os.Exit(1)
	}

	wfRunner := runner.New(runner.Config{
		Executor: executor.New(executor.Config{
			Provider:      llm,
			ScriptTimeout: cfg.Script.Timeout,
			Logger:        logger,
		}),
		Prompts: prompts,
		Logger:  logger,
	})

	// RabbitMQ
	var sink jobs.EventSink
	var mqConn *mq.Connection

	mqConn, err = mq.NewConnection(cfg.RabbitMQ.URL, logger, mq.WithConnectionName("promptflow-worker"))
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode without progress events", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		sink = mq.NewEventPublisher(mq.NewPublisher(mqConn, logger), logger)
	}

	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Store:  store,
		Runner: wfRunner,
		Sink:   sink,
		Retry:  cfg.RetryPolicy(),
		Logger: logger,
	})

	w := worker.New(worker.Config{
		Processor:    processor,
		Store:        store,
		Conn:         mqConn,
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		Concurrency:  cfg.Worker.Concurrency,
		Logger:       logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		switch {
		case mqConn == nil:
			_, _ = w.Write([]byte("ok (polling only)"))
		case !mqConn.IsConnected():
			_, _ = w.Write([]byte("ok (rabbitmq reconnecting)"))
		default:
			_, _ = w.Write([]byte("ok"))
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Worker.Port
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("promptflow-worker stopped")
}
