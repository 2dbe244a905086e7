// PromptFlow API — HTTP-интерфейс движка workflow.
//
// API:
//   - Принимает workflow и ставит job в очередь
//   - Отдаёт статус job и поток событий прогресса (SSE)
//   - Синхронно выполняет отдельные задачи
//
// Backend очереди выбирается через queue.backend:
//   - memory: job выполняются в процессе API
//   - amqp: job пишутся в PostgreSQL и публикуются в RabbitMQ,
//     выполняет их promptflow-worker
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/promptflow/internal/api"
	"github.com/shaiso/promptflow/internal/broadcast"
	"github.com/shaiso/promptflow/internal/config"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/jobs"
	"github.com/shaiso/promptflow/internal/mq"
	"github.com/shaiso/promptflow/internal/provider"
	"github.com/shaiso/promptflow/internal/repo"
	"github.com/shaiso/promptflow/internal/runner"
	"github.com/shaiso/promptflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load(os.Getenv("PROMPTFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting promptflow-api", "backend", cfg.Queue.Backend)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("promptflow-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	events := broadcast.New(broadcast.WithLogger(logger))

	var (
		pool    *pgxpool.Pool
		queue   jobs.Queue
		prompts runner.PromptResolver
		err     error
	)

	if cfg.Queue.Backend == config.BackendAMQP {
		pool, err = repo.NewPool(ctx, repo.PoolConfig{URL: cfg.DB.URL, MaxConns: cfg.DB.MaxConns})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to database")
		prompts = repo.NewPromptRepo(pool)
	}

	if cfg.Prompts.File != "" {
		static, err := runner.LoadPrompts(cfg.Prompts.File)
		if err != nil {
			return err
		}
		prompts = static
		logger.Info("loaded prompts", "file", cfg.Prompts.File, "count", len(static))
	}

	wfRunner, err := newRunner(cfg, prompts, logger)
	if err != nil {
		return err
	}

	switch cfg.Queue.Backend {
	case config.BackendAMQP:
		stop, q, err := startDurable(ctx, cfg, pool, events, logger)
		if err != nil {
			return err
		}
		defer stop()
		queue = q

	default:
		store := jobs.NewMemoryStore(cfg.Queue.HistoryLimit)
		processor := jobs.NewProcessor(jobs.ProcessorConfig{
			Store:  store,
			Runner: wfRunner,
			Sink:   events,
			Retry:  cfg.RetryPolicy(),
			Logger: logger,
		})
		local := jobs.NewLocalQueue(jobs.LocalConfig{
			Store:      store,
			Processor:  processor,
			Workers:    cfg.Queue.Workers,
			BufferSize: cfg.Queue.Buffer,
			Logger:     logger,
		})
		local.Start(ctx)
		defer local.Stop()
		queue = local
	}

	handler := api.NewHandler(api.Config{
		Queue:  queue,
		Events: events,
		Runner: wfRunner,
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.API.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

// startDurable подключает RabbitMQ и запускает relay событий и janitor.
// Возвращает функцию остановки.
func startDurable(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, events *broadcast.Broadcaster, logger *slog.Logger) (func(), jobs.Queue, error) {
	conn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger, mq.WithConnectionName("promptflow-api"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("setup topology: %w", err)
	}

	store := repo.NewJobRepo(pool)
	queue := jobs.NewDurableQueue(jobs.DurableConfig{
		Store:       store,
		Publisher:   mq.NewPublisher(conn, logger),
		MaxAttempts: cfg.Queue.MaxAttempts,
		Logger:      logger,
	})

	janitor, err := jobs.NewJanitor(jobs.JanitorConfig{
		Store:    store,
		Schedule: cfg.Queue.PruneCron,
		Keep:     cfg.Queue.HistoryLimit,
		Logger:   logger,
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	bgCtx, cancel := context.WithCancel(ctx)
	relay := mq.NewEventRelay(conn, events, logger)

	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		if err := relay.Start(bgCtx); err != nil {
			logger.Error("event relay error", "error", err)
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		janitor.Run(bgCtx)
	}()

	stop := func() {
		cancel()
		<-done
		<-done
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close rabbitmq connection", "error", err)
		}
	}
	return stop, queue, nil
}

// newRunner собирает провайдер, исполнитель задач и runner.
func newRunner(cfg *config.Config, prompts runner.PromptResolver, logger *slog.Logger) (*runner.Runner, error) {
	llm, err := provider.New(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	exec := executor.New(executor.Config{
		Provider:      llm,
		ScriptTimeout: cfg.Script.Timeout,
		Logger:        logger,
	})

	return runner.New(runner.Config{
		Executor: exec,
		Prompts:  prompts,
		Logger:   logger,
	}), nil
}
