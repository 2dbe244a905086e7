package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/broadcast"
	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/jobs"
)

const (
	defaultKeepAlive = 15 * time.Second
	maxBodyBytes     = 10 << 20 // картинки приходят в base64
)

// TaskRunner выполняет одну задачу синхронно (реализуется runner.Runner).
type TaskRunner interface {
	RunTask(ctx context.Context, def domain.TaskDef, store map[string]any) (any, error)
}

// EventSource выдаёт подписки на события job (реализуется broadcast.Broadcaster).
type EventSource interface {
	Subscribe(jobID uuid.UUID) *broadcast.Subscription
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	queue     jobs.Queue
	events    EventSource
	runner    TaskRunner
	keepAlive time.Duration
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Queue  jobs.Queue
	Events EventSource
	Runner TaskRunner

	// KeepAlive — интервал комментариев в SSE-потоке (default: 15s).
	KeepAlive time.Duration

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		queue:     cfg.Queue,
		events:    cfg.Events,
		runner:    cfg.Runner,
		keepAlive: keepAlive,
		logger:    logger,
	}
}
