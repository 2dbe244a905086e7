package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Default Janitor configuration values.
const (
	defaultPruneSchedule = "*/10 * * * *"
)

// Janitor периодически удаляет старые завершённые job из Store.
//
// MemoryStore вытесняет историю сам; Janitor нужен для repo.JobRepo,
// где история копится в БД.
type Janitor struct {
	store    Store
	schedule cron.Schedule
	keep     int
	logger   *slog.Logger
}

// JanitorConfig — конфигурация Janitor.
type JanitorConfig struct {
	Store Store

	// Schedule — cron-выражение (default: каждые 10 минут).
	Schedule string

	// Keep — сколько завершённых job оставлять (default: 100).
	Keep int

	Logger *slog.Logger
}

// NewJanitor создаёт Janitor. Ошибка — невалидное cron-выражение.
func NewJanitor(cfg JanitorConfig) (*Janitor, error) {
	expr := cfg.Schedule
	if expr == "" {
		expr = defaultPruneSchedule
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultHistoryLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		store:    cfg.Store,
		schedule: schedule,
		keep:     keep,
		logger:   logger,
	}, nil
}

// Next возвращает время следующего запуска после from.
func (j *Janitor) Next(from time.Time) time.Time {
	return j.schedule.Next(from)
}

// Run выполняет очистку по расписанию до отмены ctx.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info("janitor started", "keep", j.keep, "next", j.Next(time.Now()))

	for {
		wait := time.Until(j.Next(time.Now()))
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("janitor stopped")
			return
		case <-timer.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error("janitor prune failed", "error", err)
			}
		}
	}
}

// RunOnce удаляет лишние завершённые job и возвращает их количество.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	removed, err := j.store.Prune(ctx, j.keep)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}

	if removed > 0 {
		j.logger.Info("pruned finished jobs", "removed", removed, "keep", j.keep)
	}
	return removed, nil
}
