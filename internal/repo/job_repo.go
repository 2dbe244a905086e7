package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/jobs"
)

// jobColumns — колонки jobs в порядке scanJob.
const jobColumns = `
	id, workflow_id, workflow, user_input, status, attempt, max_attempts,
	progress, result, error, stop_requested, created_at, started_at, finished_at`

// JobRepo — jobs.Store поверх PostgreSQL.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

var _ jobs.Store = (*JobRepo)(nil)

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	workflowJSON, err := json.Marshal(job.Workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	inputJSON, err := json.Marshal(job.UserInput)
	if err != nil {
		return fmt.Errorf("marshal user_input: %w", err)
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	query := `
		INSERT INTO jobs (id, workflow_id, workflow, user_input, status, attempt,
		                  max_attempts, progress, stop_requested, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.WorkflowID,
		workflowJSON,
		inputJSON,
		job.Status,
		job.Attempt,
		job.MaxAttempts,
		progressJSON,
		job.StopRequested,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get возвращает job по ID.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// Update сохраняет изменяемые поля job.
// stop_requested только выставляется, но не сбрасывается.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	var resultJSON []byte
	if job.Result != nil {
		resultJSON, err = json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	query := `
		UPDATE jobs
		SET status = $2,
		    attempt = $3,
		    progress = $4,
		    result = $5,
		    error = $6,
		    stop_requested = stop_requested OR $7,
		    started_at = $8,
		    finished_at = $9
		WHERE id = $1
	`
	res, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Attempt,
		progressJSON,
		resultJSON,
		nullString(job.Error),
		job.StopRequested,
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if res.RowsAffected() == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}

// Claim переводит job из pending в active (pending → active).
// Из нескольких воркеров job получит только один.
func (r *JobRepo) Claim(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'active',
		    attempt = attempt + 1,
		    error = NULL,
		    started_at = COALESCE(started_at, NOW()),
		    progress = (progress - 'currentTaskId') || '{"completedTasks": 0}'::jsonb
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, jobs.ErrJobNotFound) {
		// Отличаем "нет такого job" от "уже взят"
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check job: %w", err)
		}
		if exists {
			return nil, jobs.ErrJobNotPending
		}
		return nil, jobs.ErrJobNotFound
	}
	return job, err
}

// RequestStop помечает незавершённый job к остановке.
func (r *JobRepo) RequestStop(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE jobs
		SET stop_requested = TRUE
		WHERE id = $1 AND status IN ('pending', 'active')
	`
	res, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("request stop: %w", err)
	}
	return res.RowsAffected() > 0, nil
}

// StopRequested сообщает, просили ли остановить job.
func (r *JobRepo) StopRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var stop bool
	err := r.pool.QueryRow(ctx, `SELECT stop_requested FROM jobs WHERE id = $1`, id).Scan(&stop)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, jobs.ErrJobNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get stop flag: %w", err)
	}
	return stop, nil
}

// ListUnclaimed возвращает pending job, которые ещё ни разу не запускались.
func (r *JobRepo) ListUnclaimed(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending' AND attempt = 0
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclaimed jobs: %w", err)
	}
	defer rows.Close()

	var list []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *job)
	}
	return list, rows.Err()
}

// Prune удаляет самые старые завершённые job, оставляя keep последних.
func (r *JobRepo) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status IN ('completed', 'failed')
			ORDER BY finished_at DESC
			OFFSET $1
		)
	`
	res, err := r.pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return int(res.RowsAffected()), nil
}

// --- Helpers ---

// scanJob сканирует строку (pgx.Row или pgx.Rows) в Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var workflowJSON, inputJSON, progressJSON, resultJSON []byte
	var jobError *string

	err := row.Scan(
		&job.ID,
		&job.WorkflowID,
		&workflowJSON,
		&inputJSON,
		&job.Status,
		&job.Attempt,
		&job.MaxAttempts,
		&progressJSON,
		&resultJSON,
		&jobError,
		&job.StopRequested,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if workflowJSON != nil {
		job.Workflow = &domain.Workflow{}
		if err := json.Unmarshal(workflowJSON, job.Workflow); err != nil {
			return nil, fmt.Errorf("unmarshal workflow: %w", err)
		}
	}
	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &job.UserInput); err != nil {
			return nil, fmt.Errorf("unmarshal user_input: %w", err)
		}
	}
	if progressJSON != nil {
		if err := json.Unmarshal(progressJSON, &job.Progress); err != nil {
			return nil, fmt.Errorf("unmarshal progress: %w", err)
		}
	}
	if resultJSON != nil {
		job.Result = &domain.JobResult{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
