package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/runner"
)

// PromptRepo — библиотека промптов в PostgreSQL.
// Только чтение: промпты заводятся вне promptflow.
type PromptRepo struct {
	pool *pgxpool.Pool
}

// NewPromptRepo создаёт новый PromptRepo.
func NewPromptRepo(pool *pgxpool.Pool) *PromptRepo {
	return &PromptRepo{pool: pool}
}

var _ runner.PromptResolver = (*PromptRepo)(nil)

// ResolvePrompt возвращает промпт по ID.
func (r *PromptRepo) ResolvePrompt(ctx context.Context, id string) (*domain.LinkedPrompt, error) {
	query := `
		SELECT id, title, prompt_text, sfl_tenor, sfl_mode
		FROM prompts
		WHERE id = $1
	`

	var p domain.LinkedPrompt
	var title *string
	var tenorJSON, modeJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &title, &p.PromptText, &tenorJSON, &modeJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", runner.ErrPromptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}

	if title != nil {
		p.Title = *title
	}
	if tenorJSON != nil {
		if err := json.Unmarshal(tenorJSON, &p.Tenor); err != nil {
			return nil, fmt.Errorf("unmarshal sfl_tenor: %w", err)
		}
	}
	if modeJSON != nil {
		if err := json.Unmarshal(modeJSON, &p.Mode); err != nil {
			return nil, fmt.Errorf("unmarshal sfl_mode: %w", err)
		}
	}

	return &p, nil
}
