package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
)

// Store — хранилище job.
//
// Реализации: MemoryStore (in-process) и repo.JobRepo (PostgreSQL).
type Store interface {
	// Create сохраняет новый job.
	Create(ctx context.Context, job *domain.Job) error

	// Get возвращает копию job или ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Update сохраняет статус, прогресс, результат и ошибку job.
	Update(ctx context.Context, job *domain.Job) error

	// Claim атомарно переводит pending job в active (MarkActive)
	// и возвращает его. Для не-pending job — ErrJobNotPending.
	Claim(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// RequestStop помечает job к остановке.
	// false — job не найден или уже завершён.
	RequestStop(ctx context.Context, id uuid.UUID) (bool, error)

	// StopRequested сообщает, просили ли остановить job.
	StopRequested(ctx context.Context, id uuid.UUID) (bool, error)

	// ListUnclaimed возвращает pending job, которые ни разу не запускались.
	ListUnclaimed(ctx context.Context, limit int) ([]domain.Job, error)

	// Prune удаляет самые старые завершённые job, оставляя keep штук.
	// Возвращает количество удалённых.
	Prune(ctx context.Context, keep int) (int, error)
}

const defaultHistoryLimit = 100

// MemoryStore — Store в памяти процесса.
//
// Завершённые job хранятся, пока их не больше historyLimit;
// при превышении самый старый завершённый вытесняется.
type MemoryStore struct {
	mu           sync.RWMutex
	jobs         map[uuid.UUID]*domain.Job
	pending      []uuid.UUID // в порядке создания
	finished     []uuid.UUID // в порядке завершения
	historyLimit int
}

// NewMemoryStore создаёт MemoryStore. historyLimit <= 0 — значение по умолчанию (100).
func NewMemoryStore(historyLimit int) *MemoryStore {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &MemoryStore{
		jobs:         make(map[uuid.UUID]*domain.Job),
		historyLimit: historyLimit,
	}
}

// Create сохраняет новый job.
func (s *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = copyJob(job)
	s.pending = append(s.pending, job.ID)
	return nil
}

// Get возвращает копию job.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(job), nil
}

// Update сохраняет job. Флаг остановки не сбрасывается.
func (s *MemoryStore) Update(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}

	wasTerminal := current.Status.IsTerminal()
	updated := copyJob(job)
	updated.StopRequested = current.StopRequested || job.StopRequested
	s.jobs[job.ID] = updated

	if updated.Status.IsTerminal() && !wasTerminal {
		s.removePending(job.ID)
		s.finished = append(s.finished, job.ID)
		s.evict(s.historyLimit)
	}
	return nil
}

// Claim переводит pending job в active.
func (s *MemoryStore) Claim(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != domain.JobStatusPending {
		return nil, ErrJobNotPending
	}

	job.MarkActive()
	return copyJob(job), nil
}

// RequestStop помечает job к остановке.
func (s *MemoryStore) RequestStop(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	job.StopRequested = true
	return true, nil
}

// StopRequested сообщает, просили ли остановить job.
func (s *MemoryStore) StopRequested(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	return job.StopRequested, nil
}

// ListUnclaimed возвращает pending job без попыток.
func (s *MemoryStore) ListUnclaimed(_ context.Context, limit int) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Job, 0)
	for _, id := range s.pending {
		if limit > 0 && len(out) >= limit {
			break
		}
		if job := s.jobs[id]; job.Status == domain.JobStatusPending && job.Attempt == 0 {
			out = append(out, *copyJob(job))
		}
	}
	return out, nil
}

// Prune удаляет самые старые завершённые job сверх keep.
func (s *MemoryStore) Prune(_ context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evict(keep), nil
}

// Len возвращает количество хранимых job.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// evict вытесняет старые завершённые job. Вызывается под s.mu.
func (s *MemoryStore) evict(keep int) int {
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for len(s.finished) > keep {
		delete(s.jobs, s.finished[0])
		s.finished = s.finished[1:]
		removed++
	}
	return removed
}

// removePending убирает job из списка ожидающих. Вызывается под s.mu.
func (s *MemoryStore) removePending(id uuid.UUID) {
	for i, pid := range s.pending {
		if pid == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// copyJob делает копию job, достаточную для безопасной передачи наружу.
// Workflow, UserInput и Result после создания не меняются и не копируются.
func copyJob(job *domain.Job) *domain.Job {
	c := *job
	if job.Progress.LastEvent != nil {
		ev := *job.Progress.LastEvent
		c.Progress.LastEvent = &ev
	}
	return &c
}
