package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/provider"
	"github.com/shaiso/promptflow/internal/runner"
)

// recorder собирает события в порядке поступления.
type recorder struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (r *recorder) HandleEvent(ev domain.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		name := string(ev.Type)
		if ev.TaskID != "" {
			name = ev.TaskID + ":" + name
		}
		out = append(out, name)
	}
	return out
}

// flakyRunner падает failures раз, потом выполняет одну задачу.
type flakyRunner struct {
	failures int
	err      error
	calls    int
}

func (f *flakyRunner) Run(_ context.Context, _ *domain.Workflow, _ map[string]any, hooks runner.Hooks) (*runner.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &runner.Result{
		DataStore: map[string]any{"out": "ok"},
		Results:   map[string]any{"t1": "ok"},
	}, nil
}

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func echoRunner() *runner.Runner {
	return runner.New(runner.Config{
		Executor: executor.New(executor.Config{Provider: provider.NewEcho()}),
	})
}

func chainWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID: "wf-chain",
		Tasks: []domain.TaskDef{
			{ID: "t1", Type: domain.TaskTypeDataInput, StaticValue: "{{userInput.text}}", OutputKey: "text"},
			{
				ID: "t2", Type: domain.TaskTypePrompt, Dependencies: []string{"t1"},
				InputKeys: []string{"text"}, PromptTemplate: "Echo: {{text}}", OutputKey: "echoed",
			},
		},
	}
}

func submit(t *testing.T, s Store, wf *domain.Workflow, input map[string]any, maxAttempts int) *domain.Job {
	t.Helper()
	job := domain.NewJob(wf, input, maxAttempts)
	require.NoError(t, s.Create(context.Background(), job))
	return job
}

func TestProcessor_CompletesJob(t *testing.T) {
	store := NewMemoryStore(10)
	rec := &recorder{}
	p := NewProcessor(ProcessorConfig{Store: store, Runner: echoRunner(), Sink: rec, Retry: fastRetry})

	job := submit(t, store, chainWorkflow(), map[string]any{"text": "hi"}, 3)
	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, 2, got.Progress.CompletedTasks)
	assert.Equal(t, 2, got.Progress.TotalTasks)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Echo: hi", got.Result.DataStore["echoed"])
	assert.Equal(t, "Echo: hi", got.Result.Results["t2"])
	assert.NotNil(t, got.FinishedAt)

	assert.Equal(t, []string{
		"started",
		"t1:active", "t1:completed",
		"t2:active", "t2:completed",
		"completed",
	}, rec.types())
	assert.True(t, rec.events[len(rec.events)-1].IsTerminal())
}

func TestProcessor_FailedTaskEmitsEvents(t *testing.T) {
	store := NewMemoryStore(10)
	rec := &recorder{}
	p := NewProcessor(ProcessorConfig{
		Store: store, Runner: echoRunner(), Sink: rec,
		Retry: RetryPolicy{MaxAttempts: 1},
	})

	wf := &domain.Workflow{
		ID: "wf-bad-script",
		Tasks: []domain.TaskDef{
			{ID: "s", Type: domain.TaskTypeTextManipulation, FunctionBody: "throw new Error('nope')", OutputKey: "x"},
		},
	}
	job := submit(t, store, wf, nil, 1)
	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Nil(t, got.Result)
	assert.Contains(t, got.Error, "nope")
	assert.Equal(t, []string{"started", "s:active", "s:failed", "failed"}, rec.types())
}

func TestProcessor_RetriesThenSucceeds(t *testing.T) {
	store := NewMemoryStore(10)
	rec := &recorder{}
	fr := &flakyRunner{failures: 2, err: errors.New("provider unavailable")}
	p := NewProcessor(ProcessorConfig{Store: store, Runner: fr, Sink: rec, Retry: fastRetry})

	job := submit(t, store, testWorkflow(), nil, 3)
	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Attempt)
	assert.Equal(t, 3, fr.calls)
	assert.Equal(t, []string{"started", "retrying", "started", "retrying", "started", "completed"}, rec.types())
	assert.Equal(t, "provider unavailable", rec.events[1].Error)
	assert.Equal(t, domain.JobStatusPending, rec.events[1].Status)
}

func TestProcessor_ExhaustsRetries(t *testing.T) {
	store := NewMemoryStore(10)
	fr := &flakyRunner{failures: 10, err: errors.New("boom")}
	p := NewProcessor(ProcessorConfig{Store: store, Runner: fr, Retry: fastRetry})

	job := submit(t, store, testWorkflow(), nil, 3)
	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, 3, fr.calls)
}

func TestProcessor_StructuralErrorNotRetried(t *testing.T) {
	store := NewMemoryStore(10)
	fr := &flakyRunner{failures: 10, err: &engine.WorkflowError{Errors: []error{engine.ErrCyclicDependency}}}
	p := NewProcessor(ProcessorConfig{Store: store, Runner: fr, Retry: fastRetry})

	job := submit(t, store, testWorkflow(), nil, 3)
	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, 1, fr.calls)
}

func TestProcessor_StopBeforeStart(t *testing.T) {
	store := NewMemoryStore(10)
	fr := &flakyRunner{}
	p := NewProcessor(ProcessorConfig{Store: store, Runner: fr, Retry: fastRetry})

	job := submit(t, store, testWorkflow(), nil, 3)
	ok, err := store.RequestStop(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, ErrJobStopped.Error(), got.Error)
	assert.Equal(t, 0, fr.calls)
}

func TestProcessor_StopBetweenTasks(t *testing.T) {
	store := NewMemoryStore(10)
	rec := &recorder{}
	var job *domain.Job

	// Просим остановку, когда первая задача завершилась
	sink := SinkFunc(func(ev domain.ProgressEvent) {
		rec.HandleEvent(ev)
		if ev.TaskID == "t1" && ev.Type == domain.EventCompleted {
			_, _ = store.RequestStop(context.Background(), job.ID)
		}
	})
	p := NewProcessor(ProcessorConfig{Store: store, Runner: echoRunner(), Sink: sink, Retry: fastRetry})

	job = submit(t, store, chainWorkflow(), map[string]any{"text": "hi"}, 3)
	require.NoError(t, p.Process(context.Background(), job.ID))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, ErrJobStopped.Error(), got.Error)
	assert.Equal(t, 1, got.Progress.CompletedTasks)
	assert.Equal(t, []string{"started", "t1:active", "t1:completed", "failed"}, rec.types())
}

func TestProcessor_NotPending(t *testing.T) {
	store := NewMemoryStore(10)
	p := NewProcessor(ProcessorConfig{Store: store, Runner: &flakyRunner{}})

	job := submit(t, store, testWorkflow(), nil, 1)
	require.NoError(t, p.Process(context.Background(), job.ID))

	assert.ErrorIs(t, p.Process(context.Background(), job.ID), ErrJobNotPending)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}
