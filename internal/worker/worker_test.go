package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/jobs"
	"github.com/shaiso/promptflow/internal/mq"
	"github.com/shaiso/promptflow/internal/provider"
	"github.com/shaiso/promptflow/internal/runner"
)

func echoWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID: "wf-worker",
		Tasks: []domain.TaskDef{
			{ID: "in", Type: domain.TaskTypeDataInput, StaticValue: "{{userInput.text}}", OutputKey: "text"},
			{
				ID: "echo", Type: domain.TaskTypePrompt, Dependencies: []string{"in"},
				InputKeys: []string{"text"}, PromptTemplate: "Echo: {{text}}", OutputKey: "echoed",
			},
		},
	}
}

func newProcessor(store jobs.Store) *jobs.Processor {
	return jobs.NewProcessor(jobs.ProcessorConfig{
		Store: store,
		Runner: runner.New(runner.Config{
			Executor: executor.New(executor.Config{Provider: provider.NewEcho()}),
		}),
	})
}

// countingProcessor считает вызовы Process.
type countingProcessor struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	block chan struct{}
}

func (p *countingProcessor) Process(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	p.calls[id]++
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	return nil
}

func (p *countingProcessor) count(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func waitStatus(t *testing.T, store jobs.Store, id uuid.UUID, want domain.JobStatus) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s", id, want)
	return nil
}

func TestWorker_PollsPendingJobs(t *testing.T) {
	store := jobs.NewMemoryStore(10)

	var ids []uuid.UUID
	for _, text := range []string{"one", "two", "three"} {
		job := domain.NewJob(echoWorkflow(), map[string]any{"text": text}, 1)
		if err := store.Create(context.Background(), job); err != nil {
			t.Fatalf("create job: %v", err)
		}
		ids = append(ids, job.ID)
	}

	w := New(Config{
		Processor:    newProcessor(store),
		Store:        store,
		PollInterval: 10 * time.Millisecond,
		Concurrency:  2,
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	for i, text := range []string{"one", "two", "three"} {
		job := waitStatus(t, store, ids[i], domain.JobStatusCompleted)
		if got := job.Result.DataStore["echoed"]; got != "Echo: "+text {
			t.Errorf("job %d: expected %q, got %v", i, "Echo: "+text, got)
		}
	}
}

func TestWorker_HandleJobPending(t *testing.T) {
	store := jobs.NewMemoryStore(10)
	job := domain.NewJob(echoWorkflow(), map[string]any{"text": "mq"}, 1)
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	w := New(Config{Processor: newProcessor(store), Store: store})

	delivery := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeJobPending, mq.JobPendingPayload{JobID: job.ID})}
	if err := w.handleJobPending(context.Background(), delivery); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got := waitStatus(t, store, job.ID, domain.JobStatusCompleted)
	if got.Result.DataStore["echoed"] != "Echo: mq" {
		t.Errorf("unexpected result: %v", got.Result.DataStore["echoed"])
	}
	w.jobsWg.Wait()
}

func TestWorker_HandleJobPending_BadPayload(t *testing.T) {
	w := New(Config{Processor: &countingProcessor{calls: map[uuid.UUID]int{}}, Store: jobs.NewMemoryStore(10)})

	delivery := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeJobPending, "not an object")}
	if err := w.handleJobPending(context.Background(), delivery); err != nil {
		t.Errorf("bad payload should be acked, got %v", err)
	}
}

func TestWorker_DispatchSkipsInflight(t *testing.T) {
	p := &countingProcessor{calls: map[uuid.UUID]int{}, block: make(chan struct{})}
	w := New(Config{Processor: p, Store: jobs.NewMemoryStore(10), Concurrency: 2})

	id := uuid.New()
	ctx := context.Background()
	w.dispatch(ctx, id)
	w.dispatch(ctx, id)

	close(p.block)
	w.jobsWg.Wait()

	if got := p.count(id); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestWorker_DispatchCancelled(t *testing.T) {
	p := &countingProcessor{calls: map[uuid.UUID]int{}, block: make(chan struct{})}
	w := New(Config{Processor: p, Store: jobs.NewMemoryStore(10), Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	if !w.dispatch(ctx, uuid.New()) {
		t.Fatal("first dispatch should take the free slot")
	}

	cancel()
	if w.dispatch(ctx, uuid.New()) {
		t.Error("dispatch should fail when no slot and context cancelled")
	}

	close(p.block)
	w.jobsWg.Wait()
}

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected poll interval %v, got %v", defaultPollInterval, w.pollInterval)
	}
	if w.batchSize != defaultBatchSize {
		t.Errorf("expected batch size %d, got %d", defaultBatchSize, w.batchSize)
	}
	if cap(w.slots) != defaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", defaultConcurrency, cap(w.slots))
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{Store: jobs.NewMemoryStore(10), PollInterval: time.Hour})
	if w.IsStopped() {
		t.Error("new worker should not be stopped")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Stop()

	if !w.IsStopped() {
		t.Error("worker should be stopped after Stop()")
	}

	if err := w.Start(context.Background()); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("restart: expected ErrWorkerStopped, got %v", err)
	}
}
