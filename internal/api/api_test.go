package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/promptflow/internal/broadcast"
	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/jobs"
	"github.com/shaiso/promptflow/internal/provider"
	"github.com/shaiso/promptflow/internal/runner"
)

type testEnv struct {
	server      *httptest.Server
	queue       *jobs.LocalQueue
	store       *jobs.MemoryStore
	broadcaster *broadcast.Broadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := runner.New(runner.Config{
		Executor: executor.New(executor.Config{Provider: provider.NewEcho(), Logger: logger}),
		Logger:   logger,
	})

	store := jobs.NewMemoryStore(10)
	b := broadcast.New(broadcast.WithLogger(logger))
	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Store:  store,
		Runner: r,
		Sink:   b,
		Retry:  jobs.RetryPolicy{MaxAttempts: 1},
		Logger: logger,
	})
	queue := jobs.NewLocalQueue(jobs.LocalConfig{Store: store, Processor: processor, Logger: logger})

	h := NewHandler(Config{Queue: queue, Events: b, Runner: r, Logger: logger})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		queue.Stop()
	})

	return &testEnv{server: server, queue: queue, store: store, broadcaster: b}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Data
}

func echoWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID: "wf-api",
		Tasks: []domain.TaskDef{
			{ID: "in", Type: domain.TaskTypeDataInput, StaticValue: "{{userInput.text}}", OutputKey: "text"},
			{
				ID: "echo", Type: domain.TaskTypePrompt, Dependencies: []string{"in"},
				InputKeys: []string{"text"}, PromptTemplate: "Echo: {{text}}", OutputKey: "echoed",
			},
		},
	}
}

func TestSubmitJob_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.queue.Start(context.Background())

	resp := env.post(t, "/api/v1/jobs", jobs.SubmitRequest{
		Workflow:  echoWorkflow(),
		UserInput: map[string]any{"text": "api"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	submitted := decode[SubmitJobResponse](t, resp)
	require.NotEqual(t, uuid.Nil, submitted.JobID)

	var job domain.Job
	require.Eventually(t, func() bool {
		resp, err := http.Get(env.server.URL + "/api/v1/jobs/" + submitted.JobID.String())
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		job = decode[domain.Job](t, resp)
		return job.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Echo: api", job.Result.DataStore["echoed"])
	assert.Equal(t, 2, job.Progress.CompletedTasks)
}

func TestSubmitJob_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/v1/jobs", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.post(t, "/api/v1/jobs", map[string]any{"userInput": map[string]any{}})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cyclic := &domain.Workflow{
		ID: "wf-cycle",
		Tasks: []domain.TaskDef{
			{ID: "a", Type: domain.TaskTypeDataInput, StaticValue: "x", OutputKey: "a", Dependencies: []string{"b"}},
			{ID: "b", Type: domain.TaskTypeDataInput, StaticValue: "y", OutputKey: "b", Dependencies: []string{"a"}},
		},
	}
	resp = env.post(t, "/api/v1/jobs", jobs.SubmitRequest{Workflow: cyclic})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ErrCodeInvalidWorkflow, body.Error.Code)
	assert.Contains(t, body.Error.Message, "cycle")
}

func TestGetJob_NotFoundAndBadID(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/v1/jobs/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(env.server.URL + "/api/v1/jobs/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStopJob(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/jobs/"+uuid.NewString()+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[StopJobResponse](t, resp).Stopped)

	id, err := env.queue.Submit(context.Background(), jobs.SubmitRequest{Workflow: echoWorkflow()})
	require.NoError(t, err)

	resp = env.post(t, "/api/v1/jobs/"+id.String()+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[StopJobResponse](t, resp).Stopped)

	env.queue.Start(context.Background())
	require.Eventually(t, func() bool {
		job, err := env.store.Get(context.Background(), id)
		return err == nil && job.Status == domain.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunTask(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/tasks/run", RunTaskRequest{
		Task: domain.TaskDef{
			ID: "p", Type: domain.TaskTypePrompt, InputKeys: []string{"name"},
			PromptTemplate: "Hello {{name}}", OutputKey: "greeting",
		},
		DataStore: map[string]any{"name": "Ada"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello Ada", decode[RunTaskResponse](t, resp).Result)

	resp = env.post(t, "/api/v1/tasks/run", RunTaskRequest{
		Task: domain.TaskDef{
			ID: "s", Type: domain.TaskTypeTextManipulation,
			FunctionBody: "throw new Error('broken')", OutputKey: "x",
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ErrCodeTaskFailed, body.Error.Code)
}

func TestRunTask_InvalidTask(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/tasks/run", RunTaskRequest{
		Task: domain.TaskDef{ID: "x", Type: domain.TaskTypeTextManipulation, OutputKey: "x"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestValidateWorkflow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/workflows/validate", ValidateWorkflowRequest{Workflow: echoWorkflow()})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	report := decode[map[string]any](t, resp)
	assert.Equal(t, true, report["valid"])
	assert.Equal(t, []any{"in", "echo"}, report["order"])

	resp = env.post(t, "/api/v1/workflows/validate", map[string]any{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// readEvents читает SSE-поток до закрытия и возвращает типы событий.
func readEvents(t *testing.T, body io.Reader) []domain.ProgressEvent {
	t.Helper()
	var events []domain.ProgressEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var ev domain.ProgressEvent
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			events = append(events, ev)
		}
	}
	return events
}

func TestStreamJobEvents(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.queue.Submit(context.Background(), jobs.SubmitRequest{
		Workflow:  echoWorkflow(),
		UserInput: map[string]any{"text": "sse"},
	})
	require.NoError(t, err)

	resp, err := http.Get(env.server.URL + "/api/v1/jobs/" + id.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return env.broadcaster.SubscriberCount(id) == 1
	}, 5*time.Second, 5*time.Millisecond)
	env.queue.Start(context.Background())

	events := readEvents(t, resp.Body)
	require.NotEmpty(t, events)

	var types []string
	for _, ev := range events {
		name := string(ev.Type)
		if ev.TaskID != "" {
			name = ev.TaskID + ":" + name
		}
		types = append(types, name)
	}
	assert.Equal(t, []string{
		"started",
		"in:active", "in:completed",
		"echo:active", "echo:completed",
		"completed",
	}, types)
	assert.True(t, events[len(events)-1].IsTerminal())
}

func TestStreamJobEvents_FinishedJob(t *testing.T) {
	env := newTestEnv(t)
	env.queue.Start(context.Background())

	id, err := env.queue.Submit(context.Background(), jobs.SubmitRequest{Workflow: echoWorkflow()})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := env.store.Get(context.Background(), id)
		return err == nil && job.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(env.server.URL + "/api/v1/jobs/" + id.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCompleted, events[0].Type)
	assert.Equal(t, domain.JobStatusCompleted, events[0].Status)
}

func TestStreamJobEvents_UnknownJob(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/v1/jobs/" + uuid.NewString() + "/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
