package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
	"github.com/shaiso/promptflow/internal/executor"
	"github.com/shaiso/promptflow/internal/provider"
)

func echoWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID:   "wf-echo",
		Name: "Echo",
		Tasks: []domain.TaskDef{
			{
				ID: "task-1", Name: "Input", Type: domain.TaskTypeDataInput,
				StaticValue: "{{userInput.text}}", OutputKey: "inputText",
			},
			{
				ID: "task-2", Name: "Echo", Type: domain.TaskTypePrompt,
				Dependencies: []string{"task-1"}, InputKeys: []string{"inputText"},
				PromptTemplate: "Echo: {{inputText}}", OutputKey: "echoed",
			},
			{
				ID: "task-3", Name: "Shout", Type: domain.TaskTypeTextManipulation,
				Dependencies: []string{"task-2"}, InputKeys: []string{"echoed"},
				FunctionBody: "return inputs.echoed.toUpperCase()", OutputKey: "final",
			},
		},
	}
}

func newRunner(prompts PromptResolver) *Runner {
	return New(Config{
		Executor: executor.New(executor.Config{Provider: provider.NewEcho()}),
		Prompts:  prompts,
	})
}

func TestRun_EndToEnd(t *testing.T) {
	r := newRunner(nil)

	var started, completed []string
	res, err := r.Run(context.Background(), echoWorkflow(), map[string]any{"text": "hi"}, Hooks{
		OnTaskStart:    func(task *domain.Task) { started = append(started, task.ID) },
		OnTaskComplete: func(task *domain.Task, _ any) { completed = append(completed, task.ID) },
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", res.DataStore["inputText"])
	assert.Equal(t, "Echo: hi", res.DataStore["echoed"])
	assert.Equal(t, "ECHO: HI", res.DataStore["final"])
	assert.Equal(t, map[string]any{"text": "hi"}, res.DataStore[UserInputKey])

	assert.Equal(t, map[string]any{
		"task-1": "hi",
		"task-2": "Echo: hi",
		"task-3": "ECHO: HI",
	}, res.Results)

	assert.Equal(t, []string{"task-1", "task-2", "task-3"}, started)
	assert.Equal(t, started, completed)
}

func TestRun_DeclarationOrderDoesNotMatter(t *testing.T) {
	wf := echoWorkflow()
	wf.Tasks[0], wf.Tasks[2] = wf.Tasks[2], wf.Tasks[0]

	res, err := newRunner(nil).Run(context.Background(), wf, map[string]any{"text": "hi"}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "ECHO: HI", res.DataStore["final"])
}

func TestRun_MissingInputAborts(t *testing.T) {
	wf := echoWorkflow()
	wf.Tasks[1].InputKeys = []string{"inputText", "userInput.image"}

	var completed []string
	var failed *domain.Task
	res, err := newRunner(nil).Run(context.Background(), wf, map[string]any{"text": "hi"}, Hooks{
		OnTaskComplete: func(task *domain.Task, _ any) { completed = append(completed, task.ID) },
		OnTaskFail:     func(task *domain.Task, _ error) { failed = task },
	})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, executor.ErrMissingInput)
	assert.Contains(t, err.Error(), `task "Echo"`)
	assert.Contains(t, err.Error(), "userInput.image")

	require.NotNil(t, failed)
	assert.Equal(t, "task-2", failed.ID)
	assert.Equal(t, []string{"task-1"}, completed)
}

func TestRun_StructuralErrorRunsNothing(t *testing.T) {
	wf := echoWorkflow()
	wf.Tasks[0].Dependencies = []string{"task-3"}
	wf.Tasks = append(wf.Tasks, domain.TaskDef{
		ID: "task-4", Name: "Dangling", Type: domain.TaskTypeDataInput,
		Dependencies: []string{"nowhere"}, OutputKey: "x",
	})

	started := 0
	_, err := newRunner(nil).Run(context.Background(), wf, nil, Hooks{
		OnTaskStart: func(*domain.Task) { started++ },
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidWorkflow)
	assert.ErrorIs(t, err, engine.ErrCyclicDependency)
	assert.ErrorIs(t, err, engine.ErrMissingDependency)
	assert.Zero(t, started)
}

func TestRun_StopBetweenTasks(t *testing.T) {
	executed := 0
	res, err := newRunner(nil).Run(context.Background(), echoWorkflow(), map[string]any{"text": "hi"}, Hooks{
		OnTaskComplete: func(*domain.Task, any) { executed++ },
		ShouldStop:     func() bool { return executed >= 1 },
	})

	assert.ErrorIs(t, err, ErrStopped)
	assert.Nil(t, res)
	assert.Equal(t, 1, executed)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(nil).Run(ctx, echoWorkflow(), map[string]any{"text": "hi"}, Hooks{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_LinkedPrompt(t *testing.T) {
	prompts, err := ParsePrompts([]byte(`
prompts:
  - id: shout
    title: Shout
    promptText: "Loud: {{inputText}}"
    sflTenor:
      aiPersona: town crier
`))
	require.NoError(t, err)

	wf := echoWorkflow()
	wf.Tasks[1].PromptTemplate = ""
	wf.Tasks[1].PromptID = "shout"

	res, err := newRunner(prompts).Run(context.Background(), wf, map[string]any{"text": "hi"}, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "Loud: hi", res.DataStore["echoed"])
	assert.Equal(t, "LOUD: HI", res.DataStore["final"])
}

func TestRun_UnknownLinkedPrompt(t *testing.T) {
	wf := echoWorkflow()
	wf.Tasks[1].PromptID = "ghost"

	_, err := newRunner(StaticPrompts{}).Run(context.Background(), wf, map[string]any{"text": "hi"}, Hooks{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPromptNotFound)

	var taskErr *executor.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "task-2", taskErr.TaskID)
}

func TestRunTask(t *testing.T) {
	r := newRunner(nil)
	store := map[string]any{"echoed": "Echo: hi"}

	got, err := r.RunTask(context.Background(), domain.TaskDef{
		ID: "one", Name: "One", Type: domain.TaskTypeTextManipulation,
		InputKeys: []string{"echoed"}, OutputKey: "out",
		FunctionBody: "return inputs.echoed.length",
	}, store)

	require.NoError(t, err)
	assert.Equal(t, float64(8), got)
	assert.NotContains(t, store, "out")

	_, err = r.RunTask(context.Background(), domain.TaskDef{ID: "bad", Type: "NOPE", OutputKey: "x"}, nil)
	assert.ErrorIs(t, err, engine.ErrInvalidWorkflow)
}

func TestParsePrompts_Errors(t *testing.T) {
	_, err := ParsePrompts([]byte("prompts:\n  - promptText: x\n"))
	assert.Error(t, err)

	_, err = ParsePrompts([]byte("prompts:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)

	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Empty(t, p)
}
