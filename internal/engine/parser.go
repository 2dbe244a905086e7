package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/promptflow/internal/domain"
)

// Plan — проверенный workflow с порядком выполнения.
type Plan struct {
	// Workflow — исходное описание.
	Workflow *domain.Workflow

	// Order — задачи в порядке выполнения.
	Order []*domain.Task

	// Feedback — нефатальные замечания.
	Feedback []string
}

// ParseWorkflowJSON разбирает workflow из JSON.
func ParseWorkflowJSON(data []byte) (*domain.Workflow, error) {
	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow json: %w", err)
	}
	return &wf, nil
}

// ParseWorkflowYAML разбирает workflow из YAML (ключи те же, что в JSON).
func ParseWorkflowYAML(data []byte) (*domain.Workflow, error) {
	var wf domain.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}
	return &wf, nil
}

// Compile проверяет workflow и строит порядок выполнения.
//
// Собирает все структурные ошибки сразу: пустые и неизвестные поля
// задач, дубликаты ID, ссылки на несуществующие задачи, циклы.
// Если ошибки есть, возвращает *WorkflowError и ни одной задачи не выполняется.
func Compile(wf *domain.Workflow) (*Plan, error) {
	if wf == nil {
		return nil, &WorkflowError{Errors: []error{ErrNilWorkflow}}
	}

	var errs []error
	tasks := make([]*domain.Task, 0, len(wf.Tasks))
	rejected := make(map[string]struct{})

	for i, def := range wf.Tasks {
		task, err := domain.NewTask(def)
		if err != nil {
			errs = append(errs, fieldErrors(i, err)...)
			if def.ID != "" {
				rejected[def.ID] = struct{}{}
			}
			continue
		}
		tasks = append(tasks, task)
	}

	result := sortTasks(tasks, rejected)
	errs = append(errs, result.Errors...)

	if len(errs) > 0 {
		return nil, &WorkflowError{WorkflowID: wf.ID, Errors: errs}
	}

	return &Plan{
		Workflow: wf,
		Order:    result.Order,
		Feedback: result.Feedback,
	}, nil
}

// Validate проверяет workflow без построения плана.
func Validate(wf *domain.Workflow) error {
	_, err := Compile(wf)
	return err
}

// CompileTask проверяет одну задачу (для синхронного выполнения вне workflow).
func CompileTask(def domain.TaskDef) (*domain.Task, error) {
	task, err := domain.NewTask(def)
	if err != nil {
		return nil, &WorkflowError{Errors: fieldErrors(0, err)}
	}
	return task, nil
}

// fieldErrors превращает ошибки domain.NewTask в *ValidationError.
func fieldErrors(index int, err error) []error {
	var list []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		list = joined.Unwrap()
	} else {
		list = []error{err}
	}

	out := make([]error, 0, len(list))
	for _, e := range list {
		var fe *domain.FieldError
		if errors.As(e, &fe) {
			msg := fe.Message
			if fe.TaskID == "" {
				msg = fmt.Sprintf("task #%d: %s", index, fe.Message)
			}
			out = append(out, NewValidationError(fe.TaskID, fe.Field, msg, fe.Err))
			continue
		}
		out = append(out, e)
	}
	return out
}
