package engine

import (
	"errors"

	"github.com/shaiso/promptflow/internal/domain"
)

// Report — результат проверки workflow без выполнения.
type Report struct {
	// Valid — workflow можно выполнять.
	Valid bool `json:"valid"`

	// Order — ID задач в порядке выполнения (пустой при ошибках).
	Order []string `json:"order"`

	// Errors — все структурные ошибки.
	Errors []string `json:"errors"`

	// Feedback — нефатальные замечания.
	Feedback []string `json:"feedback"`
}

// Check проверяет workflow и возвращает отчёт.
func Check(wf *domain.Workflow) *Report {
	report := &Report{
		Order:    []string{},
		Errors:   []string{},
		Feedback: []string{},
	}

	plan, err := Compile(wf)
	if err != nil {
		var wfErr *WorkflowError
		if errors.As(err, &wfErr) {
			for _, e := range wfErr.Errors {
				report.Errors = append(report.Errors, e.Error())
			}
		} else {
			report.Errors = append(report.Errors, err.Error())
		}
		return report
	}

	report.Valid = true
	for _, task := range plan.Order {
		report.Order = append(report.Order, task.ID)
	}
	report.Feedback = append(report.Feedback, plan.Feedback...)
	return report
}
