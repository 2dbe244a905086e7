package domain

// Workflow — граф задач, которые обмениваются данными через data store.
//
// Workflow неизменяем во время выполнения: движок меняет только data store.
type Workflow struct {
	// ID — идентификатор workflow (задаётся вызывающей стороной).
	ID string `json:"id" yaml:"id"`

	// Name — отображаемое имя.
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tasks — задачи в порядке объявления.
	// Порядок важен: он определяет порядок выполнения независимых задач.
	Tasks []TaskDef `json:"tasks" yaml:"tasks"`
}

// TaskCount возвращает количество задач.
func (w *Workflow) TaskCount() int {
	if w == nil {
		return 0
	}
	return len(w.Tasks)
}
