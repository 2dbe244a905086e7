package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TaskType — тип задачи в workflow.
type TaskType string

const (
	// TaskTypeDataInput — статическое значение или значение из userInput.
	TaskTypeDataInput TaskType = "DATA_INPUT"

	// TaskTypePrompt — генерация текста моделью.
	TaskTypePrompt TaskType = "GEMINI_PROMPT"

	// TaskTypeGrounded — генерация текста с поиском источников.
	TaskTypeGrounded TaskType = "GEMINI_GROUNDED"

	// TaskTypeImageAnalysis — анализ изображения моделью.
	TaskTypeImageAnalysis TaskType = "IMAGE_ANALYSIS"

	// TaskTypeTextManipulation — преобразование данных JS-функцией.
	TaskTypeTextManipulation TaskType = "TEXT_MANIPULATION"

	// TaskTypeDisplayChart — пометка данных для отображения графиком.
	TaskTypeDisplayChart TaskType = "DISPLAY_CHART"
)

// IsValid возвращает true, если тип известен движку.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeDataInput, TaskTypePrompt, TaskTypeGrounded,
		TaskTypeImageAnalysis, TaskTypeTextManipulation, TaskTypeDisplayChart:
		return true
	default:
		return false
	}
}

// AgentConfig — переопределения параметров модели для задачи.
type AgentConfig struct {
	Model             string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopK              *int     `json:"topK,omitempty" yaml:"topK,omitempty"`
	TopP              *float64 `json:"topP,omitempty" yaml:"topP,omitempty"`
	SystemInstruction string   `json:"systemInstruction,omitempty" yaml:"systemInstruction,omitempty"`
}

// TaskDef — описание задачи в том виде, в каком оно приходит по сети
// или лежит в файле workflow.
//
// Это "плоская" форма: все поля всех типов в одной структуре.
// Перед выполнением TaskDef превращается в Task через NewTask.
type TaskDef struct {
	// ID — уникальный идентификатор задачи внутри workflow.
	ID string `json:"id" yaml:"id"`

	// Name — отображаемое имя (используется в сообщениях об ошибках).
	Name string `json:"name" yaml:"name"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Type — тип задачи.
	Type TaskType `json:"type" yaml:"type"`

	// Dependencies — ID задач, которые должны завершиться раньше этой.
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	// InputKeys — ключи data store (через точку), которые нужны задаче.
	// Внутри задачи доступны под последним сегментом пути.
	InputKeys []string `json:"inputKeys" yaml:"inputKeys"`

	// OutputKey — ключ, под которым результат попадает в data store.
	OutputKey string `json:"outputKey" yaml:"outputKey"`

	PromptTemplate string       `json:"promptTemplate,omitempty" yaml:"promptTemplate,omitempty"`
	FunctionBody   string       `json:"functionBody,omitempty" yaml:"functionBody,omitempty"`
	StaticValue    any          `json:"staticValue,omitempty" yaml:"staticValue,omitempty"`
	DataKey        string       `json:"dataKey,omitempty" yaml:"dataKey,omitempty"`
	PromptID       string       `json:"promptId,omitempty" yaml:"promptId,omitempty"`
	AgentConfig    *AgentConfig `json:"agentConfig,omitempty" yaml:"agentConfig,omitempty"`
}

// TaskSpec — часть задачи, зависящая от её типа.
//
// Реализации: DataInputSpec, PromptSpec, GroundedSpec, ImageAnalysisSpec,
// TextManipulationSpec, DisplayChartSpec. Набор закрыт.
type TaskSpec interface {
	Type() TaskType
	isTaskSpec()
}

// DataInputSpec — DATA_INPUT.
type DataInputSpec struct {
	// StaticValue — строка (шаблон) или произвольное значение.
	StaticValue any
}

// PromptSpec — GEMINI_PROMPT.
//
// Если задан PromptID, текст берётся из связанного промпта,
// иначе из PromptTemplate.
type PromptSpec struct {
	PromptTemplate string
	PromptID       string
	Agent          AgentConfig
}

// GroundedSpec — GEMINI_GROUNDED.
type GroundedSpec struct {
	PromptTemplate string
	Agent          AgentConfig
}

// ImageAnalysisSpec — IMAGE_ANALYSIS.
type ImageAnalysisSpec struct {
	PromptTemplate string
	Agent          AgentConfig
}

// TextManipulationSpec — TEXT_MANIPULATION.
type TextManipulationSpec struct {
	// FunctionBody — тело JS-функции от аргумента inputs.
	FunctionBody string
}

// DisplayChartSpec — DISPLAY_CHART.
type DisplayChartSpec struct {
	DataKey string
}

func (DataInputSpec) Type() TaskType        { return TaskTypeDataInput }
func (PromptSpec) Type() TaskType           { return TaskTypePrompt }
func (GroundedSpec) Type() TaskType         { return TaskTypeGrounded }
func (ImageAnalysisSpec) Type() TaskType    { return TaskTypeImageAnalysis }
func (TextManipulationSpec) Type() TaskType { return TaskTypeTextManipulation }
func (DisplayChartSpec) Type() TaskType     { return TaskTypeDisplayChart }

func (DataInputSpec) isTaskSpec()        {}
func (PromptSpec) isTaskSpec()           {}
func (GroundedSpec) isTaskSpec()         {}
func (ImageAnalysisSpec) isTaskSpec()    {}
func (TextManipulationSpec) isTaskSpec() {}
func (DisplayChartSpec) isTaskSpec()     {}

// Task — проверенная задача, готовая к выполнению.
type Task struct {
	ID           string
	Name         string
	Description  string
	Dependencies []string
	InputKeys    []string
	OutputKey    string
	Spec         TaskSpec
}

// NewTask строит Task из TaskDef.
//
// Обязательные поля проверяются здесь, а не во время выполнения.
// Возвращаются все найденные проблемы задачи (каждая — *FieldError).
func NewTask(def TaskDef) (*Task, error) {
	var errs []error
	fail := func(field string, err error, format string, args ...any) {
		errs = append(errs, &FieldError{
			TaskID:  def.ID,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Err:     err,
		})
	}

	if def.ID == "" {
		fail("id", ErrMissingField, "task has empty id")
	}
	if def.OutputKey == "" {
		fail("outputKey", ErrMissingField, "task has empty outputKey")
	}

	agent := AgentConfig{}
	if def.AgentConfig != nil {
		agent = *def.AgentConfig
	}

	var spec TaskSpec
	switch def.Type {
	case TaskTypeDataInput:
		spec = DataInputSpec{StaticValue: def.StaticValue}
	case TaskTypePrompt:
		if def.PromptID == "" && def.PromptTemplate == "" {
			fail("promptTemplate", ErrMissingField, "prompt task requires promptTemplate or promptId")
		}
		spec = PromptSpec{PromptTemplate: def.PromptTemplate, PromptID: def.PromptID, Agent: agent}
	case TaskTypeGrounded:
		if def.PromptTemplate == "" {
			fail("promptTemplate", ErrMissingField, "grounded task requires promptTemplate")
		}
		spec = GroundedSpec{PromptTemplate: def.PromptTemplate, Agent: agent}
	case TaskTypeImageAnalysis:
		if def.PromptTemplate == "" {
			fail("promptTemplate", ErrMissingField, "image analysis task requires promptTemplate")
		}
		spec = ImageAnalysisSpec{PromptTemplate: def.PromptTemplate, Agent: agent}
	case TaskTypeTextManipulation:
		if def.FunctionBody == "" {
			fail("functionBody", ErrMissingField, "text manipulation task requires functionBody")
		}
		spec = TextManipulationSpec{FunctionBody: def.FunctionBody}
	case TaskTypeDisplayChart:
		if def.DataKey == "" {
			fail("dataKey", ErrMissingField, "chart task requires dataKey")
		}
		spec = DisplayChartSpec{DataKey: def.DataKey}
	case "":
		fail("type", ErrUnknownTaskType, "task has empty type")
	default:
		fail("type", ErrUnknownTaskType, "unsupported task type: %s", def.Type)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Task{
		ID:           def.ID,
		Name:         def.Name,
		Description:  def.Description,
		Dependencies: append([]string(nil), def.Dependencies...),
		InputKeys:    append([]string(nil), def.InputKeys...),
		OutputKey:    def.OutputKey,
		Spec:         spec,
	}, nil
}

// Type возвращает тип задачи.
func (t *Task) Type() TaskType {
	return t.Spec.Type()
}

// DisplayName возвращает имя задачи, а если его нет — ID.
func (t *Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Def возвращает плоское представление задачи.
func (t *Task) Def() TaskDef {
	def := TaskDef{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		Type:         t.Type(),
		Dependencies: t.Dependencies,
		InputKeys:    t.InputKeys,
		OutputKey:    t.OutputKey,
	}

	agent := func(a AgentConfig) *AgentConfig {
		if a == (AgentConfig{}) {
			return nil
		}
		return &a
	}

	switch s := t.Spec.(type) {
	case DataInputSpec:
		def.StaticValue = s.StaticValue
	case PromptSpec:
		def.PromptTemplate = s.PromptTemplate
		def.PromptID = s.PromptID
		def.AgentConfig = agent(s.Agent)
	case GroundedSpec:
		def.PromptTemplate = s.PromptTemplate
		def.AgentConfig = agent(s.Agent)
	case ImageAnalysisSpec:
		def.PromptTemplate = s.PromptTemplate
		def.AgentConfig = agent(s.Agent)
	case TextManipulationSpec:
		def.FunctionBody = s.FunctionBody
	case DisplayChartSpec:
		def.DataKey = s.DataKey
	}
	return def
}

// MarshalJSON сериализует задачу в плоском формате TaskDef.
func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Def())
}

// UnmarshalJSON разбирает TaskDef и проверяет его через NewTask.
func (t *Task) UnmarshalJSON(data []byte) error {
	var def TaskDef
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	task, err := NewTask(def)
	if err != nil {
		return err
	}
	*t = *task
	return nil
}
