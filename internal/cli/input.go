package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
)

// readWorkflow читает workflow из файла. Формат определяется
// по расширению: .yaml/.yml — YAML, иначе JSON. "-" — stdin.
func readWorkflow(path string) (*domain.Workflow, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return engine.ParseWorkflowYAML(data)
	}
	return engine.ParseWorkflowJSON(data)
}

// readTask читает определение задачи из файла.
func readTask(path string) (domain.TaskDef, error) {
	var def domain.TaskDef

	data, err := readFile(path)
	if err != nil {
		return def, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &def)
	} else {
		err = json.Unmarshal(data, &def)
	}
	if err != nil {
		return def, fmt.Errorf("parse task %s: %w", path, err)
	}
	return def, nil
}

// readData читает объект данных (JSON или YAML). Пустой path — nil.
func readData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if isYAML(path) {
		err = yaml.Unmarshal(data, &out)
	} else {
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return out, nil
}

// mergeInputs добавляет значения KEY=VALUE поверх base.
func mergeInputs(base map[string]any, pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return base, nil
	}
	if base == nil {
		base = make(map[string]any, len(pairs))
	}
	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		base[parts[0]] = parts[1]
	}
	return base, nil
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
