package runner

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/promptflow/internal/domain"
)

// StaticPrompts — библиотека промптов в памяти.
//
// Используется в режиме без базы данных: промпты загружаются из YAML-файла
// при старте и не меняются.
type StaticPrompts map[string]*domain.LinkedPrompt

// promptFile — формат файла библиотеки промптов.
//
//	prompts:
//	  - id: rewrite
//	    promptText: "Rewrite: {{text}}"
//	    sflTenor:
//	      aiPersona: copy editor
type promptFile struct {
	Prompts []domain.LinkedPrompt `yaml:"prompts"`
}

// ParsePrompts разбирает библиотеку промптов из YAML.
func ParsePrompts(data []byte) (StaticPrompts, error) {
	var file promptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	prompts := make(StaticPrompts, len(file.Prompts))
	for i := range file.Prompts {
		p := file.Prompts[i]
		if p.ID == "" {
			return nil, fmt.Errorf("parse prompts: entry %d has empty id", i)
		}
		if _, dup := prompts[p.ID]; dup {
			return nil, fmt.Errorf("parse prompts: duplicate id %q", p.ID)
		}
		prompts[p.ID] = &p
	}
	return prompts, nil
}

// LoadPrompts читает библиотеку промптов из файла.
// Пустой path — пустая библиотека.
func LoadPrompts(path string) (StaticPrompts, error) {
	if path == "" {
		return StaticPrompts{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return ParsePrompts(data)
}

// ResolvePrompt реализует PromptResolver.
func (s StaticPrompts) ResolvePrompt(_ context.Context, id string) (*domain.LinkedPrompt, error) {
	p, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, id)
	}
	return p, nil
}
