package executor

import (
	"strings"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/provider"
)

// SystemInstruction собирает system instruction из SFL-метаданных промпта.
//
// Порядок: персона, тон, аудитория, текстовые указания.
// Пустые поля пропускаются; если всё пусто, результат пустой.
func SystemInstruction(p *domain.LinkedPrompt) string {
	if p == nil {
		return ""
	}

	parts := make([]string, 0, 4)
	if persona := strings.TrimSpace(p.Tenor.AIPersona); persona != "" {
		parts = append(parts, "You will act as a "+persona+".")
	}
	if tone := strings.TrimSpace(p.Tenor.DesiredTone); tone != "" {
		parts = append(parts, "Your tone should be "+tone+".")
	}

	audiences := make([]string, 0, len(p.Tenor.TargetAudience))
	for _, a := range p.Tenor.TargetAudience {
		if a = strings.TrimSpace(a); a != "" {
			audiences = append(audiences, a)
		}
	}
	if len(audiences) > 0 {
		parts = append(parts, "You are writing for "+strings.Join(audiences, ", ")+".")
	}

	if directives := strings.TrimSpace(p.Mode.TextualDirectives); directives != "" {
		parts = append(parts, directives)
	}

	return strings.Join(parts, " ")
}

// modelConfig переводит AgentConfig задачи в параметры провайдера.
func modelConfig(a domain.AgentConfig) provider.ModelConfig {
	return provider.ModelConfig{
		Model:       a.Model,
		Temperature: a.Temperature,
		TopK:        a.TopK,
		TopP:        a.TopP,
	}
}
