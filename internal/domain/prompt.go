package domain

// LinkedPrompt — внешний промпт, на который задача ссылается через promptId.
//
// Кроме текста несёт SFL-метаданные (tenor/mode), из которых
// собирается system instruction.
type LinkedPrompt struct {
	ID         string   `json:"id" yaml:"id"`
	Title      string   `json:"title,omitempty" yaml:"title,omitempty"`
	PromptText string   `json:"promptText" yaml:"promptText"`
	Tenor      SFLTenor `json:"sflTenor" yaml:"sflTenor"`
	Mode       SFLMode  `json:"sflMode" yaml:"sflMode"`
}

// SFLTenor — кто говорит и для кого.
type SFLTenor struct {
	// AIPersona — роль модели ("senior editor").
	AIPersona string `json:"aiPersona,omitempty" yaml:"aiPersona,omitempty"`

	// DesiredTone — тон ответа.
	DesiredTone string `json:"desiredTone,omitempty" yaml:"desiredTone,omitempty"`

	// TargetAudience — целевая аудитория.
	TargetAudience []string `json:"targetAudience,omitempty" yaml:"targetAudience,omitempty"`
}

// SFLMode — форма текста.
type SFLMode struct {
	// TextualDirectives — произвольные указания по оформлению.
	TextualDirectives string `json:"textualDirectives,omitempty" yaml:"textualDirectives,omitempty"`
}
