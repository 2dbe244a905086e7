package provider

import "context"

// Provider — возможности модели, которые нужны движку.
//
// Конкретные вендорские клиенты живут за этим интерфейсом.
// Ошибки (лимиты, авторизация, сеть) возвращаются как есть,
// движок их не интерпретирует.
type Provider interface {
	// GenerateText генерирует текст по промпту.
	GenerateText(ctx context.Context, req TextRequest) (string, error)

	// GenerateGroundedText генерирует текст с поиском источников.
	GenerateGroundedText(ctx context.Context, req TextRequest) (*GroundedText, error)

	// AnalyzeImage отвечает на промпт по изображению.
	AnalyzeImage(ctx context.Context, req ImageRequest) (string, error)
}

// ModelConfig — параметры модели. Пустые поля означают значения провайдера.
type ModelConfig struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

// TextRequest — запрос на генерацию текста.
type TextRequest struct {
	Prompt            string      `json:"prompt"`
	SystemInstruction string      `json:"systemInstruction,omitempty"`
	Config            ModelConfig `json:"config"`
}

// ImageRequest — запрос на анализ изображения.
type ImageRequest struct {
	Prompt   string      `json:"prompt"`
	Image    []byte      `json:"image"`
	MimeType string      `json:"mimeType"`
	Config   ModelConfig `json:"config"`
}

// GroundedText — ответ с метаданными поиска.
type GroundedText struct {
	Text   string           `json:"text"`
	Chunks []GroundingChunk `json:"chunks,omitempty"`
}

// GroundingChunk — один найденный источник.
// URI может быть пустым, движок такие записи отбрасывает.
type GroundingChunk struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}
