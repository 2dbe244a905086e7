package provider

import (
	"context"
	"fmt"
	"sync"
)

// Echo — провайдер, который возвращает промпт без изменений.
//
// Используется в тестах и в режиме provider.kind=echo.
// Запоминает последние запросы, чтобы тесты могли их проверить.
type Echo struct {
	mu        sync.Mutex
	texts     []TextRequest
	images    []ImageRequest
	grounding []GroundingChunk
}

// NewEcho создаёт Echo. chunks возвращаются в каждом grounded-ответе.
func NewEcho(chunks ...GroundingChunk) *Echo {
	return &Echo{grounding: chunks}
}

// GenerateText возвращает промпт.
func (e *Echo) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	e.texts = append(e.texts, req)
	e.mu.Unlock()
	return req.Prompt, nil
}

// GenerateGroundedText возвращает промпт и заданные источники.
func (e *Echo) GenerateGroundedText(ctx context.Context, req TextRequest) (*GroundedText, error) {
	text, err := e.GenerateText(ctx, req)
	if err != nil {
		return nil, err
	}
	return &GroundedText{Text: text, Chunks: append([]GroundingChunk(nil), e.grounding...)}, nil
}

// AnalyzeImage описывает полученное изображение.
func (e *Echo) AnalyzeImage(ctx context.Context, req ImageRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	e.images = append(e.images, req)
	e.mu.Unlock()
	return fmt.Sprintf("%s [%s, %d bytes]", req.Prompt, req.MimeType, len(req.Image)), nil
}

// TextRequests возвращает копию полученных текстовых запросов.
func (e *Echo) TextRequests() []TextRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]TextRequest(nil), e.texts...)
}

// ImageRequests возвращает копию полученных запросов на анализ изображений.
func (e *Echo) ImageRequests() []ImageRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ImageRequest(nil), e.images...)
}
