package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGatewayTimeout = 60 * time.Second

// Gateway — клиент HTTP-шлюза к моделям.
//
// Шлюз (отдельный сервис) скрывает вендорские API. Контракт:
//
//	POST /v1/generate           TextRequest  → {"text": "..."}
//	POST /v1/generate/grounded  TextRequest  → GroundedText
//	POST /v1/analyze-image      ImageRequest → {"text": "..."}
//
// Ответ с кодом >= 400 — ErrProviderRequest с кодом и началом тела.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// GatewayConfig — настройки клиента шлюза.
type GatewayConfig struct {
	// BaseURL — адрес шлюза (например, "http://model-gateway:8090").
	BaseURL string

	// APIKey — передаётся в заголовке Authorization: Bearer.
	APIKey string

	// Timeout — таймаут одного запроса. Default: 60s.
	Timeout time.Duration
}

// NewGateway создаёт клиент шлюза.
func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type textResponse struct {
	Text string `json:"text"`
}

// GenerateText выполняет POST /v1/generate.
func (g *Gateway) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	var resp textResponse
	if err := g.post(ctx, "/v1/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateGroundedText выполняет POST /v1/generate/grounded.
func (g *Gateway) GenerateGroundedText(ctx context.Context, req TextRequest) (*GroundedText, error) {
	var resp GroundedText
	if err := g.post(ctx, "/v1/generate/grounded", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeImage выполняет POST /v1/analyze-image.
func (g *Gateway) AnalyzeImage(ctx context.Context, req ImageRequest) (string, error) {
	var resp textResponse
	if err := g.post(ctx, "/v1/analyze-image", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// post отправляет JSON и декодирует JSON-ответ в out.
func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrProviderRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrProviderRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProviderRequest, err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderRequest, resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrProviderRequest, err)
	}
	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
