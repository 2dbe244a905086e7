package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shaiso/promptflow/internal/domain"
	"github.com/shaiso/promptflow/internal/engine"
	"github.com/shaiso/promptflow/internal/provider"
)

// handleDataInput — DATA_INPUT.
//
// Строковое значение разрешается против store ("{{userInput.text}}"),
// любое другое возвращается как есть.
func (e *Executor) handleDataInput(_ context.Context, call *Call) (any, error) {
	spec := call.Task.Spec.(domain.DataInputSpec)

	s, ok := spec.StaticValue.(string)
	if !ok {
		return spec.StaticValue, nil
	}

	value, missing := engine.Resolve(s, call.Store)
	if len(missing) > 0 {
		e.logger.Warn("template placeholders not found",
			"task_id", call.Task.ID,
			"keys", missing,
		)
	}
	return value, nil
}

// handlePrompt — GEMINI_PROMPT.
//
// С promptId текст и system instruction берутся из связанного промпта,
// собранная инструкция заменяет переданную в agentConfig.
func (e *Executor) handlePrompt(ctx context.Context, call *Call) (any, error) {
	spec := call.Task.Spec.(domain.PromptSpec)

	req := provider.TextRequest{
		SystemInstruction: spec.Agent.SystemInstruction,
		Config:            modelConfig(spec.Agent),
	}

	if spec.PromptID != "" {
		if call.Linked == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingLinkedPrompt, spec.PromptID)
		}
		if instruction := SystemInstruction(call.Linked); instruction != "" {
			req.SystemInstruction = instruction
		}
		req.Prompt = e.interpolate(call, call.Linked.PromptText)
	} else {
		req.Prompt = e.interpolate(call, spec.PromptTemplate)
	}

	text, err := e.provider.GenerateText(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return text, nil
}

// handleGrounded — GEMINI_GROUNDED.
//
// Результат: {"text": ..., "sources": [{"uri": ..., "title": ...}]}.
// Источники без пригодного http(s) URI отбрасываются, повторы тоже.
func (e *Executor) handleGrounded(ctx context.Context, call *Call) (any, error) {
	spec := call.Task.Spec.(domain.GroundedSpec)

	res, err := e.provider.GenerateGroundedText(ctx, provider.TextRequest{
		Prompt:            e.interpolate(call, spec.PromptTemplate),
		SystemInstruction: spec.Agent.SystemInstruction,
		Config:            modelConfig(spec.Agent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	sources := make([]any, 0, len(res.Chunks))
	seen := make(map[string]bool, len(res.Chunks))
	for _, chunk := range res.Chunks {
		if !usableURI(chunk.URI) || seen[chunk.URI] {
			continue
		}
		seen[chunk.URI] = true

		source := map[string]any{"uri": chunk.URI}
		if chunk.Title != "" {
			source["title"] = chunk.Title
		}
		sources = append(sources, source)
	}

	return map[string]any{
		"text":    res.Text,
		"sources": sources,
	}, nil
}

// usableURI — абсолютный http(s) адрес с хостом.
func usableURI(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// handleImageAnalysis — IMAGE_ANALYSIS.
//
// Среди входов должно быть ровно одно изображение: объект
// {"base64": ..., "type": ...} или строка data URL.
func (e *Executor) handleImageAnalysis(ctx context.Context, call *Call) (any, error) {
	spec := call.Task.Spec.(domain.ImageAnalysisSpec)

	img, err := findImage(call.Task.InputKeys, call.Inputs)
	if err != nil {
		return nil, err
	}

	text, err := e.provider.AnalyzeImage(ctx, provider.ImageRequest{
		Prompt:   e.interpolate(call, spec.PromptTemplate),
		Image:    img.data,
		MimeType: img.mimeType,
		Config:   modelConfig(spec.Agent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return text, nil
}

type imageInput struct {
	key      string
	data     []byte
	mimeType string
}

// findImage ищет единственный вход-изображение.
func findImage(keys []string, inputs map[string]any) (*imageInput, error) {
	var found []*imageInput

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		img, isImage, err := parseImage(inputs[name])
		if err != nil {
			return nil, fmt.Errorf("%w: input %q: %v", ErrInvalidImage, name, err)
		}
		if isImage {
			img.key = name
			found = append(found, img)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: none of inputs %v holds image data", ErrInvalidImage, keys)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: expected exactly one image input, got %d", ErrInvalidImage, len(found))
	}
}

// parseImage разбирает значение как изображение.
// isImage=false — значение вообще не похоже на изображение (обычный вход).
func parseImage(value any) (img *imageInput, isImage bool, err error) {
	switch v := value.(type) {
	case map[string]any:
		raw, has := v["base64"]
		if !has {
			return nil, false, nil
		}
		b64, _ := raw.(string)
		mimeType, _ := v["type"].(string)
		img, err := decodeImage(b64, mimeType)
		return img, true, err

	case string:
		if !strings.HasPrefix(v, "data:") {
			return nil, false, nil
		}
		img, err := decodeImage(v, "")
		return img, true, err

	default:
		return nil, false, nil
	}
}

// decodeImage декодирует base64 (с префиксом data URL или без).
func decodeImage(b64, mimeType string) (*imageInput, error) {
	if rest, ok := strings.CutPrefix(b64, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("malformed data URL")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		b64 = payload
	}

	if strings.TrimSpace(b64) == "" {
		return nil, fmt.Errorf("empty base64 payload")
	}
	if mimeType == "" {
		return nil, fmt.Errorf("missing mime type")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %v", err)
	}
	return &imageInput{data: data, mimeType: mimeType}, nil
}

// handleTextManipulation — TEXT_MANIPULATION.
func (e *Executor) handleTextManipulation(ctx context.Context, call *Call) (any, error) {
	spec := call.Task.Spec.(domain.TextManipulationSpec)
	return e.runScript(ctx, call.Task, spec.FunctionBody, call.Inputs)
}

// handleDisplayChart — DISPLAY_CHART.
//
// Возвращает данные по dataKey. Ожидаемая форма — массив {name, value};
// другие формы передаются дальше без изменений.
func (e *Executor) handleDisplayChart(_ context.Context, call *Call) (any, error) {
	spec := call.Task.Spec.(domain.DisplayChartSpec)

	data, ok := engine.Lookup(call.Scope, spec.DataKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingInput, spec.DataKey)
	}

	if !IsChartData(data) {
		e.logger.Debug("chart data has non-standard shape",
			"task_id", call.Task.ID,
			"data_key", spec.DataKey,
			"type", fmt.Sprintf("%T", data),
		)
	}
	return data, nil
}

// IsChartData проверяет форму [{name, value}, ...] с числовым value.
func IsChartData(data any) bool {
	items, ok := data.([]any)
	if !ok || len(items) == 0 {
		return false
	}
	for _, item := range items {
		point, ok := item.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := point["name"]; !ok {
			return false
		}
		switch point["value"].(type) {
		case float64, float32, int, int64, int32:
		default:
			return false
		}
	}
	return true
}
