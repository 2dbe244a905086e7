package provider

import "errors"

// Ошибки провайдера.
var (
	// ErrProviderRequest — запрос к шлюзу модели завершился ошибкой.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrUnknownKind — неизвестный тип провайдера в конфигурации.
	ErrUnknownKind = errors.New("unknown provider kind")
)
