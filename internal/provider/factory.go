package provider

import "fmt"

// Config — выбор и настройки провайдера.
type Config struct {
	Kind    string
	Gateway GatewayConfig
}

// New создаёт провайдер по конфигурации.
func New(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case "", "echo":
		return NewEcho(), nil
	case "gateway":
		if cfg.Gateway.BaseURL == "" {
			return nil, fmt.Errorf("%w: gateway requires url", ErrUnknownKind)
		}
		return NewGateway(cfg.Gateway), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}
