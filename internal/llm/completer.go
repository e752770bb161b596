package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
)

var (
	// ErrTransport indicates a network or backend failure.
	ErrTransport = errors.New("completion transport error")

	// ErrMalformedResponse indicates a response without the expected text field.
	ErrMalformedResponse = errors.New("malformed completion response")
)

// Completer produces a completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// New creates the completer selected by cfg.
func New(cfg config.CompletionConfig, logger *logging.Logger) (Completer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.Provider {
	case "gateway", "":
		return NewGateway(GatewayConfig{
			URL:         cfg.BaseURL,
			APIKey:      cfg.APIKey.Value(),
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout.Duration(),
			VerifySSL:   cfg.VerifySSL,
			RateLimit:   cfg.RateLimit,
			Burst:       cfg.Burst,
		}, logger)
	case "openai", "anthropic":
		return NewLangChain(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown completion provider %q", config.ErrConfiguration, cfg.Provider)
	}
}
