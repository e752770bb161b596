package embeddings

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
)

// Provider generates embeddings.
type Provider interface {
	// EmbedDocuments embeds catalog descriptions, one vector per text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds search text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector length for the configured model.
	Dimension() int
	// ModelID identifies the model; vectors from different models are not
	// comparable.
	ModelID() string
	Close() error
}

// NewProvider creates the provider selected by cfg, wrapped with a single
// retry on transport errors.
func NewProvider(cfg config.EmbeddingsConfig, logger *logging.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		p, err = NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey.Value(),
			Timeout: cfg.Timeout.Duration(),
		})
	case "openai":
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey.Value(),
			Timeout: cfg.Timeout.Duration(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(p, logger), nil
}
