package llm

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
)

// LangChain adapts a langchaingo model to Completer.
type LangChain struct {
	model       llms.Model
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *logging.Logger
}

// NewLangChain creates an openai or anthropic completer from cfg.
func NewLangChain(cfg config.CompletionConfig, logger *logging.Logger) (*LangChain, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: completion API key required", config.ErrConfiguration)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-out
	}
	client := &http.Client{Transport: transport}

	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey.Value()), openai.WithHTTPClient(client)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey.Value()), anthropic.WithHTTPClient(client)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		model, err = anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown completion provider %q", config.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s client: %v", config.ErrConfiguration, cfg.Provider, err)
	}
	return NewLangChainModel(model, cfg.MaxTokens, cfg.Temperature, cfg.Timeout.Duration(), logger), nil
}

// NewLangChainModel wraps an existing langchaingo model.
func NewLangChainModel(model llms.Model, maxTokens int, temperature float64, timeout time.Duration, logger *logging.Logger) *LangChain {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LangChain{
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger.Named("langchain"),
	}
}

// Complete implements Completer.
func (l *LangChain) Complete(ctx context.Context, system, user string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: system}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: user}}},
	}
	resp, err := l.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(l.maxTokens),
		llms.WithTemperature(l.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Content, nil
}
