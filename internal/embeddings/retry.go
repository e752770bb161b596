package embeddings

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/logging"
)

// retrying retries a transport failure exactly once. Embedding calls are
// idempotent, so a repeat is safe.
type retrying struct {
	Provider
	logger *logging.Logger
}

// WithRetry wraps p so that ErrTransport failures are retried once.
func WithRetry(p Provider, logger *logging.Logger) Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &retrying{Provider: p, logger: logger}
}

func (r *retrying) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := r.Provider.EmbedDocuments(ctx, texts)
	if r.shouldRetry(ctx, err) {
		r.logger.Warn(ctx, "retrying embedding call", zap.String("operation", "embed_documents"), zap.Error(err))
		vectors, err = r.Provider.EmbedDocuments(ctx, texts)
	}
	return vectors, err
}

func (r *retrying) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := r.Provider.EmbedQuery(ctx, text)
	if r.shouldRetry(ctx, err) {
		r.logger.Warn(ctx, "retrying embedding call", zap.String("operation", "embed_query"), zap.Error(err))
		vector, err = r.Provider.EmbedQuery(ctx, text)
	}
	return vector, err
}

func (r *retrying) shouldRetry(ctx context.Context, err error) bool {
	return err != nil && errors.Is(err, ErrTransport) && ctx.Err() == nil
}
