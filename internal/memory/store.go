package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/secrets"
)

// Store is the long-term, append-ordered conversation log.
type Store interface {
	// Append stores messages in order and returns them with assigned ids.
	Append(ctx context.Context, msgs ...Message) ([]Message, error)
	// Get returns the message with id, or ErrNotFound.
	Get(ctx context.Context, id int64) (Message, error)
	// Update replaces the content of message id.
	Update(ctx context.Context, id int64, content string) error
	// Delete removes message id.
	Delete(ctx context.Context, id int64) error
	// All returns every message ordered by id.
	All(ctx context.Context) ([]Message, error)
	Close() error
}

// Open creates the store selected by cfg, scrubbing content with scrubber.
func Open(cfg config.MemoryConfig, scrubber secrets.Scrubber, logger *logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "sqlite", "":
		s, err = OpenSQLite(cfg.Path, logger.Underlying())
	case "postgres":
		if !cfg.DSN.IsSet() {
			return nil, fmt.Errorf("%w: memory.dsn required for postgres", config.ErrConfiguration)
		}
		s, err = OpenPostgres(cfg.DSN.Value(), logger.Underlying())
	case "file":
		s, err = OpenFile(cfg.Path)
	case "memory":
		s = NewMemStore()
	default:
		return nil, fmt.Errorf("%w: unknown memory backend %q", config.ErrConfiguration, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(context.Background(), "conversation store opened",
		zap.String("backend", cfg.Backend),
		zap.Bool("scrubbing", scrubber != nil && scrubber.IsEnabled()))
	return Scrubbing(s, scrubber, logger), nil
}

// scrubbingStore redacts secrets from content before it is written.
type scrubbingStore struct {
	Store
	scrubber secrets.Scrubber
	logger   *logging.Logger
}

// Scrubbing wraps s so appended and updated content is scrubbed. A nil or
// disabled scrubber returns s unchanged.
func Scrubbing(s Store, scrubber secrets.Scrubber, logger *logging.Logger) Store {
	if scrubber == nil || !scrubber.IsEnabled() {
		return s
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &scrubbingStore{Store: s, scrubber: scrubber, logger: logger}
}

func (s *scrubbingStore) scrub(ctx context.Context, content string) string {
	res := s.scrubber.Scrub(content)
	if res.HasFindings() {
		s.logger.Info(ctx, "redacted secrets from conversation content",
			zap.Strings("rules", res.RuleIDs()),
			zap.Int("findings", len(res.Findings)))
	}
	return res.Scrubbed
}

func (s *scrubbingStore) Append(ctx context.Context, msgs ...Message) ([]Message, error) {
	clean := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Content = s.scrub(ctx, m.Content)
		clean[i] = m
	}
	return s.Store.Append(ctx, clean...)
}

func (s *scrubbingStore) Update(ctx context.Context, id int64, content string) error {
	return s.Store.Update(ctx, id, s.scrub(ctx, content))
}
