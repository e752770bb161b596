package catalog

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"golang.org/x/sync/errgroup"
)

const (
	maxSnapshotSize   = 64 << 20
	defaultFetchLimit = 30 * time.Second
)

// ErrSource is returned when a catalog source cannot be read.
var ErrSource = errors.New("catalog source failed")

// Source produces the combined entry sequence.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// NewSource builds the source selected by cfg.
func NewSource(cfg config.CatalogConfig) (Source, error) {
	switch cfg.Source {
	case "", "file":
		if len(cfg.Files) == 0 {
			return nil, fmt.Errorf("%w: catalog.files is empty", config.ErrConfiguration)
		}
		return &FileSource{Paths: cfg.Files}, nil
	case "http":
		return NewHTTPSource(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown catalog source %q", config.ErrConfiguration, cfg.Source)
	}
}

// FileSource reads JSON snapshot files in order and concatenates them.
// Missing files are skipped.
type FileSource struct {
	Paths []string
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readSnapshot(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSource, p, err)
		}
		entries, err := DecodeEntries(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

func readSnapshot(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxSnapshotSize))
}

// HTTPSource fetches capabilities and applications from a catalog service.
type HTTPSource struct {
	baseURL string
	secret  config.Secret
	client  *http.Client
}

// NewHTTPSource creates a source for {base_url}/capabilities and
// {base_url}/applications.
func NewHTTPSource(cfg config.CatalogConfig) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: catalog.base_url is required for the http source", config.ErrConfiguration)
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultFetchLimit
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // catalog.verify_ssl=false
	}

	return &HTTPSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.ClientSecret,
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// Load implements Source. Capabilities come first, then applications, and
// each endpoint must return only its own record kind.
func (s *HTTPSource) Load(ctx context.Context) ([]Entry, error) {
	var caps, apps []Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		caps, err = s.fetch(gctx, "capabilities", KindCapability)
		return err
	})
	g.Go(func() (err error) {
		apps, err = s.fetch(gctx, "applications", KindApplication)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(caps, apps...), nil
}

func (s *HTTPSource) fetch(ctx context.Context, endpoint string, want Kind) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSource, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.secret.IsSet() {
		req.Header.Set("Authorization", "Bearer "+s.secret.Value())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSource, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %v", ErrSource, endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrSource, endpoint, resp.StatusCode)
	}

	entries, err := DecodeEntries(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	for _, e := range entries {
		if e.Kind != want {
			return nil, fmt.Errorf("%w: %s returned %s %q", ErrInvalidRecord, endpoint, e.Kind, e.ID())
		}
	}
	return entries, nil
}

// Load reads entries from src and builds a Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	entries, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(entries)
}
