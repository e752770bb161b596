package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
)

// Load reads a persisted index from dir. A missing index wraps fs.ErrNotExist,
// a model or backend other than opts wraps ErrStale, and files that disagree
// with each other wrap ErrIndexCorrupt. Callers rebuild on any error.
func Load(ctx context.Context, dir string, opts Options) (*Index, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no index in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("%w: cannot read manifest: %v", ErrIndexCorrupt, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid manifest JSON: %v", ErrIndexCorrupt, err)
	}
	if m.Dim <= 0 {
		return nil, fmt.Errorf("%w: invalid dim in manifest: %d", ErrIndexCorrupt, m.Dim)
	}
	if m.ModelID != opts.ModelID {
		return nil, fmt.Errorf("%w: built with model %q, want %q", ErrStale, m.ModelID, opts.ModelID)
	}
	if m.Backend != opts.backend() {
		return nil, fmt.Errorf("%w: built for backend %q, want %q", ErrStale, m.Backend, opts.backend())
	}

	mb, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read metadata: %v", ErrIndexCorrupt, err)
	}
	entries, err := catalog.DecodeEntries(mb)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: metadata is empty", ErrIndexCorrupt)
	}
	if len(entries) != m.Rows {
		return nil, fmt.Errorf("%w: metadata has %d entries, manifest %d rows", ErrIndexCorrupt, len(entries), m.Rows)
	}

	vectors, err := loadVectors(filepath.Join(dir, vectorFile), len(entries), m.Dim)
	if err != nil {
		return nil, err
	}
	return newIndex(ctx, m, entries, vectors)
}

func loadVectors(path string, rows, dim int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open vector file: %v", ErrIndexCorrupt, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot stat vector file: %v", ErrIndexCorrupt, err)
	}
	expected := int64(rows) * int64(dim) * 4
	if st.Size() != expected {
		return nil, fmt.Errorf("%w: vector file has %d bytes, want %d (rows=%d dim=%d)",
			ErrIndexCorrupt, st.Size(), expected, rows, dim)
	}

	out := make([]float32, rows*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: cannot read vectors: %v", ErrIndexCorrupt, err)
	}
	return out, nil
}
