package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
)

// tableEmbedder returns a fixed vector per text and counts calls.
type tableEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *tableEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, errors.New("unexpected text " + t)
		}
		out[i] = v
	}
	return out, nil
}

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		catalog.CapabilityEntry(catalog.CapabilityRecord{ID: "cap1", Name: "Storage", Category: "infra", Description: "object storage"}),
		catalog.CapabilityEntry(catalog.CapabilityRecord{ID: "cap2", Name: "Messaging", Category: "infra", Description: "message queues"}),
		catalog.ApplicationEntry(catalog.ApplicationRecord{ID: "app1", Name: "Bucket", Description: "stores objects", Technologies: []string{"Storage"}}),
	}
}

func testEmbedder() *tableEmbedder {
	return &tableEmbedder{vectors: map[string][]float32{
		"object storage": {1, 0, 0},
		"message queues": {0, 1, 0},
		"stores objects": {0.8, 0.6, 0},
	}}
}

var testOpts = Options{ModelID: "test/model", Backend: BackendFlat}

func TestBuild(t *testing.T) {
	idx, err := Build(context.Background(), testEmbedder(), testEntries(), testOpts)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Dim())
	m := idx.Manifest()
	assert.Equal(t, "test/model", m.ModelID)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, BackendFlat, m.Backend)
	assert.NotEmpty(t, m.CreatedAt)

	for i, want := range testEntries() {
		got, ok := idx.Entry(i)
		require.True(t, ok)
		assert.Equal(t, want.ID(), got.ID())
	}
	_, ok := idx.Entry(3)
	assert.False(t, ok)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(context.Background(), testEmbedder(), nil, testOpts)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	ragged := &tableEmbedder{vectors: map[string][]float32{
		"object storage": {1, 0},
		"message queues": {0, 1, 0},
		"stores objects": {1, 1},
	}}
	_, err = Build(context.Background(), ragged, testEntries(), testOpts)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Build(context.Background(), testEmbedder(), testEntries(), Options{Backend: "faiss"})
	assert.Error(t, err)
}

func TestBuild_BlankDescriptionUsesName(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{"Storage": {1}}}
	entries := []catalog.Entry{catalog.CapabilityEntry(catalog.CapabilityRecord{ID: "cap1", Name: "Storage"})}

	_, err := Build(context.Background(), e, entries, testOpts)
	assert.NoError(t, err)
}

func TestSearch(t *testing.T) {
	idx, err := Build(context.Background(), testEmbedder(), testEntries(), testOpts)
	require.NoError(t, err)
	ctx := context.Background()

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "cap1", matches[0].Entry.ID())
	assert.Equal(t, float32(0), matches[0].Distance)
	assert.Equal(t, "app1", matches[1].Entry.ID())
	assert.InDelta(t, 0.4, matches[1].Distance, 1e-6)

	all, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "k is clamped to the row count")

	none, err := idx.Search(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_TiesKeepRowOrder(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{
		"object storage": {1, 0},
		"message queues": {0, 1},
		"stores objects": {1, 0},
	}}
	idx, err := Build(context.Background(), e, testEntries(), testOpts)
	require.NoError(t, err)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, rows(matches))
}

func TestSearch_ChromemAgreesWithFlatOnUnitVectors(t *testing.T) {
	ctx := context.Background()
	flat, err := Build(ctx, testEmbedder(), testEntries(), testOpts)
	require.NoError(t, err)
	chromemIdx, err := Build(ctx, testEmbedder(), testEntries(), Options{ModelID: "test/model", Backend: BackendChromem})
	require.NoError(t, err)

	for _, q := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0.6, 0.8, 0}} {
		want, err := flat.Search(ctx, q, 3)
		require.NoError(t, err)
		got, err := chromemIdx.Search(ctx, q, 3)
		require.NoError(t, err)
		assert.Equal(t, rows(want), rows(got))
		assert.Equal(t, want[0].Entry.ID(), got[0].Entry.ID())
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	for _, backend := range []string{BackendFlat, BackendChromem} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			opts := Options{ModelID: "test/model", Backend: backend}
			dir := filepath.Join(t.TempDir(), "vector_store")

			built, err := Build(ctx, testEmbedder(), testEntries(), opts)
			require.NoError(t, err)
			require.NoError(t, built.Persist(dir))

			loaded, err := Load(ctx, dir, opts)
			require.NoError(t, err)

			assert.Equal(t, built.Entries(), loaded.Entries())
			assert.Equal(t, built.Manifest(), loaded.Manifest())
			for _, q := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0.3, 0.3, 0.9}} {
				before, err := built.Search(ctx, q, 3)
				require.NoError(t, err)
				after, err := loaded.Search(ctx, q, 3)
				require.NoError(t, err)
				assert.Equal(t, before, after)
			}
		})
	}
}

func TestPersist_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vector_store")

	first, err := Build(ctx, testEmbedder(), testEntries()[:1], testOpts)
	require.NoError(t, err)
	require.NoError(t, first.Persist(dir))

	second, err := Build(ctx, testEmbedder(), testEntries(), testOpts)
	require.NoError(t, err)
	require.NoError(t, second.Persist(dir))

	loaded, err := Load(ctx, dir, testOpts)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	_, err = os.Stat(dir + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_Failures(t *testing.T) {
	ctx := context.Background()

	persist := func(t *testing.T) string {
		t.Helper()
		dir := filepath.Join(t.TempDir(), "vector_store")
		idx, err := Build(ctx, testEmbedder(), testEntries(), testOpts)
		require.NoError(t, err)
		require.NoError(t, idx.Persist(dir))
		return dir
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "nothing"), testOpts)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("truncated blob", func(t *testing.T) {
		dir := persist(t)
		path := filepath.Join(dir, vectorFile)
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, b[:len(b)-12], 0o644))

		_, err = Load(ctx, dir, testOpts)
		assert.ErrorIs(t, err, ErrIndexCorrupt)
	})

	t.Run("metadata row mismatch", func(t *testing.T) {
		dir := persist(t)
		short := `[{"id":"cap1","name":"Storage","category":"infra","description":"object storage"}]`
		require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFile), []byte(short), 0o644))

		_, err := Load(ctx, dir, testOpts)
		assert.ErrorIs(t, err, ErrIndexCorrupt)
	})

	t.Run("ambiguous metadata record", func(t *testing.T) {
		dir := persist(t)
		bad := `[{"id":"x","name":"X","category":"c","technologies":[]},{"id":"y","name":"Y","category":"c"},{"id":"z","name":"Z","category":"c"}]`
		require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFile), []byte(bad), 0o644))

		_, err := Load(ctx, dir, testOpts)
		assert.ErrorIs(t, err, ErrIndexCorrupt)
	})

	t.Run("garbage manifest", func(t *testing.T) {
		dir := persist(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFile), []byte("{"), 0o644))

		_, err := Load(ctx, dir, testOpts)
		assert.ErrorIs(t, err, ErrIndexCorrupt)
	})

	t.Run("other model", func(t *testing.T) {
		dir := persist(t)
		_, err := Load(ctx, dir, Options{ModelID: "other/model"})
		assert.ErrorIs(t, err, ErrStale)
	})

	t.Run("other backend", func(t *testing.T) {
		dir := persist(t)
		_, err := Load(ctx, dir, Options{ModelID: "test/model", Backend: BackendChromem})
		assert.ErrorIs(t, err, ErrStale)
	})
}

func TestLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_store")
	ctx := context.Background()

	unlock, err := Lock(ctx, dir, time.Second)
	require.NoError(t, err)

	_, err = Lock(ctx, dir, 0)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	unlock2, err := Lock(ctx, dir, 0)
	require.NoError(t, err)
	unlock2()
}

func rows(m []Match) []int {
	out := make([]int, len(m))
	for i := range m {
		out[i] = m[i].Row
	}
	return out
}

func TestLoadResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "loaded"},
		{fmt.Errorf("no index: %w", fs.ErrNotExist), "missing"},
		{fmt.Errorf("%w: other model", ErrStale), "stale"},
		{fmt.Errorf("%w: short blob", ErrIndexCorrupt), "corrupt"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LoadResult(tt.err))
	}
}

func TestRecordPersistResult(t *testing.T) {
	before := testutil.ToFloat64(PersistTotal.WithLabelValues("error"))
	RecordPersistResult(errors.New("disk full"))
	assert.Equal(t, before+1, testutil.ToFloat64(PersistTotal.WithLabelValues("error")))
}
