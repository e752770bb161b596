package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/secrets"
)

// testStoreContract exercises the Store behaviour every backend shares.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	stored, err := s.Append(ctx,
		Message{SessionID: "s1", Role: RoleUser, Content: "I need to store files"},
		Message{SessionID: "s1", Role: RoleAssistant, Content: "Use Bucket for object storage."},
	)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Less(t, stored[0].ID, stored[1].ID)
	assert.False(t, stored[0].CreatedAt.IsZero())

	more, err := s.Append(ctx, Message{SessionID: "s2", Role: RoleUser, Content: "queues?"})
	require.NoError(t, err)
	assert.Greater(t, more[0].ID, stored[1].ID)

	got, err := s.Get(ctx, stored[1].ID)
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, got.Role)
	assert.Equal(t, "Use Bucket for object storage.", got.Content)
	assert.Equal(t, "s1", got.SessionID)

	require.NoError(t, s.Update(ctx, stored[1].ID, "Use Bucket."))
	got, err = s.Get(ctx, stored[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Use Bucket.", got.Content)

	require.NoError(t, s.Delete(ctx, stored[0].ID))
	_, err = s.Get(ctx, stored[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Use Bucket.", "queues?"}, contents(all))

	assert.ErrorIs(t, s.Update(ctx, 9999, "x"), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 9999), ErrNotFound)
	_, err = s.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleted ids are never reused.
	next, err := s.Append(ctx, Message{Role: RoleUser, Content: "later"})
	require.NoError(t, err)
	assert.Greater(t, next[0].ID, more[0].ID)

	require.NoError(t, s.Close())
}

func TestMemStore(t *testing.T) {
	testStoreContract(t, NewMemStore())
}

func TestFileStore(t *testing.T) {
	testStoreContract(t, mustOpenFile(t, filepath.Join(t.TempDir(), "memory.json")))
}

func TestFileStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	ctx := context.Background()

	s := mustOpenFile(t, path)
	_, err := s.Append(ctx, Message{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)

	reopened := mustOpenFile(t, path)
	all, err := reopened.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, contents(all))
	assert.Equal(t, int64(1), all[0].ID)
}

func mustOpenFile(t *testing.T, path string) *FileStore {
	t.Helper()
	s, err := OpenFile(path)
	require.NoError(t, err)
	return s
}

func TestScrubbing(t *testing.T) {
	scrubber, err := secrets.New(secrets.DefaultConfig())
	require.NoError(t, err)
	tl := logging.NewTestLogger()
	s := Scrubbing(NewMemStore(), scrubber, tl.Logger)
	ctx := context.Background()

	stored, err := s.Append(ctx, Message{Role: RoleUser, Content: "my password=hunter22 is not working"})
	require.NoError(t, err)
	assert.NotContains(t, stored[0].Content, "hunter22")

	require.NoError(t, s.Update(ctx, stored[0].ID, "api_key=abcdef123456"))
	got, err := s.Get(ctx, stored[0].ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Content, "abcdef123456")

	tl.AssertLogged(t, zapcore.InfoLevel, "redacted secrets")
}

func TestScrubbing_DisabledPassesThrough(t *testing.T) {
	inner := NewMemStore()
	assert.Same(t, Store(inner), Scrubbing(inner, nil, nil))
	assert.Same(t, Store(inner), Scrubbing(inner, secrets.NoopScrubber{}, nil))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.MemoryConfig{Backend: "memory"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	s, err = Open(config.MemoryConfig{Backend: "file", Path: filepath.Join(dir, "m.json")}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(config.MemoryConfig{Backend: "postgres"}, nil, nil)
	assert.ErrorIs(t, err, config.ErrConfiguration)

	_, err = Open(config.MemoryConfig{Backend: "redis"}, nil, nil)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
