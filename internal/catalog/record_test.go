package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSnapshot = `[
  {"id": "cap1", "name": "Storage", "category": "infra", "description": "object storage"},
  {"id": "app1", "name": "Bucket", "description": "stores objects", "technologies": ["Storage"]}
]`

func TestDecodeEntries(t *testing.T) {
	entries, err := DecodeEntries([]byte(sampleSnapshot))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, KindCapability, entries[0].Kind)
	assert.Equal(t, "cap1", entries[0].ID())
	assert.Equal(t, "Storage", entries[0].Name())
	assert.Equal(t, "object storage", entries[0].Description())

	assert.Equal(t, KindApplication, entries[1].Kind)
	assert.Equal(t, "app1", entries[1].ID())
	assert.Equal(t, []string{"Storage"}, entries[1].Application.Technologies)
}

func TestDecodeEntries_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"both tags", `[{"id":"x","category":"c","technologies":[]}]`},
		{"no tags", `[{"id":"x","name":"n","description":"d"}]`},
		{"missing id", `[{"name":"n","category":"c"}]`},
		{"not an array", `{"id":"x","category":"c"}`},
		{"bad technologies", `[{"id":"x","technologies":"Storage"}]`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEntries([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestEntry_MarshalJSON(t *testing.T) {
	entries, err := DecodeEntries([]byte(sampleSnapshot))
	require.NoError(t, err)

	data, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.JSONEq(t, sampleSnapshot, string(data))

	_, err = json.Marshal(Entry{})
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "capability", KindCapability.String())
	assert.Equal(t, "application", KindApplication.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
