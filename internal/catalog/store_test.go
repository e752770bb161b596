package catalog

import (
	"testing"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New([]Entry{
		CapabilityEntry(CapabilityRecord{ID: "cap1", Name: "Storage", Category: "infra", Description: "object storage"}),
		CapabilityEntry(CapabilityRecord{ID: "cap2", Name: "Messaging", Category: "infra", Description: "queues and topics"}),
		ApplicationEntry(ApplicationRecord{ID: "app1", Name: "Bucket", Description: "stores objects", Technologies: []string{"Storage"}}),
		ApplicationEntry(ApplicationRecord{ID: "app2", Name: "Relay", Description: "fan-out messaging bus", Technologies: []string{"Kafka"}}),
		ApplicationEntry(ApplicationRecord{ID: "app3", Name: "Vault", Description: "cold archive for object storage", Technologies: nil}),
	})
	require.NoError(t, err)
	return c
}

func TestNew_Lookup(t *testing.T) {
	c := testCatalog(t)

	assert.Equal(t, 5, c.Len())
	assert.Equal(t, 2, c.CapabilityCount())
	assert.Len(t, c.Applications(), 3)

	capRec, ok := c.Capability("cap2")
	require.True(t, ok)
	assert.Equal(t, "Messaging", capRec.Name)

	app, ok := c.Application("app1")
	require.True(t, ok)
	assert.Equal(t, "Bucket", app.Name)

	_, ok = c.Capability("app1")
	assert.False(t, ok)

	e, ok := c.Entry(2)
	require.True(t, ok)
	assert.Equal(t, "app1", e.ID())
	_, ok = c.Entry(5)
	assert.False(t, ok)
}

func TestNew_DuplicateIDs(t *testing.T) {
	_, err := New([]Entry{
		ApplicationEntry(ApplicationRecord{ID: "a"}),
		ApplicationEntry(ApplicationRecord{ID: "a"}),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestNew_SameIDAcrossSets(t *testing.T) {
	_, err := New([]Entry{
		CapabilityEntry(CapabilityRecord{ID: "x"}),
		ApplicationEntry(ApplicationRecord{ID: "x"}),
	})
	assert.NoError(t, err)
}

func TestNew_ZeroEntry(t *testing.T) {
	_, err := New([]Entry{{}})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestCandidatesFor(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name string
		capa string
		want []string
	}{
		{"technology match", "Storage", []string{"app1", "app3"}},
		{"case insensitive", "sToRaGe", []string{"app1", "app3"}},
		{"description match", "messaging", []string{"app2"}},
		{"no match falls back", "Compute", []string{"app1", "app2", "app3"}},
		{"empty falls back", "", []string{"app1", "app2", "app3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.CandidatesFor(tt.capa)
			ids := make([]string, len(got))
			for i, a := range got {
				ids[i] = a.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	c := testCatalog(t)
	entries := c.Entries()
	entries[0] = ApplicationEntry(ApplicationRecord{ID: "mutated"})

	e, _ := c.Entry(0)
	assert.Equal(t, "cap1", e.ID())
}
