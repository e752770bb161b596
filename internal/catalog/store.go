package catalog

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
)

// Catalog is an immutable view over a combined entry sequence.
type Catalog struct {
	entries []Entry
	caps    []CapabilityRecord
	apps    []ApplicationRecord
	capByID map[string]int
	appByID map[string]int
}

// New validates entries and indexes them by id. Duplicate ids within either
// record set are a configuration error.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		capByID: make(map[string]int),
		appByID: make(map[string]int),
	}
	copy(c.entries, entries)

	for i, e := range entries {
		switch e.Kind {
		case KindCapability:
			if _, dup := c.capByID[e.ID()]; dup {
				return nil, fmt.Errorf("%w: %w: capability %q", config.ErrConfiguration, ErrDuplicateID, e.ID())
			}
			c.capByID[e.ID()] = len(c.caps)
			c.caps = append(c.caps, *e.Capability)
		case KindApplication:
			if _, dup := c.appByID[e.ID()]; dup {
				return nil, fmt.Errorf("%w: %w: application %q", config.ErrConfiguration, ErrDuplicateID, e.ID())
			}
			c.appByID[e.ID()] = len(c.apps)
			c.apps = append(c.apps, *e.Application)
		default:
			return nil, fmt.Errorf("%w: entry %d has no kind", ErrInvalidRecord, i)
		}
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns the combined sequence in row order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Entry returns the entry at row i.
func (c *Catalog) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Capabilities returns all capability records in source order.
func (c *Catalog) Capabilities() []CapabilityRecord {
	out := make([]CapabilityRecord, len(c.caps))
	copy(out, c.caps)
	return out
}

// Applications returns all application records in source order.
func (c *Catalog) Applications() []ApplicationRecord {
	out := make([]ApplicationRecord, len(c.apps))
	copy(out, c.apps)
	return out
}

// CapabilityCount returns the number of capability records.
func (c *Catalog) CapabilityCount() int { return len(c.caps) }

// Capability looks up a capability by id.
func (c *Catalog) Capability(id string) (CapabilityRecord, bool) {
	i, ok := c.capByID[id]
	if !ok {
		return CapabilityRecord{}, false
	}
	return c.caps[i], true
}

// Application looks up an application by id.
func (c *Catalog) Application(id string) (ApplicationRecord, bool) {
	i, ok := c.appByID[id]
	if !ok {
		return ApplicationRecord{}, false
	}
	return c.apps[i], true
}

// CandidatesFor returns the applications whose technologies or description
// mention capabilityName, ignoring case. An empty name, or a name nothing
// mentions, yields every application.
func (c *Catalog) CandidatesFor(capabilityName string) []ApplicationRecord {
	needle := strings.ToLower(strings.TrimSpace(capabilityName))
	if needle == "" {
		return c.Applications()
	}

	var out []ApplicationRecord
	for _, a := range c.apps {
		tech := strings.ToLower(strings.Join(a.Technologies, " "))
		if strings.Contains(tech, needle) || strings.Contains(strings.ToLower(a.Description), needle) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return c.Applications()
	}
	return out
}
