package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is returned for records that are neither a capability
	// nor an application, or are both.
	ErrInvalidRecord = errors.New("invalid catalog record")

	// ErrDuplicateID is returned when an id repeats within a record set.
	ErrDuplicateID = errors.New("duplicate catalog id")
)

// CapabilityRecord is a technology category.
type CapabilityRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// ApplicationRecord is a concrete system tagged with the technologies it
// implements.
type ApplicationRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// Kind discriminates catalog entries.
type Kind int

const (
	KindCapability Kind = iota + 1
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindCapability:
		return "capability"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Entry is exactly one of a capability or an application.
type Entry struct {
	Kind        Kind
	Capability  *CapabilityRecord
	Application *ApplicationRecord
}

// CapabilityEntry wraps a capability record.
func CapabilityEntry(c CapabilityRecord) Entry {
	return Entry{Kind: KindCapability, Capability: &c}
}

// ApplicationEntry wraps an application record.
func ApplicationEntry(a ApplicationRecord) Entry {
	return Entry{Kind: KindApplication, Application: &a}
}

// ID returns the record id.
func (e Entry) ID() string {
	switch e.Kind {
	case KindCapability:
		return e.Capability.ID
	case KindApplication:
		return e.Application.ID
	}
	return ""
}

// Name returns the record name.
func (e Entry) Name() string {
	switch e.Kind {
	case KindCapability:
		return e.Capability.Name
	case KindApplication:
		return e.Application.Name
	}
	return ""
}

// Description returns the text that gets embedded for this entry.
func (e Entry) Description() string {
	switch e.Kind {
	case KindCapability:
		return e.Capability.Description
	case KindApplication:
		return e.Application.Description
	}
	return ""
}

// MarshalJSON writes the underlying record in its snapshot form.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindCapability:
		return json.Marshal(e.Capability)
	case KindApplication:
		return json.Marshal(e.Application)
	}
	return nil, fmt.Errorf("%w: entry has no kind", ErrInvalidRecord)
}

// UnmarshalJSON decides the variant from field presence.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	_, hasCategory := fields["category"]
	_, hasTech := fields["technologies"]

	switch {
	case hasCategory && hasTech:
		return fmt.Errorf("%w: record has both category and technologies", ErrInvalidRecord)
	case hasCategory:
		var c CapabilityRecord
		if err := decodeRecord(data, &c); err != nil {
			return err
		}
		*e = CapabilityEntry(c)
	case hasTech:
		var a ApplicationRecord
		if err := decodeRecord(data, &a); err != nil {
			return err
		}
		*e = ApplicationEntry(a)
	default:
		return fmt.Errorf("%w: record has neither category nor technologies", ErrInvalidRecord)
	}

	if e.ID() == "" {
		return fmt.Errorf("%w: %s without id", ErrInvalidRecord, e.Kind)
	}
	return nil
}

func decodeRecord(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// DecodeEntries parses a JSON array of records.
func DecodeEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: expected a JSON array of records: %v", ErrInvalidRecord, err)
	}
	return entries, nil
}
