package pipeline

import (
	"time"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/vectorindex"
)

// Origin tells whether a State came from disk or a fresh build.
type Origin string

const (
	OriginLoaded Origin = "loaded"
	OriginBuilt  Origin = "built"
)

// State is the read-only shared catalog and index.
type State struct {
	Catalog *catalog.Catalog
	Index   *vectorindex.Index
	Origin  Origin
	Version int64
	ReadyAt time.Time
}
