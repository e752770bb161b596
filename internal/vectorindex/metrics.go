package vectorindex

import (
	"errors"
	"io/fs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexRows is the row count of the index currently served.
	IndexRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "askcatalog",
			Subsystem: "vectorindex",
			Name:      "rows",
			Help:      "Number of rows in the served vector index",
		},
	)

	// BuildDuration tracks how long full index builds take.
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "askcatalog",
			Subsystem: "vectorindex",
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds, embedding included, in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// LoadTotal counts persisted index loads.
	// Labels: result (loaded, missing, stale, corrupt, error)
	LoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askcatalog",
			Subsystem: "vectorindex",
			Name:      "loads_total",
			Help:      "Total number of persisted index loads by result",
		},
		[]string{"result"},
	)

	// PersistTotal counts persist operations.
	// Labels: result (success, error)
	PersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askcatalog",
			Subsystem: "vectorindex",
			Name:      "persists_total",
			Help:      "Total number of index persist operations",
		},
		[]string{"result"},
	)
)

// LoadResult classifies a Load error for metrics and logs.
func LoadResult(err error) string {
	switch {
	case err == nil:
		return "loaded"
	case errors.Is(err, fs.ErrNotExist):
		return "missing"
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrIndexCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}

// RecordLoadResult records the outcome of a Load.
func RecordLoadResult(err error) {
	LoadTotal.WithLabelValues(LoadResult(err)).Inc()
}

// RecordPersistResult records the outcome of a Persist.
func RecordPersistResult(err error) {
	if err == nil {
		PersistTotal.WithLabelValues("success").Inc()
	} else {
		PersistTotal.WithLabelValues("error").Inc()
	}
}

// UpdateIndexMetrics sets the served-index gauges from idx.
func UpdateIndexMetrics(idx *Index) {
	if idx == nil {
		return
	}
	IndexRows.Set(float64(idx.Len()))
}
