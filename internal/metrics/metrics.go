// Package metrics holds the Prometheus collectors for document processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// Registry holds every docrecon collector. It is separate from the default
// registerer so the CLI can write a textfile without Go runtime series.
var Registry = prometheus.NewRegistry()

var (
	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrecon_documents_processed_total",
			Help: "Documents run through the pipeline",
		},
		[]string{"status"},
	)

	TableFragments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrecon_table_fragments_total",
			Help: "Table fragments seen by the continuity merger",
		},
		[]string{"outcome"},
	)

	TablesMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docrecon_tables_merged_total",
			Help: "Logical tables assembled from more than one page",
		},
	)

	StatementsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrecon_statements_classified_total",
			Help: "Tables classified by statement type",
		},
		[]string{"type"},
	)

	FallbackResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrecon_fallback_results_total",
			Help: "Fallback chain outcomes by engine",
		},
		[]string{"chain", "engine"},
	)

	RecordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrecon_records_written_total",
			Help: "Evidence and fact rows handed to the sink",
		},
		[]string{"kind", "content_type"},
	)

	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docrecon_phase_duration_seconds",
			Help:    "Pipeline phase latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"phase"},
	)
)

func init() {
	Registry.MustRegister(
		DocumentsProcessed,
		TableFragments,
		TablesMerged,
		StatementsClassified,
		FallbackResults,
		RecordsWritten,
		PhaseDuration,
	)
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return eris.Wrap(err, "metrics: write textfile")
	}
	return nil
}
