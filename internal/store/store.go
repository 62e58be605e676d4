package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/metrics"
	"github.com/sells-group/docrecon/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = eris.New("store: not found")

// EvidenceFilter specifies criteria for listing evidence.
type EvidenceFilter struct {
	ArtifactID  string            `json:"artifact_id,omitempty"`
	ContentType model.ContentType `json:"content_type,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
}

// FactFilter specifies criteria for listing facts.
type FactFilter struct {
	ArtifactID string `json:"artifact_id,omitempty"`
	ReportWeek string `json:"report_week,omitempty"`
	Entity     string `json:"entity,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Sink is the append-only contract the pipeline writes to.
type Sink interface {
	// CreateArtifact records art. Re-creating an existing artifact is a no-op.
	CreateArtifact(ctx context.Context, art *model.Artifact) error
	// AddEvidence stores ev and returns its ID. A missing ID is generated.
	AddEvidence(ctx context.Context, ev *model.Evidence) (string, error)
	// AddFact stores f and returns its ID. A missing ID is generated.
	AddFact(ctx context.Context, f *model.Fact) (string, error)
}

// FactBatcher is implemented by sinks that can insert many facts in one
// round trip. IDs are returned in input order.
type FactBatcher interface {
	AddFacts(ctx context.Context, facts []model.Fact) ([]string, error)
}

// Store is a Sink with read access and lifecycle management.
type Store interface {
	Sink

	GetArtifact(ctx context.Context, id string) (*model.Artifact, error)
	ListEvidence(ctx context.Context, filter EvidenceFilter) ([]model.Evidence, error)
	ListFacts(ctx context.Context, filter FactFilter) ([]model.Fact, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// WriteBundles hands bundles to sink in order. Each fact is stamped with the
// ID of the evidence it was derived from.
func WriteBundles(ctx context.Context, sink Sink, bundles []model.Bundle) (evidenceIDs, factIDs []string, err error) {
	for _, b := range bundles {
		evidenceID := ""
		if b.Evidence != nil {
			ev := *b.Evidence
			evidenceID, err = sink.AddEvidence(ctx, &ev)
			if err != nil {
				return evidenceIDs, factIDs, eris.Wrapf(err, "store: add evidence %s", ev.Locator)
			}
			evidenceIDs = append(evidenceIDs, evidenceID)
			metrics.RecordsWritten.WithLabelValues("evidence", string(ev.ContentType)).Inc()
		}
		if batcher, ok := sink.(FactBatcher); ok && len(b.Facts) > 1 {
			facts := make([]model.Fact, len(b.Facts))
			for i, f := range b.Facts {
				f.EvidenceID = evidenceID
				facts[i] = f
			}
			ids, err := batcher.AddFacts(ctx, facts)
			if err != nil {
				return evidenceIDs, factIDs, eris.Wrapf(err, "store: add %d facts", len(facts))
			}
			factIDs = append(factIDs, ids...)
			metrics.RecordsWritten.WithLabelValues("fact", "").Add(float64(len(ids)))
			continue
		}
		for _, f := range b.Facts {
			f.EvidenceID = evidenceID
			id, err := sink.AddFact(ctx, &f)
			if err != nil {
				return evidenceIDs, factIDs, eris.Wrapf(err, "store: add fact %s", f.Entity)
			}
			factIDs = append(factIDs, id)
			metrics.RecordsWritten.WithLabelValues("fact", "").Inc()
		}
	}
	return evidenceIDs, factIDs, nil
}
