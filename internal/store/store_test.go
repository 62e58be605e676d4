package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/model"
)

type recordingSink struct {
	evidence []model.Evidence
	facts    []model.Fact
	failFact bool
}

func (r *recordingSink) CreateArtifact(_ context.Context, _ *model.Artifact) error { return nil }

func (r *recordingSink) AddEvidence(_ context.Context, ev *model.Evidence) (string, error) {
	id := fmt.Sprintf("ev-%d", len(r.evidence)+1)
	ev.ID = id
	r.evidence = append(r.evidence, *ev)
	return id, nil
}

func (r *recordingSink) AddFact(_ context.Context, f *model.Fact) (string, error) {
	if r.failFact {
		return "", fmt.Errorf("sink closed")
	}
	id := fmt.Sprintf("f-%d", len(r.facts)+1)
	f.ID = id
	r.facts = append(r.facts, *f)
	return id, nil
}

func TestWriteBundles_StampsEvidenceIDs(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	bundles := []model.Bundle{
		{
			Evidence: &model.Evidence{ArtifactID: "a1", Locator: "doc p.1 table 1", ContentType: model.ContentFinancialTable},
			Facts:    []model.Fact{{Entity: "income_statement", Metrics: map[string]float64{"revenue": 1200}}},
		},
		{Evidence: &model.Evidence{ArtifactID: "a1", Locator: "doc p.2 formula 1", ContentType: model.ContentFormula}},
		{Facts: []model.Fact{{Entity: "text", Metrics: map[string]float64{"growth": 12}}, {Entity: "text", Metrics: map[string]float64{"ctr": 2}}}},
	}

	evIDs, factIDs, err := WriteBundles(context.Background(), sink, bundles)
	require.NoError(t, err)
	assert.Equal(t, []string{"ev-1", "ev-2"}, evIDs)
	assert.Equal(t, []string{"f-1", "f-2", "f-3"}, factIDs)

	require.Len(t, sink.facts, 3)
	assert.Equal(t, "ev-1", sink.facts[0].EvidenceID)
	assert.Empty(t, sink.facts[1].EvidenceID)
	assert.Empty(t, sink.facts[2].EvidenceID)

	// Input bundles are left untouched.
	assert.Empty(t, bundles[0].Evidence.ID)
	assert.Empty(t, bundles[0].Facts[0].EvidenceID)
}

func TestWriteBundles_FactError(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{failFact: true}
	evIDs, _, err := WriteBundles(context.Background(), sink, []model.Bundle{{
		Evidence: &model.Evidence{ArtifactID: "a1", Locator: "l", ContentType: model.ContentChart},
		Facts:    []model.Fact{{Entity: "chart"}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: add fact chart")
	assert.Equal(t, []string{"ev-1"}, evIDs)
}

func TestWriteBundles_Empty(t *testing.T) {
	t.Parallel()

	evIDs, factIDs, err := WriteBundles(context.Background(), &recordingSink{}, nil)
	require.NoError(t, err)
	assert.Empty(t, evIDs)
	assert.Empty(t, factIDs)
}
