package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/model"
)

func countKinds(records []model.FormulaRecord) map[model.FormulaKind]int {
	out := make(map[model.FormulaKind]int)
	for _, r := range records {
		out[r.Kind]++
	}
	return out
}

func assertNoDuplicates(t *testing.T, records []model.FormulaRecord) {
	t.Helper()
	seen := make(map[formulaKey]bool)
	for _, r := range records {
		key := formulaKey{page: r.Page, content: r.Content}
		assert.False(t, seen[key], "duplicate formula %v", key)
		seen[key] = true
	}
}

func TestDetectFormulas_BlockAndInline(t *testing.T) {
	t.Parallel()

	doc := model.Document{
		Pages: []model.Page{{
			Index: 1,
			Elements: []model.Element{
				{Label: "equation", Text: "E = mc^2"},
				{Label: "text", Text: "The famous relation E = mc^2 links energy and mass."},
			},
		}},
	}

	records := DetectFormulas(doc)
	kinds := countKinds(records)
	assert.GreaterOrEqual(t, kinds[model.FormulaBlock], 1)
	assert.GreaterOrEqual(t, kinds[model.FormulaInline], 1)
	assertNoDuplicates(t, records)

	require.Len(t, records, 2)
	assert.Equal(t, model.FormulaRecord{Page: 1, Content: "E = mc^2", Latex: "E = mc^2", Kind: model.FormulaBlock}, records[0])
	assert.Equal(t, model.FormulaRecord{
		Page:    1,
		Content: "E = mc^2 links energy and mass",
		Latex:   "E = mc^2 links energy and mass",
		Kind:    model.FormulaInline,
	}, records[1])
}

func TestDetectFormulas_TextStreamSharesPage(t *testing.T) {
	t.Parallel()

	doc := model.Document{
		Texts: []model.TextItem{
			{Label: "equation", Text: "E = mc^2", Prov: []model.Provenance{{Page: 1}}},
			{Label: "paragraph", Text: "The famous relation E = mc^2 links energy and mass.", Prov: []model.Provenance{{Page: 1}}},
		},
	}

	records := DetectFormulas(doc)
	kinds := countKinds(records)
	assert.Equal(t, 1, kinds[model.FormulaBlock])
	assert.Equal(t, 1, kinds[model.FormulaInline])
	assertNoDuplicates(t, records)
	for _, r := range records {
		assert.Equal(t, 1, r.Page)
	}
}

func TestDetectFormulas_SamePageDedupe(t *testing.T) {
	t.Parallel()

	doc := model.Document{
		Pages: []model.Page{{
			Index: 3,
			Elements: []model.Element{
				{Label: "formula", Text: "  E = mc^2 "},
				{Label: "text", Text: "Recall E = mc^2."},
				{Label: "text", Text: "Einstein wrote E = mc^2 in 1905."},
				{Label: "text", Text: "Einstein wrote E = mc^2 in 1905."},
			},
		}},
		Texts: []model.TextItem{
			{Label: "Equation", Text: "E = mc^2", Prov: []model.Provenance{{Page: 3}}},
		},
	}

	records := DetectFormulas(doc)
	assertNoDuplicates(t, records)
	require.Len(t, records, 2)
	assert.Equal(t, model.FormulaBlock, records[0].Kind)
	assert.Equal(t, "E = mc^2", records[0].Content)
	assert.Equal(t, model.FormulaInline, records[1].Kind)
	assert.Equal(t, "E = mc^2 in 1905", records[1].Content)
}

func TestDetectFormulas_Operators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"so x ≈ 3.14 holds", "x ≈ 3.14 holds"},
		{"bound: n ≤ 2k + 1 always", "n ≤ 2k + 1 always"},
		{"A → B", "A → B"},
		{"ROI = gain / cost, roughly", "ROI = gain / cost"},
		{"Set y = 2.5; then stop", "y = 2.5"},
		{"Finally r = 0.5.", "r = 0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			records := DetectFormulas(model.Document{Texts: []model.TextItem{{Label: "text", Text: tt.text}}})
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].Content)
			assert.Equal(t, model.FormulaInline, records[0].Kind)
			assert.Equal(t, 0, records[0].Page)
		})
	}
}

func TestDetectFormulas_BBoxFromProvenance(t *testing.T) {
	t.Parallel()

	box := &model.BBox{Left: 1, Top: 1, Right: 5, Bottom: 5}
	doc := model.Document{Texts: []model.TextItem{{
		Label: "latex",
		Text:  `\frac{a}{b}`,
		Prov:  []model.Provenance{{Page: 4, BBox: box}},
	}}}

	records := DetectFormulas(doc)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].Page)
	assert.Equal(t, box, records[0].BBox)
	assert.Equal(t, `\frac{a}{b}`, records[0].Latex)
}

func TestDetectFormulas_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, DetectFormulas(model.Document{}))
	assert.Empty(t, DetectFormulas(model.Document{Texts: []model.TextItem{{Label: "text", Text: "No relations here."}}}))
}
