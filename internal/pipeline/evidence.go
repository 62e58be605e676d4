package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/docrecon/internal/model"
)

// DefaultPreviewChars caps Evidence previews.
const DefaultPreviewChars = 280

// Fact entities for records that are not tied to a sheet or statement.
const (
	EntityChart = "chart"
	EntityText  = "text"
)

// ClassifiedTable is a merged table with its statement classification.
type ClassifiedTable struct {
	Table     model.MergedTable
	Statement model.StatementSummary
}

// Assembly is everything one document pass produced.
type Assembly struct {
	Artifact model.Artifact
	DocName  string
	Tables   []ClassifiedTable
	Charts   []model.ChartRecord
	Formulas []model.FormulaRecord
	TextHits []model.MetricHit
}

// Assembler converts pipeline records into Evidence and Fact bundles.
type Assembler struct {
	previewChars int
	reportWeek   string
	metrics      *MetricExtractor
	now          func() time.Time
}

// NewAssembler returns an Assembler. An empty reportWeek is derived from the
// ISO week at assembly time; previewChars <= 0 selects DefaultPreviewChars.
func NewAssembler(previewChars int, reportWeek string, mx *MetricExtractor) *Assembler {
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}
	if mx == nil {
		mx = NewMetricExtractor(0)
	}
	return &Assembler{
		previewChars: previewChars,
		reportWeek:   reportWeek,
		metrics:      mx,
		now:          time.Now,
	}
}

// ISOWeek formats t as "2006-W01".
func ISOWeek(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// Assemble builds bundles in a stable order: tables, charts, formulas, then
// narrative facts.
func (a *Assembler) Assemble(in Assembly) []model.Bundle {
	now := a.now().UTC()
	week := a.reportWeek
	if week == "" {
		week = ISOWeek(now)
	}
	doc := in.DocName
	if doc == "" {
		doc = in.Artifact.ID
	}

	fact := func(entity string, m map[string]float64) model.Fact {
		return model.Fact{
			ArtifactID: in.Artifact.ID,
			ReportWeek: week,
			Entity:     entity,
			Metrics:    m,
			CreatedAt:  now,
		}
	}
	evidence := func(locator string, ct model.ContentType, preview string, data map[string]any) *model.Evidence {
		return &model.Evidence{
			ArtifactID:  in.Artifact.ID,
			Locator:     locator,
			ContentType: ct,
			Preview:     truncateRunes(preview, a.previewChars),
			FullData:    data,
			CreatedAt:   now,
		}
	}

	var out []model.Bundle

	for i, ct := range in.Tables {
		t := ct.Table
		kind := model.ContentTable
		data := map[string]any{
			"columns":     t.Columns,
			"rows":        t.Rows,
			"header_info": t.HeaderInfo,
			"pages":       t.Pages,
			"bboxes":      t.BBoxes,
			"merged":      t.Merged,
		}
		if t.Caption != "" {
			data["caption"] = t.Caption
		}
		var facts []model.Fact
		if ct.Statement.Recognized() {
			kind = model.ContentFinancialTable
			data["statement"] = ct.Statement
			if len(ct.Statement.Fields) > 0 {
				facts = append(facts, fact(ct.Statement.Type.String(), ct.Statement.Fields))
			}
		}
		out = append(out, model.Bundle{
			Evidence: evidence(tableLocator(doc, t, i+1), kind, tablePreview(t), data),
			Facts:    facts,
		})
	}

	for i, c := range in.Charts {
		data := map[string]any{
			"caption":    c.Caption,
			"page":       c.Page,
			"image_path": c.ImagePath,
		}
		if c.BBox != nil {
			data["bbox"] = c.BBox
		}
		var facts []model.Fact
		if m := hitMetrics(a.metrics.Extract(c.Caption)); len(m) > 0 {
			facts = append(facts, fact(EntityChart, m))
		}
		out = append(out, model.Bundle{
			Evidence: evidence(fmt.Sprintf("%s p.%d chart %d", doc, c.Page, i+1), model.ContentChart, c.Caption, data),
			Facts:    facts,
		})
	}

	for i, f := range in.Formulas {
		data := map[string]any{
			"content": f.Content,
			"latex":   f.Latex,
			"kind":    f.Kind,
			"page":    f.Page,
		}
		if f.BBox != nil {
			data["bbox"] = f.BBox
		}
		out = append(out, model.Bundle{
			Evidence: evidence(fmt.Sprintf("%s p.%d formula %d", doc, f.Page, i+1), model.ContentFormula, f.Content, data),
		})
	}

	var narrative []model.Fact
	for _, h := range in.TextHits {
		if m := hitMetrics([]model.MetricHit{h}); len(m) > 0 {
			narrative = append(narrative, fact(EntityText, m))
		}
	}
	if len(narrative) > 0 {
		out = append(out, model.Bundle{Facts: narrative})
	}

	return out
}

// hitMetrics keeps the first parseable value per metric type.
func hitMetrics(hits []model.MetricHit) map[string]float64 {
	out := make(map[string]float64)
	for _, h := range hits {
		if _, ok := out[string(h.Type)]; ok {
			continue
		}
		if v, ok := ParseMetricValue(h.Value); ok {
			out[string(h.Type)] = v
		}
	}
	return out
}

func tableLocator(doc string, t model.MergedTable, n int) string {
	pages := fmt.Sprintf("p.%d", t.FirstPage())
	if t.LastPage() != t.FirstPage() {
		pages = fmt.Sprintf("p.%d-%d", t.FirstPage(), t.LastPage())
	}
	return fmt.Sprintf("%s %s table %d", doc, pages, n)
}

func tablePreview(t model.MergedTable) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, " | "))
	for _, row := range t.Rows {
		b.WriteByte('\n')
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
