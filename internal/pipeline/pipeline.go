package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/artifact"
	"github.com/sells-group/docrecon/internal/config"
	"github.com/sells-group/docrecon/internal/metrics"
	"github.com/sells-group/docrecon/internal/model"
	"github.com/sells-group/docrecon/internal/store"
)

// Pipeline runs every reconstruction component over one converted document
// and hands the resulting records to a sink.
type Pipeline struct {
	sink       store.Sink
	layout     *artifact.Layout
	merger     *TableMerger
	classifier *Classifier
	metrics    *MetricExtractor
	assembler  *Assembler
}

// Result is everything Process produced for one document.
type Result struct {
	Artifact    model.Artifact        `json:"artifact"`
	Tables      []ClassifiedTable     `json:"tables"`
	Formulas    []model.FormulaRecord `json:"formulas"`
	Charts      []model.ChartRecord   `json:"charts"`
	Sections    model.SectionTree     `json:"sections"`
	Metrics     []model.MetricHit     `json:"metrics"`
	EvidenceIDs []string              `json:"evidence_ids"`
	FactIDs     []string              `json:"fact_ids"`
	Files       map[string]string     `json:"files,omitempty"`
}

// New builds a Pipeline. layout may be nil, in which case nothing is
// exported to disk and embedded pictures are not written.
func New(cfg config.PipelineConfig, sink store.Sink, layout *artifact.Layout) (*Pipeline, error) {
	if sink == nil {
		return nil, eris.New("pipeline: sink is required")
	}

	var extra []MetricPattern
	if cfg.MetricPatternsFile != "" {
		var err error
		extra, err = LoadMetricPatterns(cfg.MetricPatternsFile)
		if err != nil {
			return nil, err
		}
	}

	mx := NewMetricExtractor(cfg.MetricContextChars, extra...)
	normalizer := NewNormalizer(cfg.HeaderSeparator)
	return &Pipeline{
		sink:       sink,
		layout:     layout,
		merger:     NewTableMerger(normalizer),
		classifier: NewClassifier(cfg.StatementMinConfidence),
		metrics:    mx,
		assembler:  NewAssembler(cfg.PreviewChars, cfg.ReportWeek, mx),
	}, nil
}

// Process reconstructs doc, persists its evidence and facts, and exports the
// per-document files. Conversion problems inside a component never fail the
// document; sink and export errors do.
func (p *Pipeline) Process(ctx context.Context, art model.Artifact, doc model.Document) (*Result, error) {
	log := zap.L().With(
		zap.String("artifact_id", art.ID),
		zap.String("document", doc.Name),
	)
	res := &Result{Artifact: art}

	err := p.run(ctx, art, doc, res, phaseTimer{log: log})
	if err != nil {
		metrics.DocumentsProcessed.WithLabelValues("failed").Inc()
		return res, err
	}
	metrics.DocumentsProcessed.WithLabelValues("ok").Inc()

	log.Info("pipeline: document complete",
		zap.Int("tables", len(res.Tables)),
		zap.Int("formulas", len(res.Formulas)),
		zap.Int("charts", len(res.Charts)),
		zap.Int("metric_hits", len(res.Metrics)),
		zap.Int("evidence", len(res.EvidenceIDs)),
		zap.Int("facts", len(res.FactIDs)),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, art model.Artifact, doc model.Document, res *Result, ph phaseTimer) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: process")
	}

	ph.run("tables", func() {
		for _, t := range p.merger.Merge(doc.Pages) {
			res.Tables = append(res.Tables, ClassifiedTable{
				Table: t,
				Statement: p.classifier.Classify(model.NormalizedTable{
					Columns:    t.Columns,
					Rows:       t.Rows,
					HeaderInfo: t.HeaderInfo,
				}),
			})
		}
	})

	ph.run("formulas", func() {
		res.Formulas = DetectFormulas(doc)
	})

	ph.run("sections", func() {
		res.Sections = BuildSections(doc.Texts)
	})

	ph.run("charts", func() {
		var w ImageWriter
		if p.layout != nil {
			w = p.layout.Images(art)
		}
		res.Charts = ExtractCharts(doc, w)
	})

	ph.run("metrics", func() {
		res.Metrics = p.metrics.Extract(narrativeText(doc))
	})

	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: process")
	}

	err := ph.track("persist", func() error {
		if err := p.sink.CreateArtifact(ctx, &art); err != nil {
			return eris.Wrap(err, "pipeline: create artifact")
		}
		bundles := p.assembler.Assemble(Assembly{
			Artifact: art,
			DocName:  doc.Name,
			Tables:   res.Tables,
			Charts:   res.Charts,
			Formulas: res.Formulas,
			TextHits: res.Metrics,
		})
		var err error
		res.EvidenceIDs, res.FactIDs, err = store.WriteBundles(ctx, p.sink, bundles)
		return err
	})
	if err != nil {
		return err
	}

	if p.layout == nil {
		return nil
	}
	return ph.track("export", func() error {
		files, err := p.export(art, res)
		res.Files = files
		return err
	})
}

func (p *Pipeline) export(art model.Artifact, res *Result) (map[string]string, error) {
	tables := make([]model.MergedTable, len(res.Tables))
	for i, t := range res.Tables {
		tables[i] = t.Table
	}
	files, err := p.layout.WriteTables(art, tables)
	if err != nil {
		return nil, err
	}

	for name, v := range map[string]any{
		"sections.json": res.Sections,
		"metrics.json":  res.Metrics,
		"formulas.json": res.Formulas,
		"charts.json":   res.Charts,
	} {
		path, err := p.layout.WriteJSON(art, name, v)
		if err != nil {
			return files, err
		}
		files[name] = path
	}

	if err := p.layout.RecordFiles(art, files); err != nil {
		return files, err
	}
	return files, nil
}

// phaseTimer records the duration of each pipeline phase.
type phaseTimer struct {
	log *zap.Logger
}

// run times a phase that cannot fail.
func (t phaseTimer) run(name string, fn func()) {
	start := time.Now()
	fn()
	t.observe(name, time.Since(start), nil)
}

// track times a phase and returns its error.
func (t phaseTimer) track(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.observe(name, time.Since(start), err)
	return err
}

func (t phaseTimer) observe(name string, elapsed time.Duration, err error) {
	metrics.PhaseDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		t.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
			zap.Error(err),
		)
		return
	}
	t.log.Debug("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
}

// narrativeText joins the document's prose for metric extraction. Formula
// blocks are skipped. Page elements are used only when the text stream is
// empty.
func narrativeText(doc model.Document) string {
	var parts []string
	for _, t := range doc.Texts {
		if isFormulaLabel(t.Label) {
			continue
		}
		if s := strings.TrimSpace(t.Text); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		for _, page := range doc.Pages {
			for _, el := range page.Elements {
				if isFormulaLabel(el.Label) {
					continue
				}
				if s := strings.TrimSpace(el.Text); s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, "\n")
}
