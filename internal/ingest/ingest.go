package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/artifact"
	"github.com/sells-group/docrecon/internal/fallback"
	"github.com/sells-group/docrecon/internal/model"
	"github.com/sells-group/docrecon/internal/ocr"
	"github.com/sells-group/docrecon/internal/pipeline"
	"github.com/sells-group/docrecon/internal/store"
	"github.com/sells-group/docrecon/internal/transcribe"
)

// KindOf classifies path by extension.
func KindOf(path string) (model.ArtifactKind, bool) {
	switch {
	case IsSpreadsheet(path):
		return model.ArtifactSpreadsheet, true
	case ocr.IsImage(path), ocr.IsPDF(path):
		return model.ArtifactImage, true
	case transcribe.IsAudio(path):
		return model.ArtifactAudio, true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".md", ".markdown", ".txt":
		return model.ArtifactDocument, true
	}
	return "", false
}

// Ingester builds batch jobs for source files.
type Ingester struct {
	sink       store.Sink
	layout     *artifact.Layout
	ocr        *fallback.Chain
	transcribe *fallback.Chain
	sheets     *SheetAssembler
}

// Options configures an Ingester. Nil chains disable image or audio input.
type Options struct {
	Sink       store.Sink
	Layout     *artifact.Layout
	OCR        *fallback.Chain
	Transcribe *fallback.Chain
	Sheets     *SheetAssembler
}

// New returns an Ingester.
func New(opts Options) (*Ingester, error) {
	if opts.Sink == nil {
		return nil, eris.New("ingest: sink is required")
	}
	if opts.Sheets == nil {
		opts.Sheets = NewSheetAssembler(0, "")
	}
	return &Ingester{
		sink:       opts.Sink,
		layout:     opts.Layout,
		ocr:        opts.OCR,
		transcribe: opts.Transcribe,
		sheets:     opts.Sheets,
	}, nil
}

// Job returns the batch job for path. Documents are loaded and run through
// the pipeline; images and audio go through their fallback chain first and
// the extracted text is processed as a plain-text document; spreadsheets are
// written directly as evidence and facts.
func (in *Ingester) Job(path string) (pipeline.Job, error) {
	kind, ok := KindOf(path)
	if !ok {
		return pipeline.Job{}, eris.Wrapf(ErrUnsupported, "ingest: %s", path)
	}
	art, err := artifact.NewArtifact(kind, path)
	if err != nil {
		return pipeline.Job{}, err
	}
	job := pipeline.Job{Artifact: art}

	switch kind {
	case model.ArtifactDocument:
		job.Load = func(context.Context) (model.Document, error) { return LoadDocument(path) }
	case model.ArtifactImage:
		if in.ocr == nil {
			return pipeline.Job{}, eris.Errorf("ingest: no OCR chain configured for %s", path)
		}
		job.Load = in.chainLoader(in.ocr, art, path)
	case model.ArtifactAudio:
		if in.transcribe == nil {
			return pipeline.Job{}, eris.Errorf("ingest: no transcription chain configured for %s", path)
		}
		job.Load = in.chainLoader(in.transcribe, art, path)
	case model.ArtifactSpreadsheet:
		job.Run = func(ctx context.Context) (*pipeline.Result, error) {
			return in.IngestSheets(ctx, art, path)
		}
	}
	return job, nil
}

// Jobs builds jobs for every path. Unsupported files are logged and skipped.
func (in *Ingester) Jobs(paths []string) []pipeline.Job {
	jobs := make([]pipeline.Job, 0, len(paths))
	for _, p := range paths {
		job, err := in.Job(p)
		if err != nil {
			zap.L().Warn("ingest: skipping file", zap.String("path", p), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func (in *Ingester) chainLoader(chain *fallback.Chain, art model.Artifact, path string) func(context.Context) (model.Document, error) {
	return func(ctx context.Context) (model.Document, error) {
		res := chain.Run(ctx, path)
		if in.layout != nil {
			if _, err := fallback.Persist(in.layout, art, res); err != nil {
				return model.Document{}, err
			}
		}
		return TextDocument(baseName(path), res.Text), nil
	}
}

// IngestSheets reads a spreadsheet, writes one evidence record per sheet with
// its facts, and exports the parsed sheets.
func (in *Ingester) IngestSheets(ctx context.Context, art model.Artifact, path string) (*pipeline.Result, error) {
	sheets, ct, err := ReadSheets(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := in.sink.CreateArtifact(ctx, &art); err != nil {
		return nil, eris.Wrap(err, "ingest: create artifact")
	}

	bundles := in.sheets.Assemble(art, filepath.Base(path), ct, sheets)
	res := &pipeline.Result{Artifact: art}
	res.EvidenceIDs, res.FactIDs, err = store.WriteBundles(ctx, in.sink, bundles)
	if err != nil {
		return nil, err
	}

	if in.layout != nil {
		written, err := in.layout.WriteJSON(art, "sheets.json", sheets)
		if err != nil {
			return nil, err
		}
		res.Files = map[string]string{"sheets.json": written}
		if err := in.layout.RecordFiles(art, res.Files); err != nil {
			return nil, err
		}
	}

	zap.L().Info("ingest: spreadsheet complete",
		zap.String("artifact_id", art.ID),
		zap.Int("sheets", len(sheets)),
		zap.Int("evidence", len(res.EvidenceIDs)),
		zap.Int("facts", len(res.FactIDs)),
	)
	return res, nil
}

// Expand walks directories in paths and returns every supported file,
// sorted. Plain files are returned as given.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: stat %s", p)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := KindOf(path); ok && !isSidecar(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: walk %s", p)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// isSidecar reports whether path is a text or subtitle file sitting next to
// an image or audio file of the same base name.
func isSidecar(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".srt", ".vtt":
	default:
		return false
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if needsChain(base) {
		if _, err := os.Stat(base); err == nil {
			return true
		}
	}
	matches, _ := filepath.Glob(globEscape(base) + ".*")
	for _, m := range matches {
		if m != path && needsChain(m) {
			return true
		}
	}
	return false
}

func needsChain(path string) bool {
	k, ok := KindOf(path)
	return ok && (k == model.ArtifactImage || k == model.ArtifactAudio)
}

func globEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`).Replace(s)
}
