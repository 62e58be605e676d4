package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docrecon/internal/artifact"
	"github.com/sells-group/docrecon/internal/ingest"
	"github.com/sells-group/docrecon/internal/ocr"
	"github.com/sells-group/docrecon/internal/pipeline"
	"github.com/sells-group/docrecon/internal/store"
	"github.com/sells-group/docrecon/internal/transcribe"
)

var (
	ingestConcurrency int
	ingestReportWeek  string
	ingestJSON        bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Process documents, spreadsheets, images and audio into evidence and facts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if ingestReportWeek != "" {
			cfg.Pipeline.ReportWeek = ingestReportWeek
		}
		if ingestConcurrency > 0 {
			cfg.Batch.MaxConcurrentDocuments = ingestConcurrency
		}
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := runIngest(ctx, st, args)
		if err != nil {
			return err
		}
		if ingestJSON {
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			renderBatch(cmd.OutOrStdout(), results)
		}
		return batchError(results)
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "documents processed in parallel (0 = batch.max_concurrent_documents)")
	ingestCmd.Flags().StringVar(&ingestReportWeek, "report-week", "", "report week stamped on facts, e.g. 2024-W05 (default: current ISO week)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(ingestCmd)
}

// runIngest expands paths and runs every supported file through the batch
// runner.
func runIngest(ctx context.Context, sink store.Sink, paths []string) ([]pipeline.BatchResult, error) {
	files, err := ingest.Expand(paths)
	if err != nil {
		return nil, err
	}

	layout := artifact.NewLayout(cfg.Artifacts.Root)
	p, err := pipeline.New(cfg.Pipeline, sink, layout)
	if err != nil {
		return nil, err
	}
	ing, err := ingest.New(ingest.Options{
		Sink:       sink,
		Layout:     layout,
		OCR:        ocr.NewChain(cfg.OCR),
		Transcribe: transcribe.NewChain(cfg.Transcribe),
		Sheets:     ingest.NewSheetAssembler(cfg.Pipeline.PreviewChars, cfg.Pipeline.ReportWeek),
	})
	if err != nil {
		return nil, err
	}

	jobs := ing.Jobs(files)
	if len(jobs) == 0 {
		return nil, eris.New("ingest: no supported files found")
	}
	return p.RunBatch(ctx, jobs, cfg.Batch.MaxConcurrentDocuments), nil
}

func renderBatch(w io.Writer, results []pipeline.BatchResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Artifact", "Kind", "Source", "Evidence", "Facts", "Status"})
	for _, r := range results {
		status := "ok"
		var evidence, facts int
		if r.Err != nil {
			status = r.Err.Error()
		} else if r.Result != nil {
			evidence, facts = len(r.Result.EvidenceIDs), len(r.Result.FactIDs)
		}
		tw.AppendRow(table.Row{r.Artifact.ID, r.Artifact.Kind, r.Artifact.SourcePath, evidence, facts, status})
	}
	tw.Render()
}

func batchError(results []pipeline.BatchResult) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return eris.Errorf("ingest: %d of %d files failed", failed, len(results))
	}
	return nil
}

type batchResultJSON struct {
	ArtifactID string           `json:"artifact_id"`
	Kind       string           `json:"kind"`
	Source     string           `json:"source"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []pipeline.BatchResult) error {
	out := make([]batchResultJSON, len(results))
	for i, r := range results {
		out[i] = batchResultJSON{
			ArtifactID: r.Artifact.ID,
			Kind:       string(r.Artifact.Kind),
			Source:     r.Artifact.SourcePath,
			Result:     r.Result,
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return printJSON(w, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
