package main

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docrecon/internal/model"
	"github.com/sells-group/docrecon/internal/store"
)

var (
	evidenceFilter store.EvidenceFilter
	factFilter     store.FactFilter
	evidenceJSON   bool
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect stored evidence and facts",
}

var evidenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evidence records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("evidence"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		evs, err := st.ListEvidence(cmd.Context(), evidenceFilter)
		if err != nil {
			return err
		}
		if evidenceJSON {
			return printJSON(cmd.OutOrStdout(), evs)
		}
		renderEvidence(cmd.OutOrStdout(), evs)
		return nil
	},
}

var evidenceFactsCmd = &cobra.Command{
	Use:   "facts",
	Short: "List metric facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("evidence"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		facts, err := st.ListFacts(cmd.Context(), factFilter)
		if err != nil {
			return err
		}
		if evidenceJSON {
			return printJSON(cmd.OutOrStdout(), facts)
		}
		renderFacts(cmd.OutOrStdout(), facts)
		return nil
	},
}

var contentTypeFlag string

func init() {
	f := evidenceListCmd.Flags()
	f.StringVar(&evidenceFilter.ArtifactID, "artifact", "", "filter by artifact ID")
	f.StringVar(&contentTypeFlag, "type", "", "filter by content type ("+contentTypeNames()+")")
	f.IntVar(&evidenceFilter.Limit, "limit", 100, "max records")
	f.IntVar(&evidenceFilter.Offset, "offset", 0, "records to skip")
	evidenceListCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		ct, err := parseContentType(contentTypeFlag)
		evidenceFilter.ContentType = ct
		return err
	}

	f = evidenceFactsCmd.Flags()
	f.StringVar(&factFilter.ArtifactID, "artifact", "", "filter by artifact ID")
	f.StringVar(&factFilter.ReportWeek, "week", "", "filter by report week, e.g. 2024-W05")
	f.StringVar(&factFilter.Entity, "entity", "", "filter by entity")
	f.IntVar(&factFilter.Limit, "limit", 100, "max records")
	f.IntVar(&factFilter.Offset, "offset", 0, "records to skip")

	evidenceCmd.PersistentFlags().BoolVar(&evidenceJSON, "json", false, "print records as JSON")
	evidenceCmd.AddCommand(evidenceListCmd, evidenceFactsCmd)
	rootCmd.AddCommand(evidenceCmd)
}

func contentTypeNames() string {
	names := make([]string, 0, len(model.AllContentTypes()))
	for _, ct := range model.AllContentTypes() {
		names = append(names, string(ct))
	}
	return strings.Join(names, ", ")
}

func parseContentType(s string) (model.ContentType, error) {
	if s == "" {
		return "", nil
	}
	for _, ct := range model.AllContentTypes() {
		if string(ct) == s {
			return ct, nil
		}
	}
	return "", eris.Errorf("unknown content type %q (want one of %s)", s, contentTypeNames())
}

func renderEvidence(w io.Writer, evs []model.Evidence) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Artifact", "Type", "Locator", "Preview"})
	for _, ev := range evs {
		tw.AppendRow(table.Row{ev.ID, ev.ArtifactID, ev.ContentType, ev.Locator, oneLine(ev.Preview, 60)})
	}
	tw.AppendFooter(table.Row{"", "", "", "", plural(len(evs), "record")})
	tw.Render()
}

func renderFacts(w io.Writer, facts []model.Fact) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Week", "Entity", "Metrics", "Evidence", "Artifact"})
	for _, f := range facts {
		tw.AppendRow(table.Row{f.ReportWeek, f.Entity, formatMetrics(f.Metrics), f.EvidenceID, f.ArtifactID})
	}
	tw.AppendFooter(table.Row{"", "", "", "", plural(len(facts), "fact")})
	tw.Render()
}

// formatMetrics renders metrics as "k=v" pairs sorted by key.
func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(m[k], 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
