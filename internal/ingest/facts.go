package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sells-group/docrecon/internal/model"
	"github.com/sells-group/docrecon/internal/pipeline"
)

// weekColumns are header names that key a sheet's rows by reporting period.
var weekColumns = map[string]bool{
	"week":        true,
	"report_week": true,
	"week_of":     true,
	"week_start":  true,
	"week_ending": true,
	"date":        true,
	"period":      true,
}

var isoWeekPattern = regexp.MustCompile(`^(\d{4})-?W(\d{1,2})$`)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"Jan 2, 2006",
	"2 Jan 2006",
	time.RFC3339,
}

// SheetAssembler turns spreadsheet sheets into evidence and facts.
type SheetAssembler struct {
	previewChars int
	reportWeek   string
	now          func() time.Time
}

// NewSheetAssembler returns a SheetAssembler. An empty reportWeek falls
// back to the ISO week at assembly time.
func NewSheetAssembler(previewChars int, reportWeek string) *SheetAssembler {
	if previewChars <= 0 {
		previewChars = pipeline.DefaultPreviewChars
	}
	return &SheetAssembler{previewChars: previewChars, reportWeek: reportWeek, now: time.Now}
}

// Assemble builds one bundle per non-empty sheet. The first non-empty row is
// the header. When a week or date column exists each data row becomes a fact
// for its own week; otherwise the sheet yields one fact of column totals.
// Facts use the sheet name as entity.
func (a *SheetAssembler) Assemble(art model.Artifact, source string, ct model.ContentType, sheets []Sheet) []model.Bundle {
	now := a.now().UTC()
	defaultWeek := a.reportWeek
	if defaultWeek == "" {
		defaultWeek = pipeline.ISOWeek(now)
	}

	var out []model.Bundle
	for _, sh := range sheets {
		header, rows := splitHeader(sh.Rows)
		if header == nil {
			continue
		}
		keys := metricKeys(header)
		weekCol := -1
		for i, k := range keys {
			if weekColumns[k] {
				weekCol = i
				break
			}
		}

		ev := &model.Evidence{
			ArtifactID:  art.ID,
			Locator:     fmt.Sprintf("%s sheet %s", source, sh.Name),
			ContentType: ct,
			Preview:     truncate(sheetPreview(header, rows), a.previewChars),
			FullData: map[string]any{
				"sheet":     sh.Name,
				"columns":   header,
				"rows":      rows,
				"row_count": len(rows),
			},
			CreatedAt: now,
		}

		fact := func(week string, m map[string]float64) model.Fact {
			return model.Fact{
				ArtifactID: art.ID,
				ReportWeek: week,
				Entity:     sh.Name,
				Metrics:    m,
				CreatedAt:  now,
			}
		}

		var facts []model.Fact
		if weekCol >= 0 {
			for _, row := range rows {
				m := rowMetrics(keys, row, weekCol)
				if len(m) == 0 {
					continue
				}
				week := defaultWeek
				if weekCol < len(row) {
					if w, ok := ParseWeek(row[weekCol]); ok {
						week = w
					}
				}
				facts = append(facts, fact(week, m))
			}
		} else if m := columnTotals(keys, rows); len(m) > 0 {
			facts = append(facts, fact(defaultWeek, m))
		}

		out = append(out, model.Bundle{Evidence: ev, Facts: facts})
	}
	return out
}

// ParseWeek converts an ISO week ("2024-W05", "2024W5") or a date into the
// "2006-W01" form.
func ParseWeek(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if m := isoWeekPattern.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		w, _ := strconv.Atoi(m[2])
		if w < 1 || w > 53 {
			return "", false
		}
		return fmt.Sprintf("%s-W%02d", m[1], w), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pipeline.ISOWeek(t), true
		}
	}
	return "", false
}

func splitHeader(rows [][]string) ([]string, [][]string) {
	for i, row := range rows {
		if !blankRow(row) {
			var body [][]string
			for _, r := range rows[i+1:] {
				if !blankRow(r) {
					body = append(body, r)
				}
			}
			return row, body
		}
	}
	return nil, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// metricKeys turns header cells into snake_case metric names. Blank headers
// become col_<n>; repeats get a numeric suffix.
func metricKeys(header []string) []string {
	keys := make([]string, len(header))
	seen := make(map[string]int)
	for i, h := range header {
		k := snakeCase(h)
		if k == "" {
			k = fmt.Sprintf("col_%d", i+1)
		}
		seen[k]++
		if n := seen[k]; n > 1 {
			k = fmt.Sprintf("%s_%d", k, n)
		}
		keys[i] = k
	}
	return keys
}

func snakeCase(s string) string {
	var sb strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pending = false
			sb.WriteRune(r)
			continue
		}
		pending = true
	}
	return sb.String()
}

func rowMetrics(keys, row []string, skip int) map[string]float64 {
	m := make(map[string]float64)
	for i, cell := range row {
		if i == skip || i >= len(keys) {
			continue
		}
		if v, ok := pipeline.ParseNumber(cell); ok {
			m[keys[i]] = v
		}
	}
	return m
}

// columnTotals sums every column that has at least one numeric cell.
func columnTotals(keys []string, rows [][]string) map[string]float64 {
	m := make(map[string]float64)
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(keys) {
				continue
			}
			if v, ok := pipeline.ParseNumber(cell); ok {
				m[keys[i]] += v
			}
		}
	}
	return m
}

func sheetPreview(header []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(header, " | "))
	for _, r := range rows {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(r, " | "))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
