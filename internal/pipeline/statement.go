package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/docrecon/internal/metrics"
	"github.com/sells-group/docrecon/internal/model"
)

// DefaultStatementMinConfidence is the score a template must reach before a
// table is labeled with its statement type.
const DefaultStatementMinConfidence = 0.5

// canonicalField maps a summary key to the row labels that carry it.
type canonicalField struct {
	name    string
	aliases []string
}

type statementTemplate struct {
	typ model.StatementType
	// required keywords; each entry lists interchangeable phrasings.
	required [][]string
	fields   []canonicalField
}

var statementTemplates = []statementTemplate{
	{
		typ: model.StatementIncome,
		required: [][]string{
			{"revenue", "revenues", "net sales", "sales"},
			{"expenses", "costs and expenses"},
			{"net income", "net earnings", "net profit", "net loss"},
		},
		fields: []canonicalField{
			{"revenue", []string{"revenue", "revenues", "total revenue", "total revenues", "net revenue", "net revenues", "net sales", "sales"}},
			{"cost_of_revenue", []string{"cost of revenue", "cost of revenues", "cost of sales", "cost of goods sold", "cogs"}},
			{"gross_profit", []string{"gross profit", "gross margin"}},
			{"expenses", []string{"expenses", "total expenses", "operating expenses", "total operating expenses", "costs and expenses"}},
			{"operating_income", []string{"operating income", "income from operations", "operating profit"}},
			{"net_income", []string{"net income", "net earnings", "net profit", "net loss", "net income (loss)"}},
			{"eps", []string{"earnings per share", "diluted earnings per share", "basic earnings per share", "eps", "diluted eps", "basic eps"}},
		},
	},
	{
		typ: model.StatementBalanceSheet,
		required: [][]string{
			{"assets"},
			{"liabilities"},
			{"equity"},
		},
		fields: []canonicalField{
			{"total_assets", []string{"total assets", "assets"}},
			{"total_liabilities", []string{"total liabilities", "liabilities"}},
			{"total_equity", []string{"total equity", "total stockholders' equity", "total shareholders' equity", "stockholders' equity", "shareholders' equity", "equity"}},
			{"cash", []string{"cash and cash equivalents", "cash"}},
		},
	},
	{
		typ: model.StatementCashFlow,
		required: [][]string{
			{"operating activities"},
			{"investing activities"},
			{"financing activities"},
		},
		fields: []canonicalField{
			{"operating_cash_flow", []string{"net cash provided by operating activities", "net cash from operating activities", "net cash provided by (used in) operating activities", "operating activities"}},
			{"investing_cash_flow", []string{"net cash used in investing activities", "net cash from investing activities", "net cash provided by (used in) investing activities", "investing activities"}},
			{"financing_cash_flow", []string{"net cash used in financing activities", "net cash from financing activities", "net cash provided by (used in) financing activities", "financing activities"}},
			{"capex", []string{"capital expenditures", "purchases of property and equipment", "capex"}},
		},
	},
}

// Classifier labels normalized tables with a financial statement type.
type Classifier struct {
	floor float64
}

// NewClassifier returns a Classifier requiring at least floor to recognize a
// statement. A floor outside (0, 1] selects DefaultStatementMinConfidence.
func NewClassifier(floor float64) *Classifier {
	if floor <= 0 || floor > 1 {
		floor = DefaultStatementMinConfidence
	}
	return &Classifier{floor: floor}
}

// Classify scores t against each template using the labels in its first
// column. Ties go to the template listed first. Below the floor the result
// is StatementUnknown with the best score as confidence and no fields.
func (c *Classifier) Classify(t model.NormalizedTable) model.StatementSummary {
	labels := rowLabels(t.Rows)

	var best *statementTemplate
	bestScore := 0.0
	for i := range statementTemplates {
		tpl := &statementTemplates[i]
		score := templateScore(tpl, labels)
		if score > bestScore {
			best, bestScore = tpl, score
		}
	}

	if best == nil || bestScore < c.floor {
		metrics.StatementsClassified.WithLabelValues(model.StatementUnknown.String()).Inc()
		return model.StatementSummary{Type: model.StatementUnknown, Confidence: bestScore}
	}

	metrics.StatementsClassified.WithLabelValues(best.typ.String()).Inc()
	return model.StatementSummary{
		Type:       best.typ,
		Confidence: bestScore,
		Fields:     extractFields(best.fields, labels, t.Rows),
	}
}

func templateScore(tpl *statementTemplate, labels []string) float64 {
	matched := 0
	for _, phrases := range tpl.required {
		if anyLabelContains(labels, phrases) {
			matched++
		}
	}
	return float64(matched) / float64(len(tpl.required))
}

func anyLabelContains(labels []string, phrases []string) bool {
	for _, l := range labels {
		for _, p := range phrases {
			if containsPhrase(l, p) {
				return true
			}
		}
	}
	return false
}

// Match tiers, strongest first.
const (
	matchExact = iota
	matchPrefix
	matchContains
)

// extractFields reads each canonical field from the first row matching one of
// its aliases that carries a numeric value. Exact label matches beat prefix
// matches, which beat phrase containment.
func extractFields(fields []canonicalField, labels []string, rows [][]string) map[string]float64 {
	out := make(map[string]float64)
	for _, f := range fields {
	tiers:
		for tier := matchExact; tier <= matchContains; tier++ {
			for i, l := range labels {
				if !labelMatches(l, f.aliases, tier) {
					continue
				}
				if v, ok := firstValue(rows[i]); ok {
					out[f.name] = v
					break tiers
				}
			}
		}
	}
	return out
}

func labelMatches(label string, aliases []string, tier int) bool {
	for _, a := range aliases {
		switch tier {
		case matchExact:
			if label == a {
				return true
			}
		case matchPrefix:
			if strings.HasPrefix(label, a) && !isWordRune(label, len(a)) {
				return true
			}
		case matchContains:
			if containsPhrase(label, a) {
				return true
			}
		}
	}
	return false
}

// firstValue returns the first numeric-looking cell after the label column.
func firstValue(row []string) (float64, bool) {
	for _, cell := range row[min(1, len(row)):] {
		if !isNumericLooking(cell) {
			continue
		}
		if v, ok := ParseNumber(cell); ok {
			return v, true
		}
	}
	return 0, false
}

func rowLabels(rows [][]string) []string {
	labels := make([]string, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			labels[i] = normalizeLabel(row[0])
		}
	}
	return labels
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

func normalizeLabel(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	s = apostrophes.Replace(s)
	return strings.Trim(cleanCellText(s), " :")
}

// containsPhrase reports whether phrase occurs in s on word boundaries.
func containsPhrase(s, phrase string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if !isWordRune(s, start-1) && !isWordRune(s, end) {
			return true
		}
		from = start + 1
	}
}

func isWordRune(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	b := s[i]
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
