package pipeline

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/docrecon/internal/model"
)

// MetricPattern recognizes one metric type. The "value" capture group, when
// present, marks the figure; otherwise the whole match is the value.
type MetricPattern struct {
	Type  model.MetricType
	Regex *regexp.Regexp
}

const (
	currencyValue = `(?:[$€£¥]\s?\d[\d,]*(?:\.\d+)?|(?:usd|eur|gbp)\s?\d[\d,]*(?:\.\d+)?)(?:\s?(?:thousand|million|billion|mm|bn|[kmb])\b)?`
	percentValue  = `[-+]?\d+(?:\.\d+)?\s?%`
	// Between keyword and figure: a short stretch without sentence breaks.
	gap = `[^.;!?\n]{0,40}?`
)

func keywordThenValue(keywords, value string) string {
	return `(?i)\b(?:` + keywords + `)\b` + gap + `(?P<value>` + value + `)`
}

func valueThenKeyword(keywords, value string) string {
	return `(?i)(?P<value>` + value + `)\s+(?:(?:in|of|on)\s+)?(?:` + keywords + `)\b`
}

func builtinPatterns() []MetricPattern {
	type entry struct {
		typ      model.MetricType
		keywords string
		value    string
	}
	entries := []entry{
		{model.MetricRevenue, `revenues?|sales|turnover|bookings|arr|mrr`, currencyValue},
		{model.MetricGrowth, `growth|grew|grow|increased?|rose|up|yoy|year-over-year`, percentValue},
		{model.MetricMargin, `(?:gross |operating |net |ebitda )?margins?`, percentValue},
		{model.MetricSpend, `ad spend|spend|spent|spending|budget|costs?`, currencyValue},
		{model.MetricConversions, `conversion rate|conversions?|converted`, percentValue},
		{model.MetricCTR, `ctr|click-through rate|click through rate`, percentValue},
		{model.MetricCAC, `cac|customer acquisition costs?`, currencyValue},
	}

	var out []MetricPattern
	for _, e := range entries {
		out = append(out,
			MetricPattern{Type: e.typ, Regex: regexp.MustCompile(keywordThenValue(e.keywords, e.value))},
			MetricPattern{Type: e.typ, Regex: regexp.MustCompile(valueThenKeyword(e.keywords, e.value))},
		)
	}
	return out
}

type patternFile struct {
	Patterns []struct {
		Type    string `yaml:"type"`
		Pattern string `yaml:"pattern"`
	} `yaml:"patterns"`
}

// LoadMetricPatterns reads additional metric patterns from a YAML file:
//
//	patterns:
//	  - type: arpu
//	    pattern: '(?i)\barpu\b[^.]{0,40}?(?P<value>\$\d[\d,.]*)'
func LoadMetricPatterns(path string) ([]MetricPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read metric patterns %s", path)
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse metric patterns")
	}

	out := make([]MetricPattern, 0, len(pf.Patterns))
	for i, p := range pf.Patterns {
		typ := strings.TrimSpace(p.Type)
		if typ == "" || strings.TrimSpace(p.Pattern) == "" {
			return nil, eris.Errorf("pipeline: metric pattern %d needs a type and a pattern", i)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: compile metric pattern %q", typ)
		}
		out = append(out, MetricPattern{Type: model.MetricType(typ), Regex: re})
	}
	return out, nil
}
