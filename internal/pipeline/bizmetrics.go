package pipeline

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/docrecon/internal/model"
)

// DefaultMetricContextChars is the context window on each side of a hit.
const DefaultMetricContextChars = 80

var (
	currencyOrPercent = regexp.MustCompile(`(?i)[$€£¥%]|\b(?:usd|eur|gbp)\b`)
	magnitudeSuffix   = regexp.MustCompile(`(?i)\s*(thousand|million|billion|mm|bn|k|m|b)$`)
	currencyCode      = regexp.MustCompile(`(?i)^(usd|eur|gbp)\s*`)
)

var magnitudes = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "mm": 1e6, "million": 1e6,
	"b": 1e9, "bn": 1e9, "billion": 1e9,
}

// MetricExtractor finds business metric mentions in prose.
type MetricExtractor struct {
	patterns []MetricPattern
	window   int
}

// NewMetricExtractor returns an extractor over the built-in vocabulary plus
// extra. window is the context size in characters on each side; zero or less
// selects DefaultMetricContextChars.
func NewMetricExtractor(window int, extra ...MetricPattern) *MetricExtractor {
	if window <= 0 {
		window = DefaultMetricContextChars
	}
	return &MetricExtractor{
		patterns: append(builtinPatterns(), extra...),
		window:   window,
	}
}

type hitKey struct {
	typ   model.MetricType
	start int
}

// Extract returns every metric mention in text ordered by position. One text
// may produce hits of several types for the same figure.
func (e *MetricExtractor) Extract(text string) []model.MetricHit {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := make(map[hitKey]bool)
	var hits []model.MetricHit
	for _, p := range e.patterns {
		valueIdx := p.Regex.SubexpIndex("value")
		for _, m := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if valueIdx > 0 && m[2*valueIdx] >= 0 {
				start, end = m[2*valueIdx], m[2*valueIdx+1]
			}
			value := strings.TrimRight(text[start:end], ", ")
			end = start + len(value)
			if value == "" || !currencyOrPercent.MatchString(value) {
				continue
			}
			key := hitKey{typ: p.Type, start: start}
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, model.MetricHit{
				Type:    p.Type,
				Value:   value,
				Context: contextWindow(text, m[0], m[1], e.window),
				Start:   start,
				End:     end,
			})
		}
	}

	slices.SortStableFunc(hits, func(a, b model.MetricHit) int { return a.Start - b.Start })
	return hits
}

// contextWindow returns text[start:end] widened by n runes on each side.
func contextWindow(text string, start, end, n int) string {
	s := start
	for i := 0; i < n && s > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:s])
		s -= size
	}
	e := end
	for i := 0; i < n && e < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[e:])
		e += size
	}
	return strings.TrimSpace(text[s:e])
}

// ParseMetricValue converts a matched figure such as "$1.2M", "EUR 300k" or
// "12.5%" into a number. Percentages keep their scale (12.5% -> 12.5).
func ParseMetricValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = currencyCode.ReplaceAllString(s, "")

	mult := 1.0
	if m := magnitudeSuffix.FindStringSubmatch(s); m != nil && !strings.HasSuffix(s, "%") {
		mult = magnitudes[strings.ToLower(m[1])]
		s = strings.TrimSpace(s[:len(s)-len(m[0])])
	}

	v, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	return v * mult, true
}
