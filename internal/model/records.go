package model

// FormulaKind distinguishes labeled formula blocks from formulas found in prose.
type FormulaKind string

const (
	FormulaBlock  FormulaKind = "block"
	FormulaInline FormulaKind = "inline"
)

// FormulaRecord is one detected formula.
type FormulaRecord struct {
	Page    int         `json:"page"`
	Content string      `json:"content"`
	Latex   string      `json:"latex"`
	BBox    *BBox       `json:"bbox,omitempty"`
	Kind    FormulaKind `json:"kind"`
}

// ChartRecord is one picture carried through as chart evidence.
type ChartRecord struct {
	Caption   string `json:"caption"`
	Page      int    `json:"page"`
	ImagePath string `json:"image_path"`
	BBox      *BBox  `json:"bbox,omitempty"`
}

// SectionNode is one heading with its paragraphs and nested sections.
type SectionNode struct {
	Title       string        `json:"title"`
	Content     []string      `json:"content"`
	Subsections []SectionNode `json:"subsections"`
}

// SectionTree is the root of a document's heading hierarchy.
type SectionTree struct {
	Title    string        `json:"title"`
	Sections []SectionNode `json:"sections"`
}

// MetricType is the vocabulary of business metrics recognized in prose.
type MetricType string

const (
	MetricRevenue     MetricType = "revenue"
	MetricGrowth      MetricType = "growth"
	MetricMargin      MetricType = "margin"
	MetricSpend       MetricType = "spend"
	MetricConversions MetricType = "conversions"
	MetricCTR         MetricType = "ctr"
	MetricCAC         MetricType = "cac"
)

// MetricHit is one business metric mention.
type MetricHit struct {
	Type    MetricType `json:"type"`
	Value   string     `json:"value"`
	Context string     `json:"context"`
	Start   int        `json:"start"`
	End     int        `json:"end"`
}
