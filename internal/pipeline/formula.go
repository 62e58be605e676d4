package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/docrecon/internal/model"
)

var formulaLabels = map[string]bool{
	"equation": true,
	"math":     true,
	"formula":  true,
	"latex":    true,
}

// inlineFormula matches "<term> <relation> <expression>" in running text.
// The expression runs to the end of the clause: a comma, semicolon, newline
// or a period that is not a decimal point. Ordinary prose containing "="
// also matches.
var inlineFormula = regexp.MustCompile(
	`[\p{L}\p{N}_^{}()\[\]\\]+\s*(?:=|≈|≤|≥|∝|→|←)\s*[^\s.,;](?:[^.,;\n]|\.\S)*`,
)

func isFormulaLabel(label string) bool {
	return formulaLabels[strings.ToLower(strings.TrimSpace(label))]
}

type formulaKey struct {
	page    int
	content string
}

type formulaSet struct {
	seen    map[formulaKey]bool
	records []model.FormulaRecord
}

func (s *formulaSet) add(kind model.FormulaKind, content string, loc Location) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	key := formulaKey{page: loc.Page, content: cleanCellText(content)}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.records = append(s.records, model.FormulaRecord{
		Page:    loc.Page,
		Content: content,
		Latex:   toLatex(content),
		BBox:    loc.BBox,
		Kind:    kind,
	})
}

// toLatex is an identity transform; converters already emit LaTeX for
// labeled formula blocks.
func toLatex(content string) string {
	return strings.TrimSpace(content)
}

// DetectFormulas returns labeled formula blocks followed by inline formulas
// found in the remaining text, deduplicated on page and content.
func DetectFormulas(doc model.Document) []model.FormulaRecord {
	set := &formulaSet{seen: make(map[formulaKey]bool)}

	for _, p := range doc.Pages {
		for _, el := range p.Elements {
			if isFormulaLabel(el.Label) {
				set.add(model.FormulaBlock, el.Text, Locate(el.Prov, p.Index))
			}
		}
	}
	for _, item := range doc.Texts {
		if isFormulaLabel(item.Label) {
			set.add(model.FormulaBlock, item.Text, Locate(item.Prov, 0))
		}
	}

	inline := func(text string, loc Location) {
		for _, m := range inlineFormula.FindAllString(text, -1) {
			set.add(model.FormulaInline, strings.TrimRight(m, ".: \t"), loc)
		}
	}
	for _, p := range doc.Pages {
		for _, el := range p.Elements {
			if !isFormulaLabel(el.Label) {
				inline(el.Text, Locate(el.Prov, p.Index))
			}
		}
	}
	for _, item := range doc.Texts {
		if !isFormulaLabel(item.Label) {
			inline(item.Text, Locate(item.Prov, 0))
		}
	}

	return set.records
}
