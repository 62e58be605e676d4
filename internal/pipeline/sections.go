package pipeline

import (
	"strconv"
	"strings"

	"github.com/sells-group/docrecon/internal/model"
)

type sectionFrame struct {
	depth    int
	title    string
	content  []string
	children []*sectionFrame
}

func (f *sectionFrame) node() model.SectionNode {
	n := model.SectionNode{Title: f.title, Content: f.content}
	for _, c := range f.children {
		n.Subsections = append(n.Subsections, c.node())
	}
	return n
}

// headingDepth reports the depth of a heading label. "heading-<N>" carries
// its depth; "section_header" uses level, defaulting to 1.
func headingDepth(label string, level int) (int, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(label, "heading-"):
		n, err := strconv.Atoi(strings.TrimPrefix(label, "heading-"))
		if err != nil || n < 1 {
			return 1, true
		}
		return n, true
	case label == "section_header":
		return max(level, 1), true
	default:
		return 0, false
	}
}

// BuildSections folds a flat labeled text stream into a heading tree. A
// heading closes every open section at its depth or deeper and nests under
// the deepest remaining one. Paragraphs before the first heading are dropped.
func BuildSections(items []model.TextItem) model.SectionTree {
	var tree model.SectionTree
	root := &sectionFrame{}
	stack := []*sectionFrame{root}

	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if strings.EqualFold(strings.TrimSpace(item.Label), "title") {
			if tree.Title == "" {
				tree.Title = text
			}
			continue
		}

		if depth, ok := headingDepth(item.Label, item.Level); ok {
			for len(stack) > 1 && stack[len(stack)-1].depth >= depth {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1]
			f := &sectionFrame{depth: depth, title: text}
			parent.children = append(parent.children, f)
			stack = append(stack, f)
			continue
		}

		if text == "" || len(stack) == 1 {
			continue
		}
		top := stack[len(stack)-1]
		top.content = append(top.content, text)
	}

	for _, c := range root.children {
		tree.Sections = append(tree.Sections, c.node())
	}
	return tree
}
