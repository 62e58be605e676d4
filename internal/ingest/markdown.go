package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sells-group/docrecon/internal/model"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.Table)).Parser()

// MarkdownDocument converts markdown into a single-page document. A leading
// H1 becomes the title and the remaining headings move up one level. GFM
// tables become page tables; math fences and $$ blocks become formulas.
func MarkdownDocument(name string, src []byte) model.Document {
	doc := model.Document{Name: name, Pages: []model.Page{{Index: 1}}}
	root := markdownParser.Parse(text.NewReader(src))
	prov := []model.Provenance{{Page: 1}}

	add := func(label, s string, level int) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		doc.Texts = append(doc.Texts, model.TextItem{Label: label, Text: s, Level: level, Prov: prov})
	}

	shift := 0
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		switch b := n.(type) {
		case *ast.Heading:
			if b.Level == 1 && b.PreviousSibling() == nil && b.Parent() == root {
				add("title", inlineText(b, src), 0)
				shift = 1
				return
			}
			add("section_header", inlineText(b, src), max(b.Level-shift, 1))
		case *ast.Paragraph, *ast.TextBlock:
			s := inlineText(b, src)
			if strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$") && len(s) > 4 {
				add("formula", strings.TrimSpace(s[2:len(s)-2]), 0)
				return
			}
			add("paragraph", s, 0)
		case *ast.List:
			for item := b.FirstChild(); item != nil; item = item.NextSibling() {
				add("list_item", inlineText(item, src), 0)
			}
		case *ast.FencedCodeBlock:
			label := "code"
			switch strings.ToLower(string(b.Language(src))) {
			case "math", "latex", "tex":
				label = "formula"
			}
			add(label, blockLines(b, src), 0)
		case *ast.CodeBlock:
			add("code", blockLines(b, src), 0)
		case *ast.Blockquote:
			for c := b.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		case *east.Table:
			doc.Pages[0].Tables = append(doc.Pages[0].Tables, model.Table{
				Grid: tableGrid(b, src),
				Prov: prov,
			})
		}
	}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		walk(n)
	}
	return doc
}

// inlineText concatenates the text segments below n. Soft line breaks
// become spaces.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.URL(src))
		case *ast.Paragraph, *ast.TextBlock:
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

func blockLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

func tableGrid(t *east.Table, src []byte) [][]string {
	var grid [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		grid = append(grid, cells)
	}
	return grid
}
