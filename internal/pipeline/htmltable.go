package pipeline

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/model"
)

type gridPos struct{ row, col int }

// cellsFromHTML reads an HTML table rendering into flat cells. rowspan and
// colspan are honored, rowspan clipped to the table. Positions claimed by a
// rowspan from an earlier row are skipped when placing later cells.
func cellsFromHTML(html string) ([]model.TableCell, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: parse table html")
	}

	rows := doc.Find("tr")
	if rows.Length() == 0 {
		return nil, ErrEmptyTable
	}
	if rows.Length() > maxTableRows {
		return nil, eris.Wrapf(ErrTableTooLarge, "pipeline: %d html rows", rows.Length())
	}

	occupied := make(map[gridPos]bool)
	var cells []model.TableCell
	rows.Each(func(r int, tr *goquery.Selection) {
		col := 0
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			for occupied[gridPos{r, col}] {
				col++
			}
			rs := spanAttr(td, "rowspan", rows.Length()-r)
			cs := spanAttr(td, "colspan", maxTableCols)
			for dr := 0; dr < rs; dr++ {
				for dc := 0; dc < cs; dc++ {
					occupied[gridPos{r + dr, col + dc}] = true
				}
			}
			cells = append(cells, model.TableCell{
				Row:          r,
				Col:          col,
				RowSpan:      rs,
				ColSpan:      cs,
				Text:         cleanCellText(td.Text()),
				ColumnHeader: goquery.NodeName(td) == "th",
			})
			col += cs
		})
	})

	if len(cells) == 0 {
		return nil, ErrEmptyTable
	}
	return cells, nil
}

func spanAttr(s *goquery.Selection, name string, limit int) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, limit)
}
