package pipeline

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/docrecon/internal/model"
)

// DefaultHeaderSeparator joins stacked header texts into one column label.
const DefaultHeaderSeparator = " / "

const (
	maxTableRows = 10000
	maxTableCols = 1000
)

// Conversion failures. Callers treat these as "not a table" and move on.
var (
	ErrEmptyTable    = eris.New("pipeline: table has no cells")
	ErrInvalidCell   = eris.New("pipeline: table cell has a negative index")
	ErrTableTooLarge = eris.New("pipeline: table extent out of range")
)

// Normalizer expands merged cells of a table object into a rectangular
// table with flat column labels.
type Normalizer struct {
	separator string
}

// NewNormalizer returns a Normalizer joining header levels with sep. An empty
// sep selects DefaultHeaderSeparator.
func NewNormalizer(sep string) *Normalizer {
	if sep == "" {
		sep = DefaultHeaderSeparator
	}
	return &Normalizer{separator: sep}
}

// Normalize converts t into a NormalizedTable. Cells are preferred, then the
// HTML rendering, then the plain grid.
func (n *Normalizer) Normalize(t model.Table) (model.NormalizedTable, error) {
	if t.Err != nil {
		return model.NormalizedTable{}, t.Err
	}
	cells, err := tableCells(t)
	if err != nil {
		return model.NormalizedTable{}, err
	}
	return n.NormalizeCells(cells)
}

// NormalizeCells builds the dense grid for cells and splits it into header
// rows and body rows.
func (n *Normalizer) NormalizeCells(cells []model.TableCell) (model.NormalizedTable, error) {
	grid, flagged, err := expandCells(cells)
	if err != nil {
		return model.NormalizedTable{}, err
	}

	levels := headerLevels(grid, flagged)
	width := len(grid[0])

	columns := make([]string, width)
	for c := 0; c < width; c++ {
		var parts []string
		for r := 0; r < levels; r++ {
			v := grid[r][c]
			if v == "" || (len(parts) > 0 && parts[len(parts)-1] == v) {
				continue
			}
			parts = append(parts, v)
		}
		label := strings.Join(parts, n.separator)
		if label == "" {
			label = fmt.Sprintf("column_%d", c+1)
		}
		columns[c] = label
	}

	headers := make([][]string, levels)
	copy(headers, grid[:levels])

	return model.NormalizedTable{
		Columns: columns,
		Rows:    grid[levels:],
		HeaderInfo: model.HeaderInfo{
			Levels:  levels,
			Headers: headers,
		},
	}, nil
}

// tableCells picks the richest representation available on t.
func tableCells(t model.Table) ([]model.TableCell, error) {
	switch {
	case len(t.Cells) > 0:
		return t.Cells, nil
	case strings.TrimSpace(t.HTML) != "":
		return cellsFromHTML(t.HTML)
	case len(t.Grid) > 0:
		var cells []model.TableCell
		for r, row := range t.Grid {
			for c, text := range row {
				cells = append(cells, model.TableCell{Row: r, Col: c, RowSpan: 1, ColSpan: 1, Text: text})
			}
		}
		if len(cells) == 0 {
			return nil, ErrEmptyTable
		}
		return cells, nil
	default:
		return nil, ErrEmptyTable
	}
}

func span(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// expandCells writes every cell's text into each position its spans cover.
// The first cell to claim a position keeps it.
func expandCells(cells []model.TableCell) ([][]string, [][]bool, error) {
	if len(cells) == 0 {
		return nil, nil, ErrEmptyTable
	}

	rows, cols := 0, 0
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			return nil, nil, eris.Wrapf(ErrInvalidCell, "pipeline: cell at row %d col %d", c.Row, c.Col)
		}
		if c.Row >= maxTableRows || c.Col >= maxTableCols {
			return nil, nil, eris.Wrapf(ErrTableTooLarge, "pipeline: cell at row %d col %d", c.Row, c.Col)
		}
		rows = max(rows, c.Row+span(c.RowSpan))
		cols = max(cols, c.Col+span(c.ColSpan))
	}
	if rows > maxTableRows || cols > maxTableCols {
		return nil, nil, eris.Wrapf(ErrTableTooLarge, "pipeline: %d rows x %d cols", rows, cols)
	}

	grid := make([][]string, rows)
	flagged := make([][]bool, rows)
	filled := make([][]bool, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
		flagged[r] = make([]bool, cols)
		filled[r] = make([]bool, cols)
	}

	for _, c := range cells {
		text := cleanCellText(c.Text)
		for r := c.Row; r < c.Row+span(c.RowSpan); r++ {
			for col := c.Col; col < c.Col+span(c.ColSpan); col++ {
				if filled[r][col] {
					continue
				}
				filled[r][col] = true
				grid[r][col] = text
				flagged[r][col] = c.ColumnHeader
			}
		}
	}
	return grid, flagged, nil
}

// headerLevels counts leading rows that read as labels: every non-empty cell
// is either textual or flagged as a column header. A table made only of such
// rows keeps just its first row as header.
func headerLevels(grid [][]string, flagged [][]bool) int {
	levels := 0
	for r := range grid {
		if !isHeaderRow(grid[r], flagged[r]) {
			break
		}
		levels++
	}
	if levels == len(grid) && len(grid) > 1 {
		return 1
	}
	return levels
}

func isHeaderRow(row []string, flagged []bool) bool {
	nonEmpty := 0
	allFlagged, allText := true, true
	for i, v := range row {
		if v == "" {
			continue
		}
		nonEmpty++
		if !flagged[i] {
			allFlagged = false
		}
		if isNumericLooking(v) {
			allText = false
		}
	}
	return nonEmpty > 0 && (allFlagged || allText)
}

func cleanCellText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Signature is the comparison key for column labels: NFKC-normalized,
// lower-cased, whitespace collapsed.
func Signature(columns []string) []string {
	sig := make([]string, len(columns))
	for i, c := range columns {
		sig[i] = strings.ToLower(cleanCellText(norm.NFKC.String(c)))
	}
	return sig
}
