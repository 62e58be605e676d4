package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrecon/internal/model"
)

func stackedHeaderCells() []model.TableCell {
	return []model.TableCell{
		{Row: 0, Col: 0, RowSpan: 2, ColSpan: 1, Text: "Metric"},
		{Row: 0, Col: 1, RowSpan: 1, ColSpan: 2, Text: "FY 2023"},
		{Row: 1, Col: 1, RowSpan: 1, ColSpan: 1, Text: "Q1"},
		{Row: 1, Col: 2, RowSpan: 1, ColSpan: 1, Text: "Q2"},
		{Row: 2, Col: 0, RowSpan: 1, ColSpan: 1, Text: "Revenue"},
		{Row: 2, Col: 1, RowSpan: 1, ColSpan: 1, Text: "100"},
		{Row: 2, Col: 2, RowSpan: 1, ColSpan: 1, Text: "120"},
	}
}

func TestNormalize_StackedHeader(t *testing.T) {
	t.Parallel()

	nt, err := NewNormalizer("").Normalize(model.Table{Cells: stackedHeaderCells()})
	require.NoError(t, err)

	assert.Equal(t, 2, nt.HeaderInfo.Levels)
	require.Len(t, nt.HeaderInfo.Headers, 2)
	assert.Equal(t, "FY 2023", nt.HeaderInfo.Headers[0][1])
	assert.Equal(t, "FY 2023", nt.HeaderInfo.Headers[0][2])

	// Vertical replication of "Metric" is not repeated in the label.
	assert.Equal(t, []string{"Metric", "FY 2023 / Q1", "FY 2023 / Q2"}, nt.Columns)
	assert.Equal(t, [][]string{{"Revenue", "100", "120"}}, nt.Rows)
}

func TestNormalize_Rectangular(t *testing.T) {
	t.Parallel()

	cells := []model.TableCell{
		{Row: 0, Col: 0, Text: "Item"},
		{Row: 0, Col: 1, Text: "2023"},
		{Row: 0, Col: 2, Text: "2022"},
		{Row: 1, Col: 0, Text: "Cash"},
		{Row: 1, Col: 1, Text: "10"},
		{Row: 2, Col: 0, Text: "Debt"},
		{Row: 2, Col: 2, Text: "(4)"},
	}
	nt, err := NewNormalizer("").Normalize(model.Table{Cells: cells})
	require.NoError(t, err)

	assert.Equal(t, 1, nt.HeaderInfo.Levels)
	assert.Equal(t, []string{"Item", "2023", "2022"}, nt.Columns)
	for _, row := range nt.Rows {
		assert.Len(t, row, 3)
	}
	assert.Equal(t, []string{"Debt", "", "(4)"}, nt.Rows[1])
}

func TestNormalize_FirstWriterWins(t *testing.T) {
	t.Parallel()

	cells := []model.TableCell{
		{Row: 0, Col: 0, ColSpan: 2, Text: "Wide"},
		{Row: 0, Col: 1, Text: "Overlap"},
		{Row: 1, Col: 0, Text: "1"},
		{Row: 1, Col: 1, Text: "2"},
	}
	nt, err := NewNormalizer("").Normalize(model.Table{Cells: cells})
	require.NoError(t, err)
	assert.Equal(t, []string{"Wide", "Wide"}, nt.HeaderInfo.Headers[0])
}

func TestNormalize_ColumnHeaderFlag(t *testing.T) {
	t.Parallel()

	cells := []model.TableCell{
		{Row: 0, Col: 0, Text: "2021", ColumnHeader: true},
		{Row: 0, Col: 1, Text: "100", ColumnHeader: true},
		{Row: 1, Col: 0, Text: "5"},
		{Row: 1, Col: 1, Text: "6"},
	}
	nt, err := NewNormalizer("").Normalize(model.Table{Cells: cells})
	require.NoError(t, err)
	assert.Equal(t, 1, nt.HeaderInfo.Levels)
	assert.Equal(t, []string{"2021", "100"}, nt.Columns)
}

func TestNormalize_NoHeader(t *testing.T) {
	t.Parallel()

	nt, err := NewNormalizer("").Normalize(model.Table{Grid: [][]string{{"1", "2"}, {"3", ""}}})
	require.NoError(t, err)
	assert.Equal(t, 0, nt.HeaderInfo.Levels)
	assert.Equal(t, []string{"column_1", "column_2"}, nt.Columns)
	assert.Len(t, nt.Rows, 2)
}

func TestNormalize_AllTextKeepsOneHeader(t *testing.T) {
	t.Parallel()

	nt, err := NewNormalizer(" | ").Normalize(model.Table{Grid: [][]string{
		{"Name", "Role"},
		{"Alice", "CEO"},
		{"Bob", "CFO"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, nt.HeaderInfo.Levels)
	assert.Equal(t, []string{"Name", "Role"}, nt.Columns)
	assert.Len(t, nt.Rows, 2)
}

func TestNormalize_CustomSeparator(t *testing.T) {
	t.Parallel()

	nt, err := NewNormalizer(" | ").Normalize(model.Table{Cells: stackedHeaderCells()})
	require.NoError(t, err)
	assert.Equal(t, "FY 2023 | Q1", nt.Columns[1])
}

func TestNormalize_HTML(t *testing.T) {
	t.Parallel()

	html := `<table>
<tr><th rowspan="2">Metric</th><th colspan="2">FY 2023</th></tr>
<tr><th>Q1</th><th>Q2</th></tr>
<tr><td>Revenue</td><td>$100</td><td>$120</td></tr>
</table>`
	nt, err := NewNormalizer("").Normalize(model.Table{HTML: html})
	require.NoError(t, err)

	assert.Equal(t, 2, nt.HeaderInfo.Levels)
	assert.Equal(t, []string{"Metric", "FY 2023 / Q1", "FY 2023 / Q2"}, nt.Columns)
	assert.Equal(t, [][]string{{"Revenue", "$100", "$120"}}, nt.Rows)
}

func TestNormalize_Failures(t *testing.T) {
	t.Parallel()

	n := NewNormalizer("")
	tests := []struct {
		name  string
		table model.Table
		want  error
	}{
		{"empty", model.Table{}, ErrEmptyTable},
		{"empty grid rows", model.Table{Grid: [][]string{{}, {}}}, ErrEmptyTable},
		{"html without rows", model.Table{HTML: "<p>not a table</p>"}, ErrEmptyTable},
		{"negative index", model.Table{Cells: []model.TableCell{{Row: -1, Col: 0, Text: "x"}}}, ErrInvalidCell},
		{"absurd span", model.Table{Cells: []model.TableCell{{Row: 0, Col: 0, ColSpan: 5000, Text: "x"}}}, ErrTableTooLarge},
		{"absurd index", model.Table{Cells: []model.TableCell{{Row: 20000, Col: 0, Text: "x"}}}, ErrTableTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := n.Normalize(tt.table)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignature(t *testing.T) {
	t.Parallel()

	a := Signature([]string{"  Revenue ", "FY  2023 / Q1", "Ｎｅｔ"})
	b := Signature([]string{"revenue", "fy 2023 / q1", "net"})
	assert.Equal(t, b, a)
}
