package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ErrMalformedTable marks a table object whose JSON did not match the
// expected shape.
var ErrMalformedTable = eris.New("model: malformed table object")

// TableCell is one cell of a converted table. Spans below 1 are treated as 1.
type TableCell struct {
	Row          int    `json:"row_index"`
	Col          int    `json:"column_index"`
	RowSpan      int    `json:"row_span"`
	ColSpan      int    `json:"col_span"`
	Text         string `json:"text"`
	ColumnHeader bool   `json:"column_header,omitempty"`
}

// Table is the table object as emitted by the converter. Cells is preferred;
// HTML and Grid are fallbacks for converters that only render one of them.
type Table struct {
	Cells   []TableCell  `json:"cells,omitempty"`
	HTML    string       `json:"html,omitempty"`
	Grid    [][]string   `json:"grid,omitempty"`
	Caption string       `json:"caption,omitempty"`
	Prov    []Provenance `json:"prov"`

	// Err is set when the object could not be decoded. Such a table is a
	// conversion failure, not a document failure.
	Err error `json:"-"`
}

// UnmarshalJSON decodes a table object. A type mismatch anywhere inside it
// is recorded in Err; caption and provenance are kept when they decode.
func (t *Table) UnmarshalJSON(data []byte) error {
	type plain Table
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*t = Table{Err: eris.Wrap(ErrMalformedTable, err.Error())}
		var loose struct {
			Caption json.RawMessage `json:"caption"`
			Prov    json.RawMessage `json:"prov"`
		}
		if json.Unmarshal(data, &loose) == nil {
			_ = json.Unmarshal(loose.Caption, &t.Caption)
			_ = json.Unmarshal(loose.Prov, &t.Prov)
		}
		return nil
	}
	*t = Table(p)
	return nil
}

// HeaderInfo describes the stacked header rows of a normalized table.
type HeaderInfo struct {
	Levels  int        `json:"levels"`
	Headers [][]string `json:"headers"`
}

// NormalizedTable is a table with spans expanded into a rectangular grid.
type NormalizedTable struct {
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	HeaderInfo HeaderInfo `json:"header_info"`
}

// TableFragment is one page's piece of a logical table.
type TableFragment struct {
	Page      int             `json:"page"`
	BBox      *BBox           `json:"bbox,omitempty"`
	Signature []string        `json:"signature"`
	Table     NormalizedTable `json:"table"`
}

// MergedTable is one logical table assembled from consecutive fragments.
type MergedTable struct {
	Pages      []int      `json:"pages"`
	BBoxes     []*BBox    `json:"bboxes"`
	Merged     bool       `json:"merged"`
	Caption    string     `json:"caption,omitempty"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	HeaderInfo HeaderInfo `json:"header_info"`
	Signature  []string   `json:"-"`
}

// FirstPage returns the page the table starts on, or 0 for an empty table.
func (m MergedTable) FirstPage() int {
	if len(m.Pages) == 0 {
		return 0
	}
	return m.Pages[0]
}

// LastPage returns the highest page the table covers.
func (m MergedTable) LastPage() int {
	if len(m.Pages) == 0 {
		return 0
	}
	return m.Pages[len(m.Pages)-1]
}
