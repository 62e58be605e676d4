package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/docrecon/internal/model"
)

// Sheet is one rectangular-ish block of spreadsheet rows. Rows may be
// ragged.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// IsSpreadsheet reports whether path is a CSV or XLSX file.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadSheets reads a CSV or XLSX file. The content type tells the two apart
// in evidence records.
func ReadSheets(ctx context.Context, path string) ([]Sheet, model.ContentType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, "", eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err := ReadCSV(ctx, f)
		if err != nil {
			return nil, "", eris.Wrapf(err, "ingest: %s", path)
		}
		return []Sheet{{Name: baseName(path), Rows: rows}}, model.ContentCSV, nil
	case ".xlsx":
		sheets, err := ReadXLSX(path)
		if err != nil {
			return nil, "", err
		}
		return sheets, model.ContentXLSX, nil
	default:
		return nil, "", eris.Wrapf(ErrUnsupported, "ingest: %s", path)
	}
}

// ReadCSV reads every record from r. Rows may have varying field counts and
// stray quotes are tolerated. Cells are trimmed.
func ReadCSV(ctx context.Context, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

// ReadXLSX returns every worksheet of the workbook at path in file order.
func ReadXLSX(path string) ([]Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, sh := range f.Sheets {
		s := Sheet{Name: sh.Name}
		for _, row := range sh.Rows {
			if row == nil {
				continue
			}
			s.Rows = append(s.Rows, rowToStrings(row))
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}
