package artifact

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/docrecon/internal/model"
)

// maxSheetName is the Excel limit on worksheet names.
const maxSheetName = 31

// WriteTables exports each table as tables/table_<n>.csv plus one
// tables.xlsx workbook with a sheet per table. The returned map is keyed by
// logical file name.
func (l *Layout) WriteTables(art model.Artifact, tables []model.MergedTable) (map[string]string, error) {
	files := make(map[string]string)
	if len(tables) == 0 {
		return files, nil
	}

	for i, t := range tables {
		data, err := tableCSV(t)
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: encode table %d", i+1)
		}
		name := fmt.Sprintf("table_%d.csv", i+1)
		path, err := l.WriteFile(art, filepath.Join("tables", name), data)
		if err != nil {
			return nil, err
		}
		files[name] = path
	}

	wb := xlsx.NewFile()
	for i, t := range tables {
		sheet, err := wb.AddSheet(sheetName(i+1, t.Caption))
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: add sheet for table %d", i+1)
		}
		header := sheet.AddRow()
		for _, c := range t.Columns {
			header.AddCell().SetString(c)
		}
		for _, row := range t.Rows {
			r := sheet.AddRow()
			for _, v := range row {
				cell := r.AddCell()
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(f)
				} else {
					cell.SetString(v)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "artifact: encode workbook")
	}
	path, err := l.WriteFile(art, "tables.xlsx", buf.Bytes())
	if err != nil {
		return nil, err
	}
	files["tables.xlsx"] = path
	return files, nil
}

func tableCSV(t model.MergedTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var sheetNameCleaner = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ",
)

// sheetName builds a unique, Excel-safe worksheet name.
func sheetName(n int, caption string) string {
	prefix := fmt.Sprintf("Table %d", n)
	caption = strings.Join(strings.Fields(sheetNameCleaner.Replace(caption)), " ")
	if caption == "" {
		return prefix
	}
	name := []rune(prefix + " " + caption)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return strings.TrimSpace(string(name))
}
