package tabular

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Workbook is an opened XLSX file.
type Workbook struct {
	f *xlsx.File
}

// OpenXLSX opens an XLSX workbook.
func OpenXLSX(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	return &Workbook{f: f}, nil
}

// SheetNames lists sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.f.Sheets))
	for i, s := range w.f.Sheets {
		names[i] = s.Name
	}
	return names
}

// HasSheet reports whether the workbook has a sheet named name.
func (w *Workbook) HasSheet(name string) bool {
	_, ok := w.f.Sheet[name]
	return ok
}

// Rows returns every row of the named sheet as trimmed strings.
func (w *Workbook) Rows(name string) ([][]string, error) {
	sheet, ok := w.f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// Records returns the named sheet's rows after the header as maps keyed by
// header name. Rows whose cells are all blank are dropped.
func (w *Workbook) Records(name string) ([]map[string]string, error) {
	rows, err := w.Rows(name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		blank := true
		for i, col := range header {
			if col == "" {
				continue
			}
			v := ""
			if i < len(row) {
				v = row[i]
			}
			if v != "" {
				blank = false
			}
			rec[col] = v
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}
