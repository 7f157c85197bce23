package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects a worksheet and an optional row offset.
type XLSXOptions struct {
	SheetIndex int
	SheetName  string // takes precedence over SheetIndex
	SkipRows   int
}

// ReadXLSX returns the cell text of one worksheet, row by row. Rows keep
// their sheet position: an absent row yields an empty slice rather than
// shifting later rows up.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	book, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := opts.pick(book)
	if err != nil {
		return nil, err
	}

	start := max(opts.SkipRows, 0)
	if start >= len(sheet.Rows) {
		return nil, nil
	}
	grid := make([][]string, 0, len(sheet.Rows)-start)
	for _, row := range sheet.Rows[start:] {
		grid = append(grid, cellText(row))
	}
	return grid, nil
}

func (o XLSXOptions) pick(book *xlsx.File) (*xlsx.Sheet, error) {
	if o.SheetName != "" {
		if sheet, ok := book.Sheet[o.SheetName]; ok {
			return sheet, nil
		}
		return nil, eris.Errorf("xlsx: sheet %q not found", o.SheetName)
	}
	if n := len(book.Sheets); o.SheetIndex < 0 || o.SheetIndex >= n {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (%d sheets)", o.SheetIndex, n)
	}
	return book.Sheets[o.SheetIndex], nil
}

func cellText(row *xlsx.Row) []string {
	if row == nil {
		return []string{}
	}
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		if c != nil {
			out[i] = c.String()
		}
	}
	return out
}
