// Package xlsx reads and writes publication tables as .xlsx workbooks.
//
// Loader and Writer implement catalog.TableLoader and catalog.TableWriter on
// top of excelize. The first row of a sheet is the header; every following
// non-blank row is a record.
package xlsx

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/pubsum/internal/catalog"
)

// Loader reads the configured sheet of a workbook, or the first sheet when
// Sheet is empty.
type Loader struct {
	Sheet string
}

// Load opens the workbook at path and decodes one sheet into a table.
func (l Loader) Load(path string) (*catalog.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return decode(f, l.Sheet)
}

// Decode reads a workbook from r and decodes one sheet into a table.
func Decode(r io.Reader, sheet string) (*catalog.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return decode(f, sheet)
}

func decode(f *excelize.File, sheet string) (*catalog.Table, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return catalog.NewTable(nil, nil), nil
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	columns := headerNames(rows[0], width)

	records := make([]catalog.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(catalog.Record, len(columns))
		for j, col := range columns {
			if j >= len(row) {
				rec[col] = nil
				continue
			}
			rec[col] = cellValue(f, sheet, j+1, i+2, row[j])
		}
		records = append(records, rec)
	}

	return catalog.NewTable(columns, records), nil
}

// headerNames builds unique column names for a header row of the given width.
// Blank names become "Unnamed: <index>" and repeats get a ".<n>" suffix.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)

	for i := 0; i < width; i++ {
		base := ""
		if i < len(header) {
			base = strings.TrimSpace(header[i])
		}
		if base == "" {
			base = "Unnamed: " + strconv.Itoa(i)
		}

		name := base
		for n := 1; used[name]; n++ {
			name = base + "." + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}

	return names
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cellValue converts a raw cell to a record value using the stored cell type.
// Text cells stay text, booleans become bool, and numeric or untyped cells
// become int64 when integral and float64 otherwise.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) any {
	if raw == "" {
		return nil
	}

	cellType := excelize.CellTypeUnset
	if name, err := excelize.CoordinatesToCellName(col, row); err == nil {
		if ct, err := f.GetCellType(sheet, name); err == nil {
			cellType = ct
		}
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeDate, excelize.CellTypeError:
		return raw
	case excelize.CellTypeBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		return raw
	default:
		return parseNumber(raw)
	}
}

// parseNumber returns raw as int64 or float64, or raw itself when it is not
// a number.
func parseNumber(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return raw
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
