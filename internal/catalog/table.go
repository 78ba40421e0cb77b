package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Column names every publication table is expected to carry.
const (
	ColumnTitle  = "title"
	ColumnAuthor = "author"
	ColumnYear   = "year"
	ColumnType   = "type"
)

// RequiredColumns lists the columns the catalog operations reference.
var RequiredColumns = []string{ColumnTitle, ColumnAuthor, ColumnYear, ColumnType}

// Record is a single row keyed by column name.
// Values are nil (empty cell), string, int64, float64 or bool.
type Record map[string]any

// Table is an ordered collection of records sharing one column set.
type Table struct {
	columns []string
	rows    []Record
}

// NewTable creates a table with the given columns and rows.
// Record keys outside columns are ignored by every table operation.
func NewTable(columns []string, rows []Record) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		rows:    append([]Record(nil), rows...),
	}
	return t
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the record at position i.
func (t *Table) Row(i int) Record {
	return t.rows[i]
}

// Value returns the cell at row i, column col. Missing cells are nil.
func (t *Table) Value(i int, col string) any {
	return t.rows[i][col]
}

// HasColumn reports whether col is part of the column set.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.columns {
		if c == col {
			return true
		}
	}
	return false
}

// Values returns row i as a slice in column order.
func (t *Table) Values(i int) []any {
	out := make([]any, len(t.columns))
	for j, col := range t.columns {
		out[j] = t.rows[i][col]
	}
	return out
}

// Equal reports whether both tables have the same columns and the same
// cell values in the same order.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !reflect.DeepEqual(t.columns, other.columns) || len(t.rows) != len(other.rows) {
		return false
	}
	for i := range t.rows {
		if !reflect.DeepEqual(t.Values(i), other.Values(i)) {
			return false
		}
	}
	return true
}

// requireColumns returns a MissingColumnError for the first absent column.
func (t *Table) requireColumns(cols ...string) error {
	for _, col := range cols {
		if !t.HasColumn(col) {
			return &MissingColumnError{Column: col, Available: t.Columns()}
		}
	}
	return nil
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]}
// with each row in column order.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]any, len(t.rows))
	for i := range t.rows {
		rows[i] = t.Values(i)
	}
	columns := t.columns
	if columns == nil {
		columns = []string{}
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{columns, rows})
}

// FormatValue renders a cell for display. Nil renders as the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// numeric returns v as a float64 when it holds a number.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	default:
		return 0, false
	}
}

// normalizeKey folds integral floats into int64 so 2020 and 2020.0 group
// together.
func normalizeKey(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

// valueRank orders value kinds: numbers, then strings, then booleans.
func valueRank(v any) int {
	switch v.(type) {
	case int64, float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	default:
		return 3
	}
}

// compareValues orders two non-nil cell values ascending.
func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		fa, _ := numeric(a)
		fb, _ := numeric(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 1:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	case 2:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	return 0
}
