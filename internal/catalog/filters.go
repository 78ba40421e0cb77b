package catalog

import "strings"

// Where returns a new table holding the rows for which keep returns true,
// in their original order.
func (t *Table) Where(keep func(Record) bool) *Table {
	rows := make([]Record, 0, len(t.rows))
	for _, r := range t.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return &Table{columns: t.columns, rows: rows}
}

// FilterContains keeps rows whose col holds a string containing keyword,
// ignoring case. Empty and non-text cells never match.
func (t *Table) FilterContains(col, keyword string) (*Table, error) {
	if err := t.requireColumns(col); err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	return t.Where(func(r Record) bool {
		s, ok := r[col].(string)
		return ok && strings.Contains(strings.ToLower(s), needle)
	}), nil
}

// FilterRange keeps rows whose col holds a number within [lo, hi].
// An inverted range yields an empty table.
func (t *Table) FilterRange(col string, lo, hi int64) (*Table, error) {
	if err := t.requireColumns(col); err != nil {
		return nil, err
	}

	flo, fhi := float64(lo), float64(hi)
	return t.Where(func(r Record) bool {
		v, ok := numeric(r[col])
		return ok && v >= flo && v <= fhi
	}), nil
}
