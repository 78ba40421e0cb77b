package catalog

// summary.go builds grouped count tables in two passes:
//  1. Grouping: count records per grouping key, skipping empty key cells
//  2. Materialization: expand the counts into rows ordered by key, with one
//     column per pivot value and 0 for absent combinations

import (
	"sort"
	"strconv"
)

// ColumnTotalPublications is the count column of the total summary.
const ColumnTotalPublications = "total_publications"

// groupKey is a composite grouping key. Unused parts stay nil.
type groupKey struct {
	row   any
	pivot any
}

// groupCounts is the result of the grouping pass.
type groupCounts struct {
	counts map[groupKey]int64
	rows   []any // distinct row keys, unordered
	pivots []any // distinct pivot keys, unordered
}

// countBy groups t by rowCol and, when pivotCol is non-empty, by pivotCol.
func countBy(t *Table, rowCol, pivotCol string) groupCounts {
	g := groupCounts{counts: make(map[groupKey]int64)}
	seenRow := make(map[any]bool)
	seenPivot := make(map[any]bool)

	for _, r := range t.rows {
		rk := r[rowCol]
		if rk == nil {
			continue
		}
		rk = normalizeKey(rk)

		var pk any
		if pivotCol != "" {
			pk = r[pivotCol]
			if pk == nil {
				continue
			}
			pk = normalizeKey(pk)
			if !seenPivot[pk] {
				seenPivot[pk] = true
				g.pivots = append(g.pivots, pk)
			}
		}

		if !seenRow[rk] {
			seenRow[rk] = true
			g.rows = append(g.rows, rk)
		}
		g.counts[groupKey{row: rk, pivot: pk}]++
	}

	sortValues(g.rows)
	sortValues(g.pivots)
	return g
}

func sortValues(vs []any) {
	sort.SliceStable(vs, func(i, j int) bool {
		return compareValues(vs[i], vs[j]) < 0
	})
}

// pivotColumns names the key column followed by one column per pivot value.
// A name already taken, by the key or by an earlier pivot that renders the
// same, gets a ".n" suffix so every pivot keeps its own column.
func pivotColumns(key string, pivots []any) []string {
	columns := make([]string, 0, len(pivots)+1)
	columns = append(columns, key)
	used := map[string]bool{key: true}

	for _, p := range pivots {
		base := FormatValue(p)
		name := base
		for n := 1; used[name]; n++ {
			name = base + "." + strconv.Itoa(n)
		}
		used[name] = true
		columns = append(columns, name)
	}
	return columns
}

// YearlySummary counts records per (year, type) and pivots types into
// columns. The first column is year; type columns are sorted ascending.
//
// Records with an empty year or type are skipped. TotalSummary still counts
// records with a year but no type, so a year's row sum here equals its
// total only when every record of that year has a type.
func (t *Table) YearlySummary() (*Table, error) {
	if err := t.requireColumns(ColumnYear, ColumnType); err != nil {
		return nil, err
	}

	g := countBy(t, ColumnYear, ColumnType)
	columns := pivotColumns(ColumnYear, g.pivots)

	rows := make([]Record, 0, len(g.rows))
	for _, year := range g.rows {
		rec := Record{ColumnYear: year}
		for i, p := range g.pivots {
			rec[columns[i+1]] = g.counts[groupKey{row: year, pivot: p}]
		}
		rows = append(rows, rec)
	}

	return &Table{columns: columns, rows: rows}, nil
}

// TotalSummary counts records per year.
func (t *Table) TotalSummary() (*Table, error) {
	if err := t.requireColumns(ColumnYear); err != nil {
		return nil, err
	}

	g := countBy(t, ColumnYear, "")

	rows := make([]Record, 0, len(g.rows))
	for _, year := range g.rows {
		rows = append(rows, Record{
			ColumnYear:              year,
			ColumnTotalPublications: g.counts[groupKey{row: year}],
		})
	}

	return &Table{
		columns: []string{ColumnYear, ColumnTotalPublications},
		rows:    rows,
	}, nil
}
