package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// Test doubles
// ----------------------------------------------------------------------------

type stubLoader struct {
	table *Table
	err   error
	calls int
}

func (l *stubLoader) Load(path string) (*Table, error) {
	l.calls++
	return l.table, l.err
}

type writeCall struct {
	path  string
	sheet string
	table *Table
}

type recordingWriter struct {
	calls []writeCall
	err   error
}

func (w *recordingWriter) Write(path, sheet string, t *Table) error {
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, writeCall{path: path, sheet: sheet, table: t})
	return nil
}

func (w *recordingWriter) last(t *testing.T) writeCall {
	t.Helper()
	if len(w.calls) == 0 {
		t.Fatal("no table was written")
	}
	return w.calls[len(w.calls)-1]
}

type recordingArchiver struct {
	paths []string
	err   error
}

func (a *recordingArchiver) Archive(ctx context.Context, path, sheet string, t *Table) error {
	a.paths = append(a.paths, path)
	return a.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scenarioTable is the two-record dataset used throughout these tests.
func scenarioTable() *Table {
	return NewTable(
		[]string{"title", "author", "year", "type"},
		[]Record{
			{"title": "Deep Learning Survey", "author": "Smith", "year": int64(2020), "type": "journal"},
			{"title": "Graph Theory", "author": "Lee", "year": int64(2019), "type": "conference"},
		},
	)
}

// mixedTable exercises empty cells, non-text cells and extra columns.
func mixedTable() *Table {
	return NewTable(
		[]string{"title", "author", "year", "type", "doi"},
		[]Record{
			{"title": "Deep learning for graphs", "author": "Smith, J.", "year": int64(2021), "type": "Journal", "doi": "10.1/a"},
			{"title": nil, "author": "Smithson", "year": int64(2021), "type": "conference", "doi": nil},
			{"title": int64(1984), "author": nil, "year": float64(2020), "type": "journal", "doi": "10.1/c"},
			{"title": "DEEP nets", "author": "Lee", "year": int64(2018), "type": "conference", "doi": "10.1/d"},
			{"title": "Shallow nets", "author": "Kim", "year": "unknown", "type": nil, "doi": "10.1/e"},
			{"title": "Graph Theory", "author": "Lee", "year": int64(2019), "type": "Journal", "doi": "10.1/f"},
		},
	)
}

func newTestCatalog(t *testing.T, table *Table, opts ...Option) (*Catalog, *recordingWriter) {
	t.Helper()
	w := &recordingWriter{}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := New("publications.xlsx", FileTypeExcel, &stubLoader{table: table}, w, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, w
}

// ----------------------------------------------------------------------------
// Construction
// ----------------------------------------------------------------------------

func TestNew_Excel(t *testing.T) {
	loader := &stubLoader{table: scenarioTable()}
	c, err := New("publications.xlsx", FileTypeExcel, loader, &recordingWriter{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if loader.calls != 1 {
		t.Errorf("loader calls = %d, want 1", loader.calls)
	}
	if c.Source().Len() != 2 {
		t.Errorf("Source().Len() = %d, want 2", c.Source().Len())
	}
	if c.FileType() != FileTypeExcel {
		t.Errorf("FileType() = %q, want %q", c.FileType(), FileTypeExcel)
	}
}

func TestNew_BibTeXYieldsEmptyTable(t *testing.T) {
	loader := &stubLoader{table: scenarioTable()}
	c, err := New("refs.bib", FileTypeBibTeX, loader, &recordingWriter{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v, want nil for bibtex", err)
	}
	if loader.calls != 0 {
		t.Errorf("loader calls = %d, want 0", loader.calls)
	}
	if c.Source().Len() != 0 || len(c.Source().Columns()) != 0 {
		t.Errorf("Source() = %d rows, %d columns, want empty", c.Source().Len(), len(c.Source().Columns()))
	}
}

func TestNew_BibTeXOperationsReportMissingColumns(t *testing.T) {
	w := &recordingWriter{}
	c, err := New("refs.bib", FileTypeBibTeX, nil, w, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ops := map[string]func() error{
		"title":  func() error { _, err := c.FilterByTitle("x"); return err },
		"author": func() error { _, err := c.FilterByAuthor("x"); return err },
		"year":   func() error { _, err := c.FilterByYearRange(2000, 2020); return err },
		"type":   func() error { _, err := c.FilterByType("x"); return err },
		"yearly": func() error { _, err := c.YearlySummary(); return err },
		"total":  func() error { _, err := c.TotalSummary(); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrMissingColumn) {
				t.Errorf("error = %v, want ErrMissingColumn", err)
			}
		})
	}
	if len(w.calls) != 0 {
		t.Errorf("writes = %d, want 0", len(w.calls))
	}
}

func TestNew_UnsupportedFileType(t *testing.T) {
	for _, ft := range []FileType{"csv", "", "EXCEL"} {
		t.Run(string(ft), func(t *testing.T) {
			_, err := New("x", ft, &stubLoader{table: scenarioTable()}, &recordingWriter{}, WithLogger(quietLogger()))
			var target *UnsupportedFileTypeError
			if !errors.As(err, &target) {
				t.Fatalf("error = %v, want *UnsupportedFileTypeError", err)
			}
			if target.FileType != ft {
				t.Errorf("FileType = %q, want %q", target.FileType, ft)
			}
			if !errors.Is(err, ErrUnsupportedFileType) {
				t.Error("errors.Is(err, ErrUnsupportedFileType) = false")
			}
		})
	}
}

func TestNew_LoadFailureIsFileLoadError(t *testing.T) {
	cause := errors.New("open publications.xlsx: no such file or directory")
	_, err := New("publications.xlsx", FileTypeExcel, &stubLoader{err: cause}, &recordingWriter{}, WithLogger(quietLogger()))

	var target *FileLoadError
	if !errors.As(err, &target) {
		t.Fatalf("error = %v, want *FileLoadError", err)
	}
	if target.Path != "publications.xlsx" {
		t.Errorf("Path = %q, want %q", target.Path, "publications.xlsx")
	}
	if !errors.Is(err, cause) {
		t.Error("FileLoadError does not unwrap to the loader error")
	}
}

// ----------------------------------------------------------------------------
// Filters
// ----------------------------------------------------------------------------

func TestScenario(t *testing.T) {
	c, _ := newTestCatalog(t, scenarioTable())

	byTitle, err := c.FilterByTitle("deep")
	if err != nil {
		t.Fatalf("FilterByTitle() error = %v", err)
	}
	if byTitle.Len() != 1 || byTitle.Value(0, "title") != "Deep Learning Survey" {
		t.Errorf("FilterByTitle(deep) rows = %d, want only the first record", byTitle.Len())
	}

	byYear, err := c.FilterByYearRange(2019, 2019)
	if err != nil {
		t.Fatalf("FilterByYearRange() error = %v", err)
	}
	if byYear.Len() != 1 || byYear.Value(0, "title") != "Graph Theory" {
		t.Errorf("FilterByYearRange(2019, 2019) rows = %d, want only the second record", byYear.Len())
	}

	total, err := c.TotalSummary()
	if err != nil {
		t.Fatalf("TotalSummary() error = %v", err)
	}
	want := NewTable(
		[]string{"year", "total_publications"},
		[]Record{
			{"year": int64(2019), "total_publications": int64(1)},
			{"year": int64(2020), "total_publications": int64(1)},
		},
	)
	if !total.Equal(want) {
		t.Errorf("TotalSummary() = %+v, want %+v", total, want)
	}
}

func TestFilterContains(t *testing.T) {
	tests := []struct {
		name     string
		filter   func(*Catalog) (*Table, error)
		wantDOIs []any
	}{
		{
			name:     "title ignores case",
			filter:   func(c *Catalog) (*Table, error) { return c.FilterByTitle("deep") },
			wantDOIs: []any{"10.1/a", "10.1/d"},
		},
		{
			name:     "title skips empty and numeric cells",
			filter:   func(c *Catalog) (*Table, error) { return c.FilterByTitle("19") },
			wantDOIs: []any{},
		},
		{
			name:     "empty keyword matches every text title",
			filter:   func(c *Catalog) (*Table, error) { return c.FilterByTitle("") },
			wantDOIs: []any{"10.1/a", "10.1/d", "10.1/e", "10.1/f"},
		},
		{
			name:     "author substring",
			filter:   func(c *Catalog) (*Table, error) { return c.FilterByAuthor("SMITH") },
			wantDOIs: []any{"10.1/a", nil},
		},
		{
			name:     "type substring keeps order",
			filter:   func(c *Catalog) (*Table, error) { return c.FilterByType("journal") },
			wantDOIs: []any{"10.1/a", "10.1/c", "10.1/f"},
		},
		{
			name:     "no match",
			filter:   func(c *Catalog) (*Table, error) { return c.FilterByType("thesis") },
			wantDOIs: []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCatalog(t, mixedTable())
			got, err := tt.filter(c)
			if err != nil {
				t.Fatalf("filter error = %v", err)
			}
			if got.Len() != len(tt.wantDOIs) {
				t.Fatalf("rows = %d, want %d", got.Len(), len(tt.wantDOIs))
			}
			for i, want := range tt.wantDOIs {
				if got.Value(i, "doi") != want {
					t.Errorf("row %d doi = %v, want %v", i, got.Value(i, "doi"), want)
				}
			}
			if cols := got.Columns(); len(cols) != 5 {
				t.Errorf("columns = %v, want extra columns passed through", cols)
			}
		})
	}
}

func TestFilterByTitle_MatchesExactlyThePredicate(t *testing.T) {
	source := mixedTable()
	c, _ := newTestCatalog(t, source)

	for _, kw := range []string{"net", "Graph", "DEEP", "o", "zzz"} {
		got, err := c.FilterByTitle(kw)
		if err != nil {
			t.Fatalf("FilterByTitle(%q) error = %v", kw, err)
		}
		matched := 0
		for i := 0; i < source.Len(); i++ {
			s, ok := source.Value(i, "title").(string)
			if ok && strings.Contains(strings.ToLower(s), strings.ToLower(kw)) {
				matched++
			}
		}
		if got.Len() != matched {
			t.Errorf("FilterByTitle(%q) rows = %d, want %d", kw, got.Len(), matched)
		}
		for i := 0; i < got.Len(); i++ {
			s := got.Value(i, "title").(string)
			if !strings.Contains(strings.ToLower(s), strings.ToLower(kw)) {
				t.Errorf("FilterByTitle(%q) returned %q", kw, s)
			}
		}
	}
}

func TestFilterByYearRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int64
		want       int
	}{
		{"inclusive bounds", 2019, 2020, 2},
		{"single year", 2021, 2021, 2},
		{"float year matches", 2020, 2020, 1},
		{"inverted range is empty", 2021, 2018, 0},
		{"full observed range", 2018, 2021, 5},
		{"outside range", 1990, 2000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCatalog(t, mixedTable())
			got, err := c.FilterByYearRange(tt.start, tt.end)
			if err != nil {
				t.Fatalf("FilterByYearRange() error = %v", err)
			}
			if got.Len() != tt.want {
				t.Errorf("FilterByYearRange(%d, %d) rows = %d, want %d", tt.start, tt.end, got.Len(), tt.want)
			}
		})
	}
}

func TestFilterByYearRange_FullRangeKeepsEveryRecord(t *testing.T) {
	c, _ := newTestCatalog(t, scenarioTable())
	got, err := c.FilterByYearRange(2019, 2020)
	if err != nil {
		t.Fatalf("FilterByYearRange() error = %v", err)
	}
	if !got.Equal(c.Source()) {
		t.Error("full year range dropped or reordered records")
	}
}

func TestFilters_Idempotent(t *testing.T) {
	c, _ := newTestCatalog(t, mixedTable())

	first, err := c.FilterByAuthor("lee")
	if err != nil {
		t.Fatalf("FilterByAuthor() error = %v", err)
	}
	second, err := c.FilterByAuthor("lee")
	if err != nil {
		t.Fatalf("FilterByAuthor() error = %v", err)
	}
	if !first.Equal(second) {
		t.Error("repeated filter returned a different table")
	}
	if c.Source().Len() != 6 {
		t.Errorf("source rows = %d after filtering, want 6", c.Source().Len())
	}
}

func TestFilters_MissingColumn(t *testing.T) {
	table := NewTable([]string{"title", "year"}, []Record{{"title": "A", "year": int64(2020)}})
	c, w := newTestCatalog(t, table)

	_, err := c.FilterByAuthor("x")
	var target *MissingColumnError
	if !errors.As(err, &target) {
		t.Fatalf("error = %v, want *MissingColumnError", err)
	}
	if target.Column != "author" {
		t.Errorf("Column = %q, want %q", target.Column, "author")
	}
	if len(w.calls) != 0 {
		t.Errorf("writes = %d, want 0 on error", len(w.calls))
	}
}

// ----------------------------------------------------------------------------
// Export
// ----------------------------------------------------------------------------

func TestFilters_ExportToFixedTargets(t *testing.T) {
	dir := t.TempDir()
	c, w := newTestCatalog(t, scenarioTable(), WithOutputDir(dir))

	tests := []struct {
		name   string
		run    func() (*Table, error)
		target ExportTarget
	}{
		{"title", func() (*Table, error) { return c.FilterByTitle("graph") }, TitleExport},
		{"author", func() (*Table, error) { return c.FilterByAuthor("smith") }, AuthorExport},
		{"year", func() (*Table, error) { return c.FilterByYearRange(2000, 2030) }, YearRangeExport},
		{"type", func() (*Table, error) { return c.FilterByType("conf") }, TypeExport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			if err != nil {
				t.Fatalf("filter error = %v", err)
			}
			call := w.last(t)
			if want := filepath.Join(dir, tt.target.File); call.path != want {
				t.Errorf("path = %q, want %q", call.path, want)
			}
			if call.sheet != tt.target.Sheet {
				t.Errorf("sheet = %q, want %q", call.sheet, tt.target.Sheet)
			}
			if !call.table.Equal(got) {
				t.Error("exported table differs from returned table")
			}
		})
	}
}

func TestExport_DefaultSheetName(t *testing.T) {
	c, w := newTestCatalog(t, scenarioTable())
	if err := c.Export("summary.xlsx", c.Source(), ""); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got := w.last(t).sheet; got != DefaultSheetName {
		t.Errorf("sheet = %q, want %q", got, DefaultSheetName)
	}
}

func TestExport_WriteFailureIsFileWriteError(t *testing.T) {
	c, w := newTestCatalog(t, scenarioTable())
	w.err = errors.New("permission denied")

	_, err := c.FilterByTitle("deep")
	var target *FileWriteError
	if !errors.As(err, &target) {
		t.Fatalf("error = %v, want *FileWriteError", err)
	}
	if filepath.Base(target.Path) != TitleExport.File {
		t.Errorf("Path = %q, want %q", target.Path, TitleExport.File)
	}
	if !errors.Is(err, ErrFileWrite) {
		t.Error("errors.Is(err, ErrFileWrite) = false")
	}
}

func TestExport_Archive(t *testing.T) {
	archiver := &recordingArchiver{}
	c, _ := newTestCatalog(t, scenarioTable(), WithArchiver(archiver, 0))

	if _, err := c.FilterByType("journal"); err != nil {
		t.Fatalf("FilterByType() error = %v", err)
	}
	if len(archiver.paths) != 1 || filepath.Base(archiver.paths[0]) != TypeExport.File {
		t.Errorf("archived paths = %v, want one %s", archiver.paths, TypeExport.File)
	}
}

func TestExport_ArchiveFailureDoesNotFailExport(t *testing.T) {
	archiver := &recordingArchiver{err: errors.New("connection refused")}
	c, w := newTestCatalog(t, scenarioTable(), WithArchiver(archiver, 0))

	if err := c.Export("out.xlsx", c.Source(), "Sheet"); err != nil {
		t.Fatalf("Export() error = %v, want nil when only the archive fails", err)
	}
	if len(w.calls) != 1 {
		t.Errorf("writes = %d, want 1", len(w.calls))
	}
}
