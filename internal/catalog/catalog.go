package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// FileType tags the format of the source file.
type FileType string

const (
	FileTypeExcel  FileType = "excel"
	FileTypeBibTeX FileType = "bibtex"
)

// DefaultSheetName is used by Export when no sheet name is given.
const DefaultSheetName = "Publication Summary"

// Fixed export targets for filter results.
var (
	TitleExport     = ExportTarget{File: "Filtered_By_Title.xlsx", Sheet: "Filtered By Title"}
	AuthorExport    = ExportTarget{File: "Filtered_By_Author.xlsx", Sheet: "Filtered By Author"}
	YearRangeExport = ExportTarget{File: "Filtered_By_Year_Range.xlsx", Sheet: "Filtered By Year Range"}
	TypeExport      = ExportTarget{File: "Filtered_By_Type.xlsx", Sheet: "Filtered By Type"}
)

// ExportTarget names the file and sheet a filter result is written to.
type ExportTarget struct {
	File  string
	Sheet string
}

// TableLoader reads a spreadsheet into a table.
type TableLoader interface {
	Load(path string) (*Table, error)
}

// TableWriter writes a table to a spreadsheet with a single named sheet,
// replacing any existing file at path.
type TableWriter interface {
	Write(path, sheet string, t *Table) error
}

// Archiver keeps a copy of every exported table.
type Archiver interface {
	Archive(ctx context.Context, path, sheet string, t *Table) error
}

// Catalog holds the source publication table and runs filters, summaries
// and exports over it.
type Catalog struct {
	path     string
	fileType FileType
	source   *Table

	writer         TableWriter
	archiver       Archiver
	archiveTimeout time.Duration
	outputDir      string
	logger         *slog.Logger

	// exportMu serializes writes so concurrent callers never interleave
	// writes to the same fixed-name file.
	exportMu sync.Mutex
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithOutputDir sets the directory filter results are exported to.
func WithOutputDir(dir string) Option {
	return func(c *Catalog) { c.outputDir = dir }
}

// WithArchiver archives every successful export. Each archive call gets its
// own deadline of timeout.
func WithArchiver(a Archiver, timeout time.Duration) Option {
	return func(c *Catalog) {
		c.archiver = a
		c.archiveTimeout = timeout
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// New loads the source file and returns a catalog over it.
//
// The excel type loads through loader. The bibtex type is not implemented:
// it logs a warning and yields an empty table without error. Any other type
// returns an UnsupportedFileTypeError.
func New(path string, fileType FileType, loader TableLoader, writer TableWriter, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		path:      path,
		fileType:  fileType,
		writer:    writer,
		outputDir: ".",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch fileType {
	case FileTypeExcel:
		t, err := loader.Load(path)
		if err != nil {
			var loadErr *FileLoadError
			if errors.As(err, &loadErr) {
				return nil, err
			}
			return nil, &FileLoadError{Path: path, Err: err}
		}
		c.source = t
	case FileTypeBibTeX:
		c.logger.Warn("BibTeX loading not implemented, using an empty table", "path", path)
		c.source = NewTable(nil, nil)
	default:
		return nil, &UnsupportedFileTypeError{FileType: fileType}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if !c.source.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		c.logger.Warn("source is missing columns", "path", path, "missing", missing)
	}

	c.logger.Info("publications loaded",
		"path", path,
		"type", string(fileType),
		"rows", c.source.Len(),
		"columns", len(c.source.columns),
	)
	return c, nil
}

// Source returns the loaded table. Callers must not modify its records.
func (c *Catalog) Source() *Table {
	return c.source
}

// FileType returns the type tag the catalog was created with.
func (c *Catalog) FileType() FileType {
	return c.fileType
}

// OutputPath returns where target is written in the output directory.
func (c *Catalog) OutputPath(target ExportTarget) string {
	return filepath.Join(c.outputDir, target.File)
}

// FilterByTitle returns records whose title contains keyword, ignoring case,
// and exports them to Filtered_By_Title.xlsx.
func (c *Catalog) FilterByTitle(keyword string) (*Table, error) {
	return c.filterAndExport(TitleExport, func(t *Table) (*Table, error) {
		return t.FilterContains(ColumnTitle, keyword)
	})
}

// FilterByAuthor returns records whose author contains name, ignoring case,
// and exports them to Filtered_By_Author.xlsx.
func (c *Catalog) FilterByAuthor(name string) (*Table, error) {
	return c.filterAndExport(AuthorExport, func(t *Table) (*Table, error) {
		return t.FilterContains(ColumnAuthor, name)
	})
}

// FilterByYearRange returns records with startYear <= year <= endYear and
// exports them to Filtered_By_Year_Range.xlsx. The bounds are not checked:
// startYear > endYear yields an empty table.
func (c *Catalog) FilterByYearRange(startYear, endYear int64) (*Table, error) {
	return c.filterAndExport(YearRangeExport, func(t *Table) (*Table, error) {
		return t.FilterRange(ColumnYear, startYear, endYear)
	})
}

// FilterByType returns records whose type contains keyword, ignoring case,
// and exports them to Filtered_By_Type.xlsx.
func (c *Catalog) FilterByType(keyword string) (*Table, error) {
	return c.filterAndExport(TypeExport, func(t *Table) (*Table, error) {
		return t.FilterContains(ColumnType, keyword)
	})
}

func (c *Catalog) filterAndExport(target ExportTarget, filter func(*Table) (*Table, error)) (*Table, error) {
	out, err := filter(c.source)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("filter applied", "target", target.File, "matched", out.Len(), "of", c.source.Len())

	if err := c.Export(c.OutputPath(target), out, target.Sheet); err != nil {
		return nil, err
	}
	return out, nil
}

// YearlySummary counts publications per year and type, one column per type.
func (c *Catalog) YearlySummary() (*Table, error) {
	return c.source.YearlySummary()
}

// TotalSummary counts publications per year in a total_publications column.
func (c *Catalog) TotalSummary() (*Table, error) {
	return c.source.TotalSummary()
}

// Export writes t to outputPath under sheetName, replacing any existing file.
// An empty sheetName means DefaultSheetName.
func (c *Catalog) Export(outputPath string, t *Table, sheetName string) error {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	c.exportMu.Lock()
	defer c.exportMu.Unlock()

	if err := c.writer.Write(outputPath, sheetName, t); err != nil {
		var writeErr *FileWriteError
		if errors.As(err, &writeErr) {
			return err
		}
		return &FileWriteError{Path: outputPath, Err: err}
	}

	c.logger.Info("excel file saved", "path", outputPath, "sheet", sheetName, "rows", t.Len())

	if c.archiver != nil {
		c.archive(outputPath, sheetName, t)
	}
	return nil
}

// archive copies an exported table to the archiver. Failures are logged
// and never fail the export.
func (c *Catalog) archive(path, sheet string, t *Table) {
	ctx := context.Background()
	if c.archiveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.archiveTimeout)
		defer cancel()
	}

	if err := c.archiver.Archive(ctx, path, sheet, t); err != nil {
		c.logger.Warn("export archive failed", "path", path, "error", err)
	}
}
