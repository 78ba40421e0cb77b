// Package catalog provides the business logic for publication summaries.
//
// This package holds an in-memory table of publication records and exposes
// filter, aggregate and export operations over it. It has no UI or
// spreadsheet-format dependencies; reading and writing files is delegated to
// a [TableLoader] and a [TableWriter] (see package xlsx).
//
// # Tables
//
// A [Table] is an ordered list of [Record] values sharing one column set.
// Tables are never mutated after construction: every filter derives a new
// table that preserves the source row order, and every summary derives a
// table of a different shape.
//
//	cat, err := catalog.New("publications.xlsx", catalog.FileTypeExcel,
//	    xlsx.Loader{}, xlsx.Writer{},
//	    catalog.WithOutputDir("out"),
//	)
//	recent, err := cat.FilterByYearRange(2019, 2024)
//
// # Filters
//
// Text filters ([Catalog.FilterByTitle], [Catalog.FilterByAuthor],
// [Catalog.FilterByType]) match a case-insensitive substring of the column.
// Empty or non-text cells never match. [Catalog.FilterByYearRange] is
// inclusive on both bounds and yields an empty table for inverted ranges.
// Each filter result is exported to a fixed file in the output directory
// before it is returned.
//
// # Summaries
//
// Summaries are computed in two passes: a grouping pass counts records per
// grouping key, and a materialization pass expands the counts into a table
// with ascending keys, filling absent combinations with 0.
//
// # Error Handling
//
// Operations return [UnsupportedFileTypeError], [FileLoadError],
// [MissingColumnError] or [FileWriteError]. Each matches a sentinel via
// errors.Is. [MapError] converts any error into a [UserMessage] with a code
// for display:
//
//   - CAT001: unsupported source file type
//   - FILE001-FILE002: source load and export write failures
//   - COL001: a referenced column is absent
//   - INP001: invalid user input
//
// The bibtex file type is not an error: loading it is not implemented and
// yields an empty table.
package catalog
