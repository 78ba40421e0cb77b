package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileLoad            = errors.New("file load failed")
	ErrMissingColumn       = errors.New("missing column")
	ErrFileWrite           = errors.New("file write failed")
)

// UnsupportedFileTypeError is returned by New for an unknown file type tag.
type UnsupportedFileTypeError struct {
	FileType FileType
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q: use 'excel' or 'bibtex'", string(e.FileType))
}

func (e *UnsupportedFileTypeError) Is(target error) bool {
	return target == ErrUnsupportedFileType
}

// FileLoadError is returned when the source file cannot be read.
type FileLoadError struct {
	Path string
	Err  error
}

func (e *FileLoadError) Error() string {
	return fmt.Sprintf("file load %s: %v", e.Path, e.Err)
}

func (e *FileLoadError) Unwrap() error { return e.Err }

func (e *FileLoadError) Is(target error) bool {
	return target == ErrFileLoad
}

// MissingColumnError is returned when an operation references a column the
// loaded table does not have.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("column not found: %q (table has no columns)", e.Column)
	}
	return fmt.Sprintf("column not found: %q (have %s)", e.Column, strings.Join(e.Available, ", "))
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// FileWriteError is returned when an export destination cannot be written.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("file write %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error { return e.Err }

func (e *FileWriteError) Is(target error) bool {
	return target == ErrFileWrite
}
