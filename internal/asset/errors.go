package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrRowTooShort is matched by errors for rows that lack a column the
	// layout refers to.
	ErrRowTooShort = errors.New("row too short")

	// ErrNotFound is matched when an input file or record directory does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord is matched by errors for record files that cannot be
	// parsed into the record shape.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrDuplicateIdentity is returned when two records in one batch share a
	// hostname.domain key.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrInvalidIdentity is returned for records whose hostname or domain
	// cannot be used as a file name.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrExists is returned when a record file is already present and
	// overwriting is disabled.
	ErrExists = errors.New("record file exists")

	// ErrInvalidLayout is returned for column layouts that cannot map a row.
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrEmptyTable is returned for input files without a header row.
	ErrEmptyTable = errors.New("empty file")

	// ErrUnsupportedFormat is returned for input files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrFileTooLarge is returned for input files over the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// RowError reports a row that is narrower than the layout requires.
type RowError struct {
	Row  int // 1-based line number in the input file
	Need int // Columns the layout requires
	Have int // Columns present in the row
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: row too short: has %d columns, need %d", e.Row, e.Have, e.Need)
}

func (e *RowError) Is(target error) bool {
	return target == ErrRowTooShort
}

// RecordError reports a record file that could not be loaded.
type RecordError struct {
	File string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
