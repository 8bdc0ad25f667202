package asset

// source.go reads input tables from CSV or XLSX files.
//
// Spreadsheet exports are messy: Windows tools prepend a UTF-8 byte order
// mark, and hand-edited files sometimes contain bytes that are not valid
// UTF-8. CSV input is decoded through a BOM-stripping UTF-8 decoder that
// replaces invalid bytes with U+FFFD before the CSV parser sees them.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one data row with its 1-based line number in the input file.
type Row struct {
	Line  int
	Cells []string
}

// Table is an input file split into its header and data rows.
type Table struct {
	Header []string
	Rows   []Row
}

// ReadCSV parses comma-separated, double-quote-quoted input. The first record
// is the header. A quote inside an unquoted cell is kept as text. Rows whose
// cells are all blank are skipped. Rows may have differing widths; width is
// checked when rows are mapped.
func ReadCSV(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.Comma = ','
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	t := &Table{Header: header}
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlank(cells) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, Row{Line: line, Cells: cells})
	}
	return t, nil
}

// ReadXLSX reads a worksheet. An empty sheet name selects the first sheet.
// Rows are padded to the header width because trailing empty cells are not
// stored in the workbook.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyTable
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{Header: rows[0]}
	width := len(rows[0])
	for i, cells := range rows[1:] {
		if isBlank(cells) {
			continue
		}
		for len(cells) < width {
			cells = append(cells, "")
		}
		t.Rows = append(t.Rows, Row{Line: i + 2, Cells: cells})
	}
	return t, nil
}

// OpenTable reads path as CSV or XLSX based on its extension. maxSize limits
// the file size in bytes; zero or less disables the check.
func OpenTable(path, sheet string, maxSize int64) (*Table, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a file", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, path, info.Size(), maxSize)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
