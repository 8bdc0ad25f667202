package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Mapper converts input rows into records using a fixed layout.
// A Mapper is safe for concurrent use.
type Mapper struct {
	layout Layout
	width  int
}

// NewMapper validates layout and returns a Mapper for it.
func NewMapper(layout Layout) (*Mapper, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{layout: layout, width: layout.Width()}, nil
}

// Width returns the number of columns each row must have.
func (m *Mapper) Width() int { return m.width }

// Map builds a record from row. rowNum is the row's line number in the input
// file and is only used for error reporting.
//
// Every schema field is populated: column-backed fields get the cell text
// (or Absent when the layout has no column for them), and the purchase
// order and fabrication flag are derived from the notes cell.
func (m *Mapper) Map(rowNum int, row []string) (Record, error) {
	if len(row) < m.width {
		return Record{}, &RowError{Row: rowNum, Need: m.width, Have: len(row)}
	}

	rec := Record{
		Hostname: strings.TrimSpace(row[m.layout.Hostname]),
		Domain:   strings.TrimSpace(row[m.layout.Domain]),
	}

	for _, spec := range Schema {
		if spec.Derived {
			continue
		}
		v := Absent()
		if idx, ok := m.layout.Columns[spec.Key]; ok {
			v = Text(row[idx])
		}
		rec.Set(spec.Key, v)
	}

	notes := row[m.layout.Notes]
	rec.Acquisition.PurchaseOrder = PurchaseOrder(notes)
	rec.Acquisition.IsFabrication = Flag(IsFabrication(notes))

	return rec, nil
}

// MapRows maps rows with up to workers goroutines. Records come back in
// input order. If any row fails, MapRows returns no records and an error
// joining every row failure in input order.
func MapRows(ctx context.Context, m *Mapper, rows []Row, workers int) ([]Record, error) {
	if workers <= 0 {
		workers = 1
	}

	records := make([]Record, len(rows))
	rowErrs := make([]error, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, row := range rows {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i], rowErrs[i] = m.Map(row.Line, row.Cells)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("map rows: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("map rows: %w", err)
	}

	if err := errors.Join(rowErrs...); err != nil {
		return nil, err
	}
	return records, nil
}
