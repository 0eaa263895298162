// Package mdataset models row-oriented test data. A dataset is parsed from
// CSV text (header row naming columns, one variable layer per data row) and
// feeds data-driven scenario runs.
//
//nolint:revive // exported
package mdataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"testflow/engine/pkg/idwrap"
)

var ErrEmptyDataset = errors.New("dataset has no header row")

// Dataset is a parsed table. Columns preserves header order; each row maps
// column name to cell text.
type Dataset struct {
	ID      idwrap.IDWrap
	Name    string
	Columns []string
	Rows    []map[string]any
}

// RowCount returns the number of data rows.
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// Row returns the i-th data row, or nil when out of range.
func (d *Dataset) Row(i int) map[string]any {
	if i < 0 || i >= len(d.Rows) {
		return nil
	}
	return d.Rows[i]
}

// ParseCSV reads a CSV document: first record is the header, every
// following record is one data row. Quoted fields follow RFC 4180, so cells
// may contain commas and newlines. Cell values stay strings; coercion
// happens later at expression time.
func ParseCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	// Ragged rows are tolerated: short rows pad missing cells with "",
	// extra cells are dropped.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
	}

	ds := &Dataset{
		ID:      idwrap.NewNow(),
		Columns: columns,
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(ds.Rows)+2, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// ParseCSVString parses CSV text. Convenience wrapper over ParseCSV.
func ParseCSVString(text string) (*Dataset, error) {
	return ParseCSV(strings.NewReader(text))
}
