// Package runtable records which run number corresponds to which
// parameter values.
package runtable

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

// RunColumn heads the first column of every table.
const RunColumn = "Experiment number"

// Table is a header row followed by one row per run. Every row has the
// header's width.
type Table struct {
	header []string
	rows   [][]string
}

// New returns an empty table for the given variables, in combination
// order.
func New(variables []string) *Table {
	header := make([]string, 0, len(variables)+1)
	header = append(header, RunColumn)
	header = append(header, variables...)
	return &Table{header: header}
}

// Append adds the row for one run.
func (t *Table) Append(run int, values []string) error {
	if len(values) != len(t.header)-1 {
		return fmt.Errorf("run %d has %d values, table has %d variables", run, len(values), len(t.header)-1)
	}
	row := make([]string, 0, len(t.header))
	row = append(row, strconv.Itoa(run))
	row = append(row, values...)
	t.rows = append(t.rows, row)
	return nil
}

// Header returns a copy of the header row.
func (t *Table) Header() []string {
	return slices.Clone(t.header)
}

// Rows returns the data rows, header excluded.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = slices.Clone(r)
	}
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// WriteCSV writes the header and all rows.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFile writes the table as CSV to path, replacing any existing file.
func (t *Table) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return t.WriteCSV(f)
}
