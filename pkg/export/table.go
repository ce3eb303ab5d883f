// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package export writes measurement runs as flat comma separated tables
// with a single header row.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/waveform"
)

// Column headers of the standard tables.
var (
	WaveformHeader = []string{"Time(s)", "Voltage(V)"}
	LockInHeader   = []string{"Time(s)", "X(V)", "Y(V)"}
	RThetaHeader   = []string{"Time(s)", "R(V)", "Theta(deg)"}
	SweepHeader    = []string{"Voltage(V)", "Current(A)"}
)

// Table is a numeric table.
type Table struct {
	Header []string
	Rows   [][]float64
}

// NewTable returns an empty table with the given header.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// Append adds a row. It must have one value per column.
func (t *Table) Append(values ...float64) error {
	if len(values) != len(t.Header) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Header))
	}
	t.Rows = append(t.Rows, values)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// WriteCSV writes the header and every row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}

	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Save writes the table to path, replacing any existing file.
func (t *Table) Save(path string) (err error) {
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

// FromWaveform tabulates an oscilloscope trace.
func FromWaveform(w waveform.Waveform) *Table {
	t := NewTable(WaveformHeader...)
	for _, p := range w {
		t.Rows = append(t.Rows, []float64{p.Time, p.Voltage})
	}
	return t
}

// FromSamples tabulates timed two-value samples under header, which must
// have three columns: time, then the two readings.
func FromSamples(samples []instrument.Sample, header []string) (*Table, error) {
	if len(header) != 3 {
		return nil, fmt.Errorf("sample tables have 3 columns, header has %d", len(header))
	}
	t := NewTable(header...)
	for _, s := range samples {
		t.Rows = append(t.Rows, []float64{s.Time, s.X, s.Y})
	}
	return t, nil
}

// FromSweep tabulates an IV sweep as voltage and current columns.
func FromSweep(samples []instrument.Sample) *Table {
	t := NewTable(SweepHeader...)
	for _, s := range samples {
		t.Rows = append(t.Rows, []float64{s.X, s.Y})
	}
	return t
}
