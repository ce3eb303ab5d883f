// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Thermoquad/benchtop/pkg/scpi"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

// maxSweepPoints bounds the number of levels a single sweep visits.
const maxSweepPoints = 100000

// SourceMeter drives a Keithley 2400 style source-measure unit.
type SourceMeter struct {
	*Device
	now func() time.Time
}

// NewSourceMeter wraps an open connection.
func NewSourceMeter(conn *transport.Conn) *SourceMeter {
	return &SourceMeter{Device: NewDevice(conn), now: time.Now}
}

// OpenSourceMeter opens the source-measure unit at address.
func OpenSourceMeter(address string, opts ...transport.Option) (*SourceMeter, error) {
	conn, err := transport.Open(address, opts...)
	if err != nil {
		return nil, err
	}
	return NewSourceMeter(conn), nil
}

func (m *SourceMeter) sendAll(cmds ...scpi.Command) error {
	for _, cmd := range cmds {
		if err := m.engine.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SourceVoltage sources a fixed voltage with a current compliance limit.
func (m *SourceMeter) SourceVoltage(volts, currentLimit float64) error {
	if currentLimit <= 0 {
		return fmt.Errorf("current compliance must be positive, got %g", currentLimit)
	}
	return m.sendAll(
		":SOUR:FUNC VOLT",
		":SOUR:VOLT:MODE FIXED",
		scpi.New(":SENS:CURR:PROT", currentLimit),
		scpi.New(":SOUR:VOLT:LEV", volts),
	)
}

// SourceCurrent sources a fixed current with a voltage compliance limit.
func (m *SourceMeter) SourceCurrent(amps, voltageLimit float64) error {
	if voltageLimit <= 0 {
		return fmt.Errorf("voltage compliance must be positive, got %g", voltageLimit)
	}
	return m.sendAll(
		":SOUR:FUNC CURR",
		":SOUR:CURR:MODE FIXED",
		scpi.New(":SENS:VOLT:PROT", voltageLimit),
		scpi.New(":SOUR:CURR:LEV", amps),
	)
}

// Output switches the source output.
func (m *SourceMeter) Output(on bool) error {
	if on {
		return m.engine.Send(":OUTP ON")
	}
	return m.engine.Send(":OUTP OFF")
}

// MeasureCurrent triggers one reading and returns the current in amps.
func (m *SourceMeter) MeasureCurrent() (float64, error) {
	return m.measure("CURR")
}

// MeasureVoltage triggers one reading and returns the voltage in volts.
func (m *SourceMeter) MeasureVoltage() (float64, error) {
	return m.measure("VOLT")
}

func (m *SourceMeter) measure(function string) (float64, error) {
	if err := m.sendAll(
		scpi.New(":SENS:FUNC", `"`+function+`"`),
		scpi.New(":FORM:ELEM", function),
	); err != nil {
		return 0, err
	}
	return m.engine.QueryFloat(":READ?")
}

// Read triggers one reading of both voltage (X) and current (Y).
func (m *SourceMeter) Read() (Sample, error) {
	if err := m.engine.Send(":FORM:ELEM VOLT,CURR"); err != nil {
		return Sample{}, err
	}
	resp, err := m.engine.Query(":READ?")
	if err != nil {
		return Sample{}, err
	}
	return ParseSample(resp)
}

// SweepParams describes a voltage sweep.
type SweepParams struct {
	Start        float64
	Stop         float64
	Step         float64
	CurrentLimit float64
	Settle       time.Duration // wait after each level before reading
}

// Levels returns the source levels from Start towards Stop in steps of
// Step, including Stop when it falls on the grid.
func (p SweepParams) Levels() ([]float64, error) {
	if p.Step == 0 || math.IsNaN(p.Step) || math.IsInf(p.Step, 0) {
		return nil, fmt.Errorf("invalid sweep step %g", p.Step)
	}
	if !isFinite(p.Start) || !isFinite(p.Stop) {
		return nil, fmt.Errorf("invalid sweep range %g to %g", p.Start, p.Stop)
	}
	span := p.Stop - p.Start
	if span != 0 && math.Signbit(span) != math.Signbit(p.Step) {
		return nil, fmt.Errorf("sweep step %g moves away from stop %g", p.Step, p.Stop)
	}

	// Tolerate rounding so a stop on the grid is included.
	count := math.Floor(span/p.Step+1e-9) + 1
	if !(count <= maxSweepPoints) {
		return nil, fmt.Errorf("sweep has %.0f points, limit is %d", count, maxSweepPoints)
	}

	levels := make([]float64, int(count))
	for i := range levels {
		levels[i] = p.Start + float64(i)*p.Step
	}
	return levels, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sweep sources each voltage level and reads V/I. The output is switched on
// for the sweep and off again on every exit path. When ctx ends early the
// samples taken so far are returned with the context error.
func (m *SourceMeter) Sweep(ctx context.Context, p SweepParams) (samples []Sample, err error) {
	levels, err := p.Levels()
	if err != nil {
		return nil, err
	}

	if err := m.SourceVoltage(p.Start, p.CurrentLimit); err != nil {
		return nil, err
	}
	if err := m.Output(true); err != nil {
		return nil, err
	}
	defer func() {
		if oerr := m.Output(false); oerr != nil {
			err = errors.Join(err, fmt.Errorf("output off: %w", oerr))
		}
	}()

	clk := newClock(m.now)
	samples = make([]Sample, 0, len(levels))
	for _, v := range levels {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		if err := m.engine.Send(scpi.New(":SOUR:VOLT:LEV", v)); err != nil {
			return samples, err
		}
		if err := wait(ctx, p.Settle); err != nil {
			return samples, err
		}
		s, err := m.Read()
		if err != nil {
			return samples, err
		}
		s.Time = clk.elapsed()
		samples = append(samples, s)
	}

	m.logger.Debug("sweep done", "points", len(samples))
	return samples, nil
}
