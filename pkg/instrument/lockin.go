// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/benchtop/pkg/scpi"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

// SR830 sensitivity and time constant settings are indices into fixed
// tables.
const (
	MaxSensitivity  = 26 // 1 V full scale
	MaxTimeConstant = 19 // 30 ks
)

// LockIn drives an SR830 style lock-in amplifier.
type LockIn struct {
	*Device
	now func() time.Time
}

// NewLockIn wraps an open connection.
func NewLockIn(conn *transport.Conn) *LockIn {
	return &LockIn{Device: NewDevice(conn), now: time.Now}
}

// OpenLockIn opens the lock-in amplifier at address.
func OpenLockIn(address string, opts ...transport.Option) (*LockIn, error) {
	conn, err := transport.Open(address, opts...)
	if err != nil {
		return nil, err
	}
	return NewLockIn(conn), nil
}

// SetFrequency sets the internal reference frequency in Hz.
func (l *LockIn) SetFrequency(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("reference frequency must be positive, got %g", hz)
	}
	return l.engine.Send(scpi.New("FREQ", hz))
}

// Frequency returns the reference frequency in Hz.
func (l *LockIn) Frequency() (float64, error) {
	return l.engine.QueryFloat("FREQ?")
}

// SetAmplitude sets the sine output amplitude in volts RMS.
func (l *LockIn) SetAmplitude(volts float64) error {
	if volts < 0 {
		return fmt.Errorf("amplitude must not be negative, got %g", volts)
	}
	return l.engine.Send(scpi.New("SLVL", volts))
}

// SetPhase sets the reference phase shift in degrees.
func (l *LockIn) SetPhase(deg float64) error {
	return l.engine.Send(scpi.New("PHAS", deg))
}

// SetSensitivity selects a full scale sensitivity by index.
func (l *LockIn) SetSensitivity(index int) error {
	if index < 0 || index > MaxSensitivity {
		return fmt.Errorf("sensitivity index %d out of range 0-%d", index, MaxSensitivity)
	}
	return l.engine.Send(scpi.New("SENS", index))
}

// SetTimeConstant selects the output filter time constant by index.
func (l *LockIn) SetTimeConstant(index int) error {
	if index < 0 || index > MaxTimeConstant {
		return fmt.Errorf("time constant index %d out of range 0-%d", index, MaxTimeConstant)
	}
	return l.engine.Send(scpi.New("OFLT", index))
}

// AutoGain runs the auto gain function.
func (l *LockIn) AutoGain() error {
	return l.engine.Send("AGAN")
}

// AutoPhase runs the auto phase function.
func (l *LockIn) AutoPhase() error {
	return l.engine.Send("APHS")
}

// SnapXY reads X and Y in volts at the same instant.
func (l *LockIn) SnapXY() (Sample, error) {
	return l.snap("SNAP? 1,2")
}

// SnapRTheta reads R in volts and θ in degrees at the same instant.
func (l *LockIn) SnapRTheta() (Sample, error) {
	return l.snap("SNAP? 3,4")
}

func (l *LockIn) snap(cmd scpi.Command) (Sample, error) {
	resp, err := l.engine.Query(cmd)
	if err != nil {
		return Sample{}, err
	}
	return ParseSample(resp)
}

// Record takes n X/Y snapshots spaced by interval. Sample times are
// relative to the first snapshot. When ctx ends early the samples taken
// so far are returned with the context error.
func (l *LockIn) Record(ctx context.Context, n int, interval time.Duration) ([]Sample, error) {
	return l.record(ctx, n, interval, l.SnapXY)
}

// RecordRTheta is Record for R and θ snapshots.
func (l *LockIn) RecordRTheta(ctx context.Context, n int, interval time.Duration) ([]Sample, error) {
	return l.record(ctx, n, interval, l.SnapRTheta)
}

func (l *LockIn) record(ctx context.Context, n int, interval time.Duration, snap func() (Sample, error)) ([]Sample, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative sample count %d", n)
	}

	samples := make([]Sample, 0, n)
	clk := newClock(l.now)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := wait(ctx, interval); err != nil {
				return samples, err
			}
		}
		s, err := snap()
		if err != nil {
			return samples, err
		}
		s.Time = clk.elapsed()
		samples = append(samples, s)
	}

	l.logger.Debug("recorded", "samples", len(samples))
	return samples, nil
}
