// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/benchtop/pkg/scpi"
	"github.com/Thermoquad/benchtop/pkg/transport"
	"github.com/Thermoquad/benchtop/pkg/waveform"
)

// AcquireParams selects what a single acquisition captures.
type AcquireParams struct {
	Channel string        // source, e.g. "CH1"
	Start   int           // first record point, 1-based
	Stop    int           // last record point, inclusive
	Width   int           // bytes per sample, 1 or 2
	Dwell   time.Duration // time the acquisition runs before it is stopped
}

// DefaultAcquireParams captures the full 2500 point record of channel 1.
var DefaultAcquireParams = AcquireParams{
	Channel: "CH1",
	Start:   1,
	Stop:    2500,
	Width:   1,
	Dwell:   time.Second,
}

func (p AcquireParams) validate() error {
	switch {
	case p.Channel == "":
		return errors.New("acquire: channel is required")
	case p.Start < 1:
		return fmt.Errorf("acquire: start point %d, points are 1-based", p.Start)
	case p.Stop < p.Start:
		return fmt.Errorf("acquire: stop point %d before start point %d", p.Stop, p.Start)
	case p.Width != 1 && p.Width != 2:
		return fmt.Errorf("acquire: sample width %d, must be 1 or 2", p.Width)
	case p.Dwell < 0:
		return fmt.Errorf("acquire: negative dwell %v", p.Dwell)
	}
	return nil
}

// Scope drives a Tektronix style digital oscilloscope.
type Scope struct {
	*Device
	sleep func(time.Duration)
}

// NewScope wraps an open connection.
func NewScope(conn *transport.Conn) *Scope {
	return &Scope{Device: NewDevice(conn), sleep: time.Sleep}
}

// OpenScope opens the oscilloscope at address.
func OpenScope(address string, opts ...transport.Option) (*Scope, error) {
	conn, err := transport.Open(address, opts...)
	if err != nil {
		return nil, err
	}
	return NewScope(conn), nil
}

// Acquire runs one acquisition and returns the trace in seconds and volts.
//
// The scope is stopped and cleared, the source and point range are
// selected, then it runs for the dwell time and is stopped again. The
// preamble is queried after every stop because scale and offset follow the
// front panel.
func (s *Scope) Acquire(p AcquireParams) (waveform.Waveform, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	setup := []scpi.Command{
		"ACQ:STATE STOP",
		"CLEAR",
		scpi.New("DATA:SOU", p.Channel),
		"DATA:ENC RPB",
		scpi.New("DATA:WIDTH", p.Width),
		scpi.New("DATA:START", p.Start),
		scpi.New("DATA:STOP", p.Stop),
		"ACQ:STATE RUN",
	}
	for _, cmd := range setup {
		if err := s.engine.Send(cmd); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("acquiring", "channel", p.Channel, "dwell", p.Dwell)
	s.sleep(p.Dwell)

	if err := s.engine.Send("ACQ:STATE STOP"); err != nil {
		return nil, err
	}

	pre, err := s.Preamble()
	if err != nil {
		return nil, err
	}
	for _, anomaly := range waveform.CheckPreamble(pre) {
		s.logger.Warn("suspicious preamble", "field", anomaly.Field, "problem", anomaly.Message)
	}

	block, err := s.engine.QueryBlock("CURVE?")
	if err != nil {
		return nil, err
	}
	samples, err := waveform.DecodeBlock(block)
	if err != nil {
		return nil, err
	}

	format := waveform.Format{Width: p.Width, Order: s.conn.ByteOrder()}
	w, err := format.Decode(samples, pre)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("acquired", "channel", p.Channel, "points", len(w))
	return w, nil
}

// Preamble queries the scale and offset of the current acquisition.
func (s *Scope) Preamble() (waveform.Preamble, error) {
	var pre waveform.Preamble
	fields := []struct {
		cmd scpi.Command
		dst *float64
	}{
		{"WFMPRE:XINCR?", &pre.XIncrement},
		{"WFMPRE:XZERO?", &pre.XZero},
		{"WFMPRE:YMULT?", &pre.YMult},
		{"WFMPRE:YZERO?", &pre.YZero},
		{"WFMPRE:YOFF?", &pre.YOffset},
	}
	for _, f := range fields {
		v, err := s.engine.QueryFloat(f.cmd)
		if err != nil {
			return waveform.Preamble{}, err
		}
		*f.dst = v
	}
	return pre, nil
}
