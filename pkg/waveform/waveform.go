// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package waveform

import (
	"encoding/binary"
	"fmt"
)

// Preamble holds the per-acquisition scale and offset parameters.
// It must be queried for every acquisition; gain and offset are device
// state that can change between captures.
type Preamble struct {
	XIncrement float64 // seconds per sample
	XZero      float64 // time of the first sample
	YMult      float64 // volts per code
	YZero      float64 // volts added after scaling
	YOffset    float64 // code subtracted before scaling
}

// Point is one sample in physical units.
type Point struct {
	Time    float64
	Voltage float64
}

// Waveform is an ordered, evenly spaced trace.
type Waveform []Point

// Times returns the time column.
func (w Waveform) Times() []float64 {
	out := make([]float64, len(w))
	for i, p := range w {
		out[i] = p.Time
	}
	return out
}

// Voltages returns the voltage column.
func (w Waveform) Voltages() []float64 {
	out := make([]float64, len(w))
	for i, p := range w {
		out[i] = p.Voltage
	}
	return out
}

// Format describes how raw codes are packed in the block payload.
type Format struct {
	// Width is the number of bytes per code, 1 or 2.
	Width int
	// Signed selects two's complement codes (RIB/SRI) over unsigned (RPB/SRP).
	Signed bool
	// Order is used when Width is 2. Nil means big-endian.
	Order binary.ByteOrder
}

// Unsigned8 is the one-byte positive integer format.
var Unsigned8 = Format{Width: 1}

// Codes unpacks raw sample codes.
func (f Format) Codes(samples []byte) ([]float64, error) {
	switch f.Width {
	case 1:
		codes := make([]float64, len(samples))
		for i, b := range samples {
			if f.Signed {
				codes[i] = float64(int8(b))
			} else {
				codes[i] = float64(b)
			}
		}
		return codes, nil

	case 2:
		if len(samples)%2 != 0 {
			return nil, fmt.Errorf("%w: %d bytes is not a whole number of 2-byte samples", ErrLengthMismatch, len(samples))
		}
		order := f.Order
		if order == nil {
			order = binary.BigEndian
		}
		codes := make([]float64, len(samples)/2)
		for i := range codes {
			v := order.Uint16(samples[2*i:])
			if f.Signed {
				codes[i] = float64(int16(v))
			} else {
				codes[i] = float64(v)
			}
		}
		return codes, nil
	}

	return nil, fmt.Errorf("unsupported sample width %d", f.Width)
}

// Convert maps raw codes to a waveform. NaN and Inf produced by a
// degenerate preamble are passed through.
func Convert(codes []float64, p Preamble) Waveform {
	w := make(Waveform, len(codes))
	for i, c := range codes {
		w[i] = Point{
			Time:    p.XZero + float64(i)*p.XIncrement,
			Voltage: (c-p.YOffset)*p.YMult + p.YZero,
		}
	}
	return w
}

// ToWaveform converts unsigned 8-bit samples.
func ToWaveform(samples []byte, p Preamble) Waveform {
	codes := make([]float64, len(samples))
	for i, b := range samples {
		codes[i] = float64(b)
	}
	return Convert(codes, p)
}

// Decode converts samples packed in format f.
func (f Format) Decode(samples []byte, p Preamble) (Waveform, error) {
	codes, err := f.Codes(samples)
	if err != nil {
		return nil, err
	}
	return Convert(codes, p), nil
}
