// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package motion encodes move frames for the two-axis stage controller.
//
// The controller accepts a fixed 4-byte frame per move and sends no
// acknowledgement: one axis byte followed by the signed step count as a
// 24-bit two's complement field, most significant byte first. STOP and RESET
// are single control bytes with no payload.
package motion

import (
	"errors"
	"fmt"
	"math"
)

// Axis identifiers.
const (
	AxisA byte = 0x01
	AxisB byte = 0x02
)

// Control bytes. These values come from the controller's example command
// table and have not been confirmed against a datasheet.
const (
	StopByte  byte = 0xAA
	ResetByte byte = 0xAB
)

// Step count limits of the 24-bit field.
const (
	MinSteps = -1 << 23
	MaxSteps = 1<<23 - 1

	FrameSize = 4

	fieldModulus = 1 << 24
)

// ErrOverflow is returned when a move does not fit the 24-bit step field.
var ErrOverflow = errors.New("step count overflows 24-bit field")

// StepCommand is one move of one axis.
type StepCommand struct {
	Axis  byte
	Steps int32
}

// EncodeStep converts a displacement in millimetres into a step command.
// The quotient is rounded half away from zero.
func EncodeStep(axis byte, distanceMM, mmPerStep float64) (StepCommand, error) {
	q := math.Round(distanceMM / mmPerStep)
	if math.IsNaN(q) || q < MinSteps || q > MaxSteps {
		return StepCommand{}, fmt.Errorf("%w: %g mm at %g mm/step", ErrOverflow, distanceMM, mmPerStep)
	}
	return StepCommand{Axis: axis, Steps: int32(q)}, nil
}

// Serialize returns the wire frame [axis, high, mid, low].
func (c StepCommand) Serialize() [FrameSize]byte {
	u := int64(c.Steps)
	if u < 0 {
		u += fieldModulus
	}
	return [FrameSize]byte{
		c.Axis,
		byte(u / 65536),
		byte((u % 65536) / 256),
		byte(u % 256),
	}
}

// DecodeStep recovers a step command from its wire frame.
func DecodeStep(frame [FrameSize]byte) StepCommand {
	u := int32(frame[1])<<16 | int32(frame[2])<<8 | int32(frame[3])
	if u > MaxSteps {
		u -= fieldModulus
	}
	return StepCommand{Axis: frame[0], Steps: u}
}

// Distance converts the step count back to millimetres.
func (c StepCommand) Distance(mmPerStep float64) float64 {
	return float64(c.Steps) * mmPerStep
}

func (c StepCommand) String() string {
	return fmt.Sprintf("axis 0x%02X %+d steps", c.Axis, c.Steps)
}

// AxisName returns "A", "B" or the hex identifier.
func AxisName(axis byte) string {
	switch axis {
	case AxisA:
		return "A"
	case AxisB:
		return "B"
	}
	return fmt.Sprintf("0x%02X", axis)
}

// ParseAxis accepts "A"/"B" (any case) or "1"/"2".
func ParseAxis(s string) (byte, error) {
	switch s {
	case "A", "a", "1":
		return AxisA, nil
	case "B", "b", "2":
		return AxisB, nil
	}
	return 0, fmt.Errorf("unknown axis %q (use A or B)", s)
}
