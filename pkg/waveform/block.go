// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package waveform decodes oscilloscope curve data.
//
// Samples arrive as an IEEE 488.2 definite-length block: '#', one ASCII
// digit d, d ASCII digits giving the byte count L, then exactly L raw bytes.
// Raw codes are converted to volts with the scale and offset the instrument
// reports in its preamble for the same acquisition.
package waveform

import (
	"errors"
	"fmt"
)

// BlockMarker starts every binary block.
const BlockMarker = '#'

var (
	// ErrBadHeader indicates the block does not start with '#' followed by
	// decimal length digits.
	ErrBadHeader = errors.New("bad block header")

	// ErrLengthMismatch indicates fewer bytes than the header declares.
	ErrLengthMismatch = errors.New("block length mismatch")
)

// ParseHeader validates the block header at the start of b and returns the
// header size and the declared payload length.
//
// b may hold only part of the block; ErrLengthMismatch is returned when the
// header itself is truncated.
func ParseHeader(b []byte) (headerLen, dataLen int, err error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: empty block", ErrLengthMismatch)
	}
	if b[0] != BlockMarker {
		return 0, 0, fmt.Errorf("%w: expected '#', got 0x%02X", ErrBadHeader, b[0])
	}
	if len(b) < 2 {
		return 0, 0, fmt.Errorf("%w: missing digit count", ErrLengthMismatch)
	}

	digits := int(b[1]) - '0'
	if digits < 1 || digits > 9 {
		// '#0' is the indefinite form, which needs EOI to find its end.
		return 0, 0, fmt.Errorf("%w: invalid digit count %q", ErrBadHeader, b[1])
	}

	headerLen = 2 + digits
	if len(b) < headerLen {
		return 0, 0, fmt.Errorf("%w: header needs %d length digits, have %d", ErrLengthMismatch, digits, len(b)-2)
	}

	for _, c := range b[2:headerLen] {
		if c < '0' || c > '9' {
			return 0, 0, fmt.Errorf("%w: non-digit %q in length field", ErrBadHeader, c)
		}
		dataLen = dataLen*10 + int(c-'0')
	}

	return headerLen, dataLen, nil
}

// DecodeBlock returns the payload of a definite-length block.
// Bytes following the payload, typically the line terminator, are ignored.
func DecodeBlock(raw []byte) ([]byte, error) {
	headerLen, dataLen, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	if have := len(raw) - headerLen; have < dataLen {
		return nil, fmt.Errorf("%w: header declares %d bytes, got %d", ErrLengthMismatch, dataLen, have)
	}

	return raw[headerLen : headerLen+dataLen], nil
}

// EncodeBlock frames data as a definite-length block using the shortest
// length field.
func EncodeBlock(data []byte) []byte {
	length := fmt.Sprintf("%d", len(data))
	out := make([]byte, 0, 2+len(length)+len(data))
	out = append(out, BlockMarker, byte('0'+len(length)))
	out = append(out, length...)
	return append(out, data...)
}
