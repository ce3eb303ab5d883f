// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/benchtop/pkg/transport"
	"github.com/Thermoquad/benchtop/pkg/transport/transporttest"
	"github.com/Thermoquad/benchtop/pkg/waveform"
)

func scriptPreamble(port *transporttest.Port, xincr, xzero, ymult, yzero, yoff string) {
	port.ReplyLine("WFMPRE:XINCR?", xincr).
		ReplyLine("WFMPRE:XZERO?", xzero).
		ReplyLine("WFMPRE:YMULT?", ymult).
		ReplyLine("WFMPRE:YZERO?", yzero).
		ReplyLine("WFMPRE:YOFF?", yoff)
}

func TestScopeAcquire(t *testing.T) {
	conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR")
	scope := NewScope(conn)

	var slept []time.Duration
	scope.sleep = func(d time.Duration) { slept = append(slept, d) }

	scriptPreamble(port, "1.0E-3", "-2.0E-3", "4.0E-2", "0.0", "1.28E2")
	port.Reply("CURVE?", append(waveform.EncodeBlock([]byte{128, 128, 128, 153}), '\n'))

	w, err := scope.Acquire(AcquireParams{Channel: "CH2", Start: 1, Stop: 4, Width: 1, Dwell: 250 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ACQ:STATE STOP",
		"CLEAR",
		"DATA:SOU CH2",
		"DATA:ENC RPB",
		"DATA:WIDTH 1",
		"DATA:START 1",
		"DATA:STOP 4",
		"ACQ:STATE RUN",
		"ACQ:STATE STOP",
		"WFMPRE:XINCR?",
		"WFMPRE:XZERO?",
		"WFMPRE:YMULT?",
		"WFMPRE:YZERO?",
		"WFMPRE:YOFF?",
		"CURVE?",
	}, port.Lines())
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, slept)

	require.Len(t, w, 4)
	for i, want := range []float64{-2e-3, -1e-3, 0, 1e-3} {
		assert.InDelta(t, want, w[i].Time, 1e-12)
	}
	assert.Equal(t, []float64{0, 0, 0}, w.Voltages()[:3])
	assert.InDelta(t, 1.0, w[3].Voltage, 1e-12)
}

func TestScopeAcquireTwoByteSamples(t *testing.T) {
	conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR", transport.WithByteOrder(binary.LittleEndian))
	scope := NewScope(conn)
	scope.sleep = func(time.Duration) {}

	scriptPreamble(port, "1", "0", "1", "0", "0")
	port.Reply("CURVE?", append(waveform.EncodeBlock([]byte{0x01, 0x02, 0xFF, 0x00}), '\n'))

	w, err := scope.Acquire(AcquireParams{Channel: "CH1", Start: 1, Stop: 2, Width: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0x0201, 0x00FF}, w.Voltages())
	assert.Contains(t, port.Lines(), "DATA:WIDTH 2")
}

func TestScopeAcquireQueriesPreambleEveryTime(t *testing.T) {
	conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR")
	scope := NewScope(conn)
	scope.sleep = func(time.Duration) {}

	params := AcquireParams{Channel: "CH1", Start: 1, Stop: 1, Width: 1}

	scriptPreamble(port, "1", "0", "1", "0", "0")
	port.Reply("CURVE?", append(waveform.EncodeBlock([]byte{10}), '\n'))
	first, err := scope.Acquire(params)
	require.NoError(t, err)

	// Gain changed on the front panel between captures.
	scriptPreamble(port, "1", "0", "2", "0", "0")
	port.Reply("CURVE?", append(waveform.EncodeBlock([]byte{10}), '\n'))
	second, err := scope.Acquire(params)
	require.NoError(t, err)

	assert.Equal(t, 10.0, first[0].Voltage)
	assert.Equal(t, 20.0, second[0].Voltage)
}

func TestScopeAcquireErrors(t *testing.T) {
	t.Run("invalid params send nothing", func(t *testing.T) {
		for _, p := range []AcquireParams{
			{Channel: "", Start: 1, Stop: 10, Width: 1},
			{Channel: "CH1", Start: 0, Stop: 10, Width: 1},
			{Channel: "CH1", Start: 5, Stop: 4, Width: 1},
			{Channel: "CH1", Start: 1, Stop: 10, Width: 3},
			{Channel: "CH1", Start: 1, Stop: 10, Width: 1, Dwell: -time.Second},
		} {
			conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR")
			_, err := NewScope(conn).Acquire(p)
			assert.Error(t, err)
			assert.Empty(t, port.Writes())
		}
	})

	t.Run("non-numeric preamble", func(t *testing.T) {
		conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR")
		scope := NewScope(conn)
		scope.sleep = func(time.Duration) {}
		port.ReplyLine("WFMPRE:XINCR?", "ERR")

		_, err := scope.Acquire(DefaultAcquireParams)
		assert.Error(t, err)
	})

	t.Run("bad block header", func(t *testing.T) {
		conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR")
		scope := NewScope(conn)
		scope.sleep = func(time.Duration) {}
		scriptPreamble(port, "1", "0", "1", "0", "0")
		port.ReplyLine("CURVE?", "1,2,3")

		_, err := scope.Acquire(DefaultAcquireParams)
		assert.ErrorIs(t, err, waveform.ErrBadHeader)
	})

	t.Run("odd two-byte payload", func(t *testing.T) {
		conn, port := newTestConn(t, "USB0::0x0699::0x0368::INSTR")
		scope := NewScope(conn)
		scope.sleep = func(time.Duration) {}
		scriptPreamble(port, "1", "0", "1", "0", "0")
		port.Reply("CURVE?", append(waveform.EncodeBlock([]byte{1, 2, 3}), '\n'))

		_, err := scope.Acquire(AcquireParams{Channel: "CH1", Start: 1, Stop: 2, Width: 2})
		assert.ErrorIs(t, err, waveform.ErrLengthMismatch)
	})
}
