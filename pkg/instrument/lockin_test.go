// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/benchtop/pkg/transport"
)

func TestLockInSettings(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	port.ReplyLine("FREQ?", "1000.0")
	l := NewLockIn(conn)

	require.NoError(t, l.SetFrequency(1000))
	require.NoError(t, l.SetAmplitude(0.5))
	require.NoError(t, l.SetPhase(-90))
	require.NoError(t, l.SetSensitivity(22))
	require.NoError(t, l.SetTimeConstant(10))
	require.NoError(t, l.AutoGain())
	require.NoError(t, l.AutoPhase())

	f, err := l.Frequency()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f)

	assert.Equal(t, []string{
		"FREQ 1000", "SLVL 0.5", "PHAS -90", "SENS 22", "OFLT 10", "AGAN", "APHS", "FREQ?",
	}, port.Lines())
}

func TestLockInRejectsOutOfRange(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	l := NewLockIn(conn)

	assert.Error(t, l.SetFrequency(0))
	assert.Error(t, l.SetAmplitude(-1))
	assert.Error(t, l.SetSensitivity(MaxSensitivity+1))
	assert.Error(t, l.SetSensitivity(-1))
	assert.Error(t, l.SetTimeConstant(MaxTimeConstant+1))
	assert.Empty(t, port.Writes())
}

func TestLockInSnap(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	port.ReplyLine("SNAP? 1,2", "1.25e-3,-4.5e-4").
		ReplyLine("SNAP? 3,4", "1.33e-3,-19.8")
	l := NewLockIn(conn)

	xy, err := l.SnapXY()
	require.NoError(t, err)
	assert.Equal(t, Sample{X: 1.25e-3, Y: -4.5e-4}, xy)

	rt, err := l.SnapRTheta()
	require.NoError(t, err)
	assert.Equal(t, Sample{X: 1.33e-3, Y: -19.8}, rt)
}

func TestLockInRecord(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	for _, r := range []string{"1,2", "3,4", "5,6"} {
		port.ReplyLine("SNAP? 1,2", r)
	}
	l := NewLockIn(conn)
	l.now = tick(500 * time.Millisecond)

	samples, err := l.Record(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Time: 0, X: 1, Y: 2},
		{Time: 0.5, X: 3, Y: 4},
		{Time: 1.0, X: 5, Y: 6},
	}, samples)
}

func TestLockInRecordRTheta(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	port.ReplyLine("SNAP? 3,4", "1.5e-3,45").
		ReplyLine("SNAP? 3,4", "1.6e-3,-90")
	l := NewLockIn(conn)
	l.now = tick(time.Second)

	samples, err := l.RecordRTheta(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Time: 0, X: 1.5e-3, Y: 45},
		{Time: 1, X: 1.6e-3, Y: -90},
	}, samples)
	assert.Equal(t, []string{"SNAP? 3,4", "SNAP? 3,4"}, port.Lines())
}

func TestLockInRecordStopsOnTimeout(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	port.ReplyLine("SNAP? 1,2", "1,2")
	l := NewLockIn(conn)

	samples, err := l.Record(context.Background(), 3, 0)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Len(t, samples, 1)
}

func TestLockInRecordCancelled(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	port.ReplyLine("SNAP? 1,2", "1,2")
	l := NewLockIn(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples, err := l.Record(ctx, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, samples, 1)
}
