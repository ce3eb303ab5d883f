// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/benchtop/pkg/motion"
	"github.com/Thermoquad/benchtop/pkg/transport"
	"github.com/Thermoquad/benchtop/pkg/transport/transporttest"
)

const testMMPerStep = 0.390625

func newTestStage(t *testing.T) (*Stage, *transporttest.Port) {
	t.Helper()
	conn, port := newTestConn(t, "/dev/ttyUSB0")
	s, err := NewStage(conn, testMMPerStep)
	require.NoError(t, err)
	return s, port
}

func TestStageMove(t *testing.T) {
	s, port := newTestStage(t)

	cmd, err := s.Move(motion.AxisA, 10)
	require.NoError(t, err)
	assert.Equal(t, motion.StepCommand{Axis: motion.AxisA, Steps: 26}, cmd)

	_, err = s.Move(motion.AxisB, -5)
	require.NoError(t, err)

	assert.Equal(t, [][]byte{
		{0x01, 0x00, 0x00, 0x1A},
		{0x02, 0xFF, 0xFF, 0xF3},
	}, port.Writes())

	assert.InDelta(t, 26*testMMPerStep, s.Position(motion.AxisA), 1e-12)
	assert.InDelta(t, -13*testMMPerStep, s.Position(motion.AxisB), 1e-12)
}

func TestStageMoveOverflowWritesNothing(t *testing.T) {
	s, port := newTestStage(t)

	_, err := s.Move(motion.AxisA, 1e7)
	assert.ErrorIs(t, err, motion.ErrOverflow)

	_, err = s.Move(0x07, 1)
	assert.Error(t, err)

	assert.Empty(t, port.Writes())
	assert.Zero(t, s.Position(motion.AxisA))
}

func TestStageStopReset(t *testing.T) {
	s, port := newTestStage(t)

	_, err := s.Move(motion.AxisA, 1)
	require.NoError(t, err)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Reset())

	writes := port.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, []byte{0xAA}, writes[1])
	assert.Equal(t, []byte{0xAB}, writes[2])
	assert.Zero(t, s.Position(motion.AxisA))
}

func TestStageClosed(t *testing.T) {
	s, _ := newTestStage(t)
	require.NoError(t, s.Close())

	_, err := s.Move(motion.AxisA, 1)
	assert.ErrorIs(t, err, transport.ErrChannelClosed)
	assert.ErrorIs(t, s.Stop(), transport.ErrChannelClosed)
	assert.ErrorIs(t, s.Reset(), transport.ErrChannelClosed)
}

func TestNewStageRejectsBadScale(t *testing.T) {
	conn, _ := newTestConn(t, "/dev/ttyUSB0")
	for _, v := range []float64{0, -1} {
		_, err := NewStage(conn, v)
		assert.Error(t, err)
	}
}
