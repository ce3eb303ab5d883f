// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/transport"
	"github.com/Thermoquad/benchtop/pkg/transport/transporttest"
)

func testSampler() *sampler {
	return &sampler{
		kind:   "Lock-in",
		labels: [2]string{"X (V)", "Y (V)"},
		read:   func() (instrument.Sample, error) { return instrument.Sample{X: 1, Y: 2}, nil },
		stats:  transport.NewStatistics(),
	}
}

func TestNewSampler(t *testing.T) {
	port := transporttest.NewPort().ReplyLine("SNAP? 1,2", "1.5e-3,-2.0e-4")
	conn, err := transport.NewConn("/dev/ttyUSB0", port, transport.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer conn.Close()

	s, err := newSampler("lockin", conn)
	require.NoError(t, err)
	assert.Same(t, conn.Stats(), s.stats)

	sample, err := s.read()
	require.NoError(t, err)
	assert.InDelta(t, 1.5e-3, sample.X, 1e-12)
	assert.InDelta(t, -2.0e-4, sample.Y, 1e-12)

	_, err = newSampler("scope", conn)
	assert.Error(t, err)
}

func TestMonitorModelRecordsSamples(t *testing.T) {
	m := newMonitorModel(testSampler(), "test", time.Second, 2)

	for i := 0; i < 3; i++ {
		next, cmd := m.Update(sampleMsg{sample: instrument.Sample{X: float64(i), Y: 0}, at: m.start.Add(time.Duration(i) * time.Second)})
		m = next.(monitorModel)
		assert.NotNil(t, cmd, "next tick should be scheduled")

		next, cmd = m.Update(monitorTickMsg(time.Now()))
		m = next.(monitorModel)
		assert.NotNil(t, cmd, "tick should start a read")
	}

	assert.Equal(t, 3, m.readings)
	assert.Len(t, m.rows, 2, "history is capped")
	assert.Equal(t, "1", m.rows[0][1])
	assert.Equal(t, "2", m.rows[1][1])
	require.NotNil(t, m.latest)
	assert.InDelta(t, 2.0, m.latest.Time, 1e-9)
}

func TestMonitorModelLogsFailures(t *testing.T) {
	m := newMonitorModel(testSampler(), "test", time.Second, 10)

	next, _ := m.Update(sampleMsg{err: errors.New("read timeout")})
	m = next.(monitorModel)

	assert.Equal(t, 1, m.failures)
	assert.Zero(t, m.readings)
	require.Len(t, m.eventLog, 1)
	assert.True(t, m.eventLog[0].isError)
	assert.Contains(t, m.View(), "READ FAILED")
}

func TestMonitorModelPause(t *testing.T) {
	m := newMonitorModel(testSampler(), "test", time.Second, 10)
	pause := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}

	next, cmd := m.Update(pause)
	m = next.(monitorModel)
	assert.True(t, m.paused)
	assert.Nil(t, cmd)

	// A reading in flight when pausing is kept but nothing new is scheduled.
	next, cmd = m.Update(sampleMsg{sample: instrument.Sample{X: 1}, at: time.Now()})
	m = next.(monitorModel)
	assert.Equal(t, 1, m.readings)
	assert.Nil(t, cmd)

	next, cmd = m.Update(monitorTickMsg(time.Now()))
	m = next.(monitorModel)
	assert.Nil(t, cmd)

	next, cmd = m.Update(pause)
	m = next.(monitorModel)
	assert.False(t, m.paused)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Polling every")
}

func TestMonitorModelSinglePollingChain(t *testing.T) {
	m := newMonitorModel(testSampler(), "test", time.Second, 10)
	pause := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}
	toggle := func() tea.Cmd {
		next, _ := m.Update(pause)
		m = next.(monitorModel)
		next, cmd := m.Update(pause)
		m = next.(monitorModel)
		return cmd
	}

	// The first read is still outstanding.
	assert.Nil(t, toggle(), "resume must not start a second read")

	next, cmd := m.Update(sampleMsg{sample: instrument.Sample{X: 1}, at: time.Now()})
	m = next.(monitorModel)
	assert.NotNil(t, cmd)

	// A tick is now outstanding.
	assert.Nil(t, toggle(), "resume must not start a read while a tick is pending")

	next, cmd = m.Update(monitorTickMsg(time.Now()))
	m = next.(monitorModel)
	assert.NotNil(t, cmd)

	// A stray tick while the read is outstanding does nothing.
	next, cmd = m.Update(monitorTickMsg(time.Now()))
	m = next.(monitorModel)
	assert.Nil(t, cmd)
}

func TestMonitorModelQuit(t *testing.T) {
	m := newMonitorModel(testSampler(), "test", time.Second, 10)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(monitorModel)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPingResult(t *testing.T) {
	var r pingResult
	assert.Zero(t, r.loss())
	assert.Zero(t, r.avg())

	r.sent = 4
	r.add(2 * time.Millisecond)
	r.add(4 * time.Millisecond)
	r.add(3 * time.Millisecond)

	assert.Equal(t, 3, r.answered)
	assert.Equal(t, 2*time.Millisecond, r.min)
	assert.Equal(t, 4*time.Millisecond, r.max)
	assert.Equal(t, 3*time.Millisecond, r.avg())
	assert.InDelta(t, 25.0, r.loss(), 1e-9)
}
