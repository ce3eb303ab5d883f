// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/benchtop/pkg/scpi"
	"github.com/Thermoquad/benchtop/pkg/transport"
	"github.com/Thermoquad/benchtop/pkg/transport/transporttest"
)

const testTimeout = 50 * time.Millisecond

func newTestConn(t *testing.T, address string, opts ...transport.Option) (*transport.Conn, *transporttest.Port) {
	t.Helper()
	port := transporttest.NewPort()
	opts = append([]transport.Option{transport.WithTimeout(testTimeout)}, opts...)
	conn, err := transport.NewConn(address, port, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, port
}

// tick returns a clock that advances by step on every call.
func tick(step time.Duration) func() time.Time {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestDeviceCommonCommands(t *testing.T) {
	conn, port := newTestConn(t, "GPIB0::8::INSTR")
	port.ReplyLine("*IDN?", "Stanford_Research_Systems,SR830,s/n12345,ver1.07").
		ReplyLine("*OPC?", "1").
		ReplyLine("*OPC?", "0")

	d := NewDevice(conn)

	idn, err := d.Identify()
	require.NoError(t, err)
	assert.Equal(t, Identity{
		Manufacturer: "Stanford_Research_Systems",
		Model:        "SR830",
		Serial:       "s/n12345",
		Firmware:     "ver1.07",
	}, ParseIdentity(idn))

	require.NoError(t, d.Reset())
	require.NoError(t, d.Clear())
	require.NoError(t, d.WaitComplete())
	assert.Error(t, d.WaitComplete())

	assert.Equal(t, []string{"*IDN?", "*RST", "*CLS", "*OPC?", "*OPC?"}, port.Lines())

	require.NoError(t, d.Close())
	assert.True(t, port.Closed())
	assert.ErrorIs(t, d.Send(scpi.Command("*RST")), transport.ErrChannelClosed)
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want Identity
	}{
		{"ACME,X1", Identity{Manufacturer: "ACME", Model: "X1"}},
		{"KEITHLEY INSTRUMENTS INC.,MODEL 2400,1234567,C30 Mar 17 2006 09:29:29/A02 /K/J",
			Identity{"KEITHLEY INSTRUMENTS INC.", "MODEL 2400", "1234567", "C30 Mar 17 2006 09:29:29/A02 /K/J"}},
		{"", Identity{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIdentity(tt.in))
		})
	}
	assert.Equal(t, "ACME X1", ParseIdentity("ACME,X1,0,1").String())
}

type fakeCloser struct {
	closed int
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed++
	return f.err
}

func TestUse(t *testing.T) {
	t.Run("closes after success", func(t *testing.T) {
		c := &fakeCloser{}
		err := Use(func() (*fakeCloser, error) { return c, nil }, func(*fakeCloser) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 1, c.closed)
	})

	t.Run("closes after failure and keeps the failure", func(t *testing.T) {
		c := &fakeCloser{err: errors.New("close failed")}
		boom := errors.New("boom")
		err := Use(func() (*fakeCloser, error) { return c, nil }, func(*fakeCloser) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, c.closed)
	})

	t.Run("reports close error", func(t *testing.T) {
		closeErr := errors.New("close failed")
		c := &fakeCloser{err: closeErr}
		err := Use(func() (*fakeCloser, error) { return c, nil }, func(*fakeCloser) error { return nil })
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("closes on panic", func(t *testing.T) {
		c := &fakeCloser{}
		assert.Panics(t, func() {
			_ = Use(func() (*fakeCloser, error) { return c, nil }, func(*fakeCloser) error { panic("fault") })
		})
		assert.Equal(t, 1, c.closed)
	})

	t.Run("open failure skips fn", func(t *testing.T) {
		called := false
		err := Use(func() (*fakeCloser, error) { return nil, transport.ErrOpenFailed }, func(*fakeCloser) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, transport.ErrOpenFailed)
		assert.False(t, called)
	})
}

func TestOpenDeviceInvalidAddress(t *testing.T) {
	_, err := OpenDevice("GPIB0::99::INSTR")
	assert.ErrorIs(t, err, transport.ErrOpenFailed)
	assert.ErrorIs(t, err, transport.ErrInvalidAddress)
}

func TestParseSample(t *testing.T) {
	s, err := ParseSample("1.5E-3,-2.0E-4")
	require.NoError(t, err)
	assert.Equal(t, Sample{X: 1.5e-3, Y: -2e-4}, s)

	_, err = ParseSample("1.0")
	assert.ErrorIs(t, err, scpi.ErrNotNumeric)

	_, err = ParseSample("1.0,OVLD")
	assert.ErrorIs(t, err, scpi.ErrNotNumeric)
}
